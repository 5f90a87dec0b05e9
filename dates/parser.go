package dates

import (
	"strings"
	"time"
	"unicode"

	"github.com/gosdtm/validator/cache"
)

// layout pairs a Go time layout with the precision it yields.
type layout struct {
	format    string
	precision Precision
	// textualMonth layouts need month-token case normalization, since
	// source files spell months as JAN, Jan, or jan interchangeably.
	textualMonth bool
}

// cascade is the ordered accepted-format list. First match wins, so the
// more specific shapes come before the partial ones.
var cascade = []layout{
	{format: "2006-01-02", precision: PrecisionDay},
	{format: time.RFC3339, precision: PrecisionTime},
	{format: "2006-01-02T15:04:05", precision: PrecisionTime},
	{format: "2006-01-02 15:04:05", precision: PrecisionTime},
	{format: "2006/01/02", precision: PrecisionDay},
	{format: "01/02/2006", precision: PrecisionDay},
	{format: "20060102", precision: PrecisionDay},
	{format: "2-Jan-2006", precision: PrecisionDay, textualMonth: true},
	{format: "2 Jan 2006", precision: PrecisionDay, textualMonth: true},
	{format: "2006-01", precision: PrecisionMonth},
	{format: "2006", precision: PrecisionYear},
}

// parseOutcome caches both successes and failures: unparseable values
// repeat across rows just as often as valid ones.
type parseOutcome struct {
	parsed Parsed
	ok     bool
}

// Parser runs the cascade with an LRU cache keyed by raw cell text.
// It is safe for concurrent use by table workers.
type Parser struct {
	cache *cache.Cache[string, parseOutcome]
}

// NewParser creates a Parser with the given cache capacity.
func NewParser(cacheSize int) *Parser {
	return &Parser{cache: cache.New[string, parseOutcome](cacheSize)}
}

// Parse attempts the cascade against raw text. It reports the parsed value
// and whether any format matched. Empty input never matches.
func (p *Parser) Parse(raw string) (Parsed, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Parsed{}, false
	}

	out := p.cache.GetOrSet(raw, func() parseOutcome {
		parsed, ok := parseCascade(raw)
		return parseOutcome{parsed: parsed, ok: ok}
	})
	return out.parsed, out.ok
}

// CacheStats exposes the parse cache statistics.
func (p *Parser) CacheStats() cache.Stats {
	return p.cache.Stats()
}

func parseCascade(raw string) (Parsed, bool) {
	for _, l := range cascade {
		candidate := raw
		if l.textualMonth {
			candidate = normalizeMonthCase(raw)
		}
		t, err := time.Parse(l.format, candidate)
		if err != nil {
			continue
		}
		return Parsed{Time: t, Precision: l.precision}, true
	}
	return Parsed{}, false
}

// normalizeMonthCase title-cases alphabetic runs so that "15-JAN-2024" and
// "15-jan-2024" both match the Go "Jan" layout token.
func normalizeMonthCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
