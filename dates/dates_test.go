package dates

import (
	"testing"
)

func TestParser_Cascade(t *testing.T) {
	tests := []struct {
		input         string
		wantCanonical string
		wantPrecision Precision
	}{
		{"2024-01-15", "2024-01-15", PrecisionDay},
		{"2024-01-15T08:30:00Z", "2024-01-15T08:30:00", PrecisionTime},
		{"2024-01-15T08:30:00", "2024-01-15T08:30:00", PrecisionTime},
		{"2024-01-15 08:30:00", "2024-01-15T08:30:00", PrecisionTime},
		{"2024/01/15", "2024-01-15", PrecisionDay},
		{"01/15/2024", "2024-01-15", PrecisionDay},
		{"20240115", "2024-01-15", PrecisionDay},
		{"15-Jan-2024", "2024-01-15", PrecisionDay},
		{"15-JAN-2024", "2024-01-15", PrecisionDay},
		{"15-jan-2024", "2024-01-15", PrecisionDay},
		{"15 Jan 2024", "2024-01-15", PrecisionDay},
		{"5-Feb-2024", "2024-02-05", PrecisionDay},
		{"2024-01", "2024-01", PrecisionMonth},
		{"2024", "2024", PrecisionYear},
		{"  2024-01-15  ", "2024-01-15", PrecisionDay},
	}

	p := NewParser(128)
	for _, tt := range tests {
		parsed, ok := p.Parse(tt.input)
		if !ok {
			t.Errorf("Parse(%q) failed; want success", tt.input)
			continue
		}
		if got := parsed.Canonical(); got != tt.wantCanonical {
			t.Errorf("Parse(%q).Canonical() = %q; want %q", tt.input, got, tt.wantCanonical)
		}
		if parsed.Precision != tt.wantPrecision {
			t.Errorf("Parse(%q).Precision = %v; want %v", tt.input, parsed.Precision, tt.wantPrecision)
		}
	}
}

func TestParser_Rejects(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"not a date",
		"2024-13-01",
		"2024-02-30",
		"32/01/2024",
		"15-Xyz-2024",
		"202401",
	}

	p := NewParser(128)
	for _, input := range invalid {
		if _, ok := p.Parse(input); ok {
			t.Errorf("Parse(%q) succeeded; want failure", input)
		}
	}
}

func TestParser_RoundTrip(t *testing.T) {
	// Canonical output must re-parse to the same calendar value.
	inputs := []string{
		"2024-01-15",
		"2024-01-15T08:30:00",
		"2024/01/15",
		"01/15/2024",
		"20240115",
		"15-Jan-2024",
		"2024-01",
		"2024",
	}

	p := NewParser(128)
	for _, input := range inputs {
		first, ok := p.Parse(input)
		if !ok {
			t.Fatalf("Parse(%q) failed", input)
		}
		second, ok := p.Parse(first.Canonical())
		if !ok {
			t.Fatalf("Parse(%q) (canonical of %q) failed", first.Canonical(), input)
		}
		if second.Canonical() != first.Canonical() {
			t.Errorf("round trip of %q: %q != %q", input, second.Canonical(), first.Canonical())
		}
		if second.Precision != first.Precision {
			t.Errorf("round trip of %q changed precision: %v != %v",
				input, second.Precision, first.Precision)
		}
	}
}

func TestParser_CacheHits(t *testing.T) {
	p := NewParser(128)

	p.Parse("2024-01-15")
	p.Parse("2024-01-15")
	p.Parse("2024-01-15")
	p.Parse("garbage")
	p.Parse("garbage")

	stats := p.CacheStats()
	if stats.Hits < 3 {
		t.Errorf("cache hits = %d; want >= 3", stats.Hits)
	}
	// Failures are cached too.
	if stats.Size != 2 {
		t.Errorf("cache size = %d; want 2", stats.Size)
	}
}

func TestCompare(t *testing.T) {
	p := NewParser(128)
	parse := func(s string) Parsed {
		v, ok := p.Parse(s)
		if !ok {
			t.Fatalf("Parse(%q) failed", s)
		}
		return v
	}

	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-15", "2024-01-16", -1},
		{"2024-01-16", "2024-01-15", 1},
		{"2024-01-15", "2024-01-15", 0},
		{"2024-01-15", "15-Jan-2024", 0},
		{"2024-01-15T08:30:00", "2024-01-15T09:00:00", -1},
		// Coarser precision wins: a bare year matches any day in it.
		{"2024", "2024-06-01", 0},
		{"2023", "2024-06-01", -1},
		{"2024-07", "2024-06-15", 1},
		// Same day at different precision is indistinguishable.
		{"2024-01-15", "2024-01-15T23:59:59", 0},
	}

	for _, tt := range tests {
		if got := Compare(parse(tt.a), parse(tt.b)); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d; want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeMonthCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"15-JAN-2024", "15-Jan-2024"},
		{"15-jan-2024", "15-Jan-2024"},
		{"15 SEP 2024", "15 Sep 2024"},
		{"2024-01-15", "2024-01-15"},
	}

	for _, tt := range tests {
		if got := normalizeMonthCase(tt.input); got != tt.want {
			t.Errorf("normalizeMonthCase(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func BenchmarkParser_Hit(b *testing.B) {
	p := NewParser(1024)
	p.Parse("2024-01-15")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Parse("2024-01-15")
	}
}

func BenchmarkParser_Cascade(b *testing.B) {
	inputs := []string{"2024-01-15", "15-Jan-2024", "20240115", "garbage"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewParser(8)
		p.Parse(inputs[i%len(inputs)])
	}
}
