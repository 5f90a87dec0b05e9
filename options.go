package sdtmvalidator

import (
	"fmt"
	"runtime"
)

// Default policy constants. They are starting points, not asserted-correct
// thresholds; every one of them is configurable through Options.
const (
	// DefaultCriticalPenalty is subtracted per critical finding.
	DefaultCriticalPenalty = 10.0
	// DefaultErrorPenalty is subtracted per error finding.
	DefaultErrorPenalty = 10.0
	// DefaultWarningPenalty is subtracted per warning finding.
	DefaultWarningPenalty = 2.0
	// DefaultReadyThreshold is the overall score needed for READY.
	DefaultReadyThreshold = 95.0
	// DefaultReviewWarningThreshold is the warning count that forces REVIEW.
	DefaultReviewWarningThreshold = 5
	// DefaultRowKeySampleSize caps sampled row keys per finding.
	DefaultRowKeySampleSize = 10
	// DefaultAnchorDomain is the domain whose subject keys define the study universe.
	DefaultAnchorDomain = "DM"
)

// PenaltyTier maps a fraction threshold to a score penalty. A tier applies
// when the observed fraction is strictly greater than MinFraction; tiers are
// evaluated from the highest threshold down and the first match wins.
type PenaltyTier struct {
	MinFraction float64
	Penalty     float64
}

// Option configures the validation engine.
type Option func(*Options)

// Options holds all configuration for the validation engine.
type Options struct {
	// Validation flags
	ValidateBusiness    bool
	ValidateTerminology bool
	ValidateCrossDomain bool

	// Scoring policy
	CriticalPenalty  float64
	ErrorPenalty     float64
	WarningPenalty   float64
	MissingDataTiers []PenaltyTier
	DuplicateTiers   []PenaltyTier

	// Verdict policy
	ReadyThreshold         float64
	ReviewWarningThreshold int

	// Finding detail
	RowKeySampleSize int

	// Cross-domain policy
	AnchorDomain string

	// Date-column auto-detection tokens (matched against upper-cased
	// column names as suffix or substring)
	DateColumnTokens []string

	// Performance
	ParallelTables bool
	ParallelPhases bool
	WorkerCount    int
	EnablePooling  bool

	// Cache sizes
	DateCacheSize     int
	PackCacheSize     int
	CodelistCacheSize int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		// All check families enabled by default
		ValidateBusiness:    true,
		ValidateTerminology: true,
		ValidateCrossDomain: true,

		// Scoring defaults
		CriticalPenalty: DefaultCriticalPenalty,
		ErrorPenalty:    DefaultErrorPenalty,
		WarningPenalty:  DefaultWarningPenalty,
		MissingDataTiers: []PenaltyTier{
			{MinFraction: 0.20, Penalty: 20},
			{MinFraction: 0.10, Penalty: 10},
			{MinFraction: 0.05, Penalty: 5},
		},
		DuplicateTiers: []PenaltyTier{
			{MinFraction: 0.05, Penalty: 10},
			{MinFraction: 0.01, Penalty: 5},
		},

		// Verdict defaults
		ReadyThreshold:         DefaultReadyThreshold,
		ReviewWarningThreshold: DefaultReviewWarningThreshold,

		RowKeySampleSize: DefaultRowKeySampleSize,
		AnchorDomain:     DefaultAnchorDomain,
		DateColumnTokens: []string{"DTC", "DAT", "DATE"},

		// Performance defaults
		ParallelTables: true,
		ParallelPhases: true,
		WorkerCount:    runtime.NumCPU(),
		EnablePooling:  true,

		// Cache defaults
		DateCacheSize:     2048,
		PackCacheSize:     16,
		CodelistCacheSize: 256,
	}
}

// Validate reports configuration errors. These are programming errors and
// surface to the caller; they are never converted into findings.
func (o *Options) Validate() error {
	if o.CriticalPenalty < 0 || o.ErrorPenalty < 0 || o.WarningPenalty < 0 {
		return fmt.Errorf("severity penalties must be non-negative")
	}
	if o.ReadyThreshold < 0 || o.ReadyThreshold > 100 {
		return fmt.Errorf("ready threshold %v outside [0,100]", o.ReadyThreshold)
	}
	if o.ReviewWarningThreshold < 1 {
		return fmt.Errorf("review warning threshold must be at least 1")
	}
	if o.RowKeySampleSize < 1 {
		return fmt.Errorf("row key sample size must be at least 1")
	}
	if o.AnchorDomain == "" && o.ValidateCrossDomain {
		return fmt.Errorf("anchor domain required when cross-domain checks are enabled")
	}
	for _, t := range append(append([]PenaltyTier{}, o.MissingDataTiers...), o.DuplicateTiers...) {
		if t.MinFraction < 0 || t.MinFraction > 1 {
			return fmt.Errorf("penalty tier fraction %v outside [0,1]", t.MinFraction)
		}
		if t.Penalty < 0 {
			return fmt.Errorf("penalty tier value %v is negative", t.Penalty)
		}
	}
	return nil
}

// --- Validation Options ---

// WithBusinessRules enables domain business-rule validation.
func WithBusinessRules(enable bool) Option {
	return func(o *Options) {
		o.ValidateBusiness = enable
	}
}

// WithTerminology enables controlled-vocabulary validation.
// Requires a CodelistResolver to be configured.
func WithTerminology(enable bool) Option {
	return func(o *Options) {
		o.ValidateTerminology = enable
	}
}

// WithCrossDomain enables cross-table consistency validation.
func WithCrossDomain(enable bool) Option {
	return func(o *Options) {
		o.ValidateCrossDomain = enable
	}
}

// --- Scoring Options ---

// WithSeverityPenalties sets the per-finding score deductions.
// Negative values are ignored.
func WithSeverityPenalties(critical, err, warning float64) Option {
	return func(o *Options) {
		if critical >= 0 {
			o.CriticalPenalty = critical
		}
		if err >= 0 {
			o.ErrorPenalty = err
		}
		if warning >= 0 {
			o.WarningPenalty = warning
		}
	}
}

// WithMissingDataTiers replaces the missing-data penalty tiers.
func WithMissingDataTiers(tiers []PenaltyTier) Option {
	return func(o *Options) {
		if len(tiers) > 0 {
			o.MissingDataTiers = tiers
		}
	}
}

// WithDuplicateTiers replaces the duplicate-row penalty tiers.
func WithDuplicateTiers(tiers []PenaltyTier) Option {
	return func(o *Options) {
		if len(tiers) > 0 {
			o.DuplicateTiers = tiers
		}
	}
}

// WithReadyThreshold sets the overall score required for READY.
func WithReadyThreshold(threshold float64) Option {
	return func(o *Options) {
		if threshold >= 0 && threshold <= 100 {
			o.ReadyThreshold = threshold
		}
	}
}

// WithReviewWarningThreshold sets how many warnings force REVIEW status.
func WithReviewWarningThreshold(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.ReviewWarningThreshold = count
		}
	}
}

// --- Detail Options ---

// WithRowKeySampleSize caps how many affected row keys a finding carries.
func WithRowKeySampleSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.RowKeySampleSize = n
		}
	}
}

// WithAnchorDomain sets the domain that defines the subject universe.
func WithAnchorDomain(domain string) Option {
	return func(o *Options) {
		if domain != "" {
			o.AnchorDomain = domain
		}
	}
}

// WithDateColumnTokens replaces the date-column detection tokens.
func WithDateColumnTokens(tokens ...string) Option {
	return func(o *Options) {
		if len(tokens) > 0 {
			o.DateColumnTokens = tokens
		}
	}
}

// --- Performance Options ---

// WithParallelTables enables concurrent validation across tables.
func WithParallelTables(enable bool) Option {
	return func(o *Options) {
		o.ParallelTables = enable
	}
}

// WithParallelPhases enables parallel execution of independent checks
// within one table.
func WithParallelPhases(enable bool) Option {
	return func(o *Options) {
		o.ParallelPhases = enable
	}
}

// WithWorkerCount sets the number of workers for per-table fan-out.
// Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithPooling enables or disables object pooling.
// Pooling reduces GC pressure but requires calling Release() on results.
func WithPooling(enable bool) Option {
	return func(o *Options) {
		o.EnablePooling = enable
	}
}

// WithCacheSize configures the date-parse and pack caches.
func WithCacheSize(dates, packs int) Option {
	return func(o *Options) {
		if dates > 0 {
			o.DateCacheSize = dates
		}
		if packs > 0 {
			o.PackCacheSize = packs
		}
	}
}

// WithCodelistCacheSize configures the per-lookup codelist cache fronting
// the resolver chain. Zero or negative disables the cache.
func WithCodelistCacheSize(size int) Option {
	return func(o *Options) {
		o.CodelistCacheSize = size
	}
}

// --- Presets ---

// FastOptions returns options optimized for quick smoke passes.
// Terminology and cross-domain checks are skipped.
func FastOptions() []Option {
	return []Option{
		WithTerminology(false),
		WithCrossDomain(false),
		WithParallelTables(true),
		WithParallelPhases(true),
		WithCacheSize(8192, 32),
		WithPooling(true),
	}
}

// StrictOptions returns options for strict validation: a single warning
// forces review, warnings cost more, and READY demands a higher score.
func StrictOptions() []Option {
	return []Option{
		WithTerminology(true),
		WithCrossDomain(true),
		WithSeverityPenalties(DefaultCriticalPenalty, DefaultErrorPenalty, 5),
		WithReviewWarningThreshold(1),
		WithReadyThreshold(98),
	}
}

// LenientOptions returns options for exploratory runs on raw extracts.
func LenientOptions() []Option {
	return []Option{
		WithSeverityPenalties(DefaultCriticalPenalty, 5, 1),
		WithReviewWarningThreshold(10),
		WithReadyThreshold(90),
	}
}
