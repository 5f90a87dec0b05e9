// Package engine provides the study validation facade: it wires the rule
// registry, the codelist resolver, and the phase pipeline into a validator
// that turns loaded tables into scored, severity-classified results.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/cache"
	"github.com/gosdtm/validator/dates"
	"github.com/gosdtm/validator/phase"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/registry"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/service"
	"github.com/gosdtm/validator/stream"
	"github.com/gosdtm/validator/table"
)

// StudyValidator validates tabular study datasets against a standard
// version's rule and codelist packs. It is safe for concurrent use;
// concurrent studies share only the immutable registry and the caches.
type StudyValidator struct {
	// Configuration
	version sv.StandardVersion
	options *sv.Options

	// Resolved packs
	rules     *rule.Registry
	codelists service.CodelistResolver
	services  *service.Services
	packNames []string

	// Per-table pipeline
	pipe  *pipeline.Pipeline
	dates *dates.Parser

	// Study-scope checks, run once per study after every table result
	// is available
	crossDomain *phase.CrossDomainPhase

	// Scoring and metrics
	scorer  *sv.Scorer
	metrics *sv.Metrics

	// Worker pool for per-table fan-out
	workerPool     chan struct{}
	workerPoolOnce sync.Once
}

// New creates a StudyValidator for the given standard version using the
// embedded default rule and codelist packs.
func New(ctx context.Context, version sv.StandardVersion, opts ...sv.Option) (*StudyValidator, error) {
	return NewWithPacks(ctx, version, registry.DefaultResolveOptions(), opts...)
}

// NewWithPacks creates a StudyValidator with sponsor-supplied packs layered
// over the embedded defaults. Pack and option errors are configuration
// errors and surface here, never as findings.
func NewWithPacks(ctx context.Context, version sv.StandardVersion, packs registry.ResolveOptions, opts ...sv.Option) (*StudyValidator, error) {
	options := sv.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}

	resolved, err := registry.NewResolver(options.PackCacheSize).Resolve(ctx, version, packs)
	if err != nil {
		return nil, fmt.Errorf("resolve packs for %s: %w", version, err)
	}

	codelists := resolved.Codelists
	if options.CodelistCacheSize > 0 {
		codelists = service.NewCachingCodelistResolver(codelists, options.CodelistCacheSize)
	}

	v := &StudyValidator{
		version:   version,
		options:   options,
		rules:     resolved.Rules,
		codelists: codelists,
		packNames: append(resolved.RulePackNames, resolved.CodelistPackNames...),
		dates:     dates.NewParser(options.DateCacheSize),
		scorer:    sv.NewScorer(options),
		metrics:   sv.NewMetrics(),
	}
	v.services = service.NewServices().WithCodelists(v.codelists)
	v.buildPipeline()

	return v, nil
}

// buildPipeline constructs the per-table phase pipeline from the options.
func (v *StudyValidator) buildPipeline() {
	v.pipe = pipeline.NewPipeline(&pipeline.PipelineOptions{
		ParallelExecution: v.options.ParallelPhases,
		CollectMetrics:    true,
	})
	v.pipe.SetMetrics(v.metrics)

	// Profile runs first and serially: the scorer's tier penalties need
	// its statistics regardless of which later phases run.
	v.pipe.RegisterConfig(pipeline.PhaseIDProfile, phase.ProfilePhaseConfig())
	v.pipe.RegisterConfig(pipeline.PhaseIDStructure, phase.StructurePhaseConfig())
	v.pipe.RegisterConfig(pipeline.PhaseIDBusiness, phase.BusinessPhaseConfig(v.dates, v.options))
	v.pipe.RegisterConfig(pipeline.PhaseIDTerminology, phase.TerminologyPhaseConfig(v.codelists, v.options))

	v.crossDomain = phase.NewCrossDomainPhase(v.dates)
}

// SetCodelists replaces the codelist resolver and rebuilds the pipeline.
// Intended for tests and for callers that manage codelists outside packs.
func (v *StudyValidator) SetCodelists(resolver service.CodelistResolver) {
	v.codelists = resolver
	v.services = service.NewServices().WithCodelists(resolver)
	v.buildPipeline()
}

// SetRules replaces the rule registry. The registry must not be mutated
// after it is handed to the validator.
func (v *StudyValidator) SetRules(reg *rule.Registry) {
	if reg != nil {
		v.rules = reg
	}
}

// ValidateTable runs the per-table phases over one table and returns its
// scored result. Data conditions become findings; the call itself never
// fails on malformed data. A nil table returns nil.
func (v *StudyValidator) ValidateTable(ctx context.Context, t *table.Table) *sv.TableResult {
	if t == nil {
		return nil
	}

	start := time.Now()
	result := v.runTable(ctx, t)
	v.metrics.RecordTable(time.Since(start), result.Status)
	return result
}

// runTable executes the pipeline for one table and derives status and score.
func (v *StudyValidator) runTable(ctx context.Context, t *table.Table) *sv.TableResult {
	var result *sv.TableResult
	if v.options.EnablePooling {
		result = sv.AcquireTableResult()
		result.DomainCode = t.DomainCode()
		result.TableName = t.Name()
		v.metrics.RecordPoolAcquire()
	} else {
		result = sv.NewTableResult(t.DomainCode(), t.Name())
	}

	pctx := pipeline.AcquireContext()
	pctx.Table = t
	pctx.Rules = append(pctx.Rules, v.rules.ForDomain(t.DomainCode())...)
	pctx.Services = v.services
	pctx.Dates = v.dates
	pctx.Options = v.options
	pctx.Result = result

	v.pipe.Execute(ctx, pctx)

	pctx.Result = nil // the result outlives the context
	pctx.Release()

	result.DeriveStatus(v.options.ReviewWarningThreshold)
	v.scorer.ScoreTable(result)
	for _, f := range result.Findings {
		v.metrics.RecordFinding(f.Severity)
	}
	return result
}

// ValidateStudy validates every table of a study, mints MISSING sentinels
// for declared-but-unreadable sources, runs the cross-domain checks after
// all per-table results are available, and returns the finalized rollup.
//
// The returned error is non-nil only for programming errors (nil study,
// cancelled context). A dataset full of critical findings still returns
// (result, nil).
func (v *StudyValidator) ValidateStudy(ctx context.Context, study *sv.Study) (*sv.StudyResult, error) {
	if study == nil {
		return nil, fmt.Errorf("validate study: study is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := sv.NewStudyResult(study.ID)

	// Load failures validate as MISSING sentinels so they weigh into the
	// aggregate instead of vanishing.
	for _, name := range study.MissingNames() {
		src := study.Missing[name]
		summary.AddTable(sv.NewMissingResult(src.DomainCode, name, src.Cause))
	}

	results := v.validateTables(ctx, study.Tables)
	for _, r := range results {
		if r != nil {
			summary.AddTable(r)
		}
	}

	// Hard synchronization point: cross-domain checks need the full
	// subject universe, so they start only after every table result.
	if v.options.ValidateCrossDomain {
		v.runCrossDomain(ctx, study, results)
	}

	if scores, err := sv.SummarizeScores(summary); err == nil {
		summary.Scores = scores
	}
	summary.Finalize(v.options.ReadyThreshold)
	summary.GeneratedAt = time.Now()

	v.metrics.RecordStudy()
	return summary, nil
}

// validateTables fans per-table validation out across the worker pool,
// or runs serially when parallel tables are disabled. Result order
// matches input order either way.
func (v *StudyValidator) validateTables(ctx context.Context, tables []*table.Table) []*sv.TableResult {
	results := make([]*sv.TableResult, len(tables))

	if !v.options.ParallelTables || len(tables) < 2 {
		for i, t := range tables {
			results[i] = v.ValidateTable(ctx, t)
		}
		return results
	}

	v.workerPoolOnce.Do(func() {
		workers := v.options.WorkerCount
		if workers <= 0 {
			workers = 4
		}
		v.workerPool = make(chan struct{}, workers)
	})

	var wg sync.WaitGroup
	for i, t := range tables {
		wg.Add(1)
		go func(idx int, t *table.Table) {
			defer wg.Done()

			v.workerPool <- struct{}{}
			defer func() { <-v.workerPool }()

			results[idx] = v.ValidateTable(ctx, t)
		}(i, t)
	}

	wg.Wait()
	return results
}

// runCrossDomain executes the study-scope checks and routes their findings
// onto the affected per-table results, re-deriving status and score for
// each touched table.
func (v *StudyValidator) runCrossDomain(ctx context.Context, study *sv.Study, results []*sv.TableResult) {
	start := time.Now()
	findings := v.crossDomainFindings(ctx, study.Tables, results, study.AnchorDomain)
	v.metrics.RecordCheck(v.crossDomain.Name(), time.Since(start), len(findings))

	touched := make(map[*sv.TableResult]bool)
	for _, f := range findings {
		r := sv.RouteFinding(f, results)
		if r == nil {
			continue
		}
		r.AddFinding(f)
		v.metrics.RecordFinding(f.Severity)
		touched[r] = true
	}

	for r := range touched {
		r.DeriveStatus(v.options.ReviewWarningThreshold)
		v.scorer.ScoreTable(r)
	}
}

// crossDomainFindings builds the study-scope context and runs the
// cross-domain phase over it. anchorOverride, when non-empty, replaces the
// configured anchor domain for this study only.
func (v *StudyValidator) crossDomainFindings(ctx context.Context, tables []*table.Table, results []*sv.TableResult, anchorOverride string) []sv.Finding {
	if len(tables) == 0 {
		return nil
	}

	opts := v.options
	if anchorOverride != "" && anchorOverride != opts.AnchorDomain {
		o := *opts
		o.AnchorDomain = anchorOverride
		opts = &o
	}

	pctx := pipeline.AcquireContext()
	defer pctx.Release()

	pctx.Study = make(map[string]*table.Table, len(tables))
	pctx.StudyResults = make(map[string]*sv.TableResult, len(results))
	for i, t := range tables {
		if t == nil {
			continue
		}
		// First table per domain wins; split domains are a manifest
		// problem the structural checks already report.
		if _, exists := pctx.Study[t.DomainCode()]; exists {
			continue
		}
		pctx.Study[t.DomainCode()] = t
		if i < len(results) && results[i] != nil {
			pctx.StudyResults[t.DomainCode()] = results[i]
		}
	}
	pctx.Dates = v.dates
	pctx.Options = opts

	return v.crossDomain.Validate(ctx, pctx)
}

// ValidateStream validates a study with streaming output: per-table
// results arrive on the returned channel as they complete, followed by
// MISSING sentinels and the finalized study summary. Useful when a study
// has too many tables to wait for the full rollup.
func (v *StudyValidator) ValidateStream(ctx context.Context, study *sv.Study) <-chan *stream.TableEvent {
	s := stream.NewStudyValidator(v.ValidateTable).
		WithWorkerCount(v.options.WorkerCount).
		WithReadyThreshold(v.options.ReadyThreshold).
		WithReviewWarningThreshold(v.options.ReviewWarningThreshold).
		WithScorer(func(r *sv.TableResult) { v.scorer.ScoreTable(r) }).
		WithCrossDomain(func(ctx context.Context, tables []*table.Table, results []*sv.TableResult) []sv.Finding {
			if !v.options.ValidateCrossDomain {
				return nil
			}
			anchor := ""
			if study != nil {
				anchor = study.AnchorDomain
			}
			return v.crossDomainFindings(ctx, tables, results, anchor)
		})

	if v.options.ParallelTables {
		return s.ValidateStreamParallel(ctx, study)
	}
	return s.ValidateStream(ctx, study)
}

// AggregateStream drains a streaming validation into a StreamResult.
func AggregateStream(events <-chan *stream.TableEvent) *stream.StreamResult {
	return stream.Aggregate(events)
}

// Metrics returns the validator's metrics collector.
func (v *StudyValidator) Metrics() *sv.Metrics {
	return v.metrics
}

// Version returns the standard version this validator is configured for.
func (v *StudyValidator) Version() sv.StandardVersion {
	return v.version
}

// Options returns the validator's options. Mutating them after
// construction is a programming error.
func (v *StudyValidator) Options() *sv.Options {
	return v.options
}

// Rules returns the resolved rule registry.
func (v *StudyValidator) Rules() *rule.Registry {
	return v.rules
}

// Codelists returns the codelist resolver the terminology phase queries.
func (v *StudyValidator) Codelists() service.CodelistResolver {
	return v.codelists
}

// PackNames lists the rule and codelist packs in resolution order,
// for diagnostics.
func (v *StudyValidator) PackNames() []string {
	names := make([]string, len(v.packNames))
	copy(names, v.packNames)
	return names
}

// DateCacheStats exposes the shared date-parse cache statistics.
func (v *StudyValidator) DateCacheStats() cache.Stats {
	return v.dates.CacheStats()
}

// Close releases resources held by the validator.
func (v *StudyValidator) Close() error {
	// Nothing to clean up currently
	return nil
}
