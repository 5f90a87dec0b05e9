package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	sv "github.com/gosdtm/validator"
)

// Pipeline orchestrates the execution of validation phases over one table.
// It supports both sequential and parallel execution of phases, with
// configurable timeouts and early termination.
type Pipeline struct {
	// registry holds all registered phases
	registry *PhaseRegistry

	// groups holds phases organized by execution group
	groups []*PhaseGroup

	// metrics records per-check timing
	metrics *sv.Metrics

	// options holds pipeline configuration
	options *PipelineOptions

	// mu protects concurrent access
	mu sync.RWMutex
}

// PipelineOptions configures pipeline behavior.
type PipelineOptions struct {
	// ParallelExecution enables running independent phases in parallel
	ParallelExecution bool

	// PhaseTimeout is the maximum time for a single phase
	PhaseTimeout time.Duration

	// MaxFindings stops validation after this many findings (0 = unlimited)
	MaxFindings int

	// CollectMetrics enables per-check timing collection
	CollectMetrics bool

	// FailFast stops at the first critical finding
	FailFast bool
}

// DefaultPipelineOptions returns sensible defaults: full accumulation,
// parallel groups, metrics on.
func DefaultPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		ParallelExecution: true,
		PhaseTimeout:      0, // no timeout
		MaxFindings:       0, // unlimited
		CollectMetrics:    true,
		FailFast:          false,
	}
}

// NewPipeline creates a new validation pipeline.
func NewPipeline(opts *PipelineOptions) *Pipeline {
	if opts == nil {
		opts = DefaultPipelineOptions()
	}

	return &Pipeline{
		registry: NewPhaseRegistry(),
		groups:   make([]*PhaseGroup, 0, 8),
		metrics:  sv.NewMetrics(),
		options:  opts,
	}
}

// Register adds a phase to the pipeline.
func (p *Pipeline) Register(id PhaseID, phase Phase, opts ...PhaseOption) {
	config := &PhaseConfig{
		Phase:    phase,
		Priority: PriorityNormal,
		Parallel: true,
		Required: false,
		Enabled:  true,
	}

	for _, opt := range opts {
		opt(config)
	}

	p.mu.Lock()
	p.registry.Register(id, config)
	p.mu.Unlock()

	p.rebuildGroups()
}

// RegisterConfig adds a pre-configured phase to the pipeline.
func (p *Pipeline) RegisterConfig(id PhaseID, config *PhaseConfig) {
	if config == nil {
		return
	}

	p.mu.Lock()
	p.registry.Register(id, config)
	p.mu.Unlock()

	p.rebuildGroups()
}

// PhaseOption configures a phase registration.
type PhaseOption func(*PhaseConfig)

// WithPriority sets the phase priority.
func WithPriority(priority PhasePriority) PhaseOption {
	return func(c *PhaseConfig) {
		c.Priority = priority
	}
}

// WithParallel sets whether the phase can run in parallel.
func WithParallel(parallel bool) PhaseOption {
	return func(c *PhaseConfig) {
		c.Parallel = parallel
	}
}

// WithRequired marks the phase as required.
func WithRequired(required bool) PhaseOption {
	return func(c *PhaseConfig) {
		c.Required = required
	}
}

// WithDependsOn sets phase dependencies.
func WithDependsOn(deps ...PhaseID) PhaseOption {
	return func(c *PhaseConfig) {
		c.DependsOn = deps
	}
}

// Enable enables a phase by ID.
func (p *Pipeline) Enable(id PhaseID) {
	p.mu.Lock()
	p.registry.Enable(id)
	p.mu.Unlock()
	p.rebuildGroups()
}

// Disable disables a phase by ID. Required phases stay enabled.
func (p *Pipeline) Disable(id PhaseID) {
	p.mu.Lock()
	p.registry.Disable(id)
	p.mu.Unlock()
	p.rebuildGroups()
}

// rebuildGroups organizes enabled phases into execution groups.
func (p *Pipeline) rebuildGroups() {
	p.mu.Lock()
	defer p.mu.Unlock()

	enabled := p.registry.GetEnabled()
	if len(enabled) == 0 {
		p.groups = nil
		return
	}

	// Stable sort keeps registration order within one priority
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	groups := groupByPriority(enabled)
	for _, g := range groups {
		g.Parallel = g.Parallel && p.options.ParallelExecution
	}
	p.groups = groups
}

// Plan returns the current execution plan. Useful for diagnostics.
func (p *Pipeline) Plan() *ExecutionPlan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewExecutionPlan(p.groups)
}

// Execute runs the validation pipeline over the context's table.
// Findings from all phases accumulate on the context result, which is
// created if not already set.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) *sv.TableResult {
	// Initialize result if not set
	if pctx.Result == nil {
		pctx.Result = sv.AcquireTableResult()
		if pctx.Table != nil {
			pctx.Result.DomainCode = pctx.Table.DomainCode()
			pctx.Result.TableName = pctx.Table.Name()
		}
	}
	if pctx.MaxFindings == 0 {
		pctx.MaxFindings = p.options.MaxFindings
	}

	p.mu.RLock()
	groups := p.groups
	p.mu.RUnlock()

	// Execute each group
	for _, group := range groups {
		// Check for cancellation
		select {
		case <-ctx.Done():
			pctx.Result.AddFinding(sv.Info(sv.CategoryQuality).
				Table(pctx.Result.DomainCode, pctx.Result.TableName).
				Messagef("validation cancelled: %v", ctx.Err()).
				Check("pipeline").
				Build())
			return pctx.Result
		default:
		}

		// Check max findings
		if p.options.MaxFindings > 0 && pctx.Result.FindingCount() >= p.options.MaxFindings {
			break
		}

		// Check FailFast
		if p.options.FailFast && pctx.Result.HasCritical() {
			break
		}

		p.executeGroup(ctx, pctx, group)
	}

	return pctx.Result
}

// executeGroup executes a single phase group.
func (p *Pipeline) executeGroup(ctx context.Context, pctx *Context, group *PhaseGroup) {
	if group.Parallel && len(group.Phases) > 1 {
		p.executeParallel(ctx, pctx, group)
	} else {
		p.executeSequential(ctx, pctx, group)
	}
}

// executeSequential runs phases one at a time.
func (p *Pipeline) executeSequential(ctx context.Context, pctx *Context, group *PhaseGroup) {
	for _, cfg := range group.Phases {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.options.MaxFindings > 0 && pctx.Result.FindingCount() >= p.options.MaxFindings {
			return
		}

		p.executePhase(ctx, pctx, cfg)

		if p.options.FailFast && pctx.Result.HasCritical() {
			return
		}
	}
}

// executeParallel runs phases concurrently and collects their findings.
func (p *Pipeline) executeParallel(ctx context.Context, pctx *Context, group *PhaseGroup) {
	var wg sync.WaitGroup
	results := make(chan PhaseResult, len(group.Phases))

	phaseCtx := ctx
	var cancel context.CancelFunc
	if p.options.PhaseTimeout > 0 {
		phaseCtx, cancel = context.WithTimeout(ctx, p.options.PhaseTimeout)
		defer cancel()
	}

	for _, cfg := range group.Phases {
		wg.Add(1)
		go func(cfg *PhaseConfig) {
			defer wg.Done()

			start := time.Now()
			findings := cfg.Phase.Validate(phaseCtx, pctx)
			duration := time.Since(start)

			if p.options.CollectMetrics && p.metrics != nil {
				p.metrics.RecordCheck(cfg.Phase.Name(), duration, len(findings))
			}

			results <- PhaseResult{
				PhaseID:  PhaseID(cfg.Phase.Name()),
				Findings: findings,
				Duration: duration.Nanoseconds(),
			}
		}(cfg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		pctx.Result.AddFindings(res.Findings)
	}
}

// executePhase runs a single phase with timing.
func (p *Pipeline) executePhase(ctx context.Context, pctx *Context, cfg *PhaseConfig) {
	phaseCtx := ctx
	var cancel context.CancelFunc
	if p.options.PhaseTimeout > 0 {
		phaseCtx, cancel = context.WithTimeout(ctx, p.options.PhaseTimeout)
		defer cancel()
	}

	start := time.Now()
	findings := cfg.Phase.Validate(phaseCtx, pctx)
	duration := time.Since(start)

	if p.options.CollectMetrics && p.metrics != nil {
		p.metrics.RecordCheck(cfg.Phase.Name(), duration, len(findings))
	}

	pctx.Result.AddFindings(findings)
}

// Metrics returns the pipeline metrics.
func (p *Pipeline) Metrics() *sv.Metrics {
	return p.metrics
}

// SetMetrics sets the metrics collector, replacing the internal one.
// Use this to share a single collector between the engine and the pipeline.
func (p *Pipeline) SetMetrics(m *sv.Metrics) {
	p.metrics = m
}

// Registry returns the phase registry.
func (p *Pipeline) Registry() *PhaseRegistry {
	return p.registry
}

// PhaseCount returns the number of enabled phases.
func (p *Pipeline) PhaseCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registry.GetEnabled())
}

// GroupCount returns the number of phase groups.
func (p *Pipeline) GroupCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.groups)
}
