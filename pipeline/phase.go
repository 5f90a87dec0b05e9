package pipeline

import (
	"context"
	"sync"

	sv "github.com/gosdtm/validator"
)

// Phase represents a single validation phase over one table.
// Phases produce findings; they never mutate the table.
type Phase interface {
	// Name returns the phase name for metrics and diagnostics.
	Name() string

	// Validate runs the phase and returns any findings.
	// The returned findings are appended to the context result by the
	// pipeline; phases should not add them themselves.
	Validate(ctx context.Context, pctx *Context) []sv.Finding
}

// PhaseFunc adapts a function to the Phase interface.
type PhaseFunc struct {
	name string
	fn   func(ctx context.Context, pctx *Context) []sv.Finding
}

// NewPhaseFunc creates a Phase from a function.
func NewPhaseFunc(name string, fn func(ctx context.Context, pctx *Context) []sv.Finding) *PhaseFunc {
	return &PhaseFunc{name: name, fn: fn}
}

// Name returns the phase name.
func (p *PhaseFunc) Name() string {
	return p.name
}

// Validate runs the wrapped function.
func (p *PhaseFunc) Validate(ctx context.Context, pctx *Context) []sv.Finding {
	if p.fn == nil {
		return nil
	}
	return p.fn(ctx, pctx)
}

// PhaseID identifies a well-known validation phase.
type PhaseID string

// Standard phase identifiers.
const (
	// PhaseIDProfile computes table statistics used by later checks and
	// by the scorer.
	PhaseIDProfile PhaseID = "profile"

	// PhaseIDStructure covers identifier, duplicate, type, and
	// required-field checks.
	PhaseIDStructure PhaseID = "structure"

	// PhaseIDBusiness covers date-format, date-order, and range checks.
	PhaseIDBusiness PhaseID = "business"

	// PhaseIDTerminology covers controlled-vocabulary checks.
	PhaseIDTerminology PhaseID = "terminology"

	// PhaseIDCrossDomain covers checks spanning multiple tables. It only
	// runs on the study-scope pass.
	PhaseIDCrossDomain PhaseID = "cross-domain"
)

// PhasePriority determines phase execution order.
// Lower values execute first.
type PhasePriority int

// Standard priority levels.
const (
	PriorityFirst  PhasePriority = 100
	PriorityEarly  PhasePriority = 200
	PriorityNormal PhasePriority = 500
	PriorityLate   PhasePriority = 800
	PriorityLast   PhasePriority = 900
)

// PhaseConfig holds a phase with its execution configuration.
type PhaseConfig struct {
	// Phase is the validation phase
	Phase Phase

	// Priority determines execution order (lower runs first)
	Priority PhasePriority

	// Parallel indicates the phase can run concurrently with others in
	// its group
	Parallel bool

	// Required phases cannot be disabled
	Required bool

	// DependsOn lists phases that must run before this one
	DependsOn []PhaseID

	// Enabled indicates if the phase is active
	Enabled bool
}

// PhaseResult holds the outcome of a single phase execution.
type PhaseResult struct {
	// PhaseID identifies the phase
	PhaseID PhaseID

	// Findings produced by the phase
	Findings []sv.Finding

	// Duration of the phase execution in nanoseconds
	Duration int64

	// Err is set if the phase failed to execute
	Err error
}

// PhaseRegistry manages registered phases.
type PhaseRegistry struct {
	mu     sync.RWMutex
	phases map[PhaseID]*PhaseConfig
	order  []PhaseID
}

// NewPhaseRegistry creates an empty phase registry.
func NewPhaseRegistry() *PhaseRegistry {
	return &PhaseRegistry{
		phases: make(map[PhaseID]*PhaseConfig, 8),
		order:  make([]PhaseID, 0, 8),
	}
}

// Register adds a phase configuration. Re-registering an ID replaces the
// previous configuration but keeps its position in the registration order.
func (r *PhaseRegistry) Register(id PhaseID, cfg *PhaseConfig) {
	if cfg == nil || cfg.Phase == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.phases[id]; !exists {
		r.order = append(r.order, id)
	}
	r.phases[id] = cfg
}

// Get returns the configuration for a phase ID.
func (r *PhaseRegistry) Get(id PhaseID) (*PhaseConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.phases[id]
	return cfg, ok
}

// GetEnabled returns all enabled phase configurations in registration order.
func (r *PhaseRegistry) GetEnabled() []*PhaseConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PhaseConfig, 0, len(r.order))
	for _, id := range r.order {
		if cfg := r.phases[id]; cfg != nil && cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// Enable activates a phase by ID.
func (r *PhaseRegistry) Enable(id PhaseID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.phases[id]
	if !ok {
		return false
	}
	cfg.Enabled = true
	return true
}

// Disable deactivates a phase by ID. Required phases cannot be disabled.
func (r *PhaseRegistry) Disable(id PhaseID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.phases[id]
	if !ok || cfg.Required {
		return false
	}
	cfg.Enabled = false
	return true
}

// EnableAll activates every registered phase.
func (r *PhaseRegistry) EnableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.phases {
		cfg.Enabled = true
	}
}

// DisableAll deactivates every phase except required ones.
func (r *PhaseRegistry) DisableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range r.phases {
		if !cfg.Required {
			cfg.Enabled = false
		}
	}
}

// All returns every registered configuration in registration order.
func (r *PhaseRegistry) All() []*PhaseConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PhaseConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.phases[id])
	}
	return out
}

// IDs returns every registered phase ID in registration order.
func (r *PhaseRegistry) IDs() []PhaseID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PhaseID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered phases.
func (r *PhaseRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.phases)
}

// ConditionalPhase wraps a phase with a runtime condition.
// The phase only executes when the condition holds for the context.
type ConditionalPhase struct {
	phase     Phase
	condition func(*Context) bool
}

// NewConditionalPhase creates a phase gated by a condition.
func NewConditionalPhase(phase Phase, condition func(*Context) bool) *ConditionalPhase {
	return &ConditionalPhase{phase: phase, condition: condition}
}

// Name returns the wrapped phase name.
func (p *ConditionalPhase) Name() string {
	return p.phase.Name()
}

// Validate runs the wrapped phase if the condition holds.
func (p *ConditionalPhase) Validate(ctx context.Context, pctx *Context) []sv.Finding {
	if p.condition != nil && !p.condition(pctx) {
		return nil
	}
	return p.phase.Validate(ctx, pctx)
}

// WhenStudy gates a phase on the study view being present, for phases that
// need sibling tables.
func WhenStudy(phase Phase) *ConditionalPhase {
	return NewConditionalPhase(phase, func(pctx *Context) bool {
		return pctx.HasStudy()
	})
}

// CompositePhase runs several sub-phases as one phase, in order.
// Execution stops early on context cancellation or when the context
// indicates validation should stop.
type CompositePhase struct {
	name   string
	phases []Phase
}

// NewCompositePhase creates a composite from the given sub-phases.
func NewCompositePhase(name string, phases ...Phase) *CompositePhase {
	return &CompositePhase{name: name, phases: phases}
}

// Add appends a sub-phase.
func (p *CompositePhase) Add(phase Phase) *CompositePhase {
	p.phases = append(p.phases, phase)
	return p
}

// Name returns the composite name.
func (p *CompositePhase) Name() string {
	return p.name
}

// Len returns the number of sub-phases.
func (p *CompositePhase) Len() int {
	return len(p.phases)
}

// Validate runs all sub-phases sequentially and collects their findings.
func (p *CompositePhase) Validate(ctx context.Context, pctx *Context) []sv.Finding {
	var findings []sv.Finding
	for _, phase := range p.phases {
		select {
		case <-ctx.Done():
			return findings
		default:
		}

		if pctx.ShouldStop() {
			return findings
		}

		findings = append(findings, phase.Validate(ctx, pctx)...)
	}
	return findings
}
