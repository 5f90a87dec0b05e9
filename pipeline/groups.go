package pipeline

import (
	"fmt"
	"sort"
)

// PhaseGroup represents a group of phases that can be executed together.
// Phases in the same group have the same priority level.
type PhaseGroup struct {
	// Priority is the execution priority of this group
	Priority PhasePriority

	// Phases contains all phases in this group
	Phases []*PhaseConfig

	// Parallel indicates if phases in this group can run concurrently
	Parallel bool
}

// PhaseCount returns the number of phases in the group.
func (g *PhaseGroup) PhaseCount() int {
	return len(g.Phases)
}

// Names returns the names of all phases in the group.
func (g *PhaseGroup) Names() []string {
	names := make([]string, len(g.Phases))
	for i, cfg := range g.Phases {
		names[i] = cfg.Phase.Name()
	}
	return names
}

// StandardGroups defines the standard phase execution groups for table
// validation. Profiling runs first because later checks and the scorer
// consume its statistics; business and terminology checks inspect disjoint
// finding families and run concurrently; cross-domain checks run last and
// only on the study-scope pass.
var StandardGroups = []struct {
	Priority PhasePriority
	Parallel bool
	Phases   []PhaseID
}{
	// Group 1: table statistics
	{
		Priority: PriorityFirst,
		Parallel: false,
		Phases:   []PhaseID{PhaseIDProfile},
	},

	// Group 2: structural integrity
	{
		Priority: PriorityEarly,
		Parallel: false,
		Phases:   []PhaseID{PhaseIDStructure},
	},

	// Group 3: independent value-level checks
	{
		Priority: PriorityNormal,
		Parallel: true,
		Phases:   []PhaseID{PhaseIDBusiness, PhaseIDTerminology},
	},

	// Group 4: study-scope checks
	{
		Priority: PriorityLast,
		Parallel: false,
		Phases:   []PhaseID{PhaseIDCrossDomain},
	},
}

// GroupBuilder helps construct custom phase groups.
type GroupBuilder struct {
	groups []*PhaseGroup
}

// NewGroupBuilder creates a new group builder.
func NewGroupBuilder() *GroupBuilder {
	return &GroupBuilder{
		groups: make([]*PhaseGroup, 0, 8),
	}
}

// AddGroup adds a new group with the specified priority.
func (b *GroupBuilder) AddGroup(priority PhasePriority, parallel bool) *GroupBuilder {
	b.groups = append(b.groups, &PhaseGroup{
		Priority: priority,
		Parallel: parallel,
		Phases:   make([]*PhaseConfig, 0, 4),
	})
	return b
}

// AddPhase adds a phase to the last group.
func (b *GroupBuilder) AddPhase(cfg *PhaseConfig) *GroupBuilder {
	if len(b.groups) == 0 {
		b.AddGroup(PriorityNormal, true)
	}
	lastGroup := b.groups[len(b.groups)-1]
	lastGroup.Phases = append(lastGroup.Phases, cfg)
	return b
}

// Build returns the constructed groups.
func (b *GroupBuilder) Build() []*PhaseGroup {
	return b.groups
}

// ExecutionPlan represents a planned order of phase execution.
type ExecutionPlan struct {
	Groups []*PhaseGroup
}

// NewExecutionPlan creates an execution plan from phase groups.
func NewExecutionPlan(groups []*PhaseGroup) *ExecutionPlan {
	return &ExecutionPlan{
		Groups: groups,
	}
}

// PhaseNames returns all phase names in execution order.
func (p *ExecutionPlan) PhaseNames() []string {
	var names []string
	for _, group := range p.Groups {
		names = append(names, group.Names()...)
	}
	return names
}

// TotalPhases returns the total number of phases.
func (p *ExecutionPlan) TotalPhases() int {
	count := 0
	for _, group := range p.Groups {
		count += len(group.Phases)
	}
	return count
}

// ParallelPhases returns the number of phases that can run in parallel.
func (p *ExecutionPlan) ParallelPhases() int {
	count := 0
	for _, group := range p.Groups {
		if group.Parallel && len(group.Phases) > 1 {
			count += len(group.Phases)
		}
	}
	return count
}

// DependencyResolver resolves phase dependencies and creates an execution
// plan via topological sort.
type DependencyResolver struct {
	phases map[PhaseID]*PhaseConfig
	order  []PhaseID
}

// NewDependencyResolver creates a new dependency resolver.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{
		phases: make(map[PhaseID]*PhaseConfig),
	}
}

// AddPhase adds a phase with its dependencies taken from the configuration.
func (r *DependencyResolver) AddPhase(id PhaseID, cfg *PhaseConfig) {
	if _, exists := r.phases[id]; !exists {
		r.order = append(r.order, id)
	}
	r.phases[id] = cfg
}

// Resolve creates an execution plan respecting declared dependencies.
// Within the constraints the original registration order is preserved, so
// plans are deterministic. Dependencies on unregistered phases are ignored.
func (r *DependencyResolver) Resolve() (*ExecutionPlan, error) {
	// Kahn's algorithm: an edge runs from each dependency to its dependent.
	inDegree := make(map[PhaseID]int, len(r.phases))
	dependents := make(map[PhaseID][]PhaseID, len(r.phases))

	for _, id := range r.order {
		cfg := r.phases[id]
		for _, dep := range cfg.DependsOn {
			if _, known := r.phases[dep]; !known {
				continue
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	queue := make([]PhaseID, 0, len(r.phases))
	for _, id := range r.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]*PhaseConfig, 0, len(r.phases))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.phases[id])

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(ordered) != len(r.phases) {
		return nil, fmt.Errorf("phase dependency cycle among %d phases", len(r.phases)-len(ordered))
	}

	return NewExecutionPlan(groupByPriority(ordered)), nil
}

// groupByPriority groups phases by their priority level.
func groupByPriority(phases []*PhaseConfig) []*PhaseGroup {
	byPriority := make(map[PhasePriority][]*PhaseConfig)
	for _, cfg := range phases {
		byPriority[cfg.Priority] = append(byPriority[cfg.Priority], cfg)
	}

	priorities := make([]PhasePriority, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Slice(priorities, func(i, j int) bool {
		return priorities[i] < priorities[j]
	})

	groups := make([]*PhaseGroup, 0, len(priorities))
	for _, priority := range priorities {
		cfgs := byPriority[priority]

		// A group runs in parallel only when every member allows it
		canParallel := true
		for _, cfg := range cfgs {
			if !cfg.Parallel {
				canParallel = false
				break
			}
		}

		groups = append(groups, &PhaseGroup{
			Priority: priority,
			Phases:   cfgs,
			Parallel: canParallel,
		})
	}

	return groups
}
