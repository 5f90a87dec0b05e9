package phase

import (
	"context"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/profile"
)

// ProfilePhase computes the summary statistics the scorer reads: record and
// column counts, the missing-cell fraction, and the duplicate-row count.
// It runs first and serially, since the missing-data and duplicate tiers
// apply to the table score regardless of which later phases run.
type ProfilePhase struct{}

// NewProfilePhase creates a new profile phase.
func NewProfilePhase() *ProfilePhase {
	return &ProfilePhase{}
}

// Name returns the phase name.
func (p *ProfilePhase) Name() string {
	return "profile"
}

// Validate computes the table statistics onto the context result. It emits
// no findings; the scorer turns the statistics into tier penalties.
func (p *ProfilePhase) Validate(ctx context.Context, pctx *pipeline.Context) []sv.Finding {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	if pctx.Table == nil || pctx.Result == nil {
		return nil
	}

	pctx.Result.Stats = profile.Summarize(pctx.Table)
	return nil
}

// ProfilePhaseConfig returns the standard pipeline configuration for the
// profile phase.
func ProfilePhaseConfig() *pipeline.PhaseConfig {
	return &pipeline.PhaseConfig{
		Phase:    NewProfilePhase(),
		Priority: pipeline.PriorityFirst,
		Parallel: false,
		Required: true,
		Enabled:  true,
	}
}
