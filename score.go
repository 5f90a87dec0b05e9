package sdtmvalidator

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Scorer computes quality scores from findings and summary statistics.
// It is stateless apart from its options and safe for concurrent use.
type Scorer struct {
	opts *Options
}

// NewScorer creates a scorer with the given options.
// A nil options value uses the defaults.
func NewScorer(opts *Options) *Scorer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Scorer{opts: opts}
}

// ScoreTable computes and sets the table's quality score. The score starts
// at 100 and is reduced per finding by the configured severity penalties,
// then by the missing-data and duplicate-row tier penalties, and finally
// clamped to [0,100]. MISSING sentinel results keep their zero score.
func (s *Scorer) ScoreTable(r *TableResult) float64 {
	if r == nil {
		return 0
	}
	if r.Status == StatusMissing {
		r.QualityScore = 0
		return 0
	}

	score := 100.0
	score -= s.opts.CriticalPenalty * float64(r.CriticalCount())
	score -= s.opts.ErrorPenalty * float64(r.ErrorCount())
	score -= s.opts.WarningPenalty * float64(r.WarningCount())

	score -= TierPenalty(r.Stats.MissingCellFraction, s.opts.MissingDataTiers)
	if r.Stats.RecordCount > 0 {
		dup := float64(r.Stats.DuplicateRowCount) / float64(r.Stats.RecordCount)
		score -= TierPenalty(dup, s.opts.DuplicateTiers)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	r.QualityScore = score
	return score
}

// TierPenalty returns the penalty of the highest tier whose threshold the
// fraction strictly exceeds, or zero when no tier applies. Tier order in
// the slice does not matter.
func TierPenalty(fraction float64, tiers []PenaltyTier) float64 {
	penalty := 0.0
	bestMin := -1.0
	for _, t := range tiers {
		if fraction > t.MinFraction && t.MinFraction > bestMin {
			penalty = t.Penalty
			bestMin = t.MinFraction
		}
	}
	return penalty
}

// ScoreSummary describes the distribution of per-table quality scores.
type ScoreSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// SummarizeScores computes distribution statistics over the study's
// per-table scores. Returns an error only for an empty study.
func SummarizeScores(study *StudyResult) (*ScoreSummary, error) {
	names := study.TableNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("study has no table results")
	}

	scores := make([]float64, 0, len(names))
	for _, name := range names {
		scores = append(scores, study.Table(name).QualityScore)
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}
	median, err := stats.Median(scores)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}
	minScore, err := stats.Min(scores)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}
	maxScore, err := stats.Max(scores)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}
	stddev, err := stats.StandardDeviation(scores)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}

	return &ScoreSummary{
		Mean:   mean,
		Median: median,
		Min:    minScore,
		Max:    maxScore,
		StdDev: stddev,
	}, nil
}
