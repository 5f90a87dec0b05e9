// Package stream provides streaming validation for very large studies.
//
// Instead of waiting for a full StudyResult, callers receive per-table
// results on a channel as each table finishes. Cross-domain findings and
// the study rollup need every table, so they arrive as a final summary
// element after the last per-table result.
package stream

import (
	"context"
	"fmt"
	"sync"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/table"
)

// TableFunc validates one table. engine.StudyValidator.ValidateTable
// satisfies it.
type TableFunc func(ctx context.Context, t *table.Table) *sv.TableResult

// CrossDomainFunc runs the study-level checks that need every table at
// once, returning findings routed by their DomainCode and TableName.
type CrossDomainFunc func(ctx context.Context, tables []*table.Table, results []*sv.TableResult) []sv.Finding

// TableEvent is one element of the streaming output: a per-table result,
// a MISSING sentinel for an unreadable declared source, or the final
// study summary.
type TableEvent struct {
	// Index is the position of the table in the study input. Sentinels,
	// the summary element, and processing failures carry -1.
	Index int

	// TableName names the validated table.
	TableName string

	// DomainCode is the table's domain.
	DomainCode string

	// Result is the per-table validation result. The stream retains a
	// reference until the channel closes, so consumers must not release
	// results before then.
	Result *sv.TableResult

	// Summary carries the study rollup; non-nil only on the final element.
	Summary *sv.StudyResult

	// Err is set when processing failed. Data findings are never errors.
	Err error
}

// ScoreFunc re-scores one table result after late findings were added.
// engine.StudyValidator's scorer satisfies it.
type ScoreFunc func(r *sv.TableResult)

// StudyValidator streams per-table validation results for one study.
type StudyValidator struct {
	validate        TableFunc
	crossDomain     CrossDomainFunc
	score           ScoreFunc
	bufferSize      int
	workerCount     int
	readyThreshold  float64
	reviewThreshold int
}

// NewStudyValidator creates a streaming validator around a per-table
// validation function.
func NewStudyValidator(validate TableFunc) *StudyValidator {
	return &StudyValidator{
		validate:        validate,
		bufferSize:      16,
		workerCount:     4,
		readyThreshold:  sv.DefaultReadyThreshold,
		reviewThreshold: sv.DefaultReviewWarningThreshold,
	}
}

// WithBufferSize sets the channel buffer size.
func (v *StudyValidator) WithBufferSize(size int) *StudyValidator {
	if size > 0 {
		v.bufferSize = size
	}
	return v
}

// WithWorkerCount sets the number of parallel workers.
func (v *StudyValidator) WithWorkerCount(count int) *StudyValidator {
	if count > 0 {
		v.workerCount = count
	}
	return v
}

// WithCrossDomain installs the study-level check that runs after every
// table has validated. Its findings appear only on the final summary.
func (v *StudyValidator) WithCrossDomain(fn CrossDomainFunc) *StudyValidator {
	v.crossDomain = fn
	return v
}

// WithScorer installs the re-scoring hook applied to summary results that
// picked up cross-domain findings. Without it those results keep their
// per-table score.
func (v *StudyValidator) WithScorer(fn ScoreFunc) *StudyValidator {
	v.score = fn
	return v
}

// WithReadyThreshold sets the overall score the summary needs for READY.
func (v *StudyValidator) WithReadyThreshold(threshold float64) *StudyValidator {
	if threshold >= 0 && threshold <= 100 {
		v.readyThreshold = threshold
	}
	return v
}

// WithReviewWarningThreshold sets the warning count that forces a summary
// result touched by cross-domain findings into REVIEW.
func (v *StudyValidator) WithReviewWarningThreshold(count int) *StudyValidator {
	if count >= 1 {
		v.reviewThreshold = count
	}
	return v
}

// ValidateStream validates the study's tables one at a time, emitting
// each result as it completes and the study summary last. Results are
// emitted in input order.
func (v *StudyValidator) ValidateStream(ctx context.Context, study *sv.Study) <-chan *TableEvent {
	events := make(chan *TableEvent, v.bufferSize)

	go func() {
		defer close(events)

		if study == nil || v.validate == nil {
			events <- &TableEvent{Index: -1, Err: fmt.Errorf("stream: nil study or validator")}
			return
		}

		results := make([]*sv.TableResult, len(study.Tables))
		for i, t := range study.Tables {
			select {
			case <-ctx.Done():
				events <- &TableEvent{Index: -1, Err: ctx.Err()}
				return
			default:
			}

			results[i] = v.validate(ctx, t)
			events <- v.tableEvent(i, t, results[i])
		}

		v.finish(ctx, study, results, events)
	}()

	return events
}

// ValidateStreamParallel validates tables in parallel while preserving
// input order in the output. The summary element still arrives last.
func (v *StudyValidator) ValidateStreamParallel(ctx context.Context, study *sv.Study) <-chan *TableEvent {
	events := make(chan *TableEvent, v.bufferSize)

	go func() {
		defer close(events)

		if study == nil || v.validate == nil {
			events <- &TableEvent{Index: -1, Err: fmt.Errorf("stream: nil study or validator")}
			return
		}

		type indexed struct {
			index int
			event *TableEvent
		}

		work := make(chan int, v.bufferSize)
		done := make(chan indexed, v.bufferSize)
		// Workers write distinct indices; the done channel orders those
		// writes before the collector's reads.
		results := make([]*sv.TableResult, len(study.Tables))

		var wg sync.WaitGroup
		workers := v.workerCount
		if workers > len(study.Tables) {
			workers = len(study.Tables)
		}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range work {
					select {
					case <-ctx.Done():
						return
					default:
					}
					t := study.Tables[i]
					r := v.validate(ctx, t)
					results[i] = r
					done <- indexed{index: i, event: v.tableEvent(i, t, r)}
				}
			}()
		}

		go func() {
			for i := range study.Tables {
				select {
				case work <- i:
				case <-ctx.Done():
				}
			}
			close(work)
			wg.Wait()
			close(done)
		}()

		// Reorder completion events back into input order.
		pending := make(map[int]*TableEvent, len(study.Tables))
		next := 0
		completed := 0
		for d := range done {
			pending[d.index] = d.event
			completed++
			for {
				e, ok := pending[next]
				if !ok {
					break
				}
				events <- e
				delete(pending, next)
				next++
			}
		}
		// Emit stragglers in index order; cancellation gaps stay skipped.
		for i := next; i < len(study.Tables); i++ {
			if e, ok := pending[i]; ok {
				events <- e
			}
		}

		if completed < len(study.Tables) {
			events <- &TableEvent{Index: -1, Err: ctx.Err()}
			return
		}

		v.finish(ctx, study, results, events)
	}()

	return events
}

func (v *StudyValidator) tableEvent(i int, t *table.Table, r *sv.TableResult) *TableEvent {
	return &TableEvent{
		Index:      i,
		TableName:  t.Name(),
		DomainCode: t.DomainCode(),
		Result:     r,
	}
}

// finish emits the MISSING sentinels, routes cross-domain findings, and
// delivers the finalized study summary. The summary owns clones of the
// per-table results, so late cross-domain findings never mutate results
// already handed to the consumer.
func (v *StudyValidator) finish(ctx context.Context, study *sv.Study, results []*sv.TableResult, events chan<- *TableEvent) {
	summary := sv.NewStudyResult(study.ID)

	for _, name := range study.MissingNames() {
		src := study.Missing[name]
		sentinel := sv.NewMissingResult(src.DomainCode, name, src.Cause)
		summary.AddTable(sentinel)
		events <- &TableEvent{
			Index:      -1,
			TableName:  name,
			DomainCode: src.DomainCode,
			Result:     sentinel,
		}
	}

	clones := make([]*sv.TableResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			c := r.Clone()
			clones = append(clones, c)
			summary.AddTable(c)
		}
	}

	if v.crossDomain != nil {
		touched := make(map[*sv.TableResult]bool)
		for _, f := range v.crossDomain(ctx, study.Tables, results) {
			c := sv.RouteFinding(f, clones)
			if c == nil {
				continue
			}
			c.AddFinding(f)
			touched[c] = true
		}
		for c := range touched {
			c.DeriveStatus(v.reviewThreshold)
			if v.score != nil {
				v.score(c)
			}
		}
	}

	summary.Finalize(v.readyThreshold)

	events <- &TableEvent{Index: -1, Summary: summary}
}

// StreamResult aggregates a consumed event stream.
type StreamResult struct {
	// TablesValidated is the number of per-table results seen.
	TablesValidated int

	// TablesFailed counts tables whose status was FAIL.
	TablesFailed int

	// TablesMissing counts MISSING sentinels.
	TablesMissing int

	// TotalFindings counts findings across all per-table results.
	TotalFindings int

	// FindingsBySeverity breaks TotalFindings down by severity.
	FindingsBySeverity map[sv.Severity]int

	// ProcessingErrors are stream-level failures, not data findings.
	ProcessingErrors []error

	// Summary is the final study rollup, nil if the stream failed
	// before delivering it.
	Summary *sv.StudyResult
}

// Aggregate drains an event stream into a StreamResult. It blocks until
// the channel closes.
func Aggregate(events <-chan *TableEvent) *StreamResult {
	agg := &StreamResult{FindingsBySeverity: make(map[sv.Severity]int, 4)}

	for e := range events {
		if e.Err != nil {
			agg.ProcessingErrors = append(agg.ProcessingErrors, e.Err)
			continue
		}
		if e.Summary != nil {
			agg.Summary = e.Summary
			continue
		}
		if e.Result == nil {
			continue
		}

		agg.TablesValidated++
		switch e.Result.Status {
		case sv.StatusFail:
			agg.TablesFailed++
		case sv.StatusMissing:
			agg.TablesMissing++
		}
		for _, f := range e.Result.Findings {
			agg.FindingsBySeverity[f.Severity]++
			agg.TotalFindings++
		}
	}

	return agg
}

// HasErrors reports whether any table failed or the stream itself broke.
func (r *StreamResult) HasErrors() bool {
	return r.TablesFailed > 0 || len(r.ProcessingErrors) > 0
}

// Summarize returns a human-readable account of the stream.
func (r *StreamResult) Summarize() string {
	return fmt.Sprintf(
		"Validated %d tables: %d failed, %d missing, %d total findings",
		r.TablesValidated,
		r.TablesFailed,
		r.TablesMissing,
		r.TotalFindings,
	)
}
