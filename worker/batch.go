package worker

import (
	"context"
	"runtime"
	"sync"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/table"
)

// BatchValidator validates a fixed set of tables without managing a
// long-lived pool.
type BatchValidator struct {
	validator BatchValidatorFunc
	workers   int
}

// BatchValidatorFunc is the function signature for validating a single
// table.
type BatchValidatorFunc func(ctx context.Context, t *table.Table) (*sv.TableResult, error)

// NewBatchValidator creates a new batch validator.
func NewBatchValidator(validateFunc BatchValidatorFunc, workers int) *BatchValidator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchValidator{
		validator: validateFunc,
		workers:   workers,
	}
}

// ValidateBatch validates multiple tables in parallel. Results keep the
// input order whatever order the workers finish in.
func (bv *BatchValidator) ValidateBatch(ctx context.Context, tables []*table.Table) *BatchResult {
	if len(tables) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	// Parallelism only pays past a couple of tables.
	if len(tables) <= 2 {
		return bv.validateSequential(ctx, tables)
	}

	return bv.validateParallel(ctx, tables)
}

func (bv *BatchValidator) validateSequential(ctx context.Context, tables []*table.Table) *BatchResult {
	results := make([]*JobResult, 0, len(tables))
	failed := 0

	for _, t := range tables {
		select {
		case <-ctx.Done():
			return &BatchResult{
				Results:       results,
				TotalJobs:     len(tables),
				CompletedJobs: len(results),
				FailedJobs:    failed,
			}
		default:
		}

		result, err := bv.validator(ctx, t)
		if err != nil {
			failed++
		}
		results = append(results, &JobResult{
			ID:     tableID(t),
			Result: result,
			Error:  err,
		})
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(tables),
		CompletedJobs: len(results),
		FailedJobs:    failed,
	}
}

func (bv *BatchValidator) validateParallel(ctx context.Context, tables []*table.Table) *BatchResult {
	numWorkers := bv.workers
	if numWorkers > len(tables) {
		numWorkers = len(tables)
	}

	jobs := make(chan indexedTable, len(tables))
	resultsChan := make(chan *indexedResult, len(tables))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result, err := bv.validator(ctx, job.table)
				resultsChan <- &indexedResult{
					index:  job.index,
					result: result,
					err:    err,
				}
			}
		}()
	}

	go func() {
		for i, t := range tables {
			select {
			case <-ctx.Done():
			case jobs <- indexedTable{index: i, table: t}:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(tables))
	completed := 0
	failed := 0

	for ir := range resultsChan {
		results[ir.index] = &JobResult{
			ID:     tableID(tables[ir.index]),
			Result: ir.result,
			Error:  ir.err,
		}
		completed++
		if ir.err != nil {
			failed++
		}
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(tables),
		CompletedJobs: completed,
		FailedJobs:    failed,
	}
}

type indexedTable struct {
	index int
	table *table.Table
}

type indexedResult struct {
	index  int
	result *sv.TableResult
	err    error
}

func tableID(t *table.Table) string {
	if t == nil {
		return ""
	}
	return t.Name()
}

// ValidateBatchSimple is a convenience function for one-shot batch
// validation.
func ValidateBatchSimple(ctx context.Context, validateFunc BatchValidatorFunc, tables []*table.Table) *BatchResult {
	bv := NewBatchValidator(validateFunc, runtime.NumCPU())
	return bv.ValidateBatch(ctx, tables)
}
