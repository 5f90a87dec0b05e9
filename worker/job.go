package worker

import (
	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/table"
)

// Job represents one table-validation job.
type Job struct {
	// ID identifies the job in results. An empty ID falls back to the
	// table name.
	ID string

	// Table is the dataset to validate.
	Table *table.Table
}

// id resolves the result identifier.
func (j Job) id() string {
	if j.ID != "" {
		return j.ID
	}
	if j.Table != nil {
		return j.Table.Name()
	}
	return ""
}

// JobResult represents the result of one table-validation job.
type JobResult struct {
	// ID matches the Job that produced this result.
	ID string

	// Result is the table's validation result.
	Result *sv.TableResult

	// Error is non-nil only for job-level failures (nil table, no
	// validator). Data findings live inside Result.
	Error error

	// Duration is the time taken to validate, in nanoseconds.
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that failed with a job-level error.
	FailedJobs int

	// TotalDuration is the summed validation time, in nanoseconds.
	TotalDuration int64
}

// HasFailures reports whether any job errored or any table failed
// validation. Slots left nil by a canceled batch are skipped.
func (br *BatchResult) HasFailures() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			return true
		}
		if r.Result != nil && r.Result.Status == sv.StatusFail {
			return true
		}
	}
	return false
}

// FindingCount returns the total number of findings across all results.
func (br *BatchResult) FindingCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Result != nil {
			count += r.Result.FindingCount()
		}
	}
	return count
}
