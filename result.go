package sdtmvalidator

import (
	"sort"
	"sync"
)

// Status classifies the outcome of validating one table.
type Status string

const (
	// StatusPass indicates the table passed validation.
	StatusPass Status = "PASS"
	// StatusReview indicates the table needs manual review before transformation.
	StatusReview Status = "REVIEW"
	// StatusFail indicates the table has at least one critical finding.
	StatusFail Status = "FAIL"
	// StatusMissing indicates the declared source file could not be read.
	StatusMissing Status = "MISSING"
)

// TableStats holds summary statistics for one validated table.
type TableStats struct {
	// RecordCount is the number of data rows
	RecordCount int `json:"record_count"`

	// ColumnCount is the number of columns
	ColumnCount int `json:"column_count"`

	// MissingCellFraction is the fraction of cells that are empty or absent
	MissingCellFraction float64 `json:"missing_cell_fraction"`

	// DuplicateRowCount is the number of fully duplicated rows
	DuplicateRowCount int `json:"duplicate_row_count"`
}

// TableResult contains the outcome of validating one table.
// Use Release() to return it to the pool when done for better performance.
type TableResult struct {
	// DomainCode is the domain of the validated table (e.g. "DM", "AE")
	DomainCode string `json:"domain_code"`

	// TableName is the name of the validated table
	TableName string `json:"table_name"`

	// Stats holds summary statistics computed during validation
	Stats TableStats `json:"stats"`

	// Findings contains all findings, in canonical order after Sort()
	Findings []Finding `json:"findings,omitempty"`

	// QualityScore is the table's quality score in [0,100]
	QualityScore float64 `json:"quality_score"`

	// Status is the derived table status
	Status Status `json:"status"`

	// JobID is set when using batch validation to correlate results
	JobID string `json:"job_id,omitempty"`

	// mu protects concurrent access to Findings
	mu sync.Mutex
}

// tableResultPool holds reusable TableResult instances.
var tableResultPool = sync.Pool{
	New: func() any {
		return &TableResult{
			Findings: make([]Finding, 0, 32),
		}
	},
}

// AcquireTableResult gets a TableResult from the pool.
// The result starts with PASS status and no findings.
func AcquireTableResult() *TableResult {
	r := tableResultPool.Get().(*TableResult)
	r.Reset()
	return r
}

// Release returns the TableResult to the pool.
// After calling Release, the TableResult should not be used.
func (r *TableResult) Release() {
	if r == nil {
		return
	}
	// Don't return results with oversized finding slices
	if cap(r.Findings) <= 1024 {
		tableResultPool.Put(r)
	}
}

// Reset clears the result for reuse.
func (r *TableResult) Reset() {
	r.DomainCode = ""
	r.TableName = ""
	r.Stats = TableStats{}
	r.Findings = r.Findings[:0]
	r.QualityScore = 0
	r.Status = StatusPass
	r.JobID = ""
}

// AddFinding adds a finding to the result.
// This method is thread-safe.
func (r *TableResult) AddFinding(f Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Findings = append(r.Findings, f)
}

// AddFindings adds multiple findings to the result.
// This method is thread-safe.
func (r *TableResult) AddFindings(findings []Finding) {
	if len(findings) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Findings = append(r.Findings, findings...)
}

// FindingCount returns the total number of findings.
// This method is thread-safe.
func (r *TableResult) FindingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Findings)
}

// HasCritical returns true if any finding is critical.
func (r *TableResult) HasCritical() bool {
	return r.CountBySeverity(SeverityCritical) > 0
}

// HasErrors returns true if any finding is an error or critical.
func (r *TableResult) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.Findings {
		if f.IsError() {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any finding is a warning.
func (r *TableResult) HasWarnings() bool {
	return r.CountBySeverity(SeverityWarning) > 0
}

// CountBySeverity returns the number of findings with the given severity.
func (r *TableResult) CountBySeverity(s Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			count++
		}
	}
	return count
}

// CriticalCount returns the number of critical findings.
func (r *TableResult) CriticalCount() int {
	return r.CountBySeverity(SeverityCritical)
}

// ErrorCount returns the number of error findings.
func (r *TableResult) ErrorCount() int {
	return r.CountBySeverity(SeverityError)
}

// WarningCount returns the number of warning findings.
func (r *TableResult) WarningCount() int {
	return r.CountBySeverity(SeverityWarning)
}

// FindingsBySeverity returns all findings with the given severity.
func (r *TableResult) FindingsBySeverity(s Severity) []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Sort orders findings into canonical presentation order:
// severity rank descending, then rule ID, then table name.
// The sort is stable so equal findings keep their emission order.
func (r *TableResult) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.Findings, func(i, j int) bool {
		return r.Findings[i].Less(r.Findings[j])
	})
}

// DeriveStatus computes and sets the table status from the findings:
// FAIL if any critical finding exists, REVIEW if at least one error or at
// least warningThreshold warnings exist, PASS otherwise.
// A MISSING status is a load-time sentinel and is never overwritten.
func (r *TableResult) DeriveStatus(warningThreshold int) Status {
	if r.Status == StatusMissing {
		return StatusMissing
	}
	if warningThreshold <= 0 {
		warningThreshold = DefaultReviewWarningThreshold
	}

	switch {
	case r.CriticalCount() > 0:
		r.Status = StatusFail
	case r.ErrorCount() > 0 || r.WarningCount() >= warningThreshold:
		r.Status = StatusReview
	default:
		r.Status = StatusPass
	}
	return r.Status
}

// Merge combines another result's findings into this one.
func (r *TableResult) Merge(other *TableResult) {
	if other == nil {
		return
	}

	other.mu.Lock()
	findings := make([]Finding, len(other.Findings))
	copy(findings, other.Findings)
	other.mu.Unlock()

	r.AddFindings(findings)
}

// Clone creates a copy of the result (not pooled).
func (r *TableResult) Clone() *TableResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := &TableResult{
		DomainCode:   r.DomainCode,
		TableName:    r.TableName,
		Stats:        r.Stats,
		Findings:     make([]Finding, len(r.Findings)),
		QualityScore: r.QualityScore,
		Status:       r.Status,
		JobID:        r.JobID,
	}
	copy(clone.Findings, r.Findings)
	return clone
}

// NewTableResult creates a new (non-pooled) result for the given table.
// Prefer AcquireTableResult() for better performance.
func NewTableResult(domainCode, tableName string) *TableResult {
	return &TableResult{
		DomainCode: domainCode,
		TableName:  tableName,
		Status:     StatusPass,
		Findings:   make([]Finding, 0, 8),
	}
}

// NewMissingResult creates the sentinel result for a declared source file
// that could not be loaded. The cause is recorded as a single informational
// finding; validation of other tables is unaffected.
func NewMissingResult(domainCode, tableName, cause string) *TableResult {
	r := NewTableResult(domainCode, tableName)
	r.Status = StatusMissing
	r.QualityScore = 0
	r.AddFinding(Info(CategoryMissingData).
		Rule(RuleSourceUnreadable).
		Table(domainCode, tableName).
		Messagef("source file could not be read: %s", cause).
		Check("load").
		Build())
	return r
}
