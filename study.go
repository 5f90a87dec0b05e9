package sdtmvalidator

import (
	"sort"
	"sync"
	"time"

	"github.com/gosdtm/validator/table"
)

// Study is the input to a full-study validation run: the tables a loader
// produced plus the declared source files it could not read. The engine
// mints one MISSING sentinel result per unreadable source, so a study
// with load failures still validates end to end.
type Study struct {
	// ID identifies the study, e.g. the protocol number.
	ID string

	// AnchorDomain names the subject-bearing anchor domain used for
	// cross-domain subject closure. Empty falls back to the engine's
	// configured anchor.
	AnchorDomain string

	// Tables holds one loaded table per readable source file.
	Tables []*table.Table

	// Missing maps declared-but-unreadable source names to their cause.
	Missing map[string]MissingSource
}

// MissingSource records why a declared source file produced no table.
type MissingSource struct {
	// DomainCode is the domain the manifest declared for the file.
	DomainCode string
	// Cause is the load error text, quoted in the sentinel finding.
	Cause string
}

// NewStudy creates an empty study.
func NewStudy(id string) *Study {
	return &Study{ID: id, Missing: make(map[string]MissingSource)}
}

// AddTable appends a loaded table. Nil tables are ignored.
func (s *Study) AddTable(t *table.Table) {
	if t != nil {
		s.Tables = append(s.Tables, t)
	}
}

// MarkMissing records a declared source file that could not be read.
func (s *Study) MarkMissing(domainCode, name, cause string) {
	if s.Missing == nil {
		s.Missing = make(map[string]MissingSource)
	}
	s.Missing[name] = MissingSource{DomainCode: domainCode, Cause: cause}
}

// MissingNames returns the unreadable source names in lexical order.
func (s *Study) MissingNames() []string {
	names := make([]string, 0, len(s.Missing))
	for name := range s.Missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Readiness is the engine's final verdict on whether downstream
// transformation of the study may proceed.
type Readiness string

const (
	// ReadinessReady indicates transformation may proceed.
	ReadinessReady Readiness = "READY"
	// ReadinessConditional indicates transformation may proceed after review.
	ReadinessConditional Readiness = "CONDITIONAL"
	// ReadinessNotReady indicates transformation must not proceed.
	ReadinessNotReady Readiness = "NOT_READY"
)

// StudyResult aggregates the per-table results of one validation run.
// It serializes to the structured summary document consumed by external
// report renderers; GeneratedAt is the only non-deterministic field.
type StudyResult struct {
	// StudyID identifies the validated study
	StudyID string `json:"study_id"`

	// FilesValidated is the number of tables processed, including MISSING ones
	FilesValidated int `json:"files_validated"`

	// TotalRecords is the sum of record counts over all tables
	TotalRecords int `json:"total_records"`

	// OverallQualityScore is the record-count-weighted mean of table scores
	OverallQualityScore float64 `json:"overall_quality_score"`

	// TotalFindingsBySeverity counts findings across all tables
	TotalFindingsBySeverity map[Severity]int `json:"total_findings_by_severity"`

	// Readiness is the transformation-readiness verdict
	Readiness Readiness `json:"transformation_readiness"`

	// Tables maps table name to its validation result
	Tables map[string]*TableResult `json:"tables"`

	// Scores summarizes the distribution of per-table scores
	Scores *ScoreSummary `json:"score_summary,omitempty"`

	// GeneratedAt records when the run finished
	GeneratedAt time.Time `json:"generated_at"`

	// mu protects Tables during parallel per-table validation
	mu sync.Mutex
}

// NewStudyResult creates an empty study result.
func NewStudyResult(studyID string) *StudyResult {
	return &StudyResult{
		StudyID:                 studyID,
		TotalFindingsBySeverity: make(map[Severity]int, 4),
		Tables:                  make(map[string]*TableResult, 8),
	}
}

// AddTable records one table's result.
// This method is thread-safe.
func (s *StudyResult) AddTable(r *TableResult) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tables[r.TableName] = r
}

// Table returns the result for the named table, or nil.
func (s *StudyResult) Table(name string) *TableResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Tables[name]
}

// TableNames returns all table names in lexical order.
func (s *StudyResult) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCritical returns true if any table has a critical finding.
func (s *StudyResult) HasCritical() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.Tables {
		if r.HasCritical() {
			return true
		}
	}
	return false
}

// TotalFindings returns the number of findings across all tables.
func (s *StudyResult) TotalFindings() int {
	total := 0
	for _, n := range s.TotalFindingsBySeverity {
		total += n
	}
	return total
}

// AllFindings returns every finding across all tables, ordered by table
// name and then canonical finding order. This is the content of the
// detailed-findings document.
func (s *StudyResult) AllFindings() []Finding {
	var out []Finding
	for _, name := range s.TableNames() {
		r := s.Table(name)
		r.Sort()
		out = append(out, r.Findings...)
	}
	return out
}

// RouteFinding picks the per-table result a study-scope finding belongs
// to: exact table name first, then domain code. Findings that match no
// table (e.g. the skip notice for an absent anchor domain) land on the
// lexically first table so they are never silently dropped. Nil results
// are skipped; a nil return means there were no results at all.
func RouteFinding(f Finding, results []*TableResult) *TableResult {
	for _, r := range results {
		if r != nil && f.TableName != "" && r.TableName == f.TableName {
			return r
		}
	}
	for _, r := range results {
		if r != nil && f.DomainCode != "" && r.DomainCode == f.DomainCode {
			return r
		}
	}

	var first *TableResult
	for _, r := range results {
		if r == nil {
			continue
		}
		if first == nil || r.TableName < first.TableName {
			first = r
		}
	}
	return first
}

// Finalize computes the aggregate fields from the per-table results:
// severity totals, files validated, total records, the record-count-weighted
// overall score, and the readiness verdict. The readiness rules are:
// NOT_READY if any table has a critical finding; READY if the overall score
// meets readyThreshold and there are no critical or error findings anywhere;
// CONDITIONAL otherwise.
func (s *StudyResult) Finalize(readyThreshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.TotalFindingsBySeverity {
		delete(s.TotalFindingsBySeverity, k)
	}

	var weightedSum, totalWeight float64
	records := 0
	hasCritical := false
	hasError := false

	for _, r := range s.Tables {
		for _, f := range r.Findings {
			s.TotalFindingsBySeverity[f.Severity]++
		}
		if r.HasCritical() {
			hasCritical = true
		}
		if r.ErrorCount() > 0 {
			hasError = true
		}
		records += r.Stats.RecordCount

		// Empty and MISSING tables still weigh in, so they cannot be
		// silently ignored by the aggregate.
		weight := float64(r.Stats.RecordCount)
		if weight < 1 {
			weight = 1
		}
		weightedSum += r.QualityScore * weight
		totalWeight += weight
	}

	s.FilesValidated = len(s.Tables)
	s.TotalRecords = records
	if totalWeight > 0 {
		s.OverallQualityScore = weightedSum / totalWeight
	}

	switch {
	case hasCritical:
		s.Readiness = ReadinessNotReady
	case s.OverallQualityScore >= readyThreshold && !hasError:
		s.Readiness = ReadinessReady
	default:
		s.Readiness = ReadinessConditional
	}
}
