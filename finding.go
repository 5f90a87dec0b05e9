package sdtmvalidator

import (
	"fmt"
	"strings"
)

// Severity classifies how serious a finding is.
// Severities are totally ordered: CRITICAL > ERROR > WARNING > INFO.
type Severity string

const (
	// SeverityCritical indicates a defect that blocks transformation of the dataset.
	SeverityCritical Severity = "CRITICAL"
	// SeverityError indicates a conformance violation that requires correction.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational feedback.
	SeverityInfo Severity = "INFO"
)

// Rank returns the ordering weight of the severity. Higher is more severe.
// Unknown severities rank below INFO.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// IsValid returns true if this is a recognized severity.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// RuleCategory identifies which aspect of data quality a rule checks.
type RuleCategory string

const (
	// CategoryIdentifier covers row-key and identifier-column checks.
	CategoryIdentifier RuleCategory = "identifier"
	// CategoryDate covers date format and date ordering checks.
	CategoryDate RuleCategory = "date"
	// CategoryDuplicate covers full-row and key-level duplicate checks.
	CategoryDuplicate RuleCategory = "duplicate"
	// CategoryMissingData covers required-field population checks.
	CategoryMissingData RuleCategory = "missing-data"
	// CategoryQuality covers general data-quality checks (types, lengths).
	CategoryQuality RuleCategory = "quality"
	// CategoryTerminology covers controlled-vocabulary conformance checks.
	CategoryTerminology RuleCategory = "terminology"
	// CategoryRange covers numeric plausibility-range checks.
	CategoryRange RuleCategory = "range"
	// CategoryCrossDomain covers checks spanning more than one table.
	CategoryCrossDomain RuleCategory = "cross-domain"
)

// Well-known rule identifiers emitted by the engine itself rather than by
// a rule pack.
const (
	// RuleEvalFailure marks a rule whose evaluator panicked; the rule is
	// skipped and validation continues.
	RuleEvalFailure = "SDV-090"
	// RuleSourceUnreadable marks a declared source file that could not be
	// loaded.
	RuleSourceUnreadable = "SDV-091"
	// RuleDateNotNormalized marks a date value the normalization transform
	// left untouched because no accepted format matched.
	RuleDateNotNormalized = "SDV-092"
)

// Finding represents one rule-violation instance.
// Findings are immutable value objects once built.
type Finding struct {
	// RuleID is the stable identifier of the violated rule (e.g. "SDV-013")
	RuleID string `json:"rule_id"`

	// Severity of the finding
	Severity Severity `json:"severity"`

	// Category of the violated rule
	Category RuleCategory `json:"category"`

	// DomainCode is the domain of the affected table (e.g. "DM", "AE")
	DomainCode string `json:"domain_code,omitempty"`

	// TableName is the name of the affected table
	TableName string `json:"table_name,omitempty"`

	// Message contains human-readable details with substituted values
	Message string `json:"message"`

	// AffectedRowCount is the number of rows the violation covers
	AffectedRowCount int `json:"affected_row_count,omitempty"`

	// AffectedRowKeys holds a bounded sample of identifier tuples for traceability
	AffectedRowKeys []string `json:"affected_row_keys,omitempty"`

	// Check is the validation check that generated this finding
	Check string `json:"check,omitempty"`
}

// IsCritical returns true if this is a critical finding.
func (f Finding) IsCritical() bool {
	return f.Severity == SeverityCritical
}

// IsError returns true if this is an error or critical finding.
func (f Finding) IsError() bool {
	return f.Severity == SeverityError || f.Severity == SeverityCritical
}

// IsWarning returns true if this is a warning.
func (f Finding) IsWarning() bool {
	return f.Severity == SeverityWarning
}

// String returns a human-readable representation of the finding.
func (f Finding) String() string {
	var b strings.Builder
	b.WriteString(string(f.Severity))
	if f.RuleID != "" {
		b.WriteString(" [")
		b.WriteString(f.RuleID)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(f.Message)
	if f.TableName != "" {
		b.WriteString(" in ")
		b.WriteString(f.TableName)
	}
	return b.String()
}

// Less reports whether f sorts before other in the canonical presentation
// order: severity rank descending, then rule ID, then table name.
func (f Finding) Less(other Finding) bool {
	if f.Severity.Rank() != other.Severity.Rank() {
		return f.Severity.Rank() > other.Severity.Rank()
	}
	if f.RuleID != other.RuleID {
		return f.RuleID < other.RuleID
	}
	return f.TableName < other.TableName
}

// FindingBuilder provides a fluent API for building findings.
type FindingBuilder struct {
	finding Finding
}

// NewFinding creates a new FindingBuilder.
func NewFinding(severity Severity, category RuleCategory) *FindingBuilder {
	return &FindingBuilder{
		finding: Finding{
			Severity: severity,
			Category: category,
		},
	}
}

// Critical creates a critical finding builder.
func Critical(category RuleCategory) *FindingBuilder {
	return NewFinding(SeverityCritical, category)
}

// Error creates an error finding builder.
func Error(category RuleCategory) *FindingBuilder {
	return NewFinding(SeverityError, category)
}

// Warning creates a warning finding builder.
func Warning(category RuleCategory) *FindingBuilder {
	return NewFinding(SeverityWarning, category)
}

// Info creates an informational finding builder.
func Info(category RuleCategory) *FindingBuilder {
	return NewFinding(SeverityInfo, category)
}

// Rule sets the rule identifier.
func (b *FindingBuilder) Rule(id string) *FindingBuilder {
	b.finding.RuleID = id
	return b
}

// Message sets the human-readable message.
func (b *FindingBuilder) Message(msg string) *FindingBuilder {
	b.finding.Message = msg
	return b
}

// Messagef sets the message using a format string.
func (b *FindingBuilder) Messagef(format string, args ...any) *FindingBuilder {
	b.finding.Message = fmt.Sprintf(format, args...)
	return b
}

// Table sets the domain code and table name.
func (b *FindingBuilder) Table(domainCode, tableName string) *FindingBuilder {
	b.finding.DomainCode = domainCode
	b.finding.TableName = tableName
	return b
}

// Rows sets the affected row count.
func (b *FindingBuilder) Rows(count int) *FindingBuilder {
	b.finding.AffectedRowCount = count
	return b
}

// Keys sets the sampled affected row keys.
func (b *FindingBuilder) Keys(keys ...string) *FindingBuilder {
	b.finding.AffectedRowKeys = keys
	return b
}

// Check sets the validation check name.
func (b *FindingBuilder) Check(name string) *FindingBuilder {
	b.finding.Check = name
	return b
}

// Build returns the constructed finding.
func (b *FindingBuilder) Build() Finding {
	return b.finding
}
