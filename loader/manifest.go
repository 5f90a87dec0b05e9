package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/gosdtm/validator/table"
)

// Manifest describes one study's datasets: which files to load and the
// domain metadata each carries.
type Manifest struct {
	// StudyID identifies the study, e.g. "CDISCPILOT01".
	StudyID string `yaml:"study_id"`

	// AnchorDomain names the subject-bearing anchor domain for
	// cross-domain subject closure. Defaults to DM.
	AnchorDomain string `yaml:"anchor_domain"`

	// Entries map file patterns to domain metadata. The first entry
	// whose pattern matches a file claims it.
	Entries []Entry `yaml:"entries"`
}

// Entry binds one file pattern to the metadata of the tables it matches.
type Entry struct {
	// Pattern is a file glob relative to the data directory,
	// e.g. "dm.csv" or "labs/**/*.xlsx".
	Pattern string `yaml:"pattern"`

	// Domain is the domain code, e.g. "DM". Stored upper-case.
	Domain string `yaml:"domain"`

	// IdentifierColumns is the ordered row-key column list,
	// e.g. [STUDYID, USUBJID, AESEQ].
	IdentifierColumns []string `yaml:"identifier_columns"`

	// SubjectColumn names the subject-key column. Defaults to USUBJID.
	SubjectColumn string `yaml:"subject_column"`

	// Cardinality is "one-row-per-subject" or "many-rows-per-subject"
	// (the default).
	Cardinality string `yaml:"cardinality"`

	// ExpectedRecords is the advisory expected row count; 0 disables
	// the record-count check.
	ExpectedRecords int `yaml:"expected_records"`

	// MandatoryCoverage escalates subject-closure findings for this
	// domain from warning to error.
	MandatoryCoverage bool `yaml:"mandatory_coverage"`

	// ConstantColumns are identifiers expected to hold a single distinct
	// value table-wide, e.g. [STUDYID, DOMAIN].
	ConstantColumns []string `yaml:"constant_columns"`

	// RequiredColumns must be present and not entirely empty.
	RequiredColumns []string `yaml:"required_columns"`

	// NumericColumns must parse as decimals wherever populated.
	NumericColumns []string `yaml:"numeric_columns"`

	// DateColumns are checked by the date cascade regardless of name.
	DateColumns []string `yaml:"date_columns"`

	// CodeColumns carry a maximum code length.
	CodeColumns []CodeColumn `yaml:"code_columns"`
}

// CodeColumn declares a fixed-length code column.
type CodeColumn struct {
	Name      string `yaml:"name"`
	MaxLength int    `yaml:"max_length"`
}

// ParseManifest parses and validates a YAML manifest document. Entry
// defaults (anchor domain DM, subject column USUBJID, many-rows
// cardinality) are filled in here so callers see a complete manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.StudyID == "" {
		return nil, fmt.Errorf("manifest: study_id is required")
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("manifest %s: no entries", m.StudyID)
	}
	if m.AnchorDomain == "" {
		m.AnchorDomain = "DM"
	}
	m.AnchorDomain = strings.ToUpper(m.AnchorDomain)

	for i := range m.Entries {
		e := &m.Entries[i]
		if e.Pattern == "" {
			return nil, fmt.Errorf("manifest %s: entry %d has no pattern", m.StudyID, i)
		}
		if !doublestar.ValidatePattern(e.Pattern) {
			return nil, fmt.Errorf("manifest %s: invalid pattern %q", m.StudyID, e.Pattern)
		}
		if e.Domain == "" {
			return nil, fmt.Errorf("manifest %s: pattern %q has no domain", m.StudyID, e.Pattern)
		}
		e.Domain = strings.ToUpper(e.Domain)
		if e.SubjectColumn == "" {
			e.SubjectColumn = "USUBJID"
		}
		if _, err := e.cardinality(); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", m.StudyID, err)
		}
		for _, c := range e.CodeColumns {
			if c.Name == "" {
				return nil, fmt.Errorf("manifest %s: pattern %q has an unnamed code column", m.StudyID, e.Pattern)
			}
			if c.MaxLength < 0 {
				return nil, fmt.Errorf("manifest %s: code column %s has negative max_length", m.StudyID, c.Name)
			}
		}
	}
	return &m, nil
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Entry returns the first entry whose pattern matches the file name.
// Names are matched slash-separated, relative to the data directory.
func (m *Manifest) Entry(name string) (*Entry, bool) {
	rel := filepath.ToSlash(name)
	for i := range m.Entries {
		if ok, err := doublestar.Match(m.Entries[i].Pattern, rel); err == nil && ok {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// cardinality maps the manifest spelling to the table declaration.
func (e *Entry) cardinality() (table.Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(e.Cardinality)) {
	case "", "many-rows-per-subject", "many":
		return table.ManyRowsPerSubject, nil
	case "one-row-per-subject", "one":
		return table.OneRowPerSubject, nil
	default:
		return 0, fmt.Errorf("pattern %q: unknown cardinality %q", e.Pattern, e.Cardinality)
	}
}

// column constructs the typed column for name per this entry's
// declarations. Undeclared columns default to text.
func (e *Entry) column(name string, cells []table.Cell) *table.Column {
	for _, c := range e.CodeColumns {
		if c.Name == name {
			return table.NewCodeColumn(name, c.MaxLength, cells)
		}
	}
	for _, n := range e.NumericColumns {
		if n == name {
			return table.NewTypedColumn(name, table.KindNumeric, cells)
		}
	}
	for _, n := range e.DateColumns {
		if n == name {
			return table.NewTypedColumn(name, table.KindDate, cells)
		}
	}
	return table.NewColumn(name, cells)
}
