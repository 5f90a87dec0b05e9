package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gosdtm/validator/table"
)

const manifestYAML = `
study_id: STUDY-001
anchor_domain: dm
entries:
  - pattern: dm.csv
    domain: dm
    identifier_columns: [STUDYID, USUBJID]
    cardinality: one-row-per-subject
    expected_records: 16
    mandatory_coverage: true
    constant_columns: [STUDYID, DOMAIN]
    required_columns: [USUBJID, AGE]
    numeric_columns: [AGE]
    code_columns:
      - name: DOMAIN
        max_length: 2
  - pattern: ae.csv
    domain: AE
    identifier_columns: [STUDYID, USUBJID, AESEQ]
    date_columns: [AESTDTC, AEENDTC]
  - pattern: "labs/**/*.xlsx"
    domain: LB
    identifier_columns: [STUDYID, USUBJID, LBSEQ]
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if m.StudyID != "STUDY-001" {
		t.Errorf("StudyID = %q, want STUDY-001", m.StudyID)
	}
	if m.AnchorDomain != "DM" {
		t.Errorf("AnchorDomain = %q, want DM (upper-cased)", m.AnchorDomain)
	}
	if len(m.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(m.Entries))
	}

	dm := m.Entries[0]
	if dm.Domain != "DM" {
		t.Errorf("Domain = %q, want DM (upper-cased)", dm.Domain)
	}
	if dm.SubjectColumn != "USUBJID" {
		t.Errorf("SubjectColumn = %q, want default USUBJID", dm.SubjectColumn)
	}
	card, err := dm.cardinality()
	if err != nil {
		t.Fatalf("cardinality() error = %v", err)
	}
	if card != table.OneRowPerSubject {
		t.Errorf("cardinality = %v, want OneRowPerSubject", card)
	}
	if dm.ExpectedRecords != 16 {
		t.Errorf("ExpectedRecords = %d, want 16", dm.ExpectedRecords)
	}
	if !dm.MandatoryCoverage {
		t.Error("MandatoryCoverage = false, want true")
	}

	ae := m.Entries[1]
	card, _ = ae.cardinality()
	if card != table.ManyRowsPerSubject {
		t.Errorf("default cardinality = %v, want ManyRowsPerSubject", card)
	}
}

func TestParseManifest_DefaultAnchorDomain(t *testing.T) {
	m, err := ParseManifest([]byte("study_id: S1\nentries:\n  - pattern: dm.csv\n    domain: DM\n"))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.AnchorDomain != "DM" {
		t.Errorf("AnchorDomain = %q, want default DM", m.AnchorDomain)
	}
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "study_id: [unclosed"},
		{"missing study_id", "entries:\n  - pattern: dm.csv\n    domain: DM\n"},
		{"no entries", "study_id: S1\n"},
		{"entry without pattern", "study_id: S1\nentries:\n  - domain: DM\n"},
		{"entry without domain", "study_id: S1\nentries:\n  - pattern: dm.csv\n"},
		{"invalid pattern", "study_id: S1\nentries:\n  - pattern: \"dm[.csv\"\n    domain: DM\n"},
		{"unknown cardinality", "study_id: S1\nentries:\n  - pattern: dm.csv\n    domain: DM\n    cardinality: sometimes\n"},
		{"unnamed code column", "study_id: S1\nentries:\n  - pattern: dm.csv\n    domain: DM\n    code_columns:\n      - max_length: 2\n"},
		{"negative code length", "study_id: S1\nentries:\n  - pattern: dm.csv\n    domain: DM\n    code_columns:\n      - name: DOMAIN\n        max_length: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.yaml)); err == nil {
				t.Error("ParseManifest() error = nil, want error")
			}
		})
	}
}

func TestManifest_Entry(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	tests := []struct {
		name       string
		file       string
		wantDomain string
		wantOK     bool
	}{
		{"literal match", "dm.csv", "DM", true},
		{"second entry", "ae.csv", "AE", true},
		{"glob match", "labs/2024/chem.xlsx", "LB", true},
		{"glob match nested", "labs/urine.xlsx", "LB", true},
		{"no match", "vs.csv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := m.Entry(tt.file)
			if ok != tt.wantOK {
				t.Fatalf("Entry(%q) ok = %v, want %v", tt.file, ok, tt.wantOK)
			}
			if ok && e.Domain != tt.wantDomain {
				t.Errorf("Entry(%q).Domain = %q, want %q", tt.file, e.Domain, tt.wantDomain)
			}
		})
	}
}

func TestEntry_CardinalitySpellings(t *testing.T) {
	tests := []struct {
		in   string
		want table.Cardinality
	}{
		{"", table.ManyRowsPerSubject},
		{"many", table.ManyRowsPerSubject},
		{"many-rows-per-subject", table.ManyRowsPerSubject},
		{"one", table.OneRowPerSubject},
		{"one-row-per-subject", table.OneRowPerSubject},
		{"ONE-ROW-PER-SUBJECT", table.OneRowPerSubject},
		{" one ", table.OneRowPerSubject},
	}

	for _, tt := range tests {
		e := &Entry{Pattern: "x.csv", Cardinality: tt.in}
		got, err := e.cardinality()
		if err != nil {
			t.Errorf("cardinality(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("cardinality(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(manifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.StudyID != "STUDY-001" {
		t.Errorf("StudyID = %q, want STUDY-001", m.StudyID)
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadManifest() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "absent.yaml") {
		t.Errorf("error %q should name the manifest path", err)
	}
}
