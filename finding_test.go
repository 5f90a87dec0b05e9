package sdtmvalidator

import (
	"testing"
)

func TestSeverity_Rank(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 4},
		{SeverityError, 3},
		{SeverityWarning, 2},
		{SeverityInfo, 1},
		{Severity("bogus"), 0},
	}

	for _, tt := range tests {
		if got := tt.severity.Rank(); got != tt.want {
			t.Errorf("Severity(%s).Rank() = %d; want %d", tt.severity, got, tt.want)
		}
	}
}

func TestSeverity_Ordering(t *testing.T) {
	if SeverityCritical.Rank() <= SeverityError.Rank() {
		t.Error("CRITICAL should rank above ERROR")
	}
	if SeverityError.Rank() <= SeverityWarning.Rank() {
		t.Error("ERROR should rank above WARNING")
	}
	if SeverityWarning.Rank() <= SeverityInfo.Rank() {
		t.Error("WARNING should rank above INFO")
	}
}

func TestSeverity_IsValid(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityCritical, true},
		{SeverityError, true},
		{SeverityWarning, true},
		{SeverityInfo, true},
		{Severity(""), false},
		{Severity("FATAL"), false},
	}

	for _, tt := range tests {
		if got := tt.severity.IsValid(); got != tt.want {
			t.Errorf("Severity(%q).IsValid() = %v; want %v", tt.severity, got, tt.want)
		}
	}
}

func TestFinding_IsError(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityCritical, true},
		{SeverityError, true},
		{SeverityWarning, false},
		{SeverityInfo, false},
	}

	for _, tt := range tests {
		f := Finding{Severity: tt.severity}
		if got := f.IsError(); got != tt.want {
			t.Errorf("Finding{Severity: %s}.IsError() = %v; want %v", tt.severity, got, tt.want)
		}
	}
}

func TestFinding_IsCritical(t *testing.T) {
	if !(Finding{Severity: SeverityCritical}).IsCritical() {
		t.Error("critical finding should report IsCritical")
	}
	if (Finding{Severity: SeverityError}).IsCritical() {
		t.Error("error finding should not report IsCritical")
	}
}

func TestFinding_String(t *testing.T) {
	tests := []struct {
		finding Finding
		want    string
	}{
		{
			finding: Finding{
				Severity: SeverityError,
				Message:  "value not numeric",
			},
			want: "ERROR: value not numeric",
		},
		{
			finding: Finding{
				Severity:  SeverityCritical,
				RuleID:    "SDV-005",
				Message:   "2 fully duplicated rows",
				TableName: "ae.csv",
			},
			want: "CRITICAL [SDV-005]: 2 fully duplicated rows in ae.csv",
		},
	}

	for _, tt := range tests {
		if got := tt.finding.String(); got != tt.want {
			t.Errorf("Finding.String() = %q; want %q", got, tt.want)
		}
	}
}

func TestFinding_Less(t *testing.T) {
	tests := []struct {
		name string
		a, b Finding
		want bool
	}{
		{
			name: "higher severity first",
			a:    Finding{Severity: SeverityCritical, RuleID: "SDV-900"},
			b:    Finding{Severity: SeverityWarning, RuleID: "SDV-001"},
			want: true,
		},
		{
			name: "same severity orders by rule id",
			a:    Finding{Severity: SeverityError, RuleID: "SDV-001"},
			b:    Finding{Severity: SeverityError, RuleID: "SDV-002"},
			want: true,
		},
		{
			name: "same rule orders by table",
			a:    Finding{Severity: SeverityError, RuleID: "SDV-001", TableName: "ae.csv"},
			b:    Finding{Severity: SeverityError, RuleID: "SDV-001", TableName: "dm.csv"},
			want: true,
		},
		{
			name: "lower severity not first",
			a:    Finding{Severity: SeverityInfo},
			b:    Finding{Severity: SeverityCritical},
			want: false,
		},
	}

	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%s: Less() = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestFindingBuilder(t *testing.T) {
	f := Critical(CategoryDuplicate).
		Rule("SDV-005").
		Table("AE", "ae.csv").
		Messagef("%d fully duplicated rows (%.1f%%)", 3, 0.5).
		Rows(3).
		Keys("STUDY1|S01|P001", "STUDY1|S01|P002").
		Check("structure").
		Build()

	if f.Severity != SeverityCritical {
		t.Errorf("Severity = %s; want %s", f.Severity, SeverityCritical)
	}
	if f.Category != CategoryDuplicate {
		t.Errorf("Category = %s; want %s", f.Category, CategoryDuplicate)
	}
	if f.RuleID != "SDV-005" {
		t.Errorf("RuleID = %s; want SDV-005", f.RuleID)
	}
	if f.DomainCode != "AE" || f.TableName != "ae.csv" {
		t.Errorf("Table = %s/%s; want AE/ae.csv", f.DomainCode, f.TableName)
	}
	if f.Message != "3 fully duplicated rows (0.5%)" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.AffectedRowCount != 3 {
		t.Errorf("AffectedRowCount = %d; want 3", f.AffectedRowCount)
	}
	if len(f.AffectedRowKeys) != 2 {
		t.Errorf("len(AffectedRowKeys) = %d; want 2", len(f.AffectedRowKeys))
	}
	if f.Check != "structure" {
		t.Errorf("Check = %s; want structure", f.Check)
	}
}

func TestFindingBuilder_Shortcuts(t *testing.T) {
	tests := []struct {
		builder *FindingBuilder
		want    Severity
	}{
		{Critical(CategoryIdentifier), SeverityCritical},
		{Error(CategoryTerminology), SeverityError},
		{Warning(CategoryRange), SeverityWarning},
		{Info(CategoryMissingData), SeverityInfo},
	}

	for _, tt := range tests {
		if got := tt.builder.Build().Severity; got != tt.want {
			t.Errorf("builder severity = %s; want %s", got, tt.want)
		}
	}
}

func BenchmarkFindingBuilder(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Warning(CategoryDate).
			Rule("SDV-020").
			Table("AE", "ae.csv").
			Message("unparseable date").
			Rows(1).
			Build()
	}
}
