package phase

import (
	"strings"
	"testing"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/pipeline"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/table"
)

// testContext builds a pipeline context around one table.
func testContext(t testing.TB, tbl *table.Table, rules ...rule.Rule) *pipeline.Context {
	t.Helper()
	pctx := pipeline.NewContext()
	pctx.Table = tbl
	pctx.Rules = rules
	pctx.Options = sv.DefaultOptions()
	pctx.Result = sv.NewTableResult(tbl.DomainCode(), tbl.Name())
	return pctx
}

// bySeverity filters findings by severity.
func bySeverity(findings []sv.Finding, s sv.Severity) []sv.Finding {
	var out []sv.Finding
	for _, f := range findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// byRule filters findings by rule ID.
func byRule(findings []sv.Finding, id string) []sv.Finding {
	var out []sv.Finding
	for _, f := range findings {
		if f.RuleID == id {
			out = append(out, f)
		}
	}
	return out
}

func TestEvalRule_Recovers(t *testing.T) {
	tbl := table.NewBuilder("DM", "dm").
		Column("USUBJID", table.Text("SUBJ-0001")).
		MustBuild()
	pctx := testContext(t, tbl)

	r := rule.Rule{ID: "TST-001", Kind: rule.KindRecordCount, Severity: sv.SeverityInfo, Domains: []string{"all"}}
	findings := evalRule(pctx, r, func() []sv.Finding {
		panic("boom")
	})

	if len(findings) != 1 {
		t.Fatalf("len(findings) = %d; want 1", len(findings))
	}
	f := findings[0]
	if f.Severity != sv.SeverityInfo {
		t.Errorf("Severity = %s; want INFO", f.Severity)
	}
	if f.RuleID != sv.RuleEvalFailure {
		t.Errorf("RuleID = %s; want %s", f.RuleID, sv.RuleEvalFailure)
	}
	if !strings.Contains(f.Message, "TST-001") || !strings.Contains(f.Message, "boom") {
		t.Errorf("Message = %q; want it to name the rule and the panic", f.Message)
	}
}

func TestEvalRule_PassesThrough(t *testing.T) {
	tbl := table.NewBuilder("DM", "dm").
		Column("USUBJID", table.Text("SUBJ-0001")).
		MustBuild()
	pctx := testContext(t, tbl)

	want := sv.Warning(sv.CategoryQuality).Message("hello").Build()
	r := rule.Rule{ID: "TST-002", Kind: rule.KindRecordCount, Severity: sv.SeverityInfo, Domains: []string{"all"}}
	findings := evalRule(pctx, r, func() []sv.Finding {
		return []sv.Finding{want}
	})

	if len(findings) != 1 || findings[0].Message != "hello" {
		t.Errorf("findings = %v; want the evaluator's own finding", findings)
	}
}

func TestIsDateColumn(t *testing.T) {
	tokens := []string{"DTC", "DAT", "DATE"}

	tests := []struct {
		name string
		want bool
	}{
		{"AESTDTC", true},
		{"RFSTDTC", true},
		{"BRTHDAT", true},
		{"VISITDATE", true},
		{"lbdtc", true},
		{"USUBJID", false},
		{"AETERM", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isDateColumn(tt.name, tokens); got != tt.want {
			t.Errorf("isDateColumn(%q) = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestJoinValues(t *testing.T) {
	values := []string{"A", "B", "C", "D"}

	if got := joinValues(values, 0); got != "A, B, C, D" {
		t.Errorf("joinValues(limit=0) = %q; want all values", got)
	}
	if got := joinValues(values, 2); got != "A, B and 2 more" {
		t.Errorf("joinValues(limit=2) = %q; want truncated form", got)
	}
	if got := joinValues(values[:1], 5); got != "A" {
		t.Errorf("joinValues(single) = %q; want %q", got, "A")
	}
}

func TestSampleRowKeys(t *testing.T) {
	tbl := table.NewBuilder("DM", "dm").
		Identifiers("STUDYID", "USUBJID").
		Column("STUDYID", table.Text("S1"), table.Text("S1"), table.Text("S1")).
		Column("USUBJID", table.Text("A"), table.Text("B"), table.Text("C")).
		MustBuild()

	keys := sampleRowKeys(tbl, []int{0, 1, 2}, 2)
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d; want 2", len(keys))
	}
	if keys[0] != "S1/A" || keys[1] != "S1/B" {
		t.Errorf("keys = %v; want [S1/A S1/B]", keys)
	}

	if got := sampleRowKeys(tbl, nil, 5); got != nil {
		t.Errorf("sampleRowKeys(no rows) = %v; want nil", got)
	}
}

func TestRuleMessageOverride(t *testing.T) {
	r := rule.Rule{Message: "column {column} broke"}
	if got := ruleMessage(r, "default", "column", "AGE"); got != "column AGE broke" {
		t.Errorf("ruleMessage = %q; want expanded override", got)
	}

	r.Message = ""
	if got := ruleMessage(r, "default", "column", "AGE"); got != "default" {
		t.Errorf("ruleMessage = %q; want fallback", got)
	}
}
