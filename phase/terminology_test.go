package phase

import (
	"context"
	"errors"
	"strings"
	"testing"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/service"
	"github.com/gosdtm/validator/table"
	"github.com/gosdtm/validator/terminology"
)

func raceStore(t *testing.T, policy service.Policy) *terminology.InMemoryStore {
	t.Helper()
	store := terminology.NewInMemoryStore()
	cl := service.NewCodelist("RACE", "RACE", policy,
		[]string{"WHITE", "BLACK OR AFRICAN AMERICAN", "ASIAN", "AMERICAN INDIAN OR ALASKA NATIVE"})
	if err := store.Register(cl); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return store
}

func demographics(raceValues ...string) *table.Table {
	subj := make([]table.Cell, len(raceValues))
	race := make([]table.Cell, len(raceValues))
	for i, v := range raceValues {
		subj[i] = table.Text("SUBJ-00" + string(rune('1'+i)))
		race[i] = table.Text(v)
	}
	return table.NewBuilder("DM", "dm").
		Identifiers("USUBJID").
		Column("USUBJID", subj...).
		Column("RACE", race...).
		MustBuild()
}

func runTerminology(t testing.TB, tbl *table.Table, resolver service.CodelistResolver) []sv.Finding {
	t.Helper()
	pctx := testContext(t, tbl)
	return NewTerminologyPhase(resolver).Validate(context.Background(), pctx)
}

func TestTerminologyPhase_ExactPolicy(t *testing.T) {
	tbl := demographics("WHITE", "MARTIAN", "ASIAN", "MARTIAN")
	findings := runTerminology(t, tbl, raceStore(t, service.PolicyExact))

	if len(findings) != 1 {
		t.Fatalf("len(findings) = %d; want 1: %v", len(findings), findings)
	}
	f := findings[0]
	if f.Severity != sv.SeverityError {
		t.Errorf("Severity = %s; want ERROR", f.Severity)
	}
	if f.RuleID != RuleCodelistViolation {
		t.Errorf("RuleID = %s; want %s", f.RuleID, RuleCodelistViolation)
	}
	if !strings.Contains(f.Message, "2 values outside exact codelist RACE: MARTIAN") {
		t.Errorf("Message = %q; want offending values named once", f.Message)
	}
	if f.AffectedRowCount != 2 {
		t.Errorf("AffectedRowCount = %d; want 2", f.AffectedRowCount)
	}
}

func TestTerminologyPhase_ExtensiblePolicy(t *testing.T) {
	tbl := demographics("WHITE", "MARTIAN")
	findings := runTerminology(t, tbl, raceStore(t, service.PolicyExtensible))

	if len(findings) != 1 {
		t.Fatalf("len(findings) = %d; want 1", len(findings))
	}
	f := findings[0]
	if f.Severity != sv.SeverityWarning {
		t.Errorf("Severity = %s; want WARNING", f.Severity)
	}
	if f.RuleID != RuleCodelistExtension {
		t.Errorf("RuleID = %s; want %s", f.RuleID, RuleCodelistExtension)
	}
	if !strings.Contains(f.Message, "extensible codelist") {
		t.Errorf("Message = %q; want the policy named", f.Message)
	}
}

func TestTerminologyPhase_CaseSensitive(t *testing.T) {
	tbl := demographics("WHITE", "white")
	findings := runTerminology(t, tbl, raceStore(t, service.PolicyExact))

	if len(findings) != 1 {
		t.Fatalf("len(findings) = %d; want 1, membership is case-sensitive", len(findings))
	}
	if !strings.Contains(findings[0].Message, "white") {
		t.Errorf("Message = %q; want the lower-case variant flagged", findings[0].Message)
	}
}

func TestTerminologyPhase_ForeignVocabulary(t *testing.T) {
	store := terminology.NewInMemoryStore()
	cl := service.NewCodelist("RACE", "RACE", service.PolicyExact,
		[]string{"WHITE", "BLACK OR AFRICAN AMERICAN", "ASIAN", "AMERICAN INDIAN OR ALASKA NATIVE"}).
		WithForeign("ETHNICITY", []string{"HISPANIC OR LATINO", "NOT HISPANIC OR LATINO", "HISPANIC"})
	if err := store.Register(cl); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tbl := demographics("WHITE", "HISPANIC", "ASIAN")
	findings := runTerminology(t, tbl, store)

	warnings := bySeverity(findings, sv.SeverityWarning)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d; want exactly 1: %v", len(warnings), findings)
	}
	w := warnings[0]
	if w.RuleID != RuleForeignVocabulary {
		t.Errorf("RuleID = %s; want %s", w.RuleID, RuleForeignVocabulary)
	}
	if !strings.Contains(w.Message, "ETHNICITY") || !strings.Contains(w.Message, "HISPANIC") {
		t.Errorf("Message = %q; want vocabulary and value named", w.Message)
	}
	if len(w.AffectedRowKeys) != 1 || w.AffectedRowKeys[0] != "SUBJ-002" {
		t.Errorf("AffectedRowKeys = %v; want [SUBJ-002]", w.AffectedRowKeys)
	}

	// HISPANIC is also outside the exact set; that error is independent of
	// the cross-axis warning and never escalates the table to critical.
	if got := len(bySeverity(findings, sv.SeverityError)); got != 1 {
		t.Errorf("errors = %d; want 1 out-of-set error alongside the warning", got)
	}
	if got := len(bySeverity(findings, sv.SeverityCritical)); got != 0 {
		t.Errorf("criticals = %d; want none", got)
	}
}

func TestTerminologyPhase_UnboundColumnSkipped(t *testing.T) {
	tbl := table.NewBuilder("DM", "dm").
		Column("SEX", table.Text("M"), table.Text("INTERSTELLAR")).
		MustBuild()

	if findings := runTerminology(t, tbl, raceStore(t, service.PolicyExact)); len(findings) != 0 {
		t.Errorf("findings = %v; want none for columns without a binding", findings)
	}
}

func TestTerminologyPhase_AbsentCellsIgnored(t *testing.T) {
	tbl := table.NewBuilder("DM", "dm").
		Column("RACE", table.Text("WHITE"), table.Absent(), table.Absent()).
		MustBuild()

	if findings := runTerminology(t, tbl, raceStore(t, service.PolicyExact)); len(findings) != 0 {
		t.Errorf("findings = %v; want none, empty cells are the missing-data checks' business", findings)
	}
}

func TestTerminologyPhase_NilResolver(t *testing.T) {
	tbl := demographics("MARTIAN")
	if findings := runTerminology(t, tbl, nil); findings != nil {
		t.Errorf("findings = %v; want nil without a resolver", findings)
	}
}

func TestTerminologyPhase_ResolverFromServices(t *testing.T) {
	tbl := demographics("MARTIAN")
	pctx := testContext(t, tbl)
	pctx.Services = service.NewServices().WithCodelists(raceStore(t, service.PolicyExact))

	findings := NewTerminologyPhase(nil).Validate(context.Background(), pctx)
	if len(findings) != 1 {
		t.Errorf("len(findings) = %d; want 1 via the context services", len(findings))
	}
}

type failingResolver struct{ err error }

func (r failingResolver) CodelistFor(context.Context, string, string) (*service.Codelist, error) {
	return nil, r.err
}

func TestTerminologyPhase_LookupFailureDegrades(t *testing.T) {
	tbl := demographics("WHITE")
	findings := runTerminology(t, tbl, failingResolver{err: errors.New("pack source unreachable")})

	// One lookup per column, each degrading to an informational finding.
	if len(findings) != 2 {
		t.Fatalf("len(findings) = %d; want one per column", len(findings))
	}
	for _, f := range findings {
		if f.Severity != sv.SeverityInfo {
			t.Errorf("Severity = %s; want INFO", f.Severity)
		}
		if f.RuleID != sv.RuleEvalFailure {
			t.Errorf("RuleID = %s; want %s", f.RuleID, sv.RuleEvalFailure)
		}
		if !strings.Contains(f.Message, "pack source unreachable") {
			t.Errorf("Message = %q; want the lookup error cited", f.Message)
		}
	}
}

func TestTerminologyPhaseConfig(t *testing.T) {
	store := terminology.NewInMemoryStore()
	opts := sv.DefaultOptions()

	if cfg := TerminologyPhaseConfig(store, opts); !cfg.Enabled {
		t.Error("Enabled = false with a resolver and terminology on")
	}
	if cfg := TerminologyPhaseConfig(nil, opts); cfg.Enabled {
		t.Error("Enabled = true without a resolver")
	}
	opts.ValidateTerminology = false
	if cfg := TerminologyPhaseConfig(store, opts); cfg.Enabled {
		t.Error("Enabled = true with terminology off")
	}
}
