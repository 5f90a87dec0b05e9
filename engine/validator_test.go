package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/service"
	"github.com/gosdtm/validator/table"
)

func newValidator(t testing.TB, opts ...sv.Option) *StudyValidator {
	t.Helper()
	v, err := New(context.Background(), sv.IG34, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

// cleanDemographics builds a one-row-per-subject DM table with fully
// populated identifiers, valid terminology, and canonical dates.
func cleanDemographics(rows int) *table.Table {
	b := table.NewBuilder("DM", "dm").
		Identifiers("STUDYID", "USUBJID").
		Subject("USUBJID").
		Cardinality(table.OneRowPerSubject)

	study := make([]table.Cell, rows)
	subj := make([]table.Cell, rows)
	sex := make([]table.Cell, rows)
	race := make([]table.Cell, rows)
	age := make([]table.Cell, rows)
	rfst := make([]table.Cell, rows)
	rfen := make([]table.Cell, rows)
	for i := 0; i < rows; i++ {
		study[i] = table.Text("STUDY-01")
		subj[i] = table.Text(fmt.Sprintf("STUDY-01-%03d", i+1))
		if i%2 == 0 {
			sex[i] = table.Text("F")
		} else {
			sex[i] = table.Text("M")
		}
		race[i] = table.Text("ASIAN")
		age[i] = table.ParseCell(fmt.Sprintf("%d", 30+i))
		rfst[i] = table.Text("2024-01-15")
		rfen[i] = table.Text("2024-06-15")
	}

	return b.
		Column("STUDYID", study...).
		Column("USUBJID", subj...).
		Column("SEX", sex...).
		Column("RACE", race...).
		TypedColumn("AGE", table.KindNumeric, age...).
		Column("RFSTDTC", rfst...).
		Column("RFENDTC", rfen...).
		MustBuild()
}

func findByRule(r *sv.TableResult, id string) []sv.Finding {
	var out []sv.Finding
	for _, f := range r.Findings {
		if f.RuleID == id {
			out = append(out, f)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	v := newValidator(t)

	if v.Version() != sv.IG34 {
		t.Errorf("Version = %v; want %v", v.Version(), sv.IG34)
	}
	if v.Options() == nil {
		t.Error("Options should not be nil")
	}
	if v.Metrics() == nil {
		t.Error("Metrics should not be nil")
	}
	if v.Rules() == nil || v.Rules().Len() == 0 {
		t.Error("resolved registry should carry the embedded default rules")
	}
	if len(v.PackNames()) == 0 {
		t.Error("PackNames should name the embedded packs")
	}
}

func TestNew_UnsupportedVersion(t *testing.T) {
	_, err := New(context.Background(), sv.StandardVersion("9.9"))
	if err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
	if !strings.Contains(err.Error(), "9.9") {
		t.Errorf("error %q should name the version", err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(context.Background(), sv.IG34,
		sv.WithMissingDataTiers([]sv.PenaltyTier{{MinFraction: 2.0, Penalty: 5}}))
	if err == nil {
		t.Fatal("expected a configuration error for an out-of-range tier")
	}
}

func TestNew_WithOptions(t *testing.T) {
	v := newValidator(t,
		sv.WithReadyThreshold(90),
		sv.WithWorkerCount(2),
		sv.WithTerminology(false),
	)

	if v.Options().ReadyThreshold != 90 {
		t.Errorf("ReadyThreshold = %v; want 90", v.Options().ReadyThreshold)
	}
	if v.Options().WorkerCount != 2 {
		t.Errorf("WorkerCount = %d; want 2", v.Options().WorkerCount)
	}
	if v.Options().ValidateTerminology {
		t.Error("terminology should be disabled")
	}
}

func TestNew_CodelistCacheWired(t *testing.T) {
	v := newValidator(t)
	if _, ok := v.Codelists().(*service.CachingCodelistResolver); !ok {
		t.Errorf("codelist resolver = %T; want the caching wrapper", v.Codelists())
	}

	v2 := newValidator(t, sv.WithCodelistCacheSize(-1))
	if _, ok := v2.Codelists().(*service.CachingCodelistResolver); ok {
		t.Error("disabled cache must leave the resolver unwrapped")
	}
}

func TestValidateTable_Nil(t *testing.T) {
	v := newValidator(t)
	if r := v.ValidateTable(context.Background(), nil); r != nil {
		t.Errorf("ValidateTable(nil) = %v; want nil", r)
	}
}

func TestValidateTable_CleanDemographics(t *testing.T) {
	v := newValidator(t)

	result := v.ValidateTable(context.Background(), cleanDemographics(16))

	if result.Status != sv.StatusPass {
		for _, f := range result.Findings {
			t.Logf("finding: %s", f)
		}
		t.Fatalf("Status = %s; want PASS", result.Status)
	}
	if result.QualityScore < 90 {
		t.Errorf("QualityScore = %v; want >= 90", result.QualityScore)
	}
	if result.Stats.RecordCount != 16 {
		t.Errorf("RecordCount = %d; want 16", result.Stats.RecordCount)
	}
}

func TestValidateTable_RequiredColumnEmpty(t *testing.T) {
	v := newValidator(t)

	tbl := table.NewBuilder("LB", "lb").
		Identifiers("STUDYID", "USUBJID", "LBSEQ").
		Subject("USUBJID").
		Required("LBORRES").
		Column("STUDYID", table.Text("STUDY-01"), table.Text("STUDY-01")).
		Column("USUBJID", table.Text("STUDY-01-001"), table.Text("STUDY-01-002")).
		Column("LBSEQ", table.Text("1"), table.Text("1")).
		Column("LBORRES", table.Absent(), table.Absent()).
		MustBuild()

	result := v.ValidateTable(context.Background(), tbl)

	required := findByRule(result, "SDV-015")
	if len(required) != 1 {
		t.Fatalf("required-populated findings = %d; want 1", len(required))
	}
	if required[0].Severity != sv.SeverityCritical {
		t.Errorf("severity = %s; want CRITICAL", required[0].Severity)
	}
	if !strings.Contains(required[0].Message, "LBORRES") {
		t.Errorf("message %q should name the column", required[0].Message)
	}
	if result.Status != sv.StatusFail {
		t.Errorf("Status = %s; want FAIL", result.Status)
	}
}

func TestValidateTable_ForeignVocabulary(t *testing.T) {
	v := newValidator(t)

	tbl := cleanDemographics(4)
	col, _ := tbl.Column("RACE")
	cells := make([]table.Cell, col.Len())
	for i := range cells {
		cells[i] = table.Text("ASIAN")
	}
	cells[2] = table.Text("HISPANIC") // ethnicity term in the race column
	tbl, err := tbl.WithColumn(table.NewColumn("RACE", cells))
	if err != nil {
		t.Fatal(err)
	}

	result := v.ValidateTable(context.Background(), tbl)

	foreign := findByRule(result, "SDV-032")
	if len(foreign) != 1 {
		t.Fatalf("foreign-vocabulary findings = %d; want 1", len(foreign))
	}
	if foreign[0].Severity != sv.SeverityWarning {
		t.Errorf("severity = %s; want WARNING", foreign[0].Severity)
	}
	if !strings.Contains(foreign[0].Message, "HISPANIC") {
		t.Errorf("message %q should name the conflicting value", foreign[0].Message)
	}
	if len(foreign[0].AffectedRowKeys) == 0 {
		t.Error("finding should carry affected row keys")
	}
	if result.Status == sv.StatusFail {
		t.Error("a foreign-vocabulary warning alone must not fail the table")
	}
}

func TestValidateTable_TerminologyDisabled(t *testing.T) {
	v := newValidator(t, sv.WithTerminology(false))

	tbl := table.NewBuilder("DM", "dm").
		Identifiers("USUBJID").
		Subject("USUBJID").
		Column("USUBJID", table.Text("A"), table.Text("B")).
		Column("SEX", table.Text("BOGUS"), table.Text("F")).
		MustBuild()

	result := v.ValidateTable(context.Background(), tbl)
	if n := len(findByRule(result, "SDV-030")); n != 0 {
		t.Errorf("codelist findings with terminology disabled = %d; want 0", n)
	}
}

func TestValidateStudy_NilStudy(t *testing.T) {
	v := newValidator(t)
	if _, err := v.ValidateStudy(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a nil study")
	}
}

func TestValidateStudy_CancelledContext(t *testing.T) {
	v := newValidator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := v.ValidateStudy(ctx, sv.NewStudy("S1")); err == nil {
		t.Fatal("expected the context error")
	}
}

func TestValidateStudy_MissingSource(t *testing.T) {
	v := newValidator(t)

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(8))
	study.MarkMissing("LB", "lb", "open lb.csv: no such file")

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	if result.FilesValidated != 2 {
		t.Errorf("FilesValidated = %d; want 2", result.FilesValidated)
	}
	lb := result.Table("lb")
	if lb == nil {
		t.Fatal("missing source should produce a sentinel result")
	}
	if lb.Status != sv.StatusMissing {
		t.Errorf("sentinel status = %s; want MISSING", lb.Status)
	}
	if lb.QualityScore != 0 {
		t.Errorf("sentinel score = %v; want 0", lb.QualityScore)
	}
	if len(findByRule(lb, sv.RuleSourceUnreadable)) != 1 {
		t.Error("sentinel should carry the unreadable-source finding")
	}
	// The zero-score sentinel weighs into the aggregate.
	if result.OverallQualityScore >= 99 {
		t.Errorf("OverallQualityScore = %v; the sentinel should drag it down", result.OverallQualityScore)
	}
}

func TestValidateStudy_SubjectClosure(t *testing.T) {
	v := newValidator(t)

	ae := table.NewBuilder("AE", "ae").
		Identifiers("STUDYID", "USUBJID", "AESEQ").
		Subject("USUBJID").
		Column("STUDYID", table.Text("STUDY-01"), table.Text("STUDY-01")).
		Column("USUBJID", table.Text("STUDY-01-001"), table.Text("STUDY-01-999")).
		Column("AESEQ", table.Text("1"), table.Text("1")).
		MustBuild()

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	study.AddTable(ae)

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	orphans := findByRule(result.Table("ae"), "SDV-040")
	if len(orphans) != 1 {
		t.Fatalf("subject-closure findings = %d; want 1", len(orphans))
	}
	if orphans[0].Severity != sv.SeverityWarning {
		t.Errorf("severity = %s; want WARNING", orphans[0].Severity)
	}
	if !strings.Contains(orphans[0].Message, "STUDY-01-999") {
		t.Errorf("message %q should name the orphan subject", orphans[0].Message)
	}
}

func TestValidateStudy_MandatoryCoverageEscalates(t *testing.T) {
	v := newValidator(t)

	ae := table.NewBuilder("AE", "ae").
		Identifiers("STUDYID", "USUBJID", "AESEQ").
		Subject("USUBJID").
		MandatoryCoverage(true).
		Column("STUDYID", table.Text("STUDY-01")).
		Column("USUBJID", table.Text("STUDY-01-999")).
		Column("AESEQ", table.Text("1")).
		MustBuild()

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	study.AddTable(ae)

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	orphans := findByRule(result.Table("ae"), "SDV-040")
	if len(orphans) != 1 {
		t.Fatalf("subject-closure findings = %d; want 1", len(orphans))
	}
	if orphans[0].Severity != sv.SeverityError {
		t.Errorf("severity = %s; want ERROR for mandatory coverage", orphans[0].Severity)
	}
	if result.Table("ae").Status != sv.StatusReview {
		t.Errorf("ae status = %s; want REVIEW", result.Table("ae").Status)
	}
}

func TestValidateStudy_AnchorOverride(t *testing.T) {
	v := newValidator(t)

	// The anchor lives in a non-default domain for this study.
	anchor := table.NewBuilder("SUBJ", "subjects").
		Identifiers("USUBJID").
		Subject("USUBJID").
		Cardinality(table.OneRowPerSubject).
		Column("USUBJID", table.Text("P-1"), table.Text("P-2")).
		Column("RFSTDTC", table.Text("2024-01-01"), table.Text("2024-01-02")).
		Column("RFENDTC", table.Text("2024-06-01"), table.Text("2024-06-02")).
		MustBuild()
	ae := table.NewBuilder("AE", "ae").
		Identifiers("USUBJID", "AESEQ").
		Subject("USUBJID").
		Column("USUBJID", table.Text("P-9")).
		Column("AESEQ", table.Text("1")).
		MustBuild()

	study := sv.NewStudy("STUDY-02")
	study.AnchorDomain = "SUBJ"
	study.AddTable(anchor)
	study.AddTable(ae)

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	if n := len(findByRule(result.Table("ae"), "SDV-040")); n != 1 {
		t.Errorf("subject-closure findings = %d; want 1", n)
	}
	// The configured default anchor (DM) is absent, but the override
	// found one, so no skip notice may appear.
	for _, name := range result.TableNames() {
		if n := len(findByRule(result.Table(name), "SDV-043")); n != 0 {
			t.Errorf("table %s carries %d skip notices; want 0", name, n)
		}
	}
}

func TestValidateStudy_MissingAnchorIsAudible(t *testing.T) {
	v := newValidator(t)

	ae := table.NewBuilder("AE", "ae").
		Identifiers("USUBJID", "AESEQ").
		Subject("USUBJID").
		Column("USUBJID", table.Text("P-1")).
		Column("AESEQ", table.Text("1")).
		MustBuild()

	study := sv.NewStudy("STUDY-03")
	study.AddTable(ae)

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	skips := 0
	for _, name := range result.TableNames() {
		skips += len(findByRule(result.Table(name), "SDV-043"))
	}
	if skips != 1 {
		t.Errorf("skip notices = %d; want exactly 1", skips)
	}
}

func TestValidateStudy_CrossDomainDisabled(t *testing.T) {
	v := newValidator(t, sv.WithCrossDomain(false))

	ae := table.NewBuilder("AE", "ae").
		Identifiers("USUBJID", "AESEQ").
		Subject("USUBJID").
		Column("USUBJID", table.Text("STUDY-01-999")).
		Column("AESEQ", table.Text("1")).
		MustBuild()

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	study.AddTable(ae)

	result, err := v.ValidateStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}
	for _, name := range result.TableNames() {
		for _, f := range result.Table(name).Findings {
			if f.Category == sv.CategoryCrossDomain {
				t.Errorf("table %s carries cross-domain finding %s with checks disabled", name, f.RuleID)
			}
		}
	}
}

func TestValidateStudy_SerialMatchesParallel(t *testing.T) {
	tables := func() []*table.Table {
		dm := cleanDemographics(8)
		ae := table.NewBuilder("AE", "ae").
			Identifiers("STUDYID", "USUBJID", "AESEQ").
			Subject("USUBJID").
			Column("STUDYID", table.Text("STUDY-01"), table.Text("STUDY-01")).
			Column("USUBJID", table.Text("STUDY-01-001"), table.Text("STUDY-01-002")).
			Column("AESEQ", table.Text("1"), table.Text("1")).
			Column("AESTDTC", table.Text("2024-02-01"), table.Text("2024-03-01")).
			Column("AEENDTC", table.Text("2024-02-10"), table.Text("2024-03-05")).
			MustBuild()
		return []*table.Table{dm, ae}
	}

	run := func(parallel bool) *sv.StudyResult {
		v := newValidator(t, sv.WithParallelTables(parallel), sv.WithPooling(false))
		study := sv.NewStudy("STUDY-01")
		for _, tbl := range tables() {
			study.AddTable(tbl)
		}
		result, err := v.ValidateStudy(context.Background(), study)
		if err != nil {
			t.Fatalf("ValidateStudy failed: %v", err)
		}
		return result
	}

	serial := run(false)
	parallel := run(true)

	if serial.OverallQualityScore != parallel.OverallQualityScore {
		t.Errorf("score diverged: serial %v, parallel %v",
			serial.OverallQualityScore, parallel.OverallQualityScore)
	}
	if serial.Readiness != parallel.Readiness {
		t.Errorf("readiness diverged: serial %s, parallel %s",
			serial.Readiness, parallel.Readiness)
	}
	for _, name := range serial.TableNames() {
		s, p := serial.Table(name), parallel.Table(name)
		if p == nil {
			t.Fatalf("parallel run lost table %s", name)
		}
		if s.FindingCount() != p.FindingCount() {
			t.Errorf("table %s finding count diverged: serial %d, parallel %d",
				name, s.FindingCount(), p.FindingCount())
		}
	}
}

func TestValidateStream(t *testing.T) {
	v := newValidator(t)

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	study.MarkMissing("LB", "lb", "file is truncated")

	agg := AggregateStream(v.ValidateStream(context.Background(), study))

	if agg.Summary == nil {
		t.Fatal("stream should deliver the study summary")
	}
	if agg.TablesValidated != 2 {
		t.Errorf("TablesValidated = %d; want 2", agg.TablesValidated)
	}
	if agg.TablesMissing != 1 {
		t.Errorf("TablesMissing = %d; want 1", agg.TablesMissing)
	}
	if agg.Summary.FilesValidated != 2 {
		t.Errorf("summary FilesValidated = %d; want 2", agg.Summary.FilesValidated)
	}
}

// TestValidateStream_SkipNoticeParity checks that the streaming path
// delivers the missing-anchor skip notice exactly like ValidateStudy does:
// the notice carries no table name, so it must reach the summary through
// the routing fallback instead of being dropped.
func TestValidateStream_SkipNoticeParity(t *testing.T) {
	v := newValidator(t)

	build := func() *sv.Study {
		ae := table.NewBuilder("AE", "ae").
			Identifiers("USUBJID", "AESEQ").
			Subject("USUBJID").
			Column("USUBJID", table.Text("P-1")).
			Column("AESEQ", table.Text("1")).
			MustBuild()
		study := sv.NewStudy("STUDY-05")
		study.AddTable(ae)
		return study
	}

	batch, err := v.ValidateStudy(context.Background(), build())
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}
	agg := AggregateStream(v.ValidateStream(context.Background(), build()))
	if agg.Summary == nil {
		t.Fatal("stream should deliver the study summary")
	}

	skips := func(r *sv.StudyResult) int {
		n := 0
		for _, name := range r.TableNames() {
			n += len(findByRule(r.Table(name), "SDV-043"))
		}
		return n
	}
	if b, s := skips(batch), skips(agg.Summary); b != 1 || s != 1 {
		t.Errorf("skip notices: batch=%d stream=%d; want 1 each", b, s)
	}
}

// TestValidateStream_CrossDomainScoreParity checks that summary results
// touched by cross-domain findings are re-scored on the streaming path,
// so the streamed quality score matches ValidateStudy's.
func TestValidateStream_CrossDomainScoreParity(t *testing.T) {
	v := newValidator(t)

	build := func() *sv.Study {
		ae := table.NewBuilder("AE", "ae").
			Identifiers("STUDYID", "USUBJID", "AESEQ").
			Subject("USUBJID").
			Column("STUDYID", table.Text("STUDY-01"), table.Text("STUDY-01")).
			Column("USUBJID", table.Text("STUDY-01-001"), table.Text("STUDY-01-999")).
			Column("AESEQ", table.Text("1"), table.Text("1")).
			MustBuild()
		study := sv.NewStudy("STUDY-01")
		study.AddTable(cleanDemographics(4))
		study.AddTable(ae)
		return study
	}

	batch, err := v.ValidateStudy(context.Background(), build())
	if err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}
	agg := AggregateStream(v.ValidateStream(context.Background(), build()))
	if agg.Summary == nil {
		t.Fatal("stream should deliver the study summary")
	}

	want := batch.Table("ae")
	got := agg.Summary.Table("ae")
	if want == nil || got == nil {
		t.Fatal("both results must carry the ae table")
	}
	if n := len(findByRule(got, "SDV-040")); n != 1 {
		t.Fatalf("streamed subject-closure findings = %d; want 1", n)
	}
	if got.QualityScore != want.QualityScore {
		t.Errorf("streamed ae score = %v, batch = %v; want equal", got.QualityScore, want.QualityScore)
	}
	if got.Status != want.Status {
		t.Errorf("streamed ae status = %s, batch = %s; want equal", got.Status, want.Status)
	}
}

// TestValidateStream_ReviewThreshold checks that the streaming path uses
// the configured review-warning threshold when re-deriving the status of
// a summary result that picked up a cross-domain warning.
func TestValidateStream_ReviewThreshold(t *testing.T) {
	v := newValidator(t, sv.WithReviewWarningThreshold(1))

	ae := table.NewBuilder("AE", "ae").
		Identifiers("STUDYID", "USUBJID", "AESEQ").
		Subject("USUBJID").
		Column("STUDYID", table.Text("STUDY-01"), table.Text("STUDY-01")).
		Column("USUBJID", table.Text("STUDY-01-001"), table.Text("STUDY-01-999")).
		Column("AESEQ", table.Text("1"), table.Text("1")).
		MustBuild()
	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	study.AddTable(ae)

	agg := AggregateStream(v.ValidateStream(context.Background(), study))
	if agg.Summary == nil {
		t.Fatal("stream should deliver the study summary")
	}

	got := agg.Summary.Table("ae")
	if got == nil {
		t.Fatal("summary lacks ae")
	}
	if got.Status != sv.StatusReview {
		t.Errorf("streamed ae status = %s; one warning must force REVIEW at threshold 1", got.Status)
	}
}

func TestMetrics_Recorded(t *testing.T) {
	v := newValidator(t)

	study := sv.NewStudy("STUDY-01")
	study.AddTable(cleanDemographics(4))
	if _, err := v.ValidateStudy(context.Background(), study); err != nil {
		t.Fatalf("ValidateStudy failed: %v", err)
	}

	m := v.Metrics()
	if m.TablesTotal() != 1 {
		t.Errorf("TablesTotal = %d; want 1", m.TablesTotal())
	}
	if m.StudiesTotal() != 1 {
		t.Errorf("StudiesTotal = %d; want 1", m.StudiesTotal())
	}
}

func TestClose(t *testing.T) {
	v := newValidator(t)
	if err := v.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
