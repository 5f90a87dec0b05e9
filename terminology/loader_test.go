package terminology

import (
	"context"
	"testing"

	"github.com/gosdtm/validator/service"
)

const samplePack = `
version: "3.4"
name: test-terminology
codelists:
  - name: SEX
    column: SEX
    domains: [DM]
    policy: exact
    values: [M, F, U, UNDIFFERENTIATED]
  - name: SEVERITY
    column: AESEV
    domains: [AE]
    policy: extensible
    values: [MILD, MODERATE, SEVERE]
  - name: RACE
    column: RACE
    policy: exact
    values: [WHITE, ASIAN, BLACK OR AFRICAN AMERICAN]
    foreign:
      - name: ethnicity terms
        values: [HISPANIC OR LATINO, NOT HISPANIC OR LATINO, HISPANIC]
`

func TestParsePack(t *testing.T) {
	p, err := ParsePack([]byte(samplePack))
	if err != nil {
		t.Fatalf("ParsePack() error = %v", err)
	}

	if p.Version != "3.4" {
		t.Errorf("Version = %q; want 3.4", p.Version)
	}
	if len(p.Codelists) != 3 {
		t.Fatalf("Codelists length = %d; want 3", len(p.Codelists))
	}

	race := p.Codelists[2]
	if race.Policy != service.PolicyExact {
		t.Errorf("RACE policy = %q; want exact", race.Policy)
	}
	if len(race.Foreign) != 1 || race.Foreign[0].Name != "ethnicity terms" {
		t.Errorf("RACE foreign = %v; want one ethnicity registration", race.Foreign)
	}
}

func TestParsePack_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "codelists: ["},
		{"missing column", `
codelists:
  - name: SEX
    policy: exact
    values: [M]
`},
		{"missing values", `
codelists:
  - name: SEX
    column: SEX
    policy: exact
`},
		{"bad policy", `
codelists:
  - name: SEX
    column: SEX
    policy: lenient
    values: [M]
`},
		{"foreign without values", `
codelists:
  - name: RACE
    column: RACE
    policy: exact
    values: [WHITE]
    foreign:
      - name: ethnicity
`},
	}

	for _, tt := range tests {
		if _, err := ParsePack([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: ParsePack() error = nil; want error", tt.name)
		}
	}
}

func TestPack_Store(t *testing.T) {
	p, err := ParsePack([]byte(samplePack))
	if err != nil {
		t.Fatalf("ParsePack() error = %v", err)
	}

	store, err := p.Store()
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d; want 3", store.Len())
	}

	ctx := context.Background()
	cl, err := store.CodelistFor(ctx, "DM", "SEX")
	if err != nil {
		t.Fatalf("CodelistFor(SEX) error = %v", err)
	}
	if !cl.Contains("M") || cl.Contains("m") {
		t.Error("SEX codelist membership wrong; must be case-sensitive")
	}

	race, err := store.CodelistFor(ctx, "DM", "RACE")
	if err != nil {
		t.Fatalf("CodelistFor(RACE) error = %v", err)
	}
	foreign := race.Foreign()
	if len(foreign) != 1 {
		t.Fatalf("Foreign() length = %d; want 1", len(foreign))
	}
	hits := foreign[0].Intersect([]string{"WHITE", "HISPANIC"})
	if len(hits) != 1 || hits[0] != "HISPANIC" {
		t.Errorf("Intersect() = %v; want [HISPANIC]", hits)
	}
}
