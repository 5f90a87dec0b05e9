package specs

import (
	"testing"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/terminology"
)

func TestPacksFS(t *testing.T) {
	tests := []struct {
		version sv.StandardVersion
		dir     string
	}{
		{sv.IG32, "ig32"},
		{sv.IG33, "ig33"},
		{sv.IG34, "ig34"},
	}

	for _, tt := range tests {
		fs, dir, err := PacksFS(tt.version)
		if err != nil {
			t.Fatalf("PacksFS(%s) failed: %v", tt.version, err)
		}
		if dir != tt.dir {
			t.Errorf("PacksFS(%s) dir = %q; want %q", tt.version, dir, tt.dir)
		}

		data, err := fs.ReadFile(dir + "/rules.yaml")
		if err != nil {
			t.Fatalf("failed to read %s/rules.yaml: %v", dir, err)
		}
		if len(data) == 0 {
			t.Errorf("%s/rules.yaml is empty", dir)
		}
	}
}

func TestPacksFS_Unsupported(t *testing.T) {
	if _, _, err := PacksFS(sv.StandardVersion("9.9")); err == nil {
		t.Error("PacksFS(9.9) error = nil; want error")
	}
}

func TestListFiles(t *testing.T) {
	files, err := ListFiles(sv.IG34)
	if err != nil {
		t.Fatalf("ListFiles(IG34) failed: %v", err)
	}

	fileSet := make(map[string]bool)
	for _, f := range files {
		fileSet[f] = true
	}
	for _, expected := range []string{"rules.yaml", "codelists.yaml"} {
		if !fileSet[expected] {
			t.Errorf("expected file %s not found in %v", expected, files)
		}
	}
}

func TestReadFile_Unknown(t *testing.T) {
	if _, err := ReadFile(sv.IG32, "nonexistent.yaml"); err == nil {
		t.Error("ReadFile(nonexistent) error = nil; want error")
	}
}

func TestHasFile(t *testing.T) {
	if !HasFile(sv.IG32, "codelists.yaml") {
		t.Error("HasFile returned false for existing file")
	}
	if HasFile(sv.IG32, "nonexistent.yaml") {
		t.Error("HasFile returned true for nonexistent file")
	}
}

// Every embedded rule pack must parse, validate, and build a registry.
func TestRulePacksParse(t *testing.T) {
	for _, version := range []sv.StandardVersion{sv.IG32, sv.IG33, sv.IG34} {
		data, err := RulePack(version)
		if err != nil {
			t.Fatalf("RulePack(%s) failed: %v", version, err)
		}

		pack, err := rule.ParsePack(data)
		if err != nil {
			t.Fatalf("ParsePack(%s) failed: %v", version, err)
		}
		if pack.Version != version.String() {
			t.Errorf("%s pack version = %q; want %q", version, pack.Version, version)
		}

		reg, err := pack.Registry()
		if err != nil {
			t.Fatalf("Registry(%s) failed: %v", version, err)
		}
		if reg.Len() == 0 {
			t.Errorf("%s registry is empty", version)
		}
		if _, ok := reg.Rule("SDV-001"); !ok {
			t.Errorf("%s pack has no SDV-001", version)
		}
	}
}

// Every embedded codelist pack must parse and build a store.
func TestCodelistPacksParse(t *testing.T) {
	for _, version := range []sv.StandardVersion{sv.IG32, sv.IG33, sv.IG34} {
		data, err := CodelistPack(version)
		if err != nil {
			t.Fatalf("CodelistPack(%s) failed: %v", version, err)
		}

		pack, err := terminology.ParsePack(data)
		if err != nil {
			t.Fatalf("ParsePack(%s) failed: %v", version, err)
		}
		if pack.Version != version.String() {
			t.Errorf("%s pack version = %q; want %q", version, pack.Version, version)
		}

		store, err := pack.Store()
		if err != nil {
			t.Fatalf("Store(%s) failed: %v", version, err)
		}
		if store.Len() == 0 {
			t.Errorf("%s codelist store is empty", version)
		}
	}
}

// Later IG versions extend the default rule pack, never shrink it.
func TestRulePackGrowth(t *testing.T) {
	lens := make(map[sv.StandardVersion]int)
	for _, version := range []sv.StandardVersion{sv.IG32, sv.IG33, sv.IG34} {
		data, err := RulePack(version)
		if err != nil {
			t.Fatalf("RulePack(%s) failed: %v", version, err)
		}
		pack, err := rule.ParsePack(data)
		if err != nil {
			t.Fatalf("ParsePack(%s) failed: %v", version, err)
		}
		lens[version] = len(pack.Rules)
	}

	if lens[sv.IG33] < lens[sv.IG32] || lens[sv.IG34] < lens[sv.IG33] {
		t.Errorf("rule pack sizes shrink across versions: %v", lens)
	}
}

// The demographic race codelist registers the ethnicity vocabulary as
// foreign so cross-axis entries are caught.
func TestRaceForeignVocabulary(t *testing.T) {
	data, err := CodelistPack(sv.IG34)
	if err != nil {
		t.Fatalf("CodelistPack(IG34) failed: %v", err)
	}
	pack, err := terminology.ParsePack(data)
	if err != nil {
		t.Fatalf("ParsePack failed: %v", err)
	}

	for _, cs := range pack.Codelists {
		if cs.Name != "RACE" {
			continue
		}
		cl := cs.Codelist()
		for _, f := range cl.Foreign() {
			if f.Name() == "ETHNIC" && f.Contains("HISPANIC") {
				return
			}
		}
	}
	t.Error("RACE codelist has no foreign ETHNIC vocabulary containing HISPANIC")
}
