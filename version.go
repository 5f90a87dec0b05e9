package sdtmvalidator

// StandardVersion represents an SDTM Implementation Guide version.
type StandardVersion string

// Supported SDTM IG versions.
const (
	// IG32 is SDTM Implementation Guide v3.2
	IG32 StandardVersion = "3.2"
	// IG33 is SDTM Implementation Guide v3.3
	IG33 StandardVersion = "3.3"
	// IG34 is SDTM Implementation Guide v3.4
	IG34 StandardVersion = "3.4"
)

// String returns the version string.
func (v StandardVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported IG version.
func (v StandardVersion) IsValid() bool {
	switch v {
	case IG32, IG33, IG34:
		return true
	default:
		return false
	}
}

// CTRelease returns the controlled-terminology release date that the
// version's default codelist pack is drawn from, or "" for unknown versions.
func (v StandardVersion) CTRelease() string {
	cfg, ok := getVersionConfig(v)
	if !ok {
		return ""
	}
	return cfg.CTRelease
}

// RulePackFile returns the file name of the version's embedded default
// rule pack, or "" for unknown versions.
func (v StandardVersion) RulePackFile() string {
	cfg, ok := getVersionConfig(v)
	if !ok {
		return ""
	}
	return cfg.RulePack
}

// CodelistPackFile returns the file name of the version's embedded default
// codelist pack, or "" for unknown versions.
func (v StandardVersion) CodelistPackFile() string {
	cfg, ok := getVersionConfig(v)
	if !ok {
		return ""
	}
	return cfg.CodelistPack
}

// versionConfig holds version-specific configuration.
type versionConfig struct {
	// RulePack is the embedded default rule pack for this version
	RulePack string

	// CodelistPack is the embedded default codelist pack for this version
	CodelistPack string

	// CTRelease is the controlled-terminology release the codelist pack
	// was drawn from
	CTRelease string
}

// versionConfigs maps IG versions to their configurations.
var versionConfigs = map[StandardVersion]versionConfig{
	IG32: {
		RulePack:     "rules.yaml",
		CodelistPack: "codelists.yaml",
		CTRelease:    "2014-09-26",
	},
	IG33: {
		RulePack:     "rules.yaml",
		CodelistPack: "codelists.yaml",
		CTRelease:    "2018-12-21",
	},
	IG34: {
		RulePack:     "rules.yaml",
		CodelistPack: "codelists.yaml",
		CTRelease:    "2021-12-17",
	},
}

// getVersionConfig returns the configuration for an IG version.
func getVersionConfig(v StandardVersion) (versionConfig, bool) {
	cfg, ok := versionConfigs[v]
	return cfg, ok
}
