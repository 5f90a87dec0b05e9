// Package specs provides the embedded default rule and codelist packs.
//
// One directory per supported SDTM IG version holds the YAML documents the
// registry falls back to when a study supplies no custom packs:
//   - rules.yaml: the default rule pack
//   - codelists.yaml: the default controlled-terminology pack
//
// Usage:
//
//	data, err := specs.RulePack(sv.IG34)
//	if err != nil {
//	    return err
//	}
//	pack, err := rule.ParsePack(data)
package specs

import (
	"embed"
	"fmt"

	sv "github.com/gosdtm/validator"
)

// Embedded pack files for each IG version
//
//go:embed ig32/*.yaml
var IG32Packs embed.FS

//go:embed ig33/*.yaml
var IG33Packs embed.FS

//go:embed ig34/*.yaml
var IG34Packs embed.FS

// PacksFS returns the embedded filesystem and directory name for an IG
// version. The returned directory name should be used as a prefix when
// reading files.
func PacksFS(version sv.StandardVersion) (embed.FS, string, error) {
	switch version {
	case sv.IG32:
		return IG32Packs, "ig32", nil
	case sv.IG33:
		return IG33Packs, "ig33", nil
	case sv.IG34:
		return IG34Packs, "ig34", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported standard version: %s", version)
	}
}

// ListFiles returns the list of available pack files for an IG version.
func ListFiles(version sv.StandardVersion) ([]string, error) {
	fs, dir, err := PacksFS(version)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

// ReadFile reads a pack file from the embedded specs for a given version.
func ReadFile(version sv.StandardVersion, filename string) ([]byte, error) {
	fs, dir, err := PacksFS(version)
	if err != nil {
		return nil, err
	}

	path := dir + "/" + filename
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

// HasFile checks if a pack file exists in the embedded specs for a given
// version.
func HasFile(version sv.StandardVersion, filename string) bool {
	fs, dir, err := PacksFS(version)
	if err != nil {
		return false
	}

	path := dir + "/" + filename
	_, err = fs.ReadFile(path)
	return err == nil
}

// RulePack returns the version's default rule pack document.
func RulePack(version sv.StandardVersion) ([]byte, error) {
	name := version.RulePackFile()
	if name == "" {
		return nil, fmt.Errorf("unsupported standard version: %s", version)
	}
	return ReadFile(version, name)
}

// CodelistPack returns the version's default codelist pack document.
func CodelistPack(version sv.StandardVersion) ([]byte, error) {
	name := version.CodelistPackFile()
	if name == "" {
		return nil, fmt.Errorf("unsupported standard version: %s", version)
	}
	return ReadFile(version, name)
}
