package registry

import (
	"fmt"
	"os"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/specs"
	"github.com/gosdtm/validator/terminology"
)

// LoadRulePack reads and parses a rule pack document from disk.
func LoadRulePack(path string) (*rule.Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}
	p, err := rule.ParsePack(data)
	if err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}
	return p, nil
}

// LoadCodelistPack reads and parses a codelist pack document from disk.
func LoadCodelistPack(path string) (*terminology.Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codelist pack %s: %w", path, err)
	}
	p, err := terminology.ParsePack(data)
	if err != nil {
		return nil, fmt.Errorf("codelist pack %s: %w", path, err)
	}
	return p, nil
}

// EmbeddedRulePack parses the embedded default rule pack for a version.
func EmbeddedRulePack(version sv.StandardVersion) (*rule.Pack, error) {
	data, err := specs.RulePack(version)
	if err != nil {
		return nil, err
	}
	p, err := rule.ParsePack(data)
	if err != nil {
		return nil, fmt.Errorf("embedded rule pack %s: %w", version, err)
	}
	return p, nil
}

// EmbeddedCodelistPack parses the embedded default codelist pack for a
// version.
func EmbeddedCodelistPack(version sv.StandardVersion) (*terminology.Pack, error) {
	data, err := specs.CodelistPack(version)
	if err != nil {
		return nil, err
	}
	p, err := terminology.ParsePack(data)
	if err != nil {
		return nil, fmt.Errorf("embedded codelist pack %s: %w", version, err)
	}
	return p, nil
}
