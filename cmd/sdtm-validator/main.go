// Package main implements the sdtm-validator CLI tool. It wires the
// loader, the validation engine, and two JSON output documents together;
// the engine's verdict becomes the process exit code.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/engine"
	"github.com/gosdtm/validator/loader"
	"github.com/gosdtm/validator/registry"
)

const (
	version = "0.1.0"
	usage   = `sdtm-validator - SDTM dataset quality validator

Usage:
  sdtm-validator [options] -data <dir>

Examples:
  sdtm-validator -data ./datasets -summary summary.json -findings findings.json
  sdtm-validator -data ./datasets -manifest study.yaml -version 3.3
  sdtm-validator -data ./datasets -rules sponsor-rules.yaml -strict
  sdtm-validator -data ./datasets -text

Exit codes:
  0  transformation readiness is READY or CONDITIONAL
  1  transformation readiness is NOT_READY
  2  usage or configuration error

Options:
`

	exitOK       = 0
	exitNotReady = 1
	exitConfig   = 2
)

// Config holds CLI configuration.
type Config struct {
	DataDir       string
	StudyID       string
	ManifestPath  string
	SummaryPath   string
	FindingsPath  string
	Version       string
	RulePacks     []string
	CodelistPacks []string
	Workers       int
	Strict        bool
	Lenient       bool
	Text          bool
	Verbose       bool
	ShowVersion   bool
}

// FindingOutput is one row of the detailed-findings document.
type FindingOutput struct {
	Table    string   `json:"table"`
	Domain   string   `json:"domain"`
	RuleID   string   `json:"rule_id"`
	Severity string   `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Rows     int      `json:"affected_row_count"`
	RowKeys  []string `json:"affected_row_keys,omitempty"`
	Check    string   `json:"check,omitempty"`
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("sdtm-validator v%s\n", version)
		os.Exit(exitOK)
	}

	if config.DataDir == "" {
		flag.Usage()
		os.Exit(exitConfig)
	}

	os.Exit(run(config))
}

func parseFlags() *Config {
	config := &Config{}

	var rulePacks, codelistPacks string

	flag.StringVar(&config.DataDir, "data", "", "Directory holding the study's dataset files")
	flag.StringVar(&config.StudyID, "study", "", "Study identifier (overrides the manifest's study_id)")
	flag.StringVar(&config.ManifestPath, "manifest", "", "Manifest path (default <data>/manifest.yaml)")
	flag.StringVar(&config.SummaryPath, "summary", "", "Write the study summary document to this path")
	flag.StringVar(&config.FindingsPath, "findings", "", "Write the detailed findings document to this path")
	flag.StringVar(&config.Version, "version", "3.4", "SDTM IG version (3.2, 3.3, 3.4)")
	flag.StringVar(&rulePacks, "rules", "", "Custom rule pack path(s), comma-separated, layered over the defaults")
	flag.StringVar(&codelistPacks, "codelists", "", "Custom codelist pack path(s), comma-separated")
	flag.IntVar(&config.Workers, "workers", 0, "Worker count for parallel table validation (0 = NumCPU)")
	flag.BoolVar(&config.Strict, "strict", false, "Strict preset: lower warning tolerance, READY needs 98")
	flag.BoolVar(&config.Lenient, "lenient", false, "Lenient preset for exploratory runs on raw extracts")
	flag.BoolVar(&config.Text, "text", false, "Echo a per-table summary to stdout")
	flag.BoolVar(&config.Verbose, "verbose", false, "Verbose (debug-level) logging")
	flag.BoolVar(&config.ShowVersion, "v", false, "Show version")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	if rulePacks != "" {
		config.RulePacks = splitPaths(rulePacks)
	}
	if codelistPacks != "" {
		config.CodelistPacks = splitPaths(codelistPacks)
	}
	if config.ManifestPath == "" && config.DataDir != "" {
		config.ManifestPath = filepath.Join(config.DataDir, "manifest.yaml")
	}

	return config
}

func splitPaths(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(config *Config) int {
	log, err := newLogger(config.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		return exitConfig
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is harmless

	if config.Strict && config.Lenient {
		log.Error("presets -strict and -lenient are mutually exclusive")
		return exitConfig
	}

	igVersion := sv.StandardVersion(config.Version)
	if !igVersion.IsValid() {
		log.Error("unsupported SDTM IG version", zap.String("version", config.Version))
		return exitConfig
	}

	manifest, err := loader.LoadManifest(config.ManifestPath)
	if err != nil {
		log.Error("failed to load manifest", zap.String("path", config.ManifestPath), zap.Error(err))
		return exitConfig
	}
	if config.StudyID != "" {
		manifest.StudyID = config.StudyID
	}

	ctx := context.Background()

	opts := engineOptions(config)
	v, err := engine.NewWithPacks(ctx, igVersion, registry.ResolveOptions{
		RulePacks:     config.RulePacks,
		CodelistPacks: config.CodelistPacks,
	}, opts...)
	if err != nil {
		log.Error("failed to initialize validator", zap.Error(err))
		return exitConfig
	}

	log.Info("validator ready",
		zap.String("study", manifest.StudyID),
		zap.String("ig_version", igVersion.String()),
		zap.Strings("packs", v.PackNames()))

	study, err := loader.New(manifest, config.DataDir, loader.WithLogger(log)).Load(ctx)
	if err != nil {
		log.Error("failed to load study", zap.String("dir", config.DataDir), zap.Error(err))
		return exitConfig
	}

	result, err := v.ValidateStudy(ctx, study)
	if err != nil {
		log.Error("validation failed", zap.Error(err))
		return exitConfig
	}

	log.Info("validation complete",
		zap.String("study", result.StudyID),
		zap.Int("files", result.FilesValidated),
		zap.Int("records", result.TotalRecords),
		zap.Float64("score", result.OverallQualityScore),
		zap.String("readiness", string(result.Readiness)))

	if config.SummaryPath != "" {
		if err := writeSummary(config.SummaryPath, result); err != nil {
			log.Error("failed to write summary document", zap.Error(err))
			return exitConfig
		}
	}
	if config.FindingsPath != "" {
		if err := writeFindings(config.FindingsPath, result); err != nil {
			log.Error("failed to write findings document", zap.Error(err))
			return exitConfig
		}
	}
	if config.Text {
		printSummary(result)
	}

	if result.Readiness == sv.ReadinessNotReady {
		return exitNotReady
	}
	return exitOK
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
	}
	return cfg.Build()
}

func engineOptions(config *Config) []sv.Option {
	var opts []sv.Option
	switch {
	case config.Strict:
		opts = sv.StrictOptions()
	case config.Lenient:
		opts = sv.LenientOptions()
	}
	if config.Workers > 0 {
		opts = append(opts, sv.WithWorkerCount(config.Workers))
	}
	return opts
}

// writeSummary serializes the full study result as the summary document.
func writeSummary(path string, result *sv.StudyResult) error {
	for _, name := range result.TableNames() {
		result.Table(name).Sort()
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeFile(path, data)
}

// writeFindings serializes every finding flat, in canonical order.
func writeFindings(path string, result *sv.StudyResult) error {
	findings := result.AllFindings()
	out := make([]FindingOutput, 0, len(findings))
	for _, f := range findings {
		out = append(out, FindingOutput{
			Table:    f.TableName,
			Domain:   f.DomainCode,
			RuleID:   f.RuleID,
			Severity: string(f.Severity),
			Category: string(f.Category),
			Message:  f.Message,
			Rows:     f.AffectedRowCount,
			RowKeys:  f.AffectedRowKeys,
			Check:    f.Check,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printSummary(result *sv.StudyResult) {
	fmt.Printf("Study %s: %d files, %d records, score %.1f, %s\n",
		result.StudyID, result.FilesValidated, result.TotalRecords,
		result.OverallQualityScore, result.Readiness)

	for _, name := range result.TableNames() {
		r := result.Table(name)
		fmt.Printf("  %-12s %-8s score %5.1f  critical=%d error=%d warning=%d\n",
			name, r.Status, r.QualityScore,
			r.CriticalCount(), r.ErrorCount(), r.WarningCount())
	}
}
