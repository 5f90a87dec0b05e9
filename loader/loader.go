package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/table"
)

// Loader reads every dataset a manifest declares from a data directory.
type Loader struct {
	manifest *Manifest
	dir      string
	log      *zap.Logger
	parallel int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithParallelism bounds how many files are read concurrently.
func WithParallelism(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.parallel = n
		}
	}
}

// New creates a loader for the manifest's datasets under dir.
func New(manifest *Manifest, dir string, opts ...Option) *Loader {
	ld := &Loader{
		manifest: manifest,
		dir:      dir,
		log:      zap.NewNop(),
		parallel: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// declared is one file a manifest entry claimed, readable or not.
type declared struct {
	name  string
	entry *Entry
}

// Load reads every declared file and returns the study: one Table per
// readable file plus a missing-source record for each declared file that
// could not be read. Per-file failures never abort the load; the returned
// error is non-nil only for manifest, directory, or cancellation problems.
func (ld *Loader) Load(ctx context.Context) (*sv.Study, error) {
	if ld.manifest == nil {
		return nil, fmt.Errorf("loader: nil manifest")
	}

	files, err := ld.discover()
	if err != nil {
		return nil, err
	}

	type loaded struct {
		tbl *table.Table
		err error
	}
	results := make([]loaded, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ld.parallel)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			// Only cancellation propagates; file errors stay in the slot.
			if err := gctx.Err(); err != nil {
				return err
			}
			tbl, err := ld.loadOne(f.name, f.entry)
			results[i] = loaded{tbl: tbl, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load study %s: %w", ld.manifest.StudyID, err)
	}

	study := sv.NewStudy(ld.manifest.StudyID)
	study.AnchorDomain = ld.manifest.AnchorDomain

	for i, r := range results {
		f := files[i]
		if r.err != nil {
			ld.log.Warn("source file unreadable",
				zap.String("file", f.name),
				zap.String("domain", f.entry.Domain),
				zap.Error(r.err))
			study.MarkMissing(f.entry.Domain, f.name, r.err.Error())
			continue
		}
		ld.log.Info("table loaded",
			zap.String("file", f.name),
			zap.String("domain", f.entry.Domain),
			zap.Int("rows", r.tbl.NumRows()),
			zap.Int("columns", r.tbl.NumColumns()))
		study.AddTable(r.tbl)
	}

	ld.log.Info("study loaded",
		zap.String("study", study.ID),
		zap.Int("tables", len(study.Tables)),
		zap.Int("missing", len(study.Missing)))
	return study, nil
}

// discover resolves every manifest pattern against the data directory.
// A literal pattern that matches nothing is kept as a declared-but-absent
// file so it surfaces as MISSING; a wildcard pattern matching nothing
// declares nothing. A file claimed by an earlier entry is never re-claimed.
func (ld *Loader) discover() ([]declared, error) {
	if _, err := os.Stat(ld.dir); err != nil {
		return nil, fmt.Errorf("data directory %s: %w", ld.dir, err)
	}
	fsys := os.DirFS(ld.dir)

	var out []declared
	claimed := make(map[string]bool)
	for i := range ld.manifest.Entries {
		e := &ld.manifest.Entries[i]
		matches, err := doublestar.Glob(fsys, e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", e.Pattern, err)
		}
		if len(matches) == 0 && isLiteralPattern(e.Pattern) {
			matches = []string{e.Pattern}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if claimed[m] {
				continue
			}
			claimed[m] = true
			out = append(out, declared{name: m, entry: e})
		}
	}
	return out, nil
}

// loadOne reads a single dataset file into a Table.
func (ld *Loader) loadOne(name string, e *Entry) (*table.Table, error) {
	path := filepath.Join(ld.dir, filepath.FromSlash(name))
	header, rows, err := readGrid(path)
	if err != nil {
		return nil, err
	}
	return buildTable(e, name, header, rows)
}

// isLiteralPattern reports whether the pattern names a single file rather
// than a glob.
func isLiteralPattern(p string) bool {
	return !strings.ContainsAny(p, `*?[{`)
}
