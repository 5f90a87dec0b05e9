// Package loader reads the datasets a study manifest declares into tables.
//
// A per-study manifest (YAML) maps file patterns to domain metadata:
// domain code, identifier columns, subject column, cardinality, expected
// record count, and per-column type declarations. The loader resolves the
// patterns against a data directory, reads every matched file (CSV or
// XLSX), and produces one Table per readable file. Declared files that
// cannot be read are recorded on the Study as missing sources; they never
// abort the load.
//
// Files are read concurrently, bounded by WithParallelism.
//
// Example usage:
//
//	manifest, err := loader.LoadManifest("data/manifest.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ld := loader.New(manifest, "data", loader.WithLogger(logger))
//	study, err := ld.Load(ctx)
package loader
