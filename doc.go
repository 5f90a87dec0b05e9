// Package sdtmvalidator provides rule-based quality validation for tabular
// clinical-trial datasets being converted into SDTM-style tabulation format.
//
// Given one Table per source domain file, the engine applies structural
// checks, domain business rules, controlled-terminology conformance checks,
// and cross-domain referential checks, then emits severity-classified
// findings, a 0-100 quality score per table, and a study-level
// transformation-readiness verdict.
//
// # Quick Start
//
//	import (
//	    sv "github.com/gosdtm/validator"
//	    "github.com/gosdtm/validator/engine"
//	)
//
//	validator, err := engine.New(ctx, sv.IG34)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	study, err := validator.ValidateStudy(ctx, input)
//	if err != nil {
//	    log.Fatal(err) // configuration error, never a data condition
//	}
//	if study.Readiness == sv.ReadinessNotReady {
//	    for _, f := range study.AllFindings() {
//	        fmt.Println(f)
//	    }
//	}
//
// # Design
//
// Rules are plain data, not code: the Registry maps domains to rule
// definitions (id, category, severity, kind, parameters, message template)
// and the validation checks are generic interpreters over that table.
// Adding a rule or a domain never changes engine control flow.
//
// Data conditions never raise: a malformed cell, an unreadable file, or a
// panicking rule evaluator each become findings on the result. The only
// errors returned by the engine are configuration and programming errors.
//
// Validation of one table has no effect on any other, so per-table
// validation runs concurrently across a bounded worker set. Cross-domain
// checks are a hard synchronization point and start only after every
// per-table result is available.
//
// # Functional Options
//
//	validator, err := engine.New(ctx, sv.IG34,
//	    sv.WithTerminology(true),
//	    sv.WithWorkerCount(runtime.NumCPU()),
//	    sv.WithReadyThreshold(95),
//	    sv.WithRowKeySampleSize(10),
//	)
//
// Correction helpers in the correct package return new Tables rather than
// mutating, so a corrected dataset can be re-validated as an independent,
// reproducible run and diffed against the original.
package sdtmvalidator
