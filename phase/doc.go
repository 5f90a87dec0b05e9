// Package phase provides concrete validation phase implementations.
//
// Each phase validates one aspect of a study table:
//   - profile: Computes the summary statistics the scorer reads
//   - structure: Evaluates structural rules (identifiers, duplicates, types)
//   - business: Evaluates business rules (dates, plausibility ranges)
//   - terminology: Checks values against bound controlled vocabularies
//   - crossdomain: Checks consistency across a study's tables
//
// Phases implement the pipeline.Phase interface and can be registered
// with a Pipeline for execution. Rule-driven phases evaluate each rule
// inside a recovery guard, so one misconfigured rule degrades to an
// informational finding instead of aborting the table.
package phase
