// Package terminology stores controlled vocabularies and resolves them
// for the terminology validation phase.
//
// The in-memory store implements service.CodelistResolver. Codelists
// arrive as versioned YAML packs, either embedded in the binary (the
// standard's published terminology) or loaded from sponsor directories,
// and are combined with service.CodelistChain so sponsor packs shadow the
// embedded defaults.
package terminology
