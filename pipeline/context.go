// Package pipeline provides the validation pipeline infrastructure.
package pipeline

import (
	"sync"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/dates"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/service"
	"github.com/gosdtm/validator/table"
)

// Context holds all state needed during validation of a single table.
// It is passed through all validation phases and provides shared access to
// the table data, the applicable rules, and the accumulated result.
//
// Context instances are pooled for efficiency. Use AcquireContext() and
// Release() to manage them properly.
type Context struct {
	// Table is the table under validation
	Table *table.Table

	// Study maps domain codes to sibling tables. It is populated only for
	// the study-scope pass; per-table phases see nil.
	Study map[string]*table.Table

	// StudyResults maps domain codes to per-table results during the
	// study-scope pass so findings can be routed to the affected tables.
	StudyResults map[string]*sv.TableResult

	// Rules holds the rules applicable to the table's domain
	Rules []rule.Rule

	// Services provides external lookups such as codelist resolution
	Services *service.Services

	// Dates is the shared date parser with its parse cache
	Dates *dates.Parser

	// Result accumulates findings for the table
	Result *sv.TableResult

	// Options holds engine options visible to phases
	Options *sv.Options

	// MaxFindings stops phase execution once the result holds this many
	// findings. Zero means unlimited; quality runs normally want every
	// finding.
	MaxFindings int

	// mu protects concurrent access during parallel phase execution
	mu sync.RWMutex

	// Metadata for tracking
	metadata map[string]any
}

// contextPool holds reusable Context instances.
var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			Rules:    make([]rule.Rule, 0, 16),
			metadata: make(map[string]any, 8),
		}
	},
}

// AcquireContext gets a Context from the pool.
// Call Release() when done to return it to the pool.
func AcquireContext() *Context {
	ctx := contextPool.Get().(*Context)
	ctx.Reset()
	return ctx
}

// Release returns the Context to the pool.
// After calling Release, the Context should not be used.
func (c *Context) Release() {
	if c == nil {
		return
	}

	// Don't return contexts with oversized metadata maps
	if len(c.metadata) <= 64 {
		contextPool.Put(c)
	}
}

// Reset clears the context for reuse.
func (c *Context) Reset() {
	c.Table = nil
	c.Study = nil
	c.StudyResults = nil
	c.Rules = c.Rules[:0]
	c.Services = nil
	c.Dates = nil
	c.Result = nil
	c.Options = nil
	c.MaxFindings = 0

	// Clear the map without reallocating
	for k := range c.metadata {
		delete(c.metadata, k)
	}
}

// SetMetadata stores a value in the context metadata.
// Thread-safe for use during parallel phase execution.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	c.metadata[key] = value
	c.mu.Unlock()
}

// GetMetadata retrieves a value from the context metadata.
// Thread-safe for use during parallel phase execution.
func (c *Context) GetMetadata(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.metadata[key]
	c.mu.RUnlock()
	return v, ok
}

// AddFinding adds a finding to the result.
// Thread-safe for use during parallel phase execution.
func (c *Context) AddFinding(f sv.Finding) {
	if c.Result != nil {
		c.Result.AddFinding(f)
	}
}

// AddFindings adds multiple findings to the result.
// Thread-safe for use during parallel phase execution.
func (c *Context) AddFindings(findings []sv.Finding) {
	if c.Result != nil {
		c.Result.AddFindings(findings)
	}
}

// ShouldStop returns true if validation should stop (max findings reached).
func (c *Context) ShouldStop() bool {
	if c.MaxFindings <= 0 || c.Result == nil {
		return false
	}
	return c.Result.FindingCount() >= c.MaxFindings
}

// DomainCode returns the domain code of the table under validation.
func (c *Context) DomainCode() string {
	if c.Table == nil {
		return ""
	}
	return c.Table.DomainCode()
}

// HasStudy returns true if the context carries the full study view.
// Cross-domain phases only run when this is true.
func (c *Context) HasStudy() bool {
	return len(c.Study) > 0
}

// SiblingTable returns another table of the study by domain code.
func (c *Context) SiblingTable(domainCode string) (*table.Table, bool) {
	t, ok := c.Study[domainCode]
	return t, ok
}

// ResultFor returns the accumulated result for a domain during the
// study-scope pass.
func (c *Context) ResultFor(domainCode string) (*sv.TableResult, bool) {
	r, ok := c.StudyResults[domainCode]
	return r, ok
}

// Clone creates a shallow copy of the context.
// The new context shares the same table data but has an independent result.
func (c *Context) Clone() *Context {
	clone := AcquireContext()
	clone.Table = c.Table
	clone.Study = c.Study
	clone.StudyResults = c.StudyResults
	clone.Rules = append(clone.Rules, c.Rules...)
	clone.Services = c.Services
	clone.Dates = c.Dates
	clone.Options = c.Options
	clone.MaxFindings = c.MaxFindings

	// Note: Result is NOT copied - caller should set a new result if needed
	return clone
}

// NewContext creates a new Context (non-pooled).
// Prefer AcquireContext() for better performance.
func NewContext() *Context {
	return &Context{
		Rules:    make([]rule.Rule, 0, 16),
		metadata: make(map[string]any, 8),
	}
}

// ReleaseContext returns a Context to the pool.
// This is a convenience function equivalent to ctx.Release().
func ReleaseContext(ctx *Context) {
	if ctx != nil {
		ctx.Release()
	}
}
