package service

import (
	"context"
	"errors"

	"github.com/gosdtm/validator/cache"
)

// ErrNotFound is returned when no codelist is bound to a column.
var ErrNotFound = errors.New("codelist not found")

// ErrNotSupported is returned when a resolver cannot serve an operation.
var ErrNotSupported = errors.New("operation not supported")

// CodelistChain implements CodelistResolver by trying resolvers in order:
// sponsor-specific packs first, embedded standard defaults last.
type CodelistChain struct {
	resolvers []CodelistResolver
}

// NewCodelistChain creates a chain over the given resolvers.
func NewCodelistChain(resolvers ...CodelistResolver) *CodelistChain {
	return &CodelistChain{resolvers: resolvers}
}

// CodelistFor tries each resolver until one succeeds.
func (c *CodelistChain) CodelistFor(ctx context.Context, domainCode, column string) (*Codelist, error) {
	for _, r := range c.resolvers {
		cl, err := r.CodelistFor(ctx, domainCode, column)
		if err == nil && cl != nil {
			return cl, nil
		}
		// Continue to the next resolver only when this one had no binding.
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Add appends a resolver to the chain.
func (c *CodelistChain) Add(r CodelistResolver) {
	c.resolvers = append(c.resolvers, r)
}

// CachingCodelistResolver wraps a CodelistResolver with an LRU cache.
// Misses are cached too: a column without a codelist is asked about once
// per table otherwise.
type CachingCodelistResolver struct {
	resolver CodelistResolver
	cache    *cache.Cache[string, *Codelist]
}

// NewCachingCodelistResolver creates a caching wrapper with the given
// cache capacity.
func NewCachingCodelistResolver(resolver CodelistResolver, capacity int) *CachingCodelistResolver {
	return &CachingCodelistResolver{
		resolver: resolver,
		cache:    cache.New[string, *Codelist](capacity),
	}
}

// CodelistFor checks the cache first, then the wrapped resolver. A nil
// cached value records a known miss and resolves to ErrNotFound.
func (c *CachingCodelistResolver) CodelistFor(ctx context.Context, domainCode, column string) (*Codelist, error) {
	key := domainCode + "|" + column

	if cl, ok := c.cache.Get(key); ok {
		if cl == nil {
			return nil, ErrNotFound
		}
		return cl, nil
	}

	cl, err := c.resolver.CodelistFor(ctx, domainCode, column)
	if errors.Is(err, ErrNotFound) {
		c.cache.Set(key, nil)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, cl)
	return cl, nil
}

// CacheStats exposes the wrapper's cache statistics.
func (c *CachingCodelistResolver) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// NullCodelistResolver is the no-op default: every lookup is ErrNotFound,
// so terminology checking quietly covers nothing.
type NullCodelistResolver struct{}

// CodelistFor always returns ErrNotFound.
func (NullCodelistResolver) CodelistFor(_ context.Context, _, _ string) (*Codelist, error) {
	return nil, ErrNotFound
}

// Services aggregates the lookup services handed to the pipeline.
type Services struct {
	Codelists CodelistResolver
}

// NewServices creates a Services with null implementations.
func NewServices() *Services {
	return &Services{Codelists: NullCodelistResolver{}}
}

// WithCodelists sets the codelist resolver.
func (s *Services) WithCodelists(r CodelistResolver) *Services {
	s.Codelists = r
	return s
}

var (
	_ CodelistResolver = (*CodelistChain)(nil)
	_ CodelistResolver = (*CachingCodelistResolver)(nil)
	_ CodelistResolver = NullCodelistResolver{}
)
