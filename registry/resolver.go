// Package registry resolves the rule and codelist packs a validation run
// uses: the embedded defaults for the requested standard version, optionally
// layered under sponsor-supplied custom packs. Resolution is cached, so
// repeated runs against the same version and pack set parse the documents
// once.
package registry

import (
	"context"
	"fmt"
	"strings"

	sv "github.com/gosdtm/validator"
	"github.com/gosdtm/validator/cache"
	"github.com/gosdtm/validator/rule"
	"github.com/gosdtm/validator/service"
)

// Resolver turns (version, custom pack paths) into a ready rule registry
// and codelist resolver. Safe for concurrent use.
type Resolver struct {
	cache *cache.Cache[string, *Resolved]
}

// NewResolver creates a resolver whose pack cache holds up to capacity
// resolved sets. A non-positive capacity selects a small default.
func NewResolver(capacity int) *Resolver {
	if capacity <= 0 {
		capacity = 16
	}
	return &Resolver{cache: cache.New[string, *Resolved](capacity)}
}

// ResolveOptions configures pack resolution.
type ResolveOptions struct {
	// RulePacks are paths to custom rule pack documents. Packs are
	// consulted in order; the first definition of a rule ID wins and the
	// embedded defaults come last.
	RulePacks []string

	// CodelistPacks are paths to custom codelist pack documents, layered
	// the same way: first binding of a (domain, column) wins, embedded
	// defaults last.
	CodelistPacks []string
}

// DefaultResolveOptions returns options that use only the embedded
// defaults.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{}
}

// Resolved is one immutable resolution result. It is shared between
// callers via the resolver cache and must not be mutated.
type Resolved struct {
	// Version is the standard version the set was resolved for.
	Version sv.StandardVersion

	// Rules is the merged rule registry.
	Rules *rule.Registry

	// Codelists resolves column bindings through the custom packs first,
	// then the embedded defaults.
	Codelists service.CodelistResolver

	// RulePackNames and CodelistPackNames label the source packs in
	// resolution order, for diagnostics.
	RulePackNames     []string
	CodelistPackNames []string
}

// Resolve builds (or returns the cached) rule registry and codelist
// resolver for a standard version plus any custom packs.
func (r *Resolver) Resolve(ctx context.Context, version sv.StandardVersion, opts ResolveOptions) (*Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !version.IsValid() {
		return nil, fmt.Errorf("unsupported standard version: %s", version)
	}

	key := cacheKey(version, opts)
	return r.cache.GetOrCompute(key, func() (*Resolved, error) {
		return resolve(version, opts)
	})
}

// CacheStats exposes the pack cache statistics.
func (r *Resolver) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// cacheKey is order-sensitive: pack precedence depends on listing order.
func cacheKey(version sv.StandardVersion, opts ResolveOptions) string {
	return version.String() +
		"|" + strings.Join(opts.RulePacks, ",") +
		"|" + strings.Join(opts.CodelistPacks, ",")
}

func resolve(version sv.StandardVersion, opts ResolveOptions) (*Resolved, error) {
	out := &Resolved{Version: version}

	// Custom rule packs in listed order, embedded defaults last.
	packs := make([]*rule.Pack, 0, len(opts.RulePacks)+1)
	for _, path := range opts.RulePacks {
		p, err := LoadRulePack(path)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	defaults, err := EmbeddedRulePack(version)
	if err != nil {
		return nil, err
	}
	packs = append(packs, defaults)

	reg, err := mergeRulePacks(packs)
	if err != nil {
		return nil, err
	}
	out.Rules = reg
	for _, p := range packs {
		out.RulePackNames = append(out.RulePackNames, packLabel(p.Name, p.Version))
	}

	// Codelist stores chain in the same order.
	resolvers := make([]service.CodelistResolver, 0, len(opts.CodelistPacks)+1)
	for _, path := range opts.CodelistPacks {
		p, err := LoadCodelistPack(path)
		if err != nil {
			return nil, err
		}
		store, err := p.Store()
		if err != nil {
			return nil, fmt.Errorf("codelist pack %s: %w", path, err)
		}
		resolvers = append(resolvers, store)
		out.CodelistPackNames = append(out.CodelistPackNames, packLabel(p.Name, p.Version))
	}
	defaultPack, err := EmbeddedCodelistPack(version)
	if err != nil {
		return nil, err
	}
	defaultStore, err := defaultPack.Store()
	if err != nil {
		return nil, fmt.Errorf("embedded codelist pack %s: %w", version, err)
	}
	resolvers = append(resolvers, defaultStore)
	out.CodelistPackNames = append(out.CodelistPackNames, packLabel(defaultPack.Name, defaultPack.Version))

	out.Codelists = service.NewCodelistChain(resolvers...)
	return out, nil
}

// mergeRulePacks merges packs by rule ID with earlier packs winning.
func mergeRulePacks(packs []*rule.Pack) (*rule.Registry, error) {
	reg := rule.NewRegistry()
	for _, p := range packs {
		for _, r := range p.Rules {
			if _, exists := reg.Rule(r.ID); exists {
				continue
			}
			if err := reg.Register(r); err != nil {
				return nil, fmt.Errorf("rule pack %s: %w", p.Name, err)
			}
		}
	}
	return reg, nil
}

func packLabel(name, version string) string {
	if name == "" {
		name = "unnamed"
	}
	if version == "" {
		return name
	}
	return name + "@" + version
}
