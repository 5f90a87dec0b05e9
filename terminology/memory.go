package terminology

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gosdtm/validator/service"
)

// InMemoryStore implements service.CodelistResolver over registered
// codelists. Registration happens at engine construction; lookups after
// that are read-only and safe across table workers.
type InMemoryStore struct {
	mu       sync.RWMutex
	byColumn map[string][]*service.Codelist
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byColumn: make(map[string][]*service.Codelist)}
}

// Register adds a codelist. Several codelists may share a column when they
// target different domains; the first registered codelist applying to the
// requested domain wins at lookup time.
func (s *InMemoryStore) Register(cl *service.Codelist) error {
	if cl == nil {
		return fmt.Errorf("register codelist: nil codelist")
	}
	if cl.Column() == "" {
		return fmt.Errorf("register codelist %s: no column", cl.Name())
	}
	if !cl.Policy().IsValid() {
		return fmt.Errorf("register codelist %s: unknown policy %q", cl.Name(), cl.Policy())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byColumn[cl.Column()] = append(s.byColumn[cl.Column()], cl)
	return nil
}

// RegisterAll adds every codelist, stopping at the first failure.
func (s *InMemoryStore) RegisterAll(lists []*service.Codelist) error {
	for _, cl := range lists {
		if err := s.Register(cl); err != nil {
			return err
		}
	}
	return nil
}

// CodelistFor implements service.CodelistResolver.
func (s *InMemoryStore) CodelistFor(ctx context.Context, domainCode, column string) (*service.Codelist, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cl := range s.byColumn[column] {
		if cl.AppliesTo(domainCode) {
			return cl, nil
		}
	}
	return nil, service.ErrNotFound
}

// Codelists implements service.CodelistLister, returning every registered
// codelist sorted by column then name.
func (s *InMemoryStore) Codelists(ctx context.Context) ([]*service.Codelist, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*service.Codelist
	for _, lists := range s.byColumn {
		out = append(out, lists...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Column() != out[j].Column() {
			return out[i].Column() < out[j].Column()
		}
		return out[i].Name() < out[j].Name()
	})
	return out, nil
}

// Len returns the number of registered codelists.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, lists := range s.byColumn {
		n += len(lists)
	}
	return n
}

var (
	_ service.CodelistResolver = (*InMemoryStore)(nil)
	_ service.CodelistLister   = (*InMemoryStore)(nil)
)
