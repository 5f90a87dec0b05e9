package pool

import "sync"

// rowKeySlicePool provides pooled []string for sampling affected row keys.
var rowKeySlicePool = sync.Pool{
	New: func() any {
		s := make([]string, 0, 16)
		return &s
	},
}

// AcquireRowKeySlice gets a string slice from the pool.
func AcquireRowKeySlice() *[]string {
	s := rowKeySlicePool.Get().(*[]string)
	*s = (*s)[:0]
	return s
}

// ReleaseRowKeySlice returns a string slice to the pool.
func ReleaseRowKeySlice(s *[]string) {
	if s == nil {
		return
	}
	// Don't return oversized slices
	if cap(*s) <= 256 {
		rowKeySlicePool.Put(s)
	}
}

// cellBufPool provides pooled []byte for file readers and cell scratch space.
var cellBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// AcquireCellBuf gets a byte slice from the pool.
func AcquireCellBuf() *[]byte {
	b := cellBufPool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// ReleaseCellBuf returns a byte slice to the pool.
func ReleaseCellBuf(b *[]byte) {
	if b == nil {
		return
	}
	// Don't return oversized slices
	if cap(*b) <= 65536 {
		cellBufPool.Put(b)
	}
}

// CountPool provides pooled maps for duplicate scans and other per-table
// counting passes.
type CountPool[K comparable, V any] struct {
	pool sync.Pool
	cap  int
}

// NewCountPool creates a new pool for maps with the given initial capacity.
func NewCountPool[K comparable, V any](initialCap int) *CountPool[K, V] {
	return &CountPool[K, V]{
		pool: sync.Pool{
			New: func() any {
				return make(map[K]V, initialCap)
			},
		},
		cap: initialCap,
	}
}

// Acquire gets a map from the pool.
func (p *CountPool[K, V]) Acquire() map[K]V {
	return p.pool.Get().(map[K]V)
}

// Release returns a map to the pool after clearing it.
func (p *CountPool[K, V]) Release(m map[K]V) {
	if m == nil {
		return
	}
	// Don't return oversized maps; the entry count has to be read before
	// the map is cleared.
	oversized := len(m) > p.cap*4
	for k := range m {
		delete(m, k)
	}
	if !oversized {
		p.pool.Put(m)
	}
}
