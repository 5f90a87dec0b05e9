// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"strconv"
	"sync"
)

// unitSep joins the parts of an internal composite key. It cannot occur in
// CSV or XLSX cell text, so composite keys never collide across columns.
const unitSep = '\x1f'

// KeyBuilder provides efficient, low-allocation row key building.
// It uses a byte buffer that grows as needed and can be reused via sync.Pool.
type KeyBuilder struct {
	buf []byte
}

// keyBuilderPool holds reusable KeyBuilder instances.
var keyBuilderPool = sync.Pool{
	New: func() any {
		return &KeyBuilder{
			buf: make([]byte, 0, 128),
		}
	},
}

// AcquireKeyBuilder gets a KeyBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquireKeyBuilder() *KeyBuilder {
	kb := keyBuilderPool.Get().(*KeyBuilder)
	kb.Reset()
	return kb
}

// Release returns the KeyBuilder to the pool.
func (b *KeyBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 4096 {
		keyBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *KeyBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the key.
func (b *KeyBuilder) Len() int {
	return len(b.buf)
}

// WriteString appends a string to the key.
func (b *KeyBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a byte to the key.
func (b *KeyBuilder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// AppendField appends an identifier value joined by '/' when the buffer is
// not empty. Used for human-readable row keys in findings.
func (b *KeyBuilder) AppendField(value string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, '/')
	}
	b.buf = append(b.buf, value...)
}

// AppendUnit appends a value joined by the unit separator when the buffer
// is not empty. Used for collision-free map keys during duplicate scans.
func (b *KeyBuilder) AppendUnit(value string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, unitSep)
	}
	b.buf = append(b.buf, value...)
}

// AppendOrdinal appends a 1-based row position as "row N".
func (b *KeyBuilder) AppendOrdinal(rowIndex int) {
	b.buf = append(b.buf, "row "...)
	b.buf = strconv.AppendInt(b.buf, int64(rowIndex)+1, 10)
}

// String returns the built key as a string.
// This creates a single allocation for the final string.
func (b *KeyBuilder) String() string {
	return string(b.buf)
}

// Bytes returns the underlying byte slice (no copy).
// The returned slice is only valid until the next modification.
func (b *KeyBuilder) Bytes() []byte {
	return b.buf
}

// BuildKey is a convenience function that builds a key using a callback.
// The KeyBuilder is automatically returned to the pool after the callback.
//
// Example:
//
//	key := pool.BuildKey(func(b *pool.KeyBuilder) {
//	    b.AppendField("STUDY1")
//	    b.AppendField("SUBJ-0001")
//	})
func BuildKey(fn func(*KeyBuilder)) string {
	kb := AcquireKeyBuilder()
	defer kb.Release()
	fn(kb)
	return kb.String()
}

// JoinFields joins identifier values with '/' into a display row key.
func JoinFields(values ...string) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) == 1 {
		return values[0]
	}

	kb := AcquireKeyBuilder()
	defer kb.Release()
	for _, v := range values {
		kb.AppendField(v)
	}
	return kb.String()
}

// CompositeKey joins values with the unit separator into a map key that
// cannot collide with any other combination of cell values.
func CompositeKey(values ...string) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) == 1 {
		return values[0]
	}

	kb := AcquireKeyBuilder()
	defer kb.Release()
	for _, v := range values {
		kb.AppendUnit(v)
	}
	return kb.String()
}

// OrdinalKey returns the fallback row key "row N" for a 0-based row index.
func OrdinalKey(rowIndex int) string {
	kb := AcquireKeyBuilder()
	defer kb.Release()
	kb.AppendOrdinal(rowIndex)
	return kb.String()
}
