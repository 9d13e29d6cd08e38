// Package store is the key-addressed byte storage that sketches live in.
//
// A Store hands callers one key's value at a time, under either exclusive
// (Update) or shared (View) access. Sketches are never cached between calls:
// every operation re-reads the stored bytes.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// MaxValueSize is the largest value a key may hold. It matches the Redis
// string limit so both backends reject the same sizes.
const MaxValueSize = 512 << 20

var (
	// ErrValueTooLarge is returned by Truncate for sizes outside [0, MaxValueSize].
	ErrValueTooLarge = errors.New("store: value too large")
	// ErrWrongType is returned when a byte operation targets a non-string key.
	ErrWrongType = errors.New("store: key holds a non-string value")
)

// Kind classifies what a key currently holds.
type Kind uint8

const (
	// KindEmpty means the key does not exist.
	KindEmpty Kind = iota
	// KindString is a byte string, possibly a formatted sketch.
	KindString
	// KindOther is any other value type in the host store.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Value is one key's value for the duration of a single Update or View call.
// It must not be retained after the callback returns.
type Value struct {
	kind Kind
	data []byte
}

// NewValue builds a Value. Backends use it to hand stored bytes to callbacks.
func NewValue(kind Kind, data []byte) *Value {
	return &Value{kind: kind, data: data}
}

// Kind reports what the key holds.
func (v *Value) Kind() Kind { return v.kind }

// Bytes returns the current contents. Writes to the slice are writes to the value.
func (v *Value) Bytes() []byte { return v.data }

// Len returns the value length in bytes.
func (v *Value) Len() int { return len(v.data) }

// Truncate resizes the value to exactly size bytes. Growth is zero-filled and the
// existing prefix is preserved. An empty key becomes a string. On error the value
// is left untouched.
func (v *Value) Truncate(size int) error {
	if v.kind == KindOther {
		return ErrWrongType
	}
	if size < 0 || size > MaxValueSize {
		return errors.Wrapf(ErrValueTooLarge, "requested %d bytes", size)
	}

	switch {
	case size <= cap(v.data):
		old := len(v.data)
		v.data = v.data[:size]
		if size > old {
			clear(v.data[old:])
		}
	default:
		grown := make([]byte, size)
		copy(grown, v.data)
		v.data = grown
	}
	v.kind = KindString
	return nil
}

// Store gives per-key exclusive or shared access to byte values.
type Store interface {
	// Update runs fn with exclusive access to key. When fn returns nil and the
	// value is a string, its bytes are persisted. When fn returns an error
	// nothing is persisted.
	Update(ctx context.Context, key string, fn func(*Value) error) error
	// View runs fn with shared access to key. Nothing is persisted; fn must not
	// modify the value.
	View(ctx context.Context, key string, fn func(*Value) error) error
}
