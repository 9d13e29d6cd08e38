package store

import (
	"context"

	"github.com/RedisLabsModules/countminsketch/pkg/datastructs/shardedmap"
	"github.com/RedisLabsModules/countminsketch/pkg/hash"
)

const defaultShards = 64

type entry struct {
	kind Kind
	data []byte
}

// Memory is an in-process Store. Each key's shard lock is held for the
// whole callback, so Update is exclusive per key and View is shared.
type Memory struct {
	m *shardedmap.Map[string, entry]
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: shardedmap.New[string, entry](defaultShards, hash.Sum64String)}
}

// Update implements Store. fn works on a private copy of the bytes so a
// failed callback leaves the stored value exactly as it was.
func (s *Memory) Update(ctx context.Context, key string, fn func(*Value) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.m.Compute(key, func(old entry, exists bool) (entry, bool, error) {
		v := &Value{kind: KindEmpty}
		if exists {
			v.kind = old.kind
			v.data = append([]byte(nil), old.data...)
		}
		if err := fn(v); err != nil {
			return old, exists, err
		}
		if v.kind == KindEmpty {
			return old, exists, nil
		}
		if v.kind == KindOther {
			return old, true, nil
		}
		return entry{kind: KindString, data: v.data}, true, nil
	})
}

// View implements Store. fn sees the stored bytes directly.
func (s *Memory) View(ctx context.Context, key string, fn func(*Value) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.m.Read(key, func(e entry, exists bool) error {
		if !exists {
			return fn(&Value{kind: KindEmpty})
		}
		return fn(&Value{kind: e.kind, data: e.data})
	})
}

// SetOther stores a non-string value under key, replacing whatever was there.
func (s *Memory) SetOther(key string) {
	s.m.Set(key, entry{kind: KindOther})
}

// Delete removes key.
func (s *Memory) Delete(key string) {
	s.m.Del(key)
}

// Len returns the number of stored keys.
func (s *Memory) Len() int {
	return s.m.Len()
}
