package shardedmap

import (
	"sync"

	"github.com/RedisLabsModules/countminsketch/pkg/utils"
)

// Map is a thread-safe map that uses sharding to minimize lock contention.
// It supports any comparable key type K and any value type V.
type Map[K comparable, V any] struct {
	shards []*lockedShard[K, V]
	mask   uint64
	hasher func(K) uint64
}

type lockedShard[K comparable, V any] struct {
	sync.RWMutex
	data map[K]V

	// Padding keeps neighbouring shards off the same cache line.
	pad [64]byte
}

// New creates a new Sharded Map.
// shards: Number of shards to use. Will be rounded up to the nearest power of 2.
// hashFn: Function to hash the key K into a uint64.
func New[K comparable, V any](shards int, hashFn func(K) uint64) *Map[K, V] {
	if shards <= 0 {
		shards = 256 // Default reasonable value
	}
	numShards := utils.CeilToPowerOfTwo(shards)
	m := &Map[K, V]{
		shards: make([]*lockedShard[K, V], numShards),
		mask:   uint64(numShards - 1),
		hasher: hashFn,
	}

	for i := range m.shards {
		m.shards[i] = &lockedShard[K, V]{
			data: make(map[K]V),
		}
	}
	return m
}

func (m *Map[K, V]) shard(key K) *lockedShard[K, V] {
	return m.shards[m.hasher(key)&m.mask]
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	shard := m.shard(key)

	shard.RLock()
	val, ok := shard.data[key]
	shard.RUnlock()
	return val, ok
}

// Set adds or updates a value in the map.
func (m *Map[K, V]) Set(key K, value V) {
	shard := m.shard(key)

	shard.Lock()
	shard.data[key] = value
	shard.Unlock()
}

// Del removes a value from the map.
func (m *Map[K, V]) Del(key K) {
	shard := m.shard(key)

	shard.Lock()
	delete(shard.data, key)
	shard.Unlock()
}

// Compute runs fn with the key's shard write-locked. fn receives the current
// value and whether it exists, and returns the value to store and whether to
// keep it. Returning keep=false deletes the key. If fn returns an error the
// map is left unchanged.
func (m *Map[K, V]) Compute(key K, fn func(old V, exists bool) (val V, keep bool, err error)) error {
	shard := m.shard(key)

	shard.Lock()
	defer shard.Unlock()

	old, exists := shard.data[key]
	val, keep, err := fn(old, exists)
	if err != nil {
		return err
	}
	if keep {
		shard.data[key] = val
	} else if exists {
		delete(shard.data, key)
	}
	return nil
}

// Read runs fn with the key's shard read-locked.
func (m *Map[K, V]) Read(key K, fn func(val V, exists bool) error) error {
	shard := m.shard(key)

	shard.RLock()
	defer shard.RUnlock()

	val, exists := shard.data[key]
	return fn(val, exists)
}

// Len returns the total number of items in the map.
// Note: This iterates over all shards and locks them individually, so it's not atomic across the whole map.
func (m *Map[K, V]) Len() int {
	total := 0
	for _, shard := range m.shards {
		shard.RLock()
		total += len(shard.data)
		shard.RUnlock()
	}
	return total
}
