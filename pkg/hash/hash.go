package hash

import (
	"github.com/cespare/xxhash/v2"

	"github.com/RedisLabsModules/countminsketch/pkg/utils"
)

// itemSeed is the algorithm-level seed for item hashing. It must never change:
// persisted sketches depend on every item landing in the same cells forever.
const itemSeed = 2147483647

// Sum32 returns a stable 32-bit hash of b.
// It is xxhash64 seeded with a fixed value, folded to 32 bits.
func Sum32(b []byte) uint32 {
	d := xxhash.NewWithSeed(itemSeed)
	_, _ = d.Write(b)
	return fold(d.Sum64())
}

// Sum32String is Sum32 for strings without copying.
func Sum32String(s string) uint32 {
	return Sum32(utils.StringToBytes(s))
}

// Sum64String returns the unseeded xxhash64 of s. Used for shard selection.
func Sum64String(s string) uint64 {
	return xxhash.Sum64String(s)
}

func fold(h uint64) uint32 {
	return uint32(h>>32) ^ uint32(h)
}
