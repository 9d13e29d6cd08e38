package sketch

import "math/rand"

const (
	// SeedValue seeds coefficient generation for every new sketch. Sketches of
	// equal depth therefore hash identically across restarts and replicas.
	// The price is that the coefficients are public knowledge: inputs can be
	// crafted to collide, so do not expose a sketch to adversarial items.
	SeedValue int64 = 0

	// hashMask is 2^31 - 1. Coefficients and row hashes live in [0, hashMask].
	hashMask = 2147483647
)

// GenerateSeeds returns depth pairs of affine hash coefficients drawn from a
// source seeded with seed. The same (depth, seed) always yields the same pairs,
// and a shorter depth yields a prefix of a longer one.
func GenerateSeeds(depth int, seed int64) (ha, hb []uint32) {
	src := rand.New(rand.NewSource(seed))
	ha = make([]uint32, depth)
	hb = make([]uint32, depth)
	for i := 0; i < depth; i++ {
		ha[i] = src.Uint32() & hashMask
		hb[i] = src.Uint32() & hashMask
	}
	return ha, hb
}
