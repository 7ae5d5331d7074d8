package terrain

import (
	"hash/fnv"
	"math/rand"
)

// Stream salts keep the per-purpose random streams independent even when they
// are keyed by the same coordinates.
const (
	saltChunk      uint64 = 0x5f3759df2c1b3c6d
	saltDecoration uint64 = 0x94d049bb133111eb
	saltInstance   uint64 = 0xbf58476d1ce4e5b9
	saltDensity    uint64 = 0x2545f4914f6cdd1d
)

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// hashCoords folds the seed, a salt and any number of integer coordinates
// into one 64-bit value. It is pure: equal inputs always give equal output.
func hashCoords(seed int64, salt uint64, coords ...int) uint64 {
	h := mix64(uint64(seed) ^ salt)
	for _, c := range coords {
		h = mix64(h ^ uint64(int64(c)))
	}
	return h
}

// newRand returns a private generator for one (seed, salt, coords) key. No
// state is shared between calls.
func newRand(seed int64, salt uint64, coords ...int) *rand.Rand {
	return rand.New(rand.NewSource(int64(hashCoords(seed, salt, coords...))))
}

// unitFloat maps a hash to [0, 1).
func unitFloat(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

func nameSalt(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
