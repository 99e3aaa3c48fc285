package world

import "github.com/cespare/xxhash/v2"

// hashChunkSeed derives a per-chunk deterministic seed from the world
// seed and chunk position, used to seed feature-generator RNGs (spec.md
// §4.3: "seed XOR hash(cx, cy)").
func hashChunkSeed(seed int64, cx, cz int32) uint64 {
	var b [8]byte
	putU64(b[:], uint64(uint32(cx))<<32|uint64(uint32(cz)))
	return uint64(seed) ^ xxhash.Sum64(b[:])
}
