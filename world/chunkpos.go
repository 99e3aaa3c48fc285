package world

// ChunkPos is a chunk's coordinate pair, X and Z mirroring the teacher's
// column coordinate naming (spec.md's (cx, cy)). ChunkPos is comparable and
// usable directly as a map key; Index below provides the packed-integer
// encoding used by the hot neighbor-lookup path.
type ChunkPos [2]int32

// X returns the first coordinate.
func (p ChunkPos) X() int32 { return p[0] }

// Z returns the second coordinate.
func (p ChunkPos) Z() int32 { return p[1] }

// Add returns the position offset by (dx, dz).
func (p ChunkPos) Add(dx, dz int32) ChunkPos {
	return ChunkPos{p[0] + dx, p[1] + dz}
}

// zigzag maps a signed integer onto the non-negative integers bijectively:
// 0, -1, 1, -2, 2, ... -> 0, 1, 2, 3, 4, ...
func zigzag(v int32) int64 {
	n := int64(v)
	return (n << 1) ^ (n >> 63)
}

// unzigzag is the inverse of zigzag.
func unzigzag(v int64) int32 {
	return int32((v >> 1) ^ -(v & 1))
}

// cantorPair implements the standard Cantor pairing function for two
// non-negative integers, as named in the design notes.
func cantorPair(a, b int64) int64 {
	return (a+b)*(a+b+1)/2 + b
}

// cantorUnpair inverts cantorPair.
func cantorUnpair(c int64) (int64, int64) {
	// w is the largest integer such that w*(w+1)/2 <= c.
	w := int64((isqrt(8*uint64(c)+1) - 1) / 2)
	t := w * (w + 1) / 2
	b := c - t
	a := w - b
	return a, b
}

func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// Index returns a bijective packed-integer encoding of a chunk position,
// built from the Cantor pairing of the zig-zag encodings of X and Z. It is
// the key fed into the intintmap-backed neighbor index in ChunkManager.
func Index(pos ChunkPos) int64 {
	return cantorPair(zigzag(pos[0]), zigzag(pos[1]))
}

// IndexInv inverts Index.
func IndexInv(idx int64) ChunkPos {
	xx, zz := cantorUnpair(idx)
	return ChunkPos{unzigzag(xx), unzigzag(zz)}
}
