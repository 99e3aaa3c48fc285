package world

import "testing"

func TestIndexRoundTrip(t *testing.T) {
	cases := []ChunkPos{
		{0, 0},
		{1, 0},
		{0, 1},
		{-1, 0},
		{0, -1},
		{-1, -1},
		{1, -1},
		{-1, 1},
		{1000, -1000},
		{-32768, 32767},
	}
	for _, pos := range cases {
		idx := Index(pos)
		got := IndexInv(idx)
		if got != pos {
			t.Fatalf("Index/IndexInv round trip failed for %v: got %v (idx=%d)", pos, got, idx)
		}
	}
}

func TestIndexDistinctForDistinctPositions(t *testing.T) {
	seen := make(map[int64]ChunkPos)
	for x := int32(-10); x <= 10; x++ {
		for z := int32(-10); z <= 10; z++ {
			pos := ChunkPos{x, z}
			idx := Index(pos)
			if prev, ok := seen[idx]; ok && prev != pos {
				t.Fatalf("collision: %v and %v both map to index %d", prev, pos, idx)
			}
			seen[idx] = pos
		}
	}
}

func TestChunkPosAdd(t *testing.T) {
	p := ChunkPos{3, -2}
	got := p.Add(-1, 5)
	if got != (ChunkPos{2, 3}) {
		t.Fatalf("Add: expected {2,3}, got %v", got)
	}
}
