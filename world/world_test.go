package world

import (
	"context"
	"testing"
	"time"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	mgr := NewChunkManager(64)
	loaders := NewLoaderSet()
	reg := NewRegistry()
	return New(discardLogger(), mgr, loaders, nil, reg)
}

func insertGeneratedChunk(w *World, pos ChunkPos) *Chunk {
	c := NewGenerated(pos, make([]MaterialInstance, pixelCount), make([]MaterialInstance, pixelCount))
	w.manager.Insert(c)
	return c
}

func TestChunkAndLocalFlooring(t *testing.T) {
	cases := []struct {
		x, y         int32
		wantPos      ChunkPos
		wantLX, wantLY int32
	}{
		{0, 0, ChunkPos{0, 0}, 0, 0},
		{99, 99, ChunkPos{0, 0}, 99, 99},
		{100, 0, ChunkPos{1, 0}, 0, 0},
		{-1, -1, ChunkPos{-1, -1}, 99, 99},
		{-100, -100, ChunkPos{-1, -1}, 0, 0},
		{-101, 0, ChunkPos{-2, 0}, 99, 0},
	}
	for _, c := range cases {
		pos, lx, ly := chunkAndLocal(c.x, c.y)
		if pos != c.wantPos || lx != c.wantLX || ly != c.wantLY {
			t.Fatalf("chunkAndLocal(%d,%d): got (%v,%d,%d), want (%v,%d,%d)",
				c.x, c.y, pos, lx, ly, c.wantPos, c.wantLX, c.wantLY)
		}
	}
}

func TestPixelGetSetRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	insertGeneratedChunk(w, ChunkPos{0, 0})

	sand := MaterialInstance{Material: 3, Class: Sand, Color: RGBA{R: 1, G: 2, B: 3, A: 255}}
	if err := w.PixelSet(55, 55, sand); err != nil {
		t.Fatalf("PixelSet: %v", err)
	}
	got, err := w.PixelGet(55, 55)
	if err != nil {
		t.Fatalf("PixelGet: %v", err)
	}
	if got != sand {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, sand)
	}

	// A write into an unloaded neighboring chunk must fail cleanly.
	if err := w.PixelSet(155, 55, sand); err != ErrPositionUnloaded {
		t.Fatalf("expected ErrPositionUnloaded writing into an unloaded chunk, got %v", err)
	}
}

func TestPixelGetUnloadedPosition(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.PixelGet(0, 0)
	if err != ErrPositionUnloaded {
		t.Fatalf("expected ErrPositionUnloaded, got %v", err)
	}
}

func TestRaycastFindsMatch(t *testing.T) {
	w := newTestWorld(t)
	insertGeneratedChunk(w, ChunkPos{0, 0})

	target := MaterialInstance{Material: 9, Class: Solid}
	if err := w.PixelSet(50, 10, target); err != nil {
		t.Fatalf("PixelSet: %v", err)
	}

	x, y, m, found := Raycast(w, 50, 0, 50, 20, func(mi MaterialInstance) bool {
		return mi.Material == 9
	})
	if !found {
		t.Fatalf("expected raycast to find the target material")
	}
	if x != 50 || y != 10 {
		t.Fatalf("expected hit at (50,10), got (%d,%d)", x, y)
	}
	if m.Material != target.Material {
		t.Fatalf("hit material mismatch: got %v want %v", m.Material, target.Material)
	}
}

func TestRaycastNoMatchReturnsFalse(t *testing.T) {
	w := newTestWorld(t)
	insertGeneratedChunk(w, ChunkPos{0, 0})

	_, _, _, found := Raycast(w, 0, 0, 10, 10, func(mi MaterialInstance) bool { return false })
	if found {
		t.Fatalf("expected no match when predicate always rejects")
	}
}

func TestRaycastSameStartAndEnd(t *testing.T) {
	w := newTestWorld(t)
	insertGeneratedChunk(w, ChunkPos{0, 0})

	target := MaterialInstance{Material: 4, Class: Solid}
	if err := w.PixelSet(20, 20, target); err != nil {
		t.Fatalf("PixelSet: %v", err)
	}

	x, y, _, found := Raycast(w, 20, 20, 20, 20, func(mi MaterialInstance) bool { return mi.Material == 4 })
	if !found || x != 20 || y != 20 {
		t.Fatalf("expected a degenerate (p1==p2) raycast to test its own cell, got found=%v (%d,%d)", found, x, y)
	}
}

func TestDisplaceFindsNearestAir(t *testing.T) {
	w := newTestWorld(t)
	insertGeneratedChunk(w, ChunkPos{0, 0})

	stone := MaterialInstance{Material: 2, Class: Solid}
	// Fill the center cell so Displace must look outward.
	if err := w.PixelSet(50, 50, stone); err != nil {
		t.Fatalf("PixelSet: %v", err)
	}

	sand := MaterialInstance{Material: 3, Class: Sand}
	if ok := w.Displace(50, 50, sand); !ok {
		t.Fatalf("expected Displace to find an air cell near (50,50)")
	}

	placed, err := w.PixelGet(50, 50)
	if err != nil {
		t.Fatalf("PixelGet: %v", err)
	}
	if placed.Material == sand.Material {
		t.Fatalf("Displace should not overwrite the originally occupied cell")
	}
}

func TestDisplaceReturnsFalseWhenFullyBlocked(t *testing.T) {
	w := newTestWorld(t)
	c := insertGeneratedChunk(w, ChunkPos{0, 0})
	stone := MaterialInstance{Material: 2, Class: Solid}
	for i := range c.Pixels() {
		c.Pixels()[i] = stone
	}
	if ok := w.Displace(50, 50, MaterialInstance{Material: 3, Class: Sand}); ok {
		t.Fatalf("expected Displace to fail when every reachable cell is solid")
	}
}

func TestTxClosedAfterExecReturns(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var stashed *Tx
	w.Exec(func(tx *Tx) {
		stashed = tx
		_ = tx.Manager()
	})

	// The Tx handed to a closure must not be usable after Exec returns.
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected a panic using a Tx after its Exec call returned")
			}
			msg, ok := r.(string)
			if !ok || msg != TxClosedPanicMessage {
				t.Fatalf("expected panic %q, got %v", TxClosedPanicMessage, r)
			}
		}()
		stashed.Manager()
	}()
}

func TestExecRunsOnOrchestratorGoroutine(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Exec(func(tx *Tx) {
			tx.Manager().Insert(NewEmpty(ChunkPos{1, 1}))
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Exec did not return in time; orchestrator goroutine may not be draining the queue")
	}

	if !w.manager.Has(ChunkPos{1, 1}) {
		t.Fatalf("expected the chunk inserted inside Exec to be visible afterward")
	}
}
