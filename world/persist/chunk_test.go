package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"

	"github.com/fallingsand/engine/world"
)

func newReadyChunk(pos world.ChunkPos) *world.Chunk {
	side := int(world.Side)
	pixels := make([]world.MaterialInstance, side*side)
	background := make([]world.MaterialInstance, side*side)
	for i := range pixels {
		pixels[i] = world.MaterialInstance{
			Material: world.MaterialID(i % 7),
			Class:    world.PhysicsClass(i % 3),
			Color:    world.RGBA{R: byte(i), G: byte(i * 2), B: byte(i * 3), A: 0xFF},
			Light:    [4]float32{0.1, 0.2, 0.3, 0.4},
		}
	}
	return world.NewGenerated(pos, pixels, background)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	pos := world.ChunkPos{3, -7}
	c := newReadyChunk(pos)

	if err := Save(root, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	pixels, background, ok, err := Load(root, pos)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true after a successful save")
	}
	if len(pixels) != len(c.Pixels()) || len(background) != len(c.Background()) {
		t.Fatalf("length mismatch after round trip")
	}
	for i := range pixels {
		if pixels[i] != c.Pixels()[i] {
			t.Fatalf("pixel %d mismatch: got %+v want %+v", i, pixels[i], c.Pixels()[i])
		}
	}
	for i := range background {
		if background[i] != c.Background()[i] {
			t.Fatalf("background %d mismatch: got %+v want %+v", i, background[i], c.Background()[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	root := t.TempDir()
	_, _, ok, err := Load(root, world.ChunkPos{1, 1})
	if err != nil {
		t.Fatalf("Load of a missing file should not error: %v", err)
	}
	if ok {
		t.Fatalf("Load of a missing file should report ok=false")
	}
}

func TestLoadSizeMismatchFallsBack(t *testing.T) {
	root := t.TempDir()
	pos := world.ChunkPos{0, 0}

	dir := filepath.Join(root, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var raw []byte
	raw = appendHeader(raw, 1, 1) // wrong: not Side*Side
	raw = appendInstances(raw, []world.MaterialInstance{{}})
	raw = appendInstances(raw, []world.MaterialInstance{{}})
	compressed := snappy.Encode(nil, raw)

	if err := os.WriteFile(Path(root, pos), compressed, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, ok, err := Load(root, pos)
	if err != nil {
		t.Fatalf("Load with size mismatch should not error (fallback path), got: %v", err)
	}
	if ok {
		t.Fatalf("Load with size mismatch should report ok=false so the caller regenerates")
	}
}

func TestSaveRejectsChunkWithoutPixels(t *testing.T) {
	root := t.TempDir()
	c := world.NewEmpty(world.ChunkPos{0, 0})
	if err := Save(root, c); err == nil {
		t.Fatalf("Save should reject a chunk with no pixel storage installed")
	}
}
