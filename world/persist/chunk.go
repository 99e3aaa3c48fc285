// Package persist implements the on-disk chunk file format described in
// spec.md §6: a binary-serialized {pixels, background} pair of S*S
// MaterialInstance arrays (each instance carries its own color), snappy
// compressed, one file per chunk under <world_root>/chunks/.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/fallingsand/engine/world"
)

// magic identifies the chunk file format; version lets the header be
// extended without breaking the size-mismatch fallback described in
// spec.md §4.5 ("if sizes mismatch, the file is ignored and the chunk is
// generated").
const (
	magic   uint32 = 0x46534e44 // "FSND"
	version uint16 = 1
)

// Path returns the on-disk path for a chunk at pos under root.
func Path(root string, pos world.ChunkPos) string {
	return filepath.Join(root, "chunks", fmt.Sprintf("%d_%d.chunk", pos.X(), pos.Z()))
}

// Save serializes a chunk's pixel and background arrays to its file under
// root, compressed with snappy. It creates the chunks directory if
// necessary and writes via a temp file + rename so a crash mid-write
// cannot corrupt an existing save.
func Save(root string, c *world.Chunk) error {
	if !c.Ready() {
		return fmt.Errorf("persist: chunk %v has no pixel storage", c.Pos)
	}
	dir := filepath.Join(root, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: mkdir: %w", err)
	}

	pixels := c.Pixels()
	background := c.Background()

	raw := make([]byte, 0, len(pixels)*instanceSize*2+16)
	raw = appendHeader(raw, int32(len(pixels)), int32(len(background)))
	raw = appendInstances(raw, pixels)
	raw = appendInstances(raw, background)

	compressed := snappy.Encode(nil, raw)

	final := Path(root, c.Pos)
	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persist: create: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(compressed); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persist: write: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persist: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: close: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}

// Load reads a chunk file for pos under root. ok is false if no file
// exists or if the stored array lengths don't match S*S, in which case
// the caller should fall back to generation (spec.md §4.5).
func Load(root string, pos world.ChunkPos) (pixels, background []world.MaterialInstance, ok bool, err error) {
	p := Path(root, pos)
	data, rerr := os.ReadFile(p)
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("persist: read: %w", rerr)
	}
	raw, derr := snappy.Decode(nil, data)
	if derr != nil {
		return nil, nil, false, fmt.Errorf("persist: decompress: %w", derr)
	}

	pixelLen, bgLen, body, herr := parseHeader(raw)
	if herr != nil {
		return nil, nil, false, herr
	}
	expected := int(world.Side) * int(world.Side)
	if int(pixelLen) != expected || int(bgLen) != expected {
		return nil, nil, false, nil
	}

	pixels, body, err = readInstances(body, int(pixelLen))
	if err != nil {
		return nil, nil, false, err
	}
	background, _, err = readInstances(body, int(bgLen))
	if err != nil {
		return nil, nil, false, err
	}
	return pixels, background, true, nil
}

const instanceSize = 2 /*material*/ + 1 /*class*/ + 4 /*rgba*/ + 16 /*4 float32 light*/

func appendHeader(buf []byte, pixelLen, bgLen int32) []byte {
	var hdr [14]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:6], version)
	binary.LittleEndian.PutUint32(hdr[6:10], uint32(pixelLen))
	binary.LittleEndian.PutUint32(hdr[10:14], uint32(bgLen))
	return append(buf, hdr[:]...)
}

func parseHeader(raw []byte) (pixelLen, bgLen int32, rest []byte, err error) {
	if len(raw) < 14 {
		return 0, 0, nil, fmt.Errorf("persist: truncated header")
	}
	if binary.LittleEndian.Uint32(raw[0:4]) != magic {
		return 0, 0, nil, fmt.Errorf("persist: bad magic")
	}
	if binary.LittleEndian.Uint16(raw[4:6]) != version {
		return 0, 0, nil, fmt.Errorf("persist: unsupported version")
	}
	pixelLen = int32(binary.LittleEndian.Uint32(raw[6:10]))
	bgLen = int32(binary.LittleEndian.Uint32(raw[10:14]))
	return pixelLen, bgLen, raw[14:], nil
}

func appendInstances(buf []byte, in []world.MaterialInstance) []byte {
	for _, m := range in {
		var b [instanceSize]byte
		binary.LittleEndian.PutUint16(b[0:2], uint16(m.Material))
		b[2] = byte(m.Class)
		b[3], b[4], b[5], b[6] = m.Color.R, m.Color.G, m.Color.B, m.Color.A
		for i, f := range m.Light {
			binary.LittleEndian.PutUint32(b[7+i*4:11+i*4], math.Float32bits(f))
		}
		buf = append(buf, b[:]...)
	}
	return buf
}

func readInstances(raw []byte, n int) ([]world.MaterialInstance, []byte, error) {
	need := n * instanceSize
	if len(raw) < need {
		return nil, nil, fmt.Errorf("persist: truncated body: need %d have %d", need, len(raw))
	}
	out := make([]world.MaterialInstance, n)
	for i := 0; i < n; i++ {
		b := raw[i*instanceSize : (i+1)*instanceSize]
		out[i] = world.MaterialInstance{
			Material: world.MaterialID(binary.LittleEndian.Uint16(b[0:2])),
			Class:    world.PhysicsClass(b[2]),
			Color:    world.RGBA{R: b[3], G: b[4], B: b[5], A: b[6]},
		}
		for j := range out[i].Light {
			out[i].Light[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[7+j*4 : 11+j*4]))
		}
	}
	return out, raw[need:], nil
}

