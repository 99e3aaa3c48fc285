package world

import "fmt"

// Side is the compile-time chunk side length in pixels (spec.md §3's S).
const Side int32 = 100

// pixelCount is the number of pixels in a single chunk.
const pixelCount = int(Side) * int(Side)

// StateKind is the coarse lifecycle phase of a Chunk (spec.md §3).
type StateKind uint8

const (
	NotGenerated StateKind = iota
	Generating
	Cached
	Active
)

func (k StateKind) String() string {
	switch k {
	case NotGenerated:
		return "NotGenerated"
	case Generating:
		return "Generating"
	case Cached:
		return "Cached"
	case Active:
		return "Active"
	default:
		return "Unknown"
	}
}

// ChunkState is the chunk's position in the NotGenerated -> Generating(k) ->
// Cached <-> Active state machine. Stage is only meaningful when Kind is
// Generating.
type ChunkState struct {
	Kind  StateKind
	Stage int
}

// AtLeast reports whether the state is at or beyond other in the lifecycle
// ordering NotGenerated < Generating(0) < Generating(1) < ... < Cached ==
// Active (Cached and Active are considered equally "generated" for the
// purpose of generation-window readiness checks in spec.md §4.3).
func (s ChunkState) AtLeast(other ChunkState) bool {
	rank := func(s ChunkState) (int, int) {
		switch s.Kind {
		case NotGenerated:
			return 0, 0
		case Generating:
			return 1, s.Stage
		default: // Cached, Active
			return 2, 0
		}
	}
	ka, sa := rank(s)
	kb, sb := rank(other)
	if ka != kb {
		return ka > kb
	}
	return sa >= sb
}

// HasPixels reports whether the chunk has had its base pixel buffers
// installed, i.e. it is Generating or beyond.
func (s ChunkState) HasPixels() bool {
	return s.Kind != NotGenerated
}

// RigidBody is the two-variant lifecycle handle described in spec.md §3.
type RigidBody struct {
	// Active is true when the body is registered with the physics world.
	Active bool
	// Handle identifies the body with the physics world when Active.
	Handle uint64
	// NeedsRemesh is set when a Solid<->non-Solid transition crosses the
	// body's boundary; the orchestrator rebuilds the body on the next tick.
	NeedsRemesh bool
}

// TileEntity is a material-rect footprint with an opaque payload, keyed by
// the chunk-local rectangle it occupies.
type TileEntity struct {
	Footprint Rect
	Data      any
}

// Mesh is the chunk's collision/rendering silhouette: one rectangle
// polyline per horizontal run of solid pixels (Raw), the same runs merged
// vertically into taller rectangles (Simplified), and two triangles per
// raw run (Triangles). See GenerateMesh.
type Mesh struct {
	Raw        [][][2]float64
	Simplified [][][2]float64
	Triangles  [][3][2]float64
}

// Chunk owns one S x S tile of the world: pixels, colors, lights, a
// same-shape background layer, lifecycle state, a dirty rect, an optional
// mesh and rigid-body handle, and tile entities.
//
// A Chunk is exclusively owned by a ChunkManager and is never accessed by
// more than one goroutine at a time except during a simulator phase. There,
// two same-phase tasks can share a neighbor Chunk, but each task reads and
// writes pixels only within a few pixels of its own center chunk, so they
// touch disjoint pixels; dirty-rect updates are applied after the phase on
// a single goroutine (see Simulator.RunTick). No field has its own lock.
type Chunk struct {
	Pos ChunkPos

	state ChunkState

	pixels     []MaterialInstance
	background []MaterialInstance

	dirty         Rect
	graphicsDirty bool

	mesh *Mesh
	body RigidBody

	TileEntities []TileEntity
}

// NewEmpty allocates a chunk at pos with no pixel storage installed; its
// state is NotGenerated.
func NewEmpty(pos ChunkPos) *Chunk {
	return &Chunk{Pos: pos, dirty: EmptyRect()}
}

// State returns the chunk's current lifecycle state.
func (c *Chunk) State() ChunkState { return c.state }

// SetState overwrites the chunk's lifecycle state. Only the orchestrator
// thread may call this.
func (c *Chunk) SetState(s ChunkState) { c.state = s }

// Ready reports whether the chunk holds pixel storage, i.e. is safe to
// index into.
func (c *Chunk) Ready() bool { return c.pixels != nil }

// installGenerated installs base-generator output, transitioning the chunk
// to Generating(0). It is idempotent-unsafe by design: calling it twice
// would leak the old buffers, so callers must only call it once per chunk.
func (c *Chunk) installGenerated(pixels, background []MaterialInstance) {
	c.pixels = pixels
	c.background = background
	c.state = ChunkState{Kind: Generating, Stage: 0}
	c.dirty = Full(Side)
}

// NewGenerated builds a chunk at pos that already holds pixel storage, in
// the Generating(0) state. It is the constructor a restore path (e.g.
// persist.Load's caller) uses to turn raw arrays back into a Chunk without
// going through the generation pipeline.
func NewGenerated(pos ChunkPos, pixels, background []MaterialInstance) *Chunk {
	c := NewEmpty(pos)
	c.installGenerated(pixels, background)
	return c
}

func localIndex(x, y int32) (int, error) {
	if x < 0 || y < 0 || x >= Side || y >= Side {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrInvalidPixelCoord, x, y)
	}
	return int(y*Side + x), nil
}

// At returns the pixel at local (x, y).
func (c *Chunk) At(x, y int32) (MaterialInstance, error) {
	if !c.Ready() {
		return MaterialInstance{}, ErrChunkNotReady
	}
	i, err := localIndex(x, y)
	if err != nil {
		return MaterialInstance{}, err
	}
	return c.pixels[i], nil
}

// AtUnchecked returns the pixel at local (x, y) without bounds checking. The
// caller must guarantee 0 <= x, y < Side; it exists for the simulator's hot
// path where bounds are already known to hold.
func (c *Chunk) AtUnchecked(x, y int32) MaterialInstance {
	return c.pixels[y*Side+x]
}

// SetAtUnchecked writes a pixel at local (x, y) without bounds checking or
// dirty-rect bookkeeping; callers performing a simulated move must still
// extend the dirty rect themselves (see Simulator).
func (c *Chunk) SetAtUnchecked(x, y int32, m MaterialInstance) {
	c.pixels[y*Side+x] = m
}

// BackgroundAt returns the background-layer pixel at local (x, y).
func (c *Chunk) BackgroundAt(x, y int32) (MaterialInstance, error) {
	if !c.Ready() {
		return MaterialInstance{}, ErrChunkNotReady
	}
	i, err := localIndex(x, y)
	if err != nil {
		return MaterialInstance{}, err
	}
	return c.background[i], nil
}

// SetAll writes pixel, color and light from a single MaterialInstance at
// local (x, y): this is the only sanctioned way to write a pixel during
// simulation (spec.md §4.1, §4.4). It marks both the simulation dirty rect
// and the chunk graphics-dirty.
func (c *Chunk) SetAll(x, y int32, m MaterialInstance) error {
	if !c.Ready() {
		return ErrChunkNotReady
	}
	i, err := localIndex(x, y)
	if err != nil {
		return err
	}
	c.pixels[i] = m
	c.dirty = c.dirty.UnionPoint(x, y)
	c.graphicsDirty = true
	return nil
}

// SetColor writes only the color channel at local (x, y). It marks the
// chunk graphics-dirty but does not touch the simulation dirty rect, since
// a color-only write cannot affect simulation (spec.md §4.1, §9).
func (c *Chunk) SetColor(x, y int32, color RGBA) error {
	if !c.Ready() {
		return ErrChunkNotReady
	}
	i, err := localIndex(x, y)
	if err != nil {
		return err
	}
	c.pixels[i].Color = color
	c.graphicsDirty = true
	return nil
}

// Replace calls f with the current pixel at (x, y); if f returns a non-nil
// replacement, it is written via SetAll.
func (c *Chunk) Replace(x, y int32, f func(MaterialInstance) (MaterialInstance, bool)) error {
	cur, err := c.At(x, y)
	if err != nil {
		return err
	}
	next, ok := f(cur)
	if !ok {
		return nil
	}
	return c.SetAll(x, y, next)
}

// Diff is a single sparse pixel update, used by ApplyDiff.
type Diff struct {
	X, Y int32
	M    MaterialInstance
}

// ApplyDiff writes a batch of sparse pixel updates via SetAll.
func (c *Chunk) ApplyDiff(diffs []Diff) error {
	for _, d := range diffs {
		if err := c.SetAll(d.X, d.Y, d.M); err != nil {
			return err
		}
	}
	return nil
}

// MarkDirty marks the chunk graphics-dirty without affecting the
// simulation dirty rect.
func (c *Chunk) MarkDirty() { c.graphicsDirty = true }

// GraphicsDirty reports the graphics-dirty flag without clearing it; see
// ClearGraphicsDirty.
func (c *Chunk) GraphicsDirty() bool { return c.graphicsDirty }

// ClearGraphicsDirty resets the graphics-dirty flag, typically called by a
// renderer collaborator after it has re-uploaded the chunk's colors.
func (c *Chunk) ClearGraphicsDirty() { c.graphicsDirty = false }

// DirtyRect returns the chunk's current simulation dirty rect.
func (c *Chunk) DirtyRect() Rect { return c.dirty }

// SetDirtyRect overwrites the chunk's simulation dirty rect.
func (c *Chunk) SetDirtyRect(r Rect) { c.dirty = r.Clamp(Side) }

// UnionDirtyRect grows the chunk's dirty rect to include r.
func (c *Chunk) UnionDirtyRect(r Rect) { c.dirty = c.dirty.Union(r).Clamp(Side) }

// Mesh returns the chunk's last generated mesh, or nil if none has been
// built yet.
func (c *Chunk) Mesh() *Mesh { return c.mesh }

// SetMesh installs a newly generated mesh.
func (c *Chunk) SetMesh(m *Mesh) { c.mesh = m }

// Body returns the chunk's rigid-body lifecycle handle.
func (c *Chunk) Body() RigidBody { return c.body }

// SetBody overwrites the chunk's rigid-body lifecycle handle.
func (c *Chunk) SetBody(b RigidBody) { c.body = b }

// Pixels returns the chunk's raw pixel buffer. The returned slice aliases
// the chunk's storage and must only be used by the single goroutine
// currently allowed to touch this chunk (see the Chunk doc on aliasing).
func (c *Chunk) Pixels() []MaterialInstance { return c.pixels }

// Background returns the chunk's raw background buffer, aliased like
// Pixels.
func (c *Chunk) Background() []MaterialInstance { return c.background }
