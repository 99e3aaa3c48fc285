package world

import (
	"context"
	"log/slog"
)

// TxClosedPanicMessage is the panic raised by a Tx method once its
// enclosing Exec call has returned, e.g. because a caller stashed the Tx
// in a closure that escaped the call. internal/txguard recovers exactly
// this message.
const TxClosedPanicMessage = "world.Tx: use of transaction after transaction finishes is not permitted"

// Tx is a handle to the World valid only for the duration of the
// closure passed to World.Exec. It exists so that callers outside the
// orchestrator goroutine (console commands, network handlers) can only
// ever touch the manager, loaders and handler from the single goroutine
// that owns them, mirroring the teacher's world.Tx pattern.
type Tx struct {
	w      *World
	closed bool
}

func (tx *Tx) checkOpen() {
	if tx.closed {
		panic(TxClosedPanicMessage)
	}
}

// Manager returns the world's chunk manager.
func (tx *Tx) Manager() *ChunkManager { tx.checkOpen(); return tx.w.manager }

// Loaders returns the world's loader set.
func (tx *Tx) Loaders() *LoaderSet { tx.checkOpen(); return tx.w.loaders }

// Handler returns the world's orchestrator.
func (tx *Tx) Handler() *ChunkHandler { tx.checkOpen(); return tx.w.handler }

// World is the facade exposed to external collaborators: it owns the
// manager, handler, loader set and particle bag, and exposes tick,
// raycast and pixel get/set (spec.md §4.6). All mutation happens inside
// Exec, executed on the single orchestrator goroutine started by Run.
type World struct {
	log      *slog.Logger
	manager  *ChunkManager
	loaders  *LoaderSet
	handler  *ChunkHandler
	particles *ParticleBag
	registry *Registry

	queue chan func(*Tx)
	done  chan struct{}
}

// New creates a World. The caller must start its orchestrator goroutine
// with Run before calling Exec.
func New(log *slog.Logger, mgr *ChunkManager, loaders *LoaderSet, handler *ChunkHandler, registry *Registry) *World {
	return &World{
		log:       log,
		manager:   mgr,
		loaders:   loaders,
		handler:   handler,
		particles: NewParticleBag(),
		registry:  registry,
		queue:     make(chan func(*Tx), 64),
		done:      make(chan struct{}),
	}
}

// Run drives the World's transaction queue until ctx is cancelled. It
// must run on its own goroutine; it is the only goroutine ever allowed
// to execute a Tx.
func (w *World) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-w.queue:
			tx := &Tx{w: w}
			fn(tx)
			tx.closed = true
		}
	}
}

// Exec submits fn to run on the orchestrator goroutine and blocks until
// it has run. The Tx passed to fn becomes unusable the moment fn
// returns; retaining it in a goroutine or closure that outlives the call
// will panic on next use (see TxClosedPanicMessage, internal/txguard).
func (w *World) Exec(fn func(*Tx)) {
	done := make(chan struct{})
	w.queue <- func(tx *Tx) {
		fn(tx)
		tx.closed = true
		close(done)
	}
	<-done
}

// Exec must not be called from inside a closure already running on the
// orchestrator goroutine: Run would never pick up the nested closure, so
// the call would block forever.

// Tick runs one orchestrator tick (spec.md §4.6's tick) through Exec, so
// on the orchestrator goroutine: the ChunkHandler's full step sequence,
// followed by particle integration. It takes no settings argument; the
// config.Settings toggles do not affect it. A physics bridge step belongs
// between those two in a full build; it is an external collaborator per
// spec.md §6 and is not implemented here.
func (w *World) Tick(ctx context.Context, dt float64) {
	w.Exec(func(*Tx) {
		w.handler.RunTick(ctx, w.particles)
		w.particles.Step(dt, 980, nil)
	})
}

// Particles returns the world's particle bag.
func (w *World) Particles() *ParticleBag { return w.particles }

// Registry returns the world's material registry.
func (w *World) Registry() *Registry { return w.registry }

// chunkAndLocal converts a world pixel coordinate into its owning chunk
// position and chunk-local coordinate, via floored division (spec.md §9
// "Floor-division vs truncation").
func chunkAndLocal(x, y int32) (pos ChunkPos, lx, ly int32) {
	cx := floorDiv(x, Side)
	cz := floorDiv(y, Side)
	return ChunkPos{cx, cz}, x - cx*Side, y - cz*Side
}

// PixelGet returns the material at world pixel (x, y).
func (w *World) PixelGet(x, y int32) (MaterialInstance, error) {
	pos, lx, ly := chunkAndLocal(x, y)
	c := w.manager.Get(pos)
	if c == nil {
		return MaterialInstance{}, ErrPositionUnloaded
	}
	return c.At(lx, ly)
}

// PixelSet writes the material at world pixel (x, y) via Chunk.SetAll.
func (w *World) PixelSet(x, y int32, m MaterialInstance) error {
	pos, lx, ly := chunkAndLocal(x, y)
	c := w.manager.Get(pos)
	if c == nil {
		return ErrPositionUnloaded
	}
	return c.SetAll(lx, ly, m)
}

// Raycast walks from (x1, y1) to (x2, y2) using Bresenham's algorithm
// and returns the first pixel matching predicate, plus its coordinate
// (spec.md §4.6, tested by Scenario E).
func Raycast(w *World, x1, y1, x2, y2 int32, predicate func(MaterialInstance) bool) (x, y int32, m MaterialInstance, found bool) {
	dx := abs32(x2 - x1)
	dy := -abs32(y2 - y1)
	sx := int32(1)
	if x1 >= x2 {
		sx = -1
	}
	sy := int32(1)
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	cx, cy := x1, y1
	for {
		mat, e := w.PixelGet(cx, cy)
		if e == nil && predicate(mat) {
			return cx, cy, mat, true
		}
		if cx == x2 && cy == y2 {
			return 0, 0, MaterialInstance{}, false
		}
		e2 := 2 * err
		if e2 >= dy {
			if cx == x2 {
				return 0, 0, MaterialInstance{}, false
			}
			err += dy
			cx += sx
		}
		if e2 <= dx {
			if cy == y2 {
				return 0, 0, MaterialInstance{}, false
			}
			err += dx
			cy += sy
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// displaceOrder is the spiral visiting order used by Displace over the
// 32x32 square of offsets [-16, 15] on both axes, ordered by increasing
// Chebyshev ring; within a ring, the top and bottom rows come first (by
// x), then the left and right columns (by y) (spec.md §4.6).
var displaceOrder = buildSpiralOrder(-16, 15)

func buildSpiralOrder(lo, hi int32) [][2]int32 {
	var out [][2]int32
	out = append(out, [2]int32{0, 0})
	for r := int32(1); r <= maxI32(-lo, hi); r++ {
		for x := maxI32(lo, -r); x <= minI32(hi, r); x++ {
			if -r >= lo {
				out = append(out, [2]int32{x, -r})
			}
			if r <= hi {
				out = append(out, [2]int32{x, r})
			}
		}
		for y := maxI32(lo, -r+1); y <= minI32(hi, r-1); y++ {
			if -r >= lo {
				out = append(out, [2]int32{-r, y})
			}
			if r <= hi {
				out = append(out, [2]int32{r, y})
			}
		}
	}
	return out
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// Displace scans a 32x32 square centered on (x, y) in spiral order and
// places m into the first Air cell encountered (spec.md §4.6, §8's
// displace round-trip law). It returns false if no Air cell was found
// in the window.
func (w *World) Displace(x, y int32, m MaterialInstance) bool {
	for _, off := range displaceOrder {
		px, py := x+off[0], y+off[1]
		cur, err := w.PixelGet(px, py)
		if err != nil {
			continue
		}
		if cur.IsAir() {
			_ = w.PixelSet(px, py, m)
			return true
		}
	}
	return false
}
