package world

import (
	"context"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// Phase returns the simulation phase of a chunk position: (cx mod 2) +
// 2*((-cz) mod 2), chosen so that no two chunks sharing an edge or a
// corner ever share a phase (spec.md §4.4, tested by the phase-partition
// invariant in §8).
func Phase(pos ChunkPos) int {
	mod2 := func(v int32) int32 {
		m := v % 2
		if m < 0 {
			m += 2
		}
		return m
	}
	return int(mod2(pos.X()) + 2*mod2(-pos.Z()))
}

// Simulator runs the 4-phase parallel pixel tick over a ChunkManager's
// Active chunks (spec.md §4.4). Its only per-tick state is Tick, the tick
// number mixed into each chunk task's RNG seed, which ChunkHandler sets
// before every run; everything else is threaded through RunTick's
// arguments, following the teacher's per-tick worker pool (see
// world/redstone's Scheduler.Step, whose deterministic-ordering,
// parallel-worker-pool shape this adapts from an event-driven router
// into a synchronous phase-barrier tick).
type Simulator struct {
	Registry *Registry
	Tick     uint64
}

// RunTick runs all four simulation phases in order over mgr's Active
// chunks, each phase in parallel with one errgroup goroutine per chunk
// task (the Go runtime runs at most GOMAXPROCS of them at once), joining
// (blocking) at the end of each phase before starting the next (spec.md
// §5's phase-barrier ordering guarantee). Within a phase, each task writes
// pixels only inside its center chunk or at most two pixels past its
// border in a neighbor chunk, plus its own thread-local grid3x3
// accumulator; the task's
// emitted particles and accumulated dirty-rect contributions are merged
// into bag and into the chunk manager back on this goroutine, after
// g.Wait() returns, since same-phase tasks' 3x3 neighborhoods are not
// guaranteed disjoint (two center chunks two apart can share one
// neighbor) and neither the bag nor a shared neighbor's dirty rect may be
// touched concurrently.
func (s *Simulator) RunTick(ctx context.Context, mgr *ChunkManager, active []ChunkPos, bag *ParticleBag) error {
	byPhase := [4][]ChunkPos{}
	for _, pos := range active {
		p := Phase(pos)
		byPhase[p] = append(byPhase[p], pos)
	}

	for phase := 0; phase < 4; phase++ {
		positions := byPhase[phase]
		if len(positions) == 0 {
			continue
		}
		results := make([]simResult, len(positions))
		g, gctx := errgroup.WithContext(ctx)
		for i, pos := range positions {
			i, pos := i, pos
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = s.simulateChunk(mgr, pos)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, r := range results {
			if r.grid != nil {
				r.grid.applyAccumulated()
			}
			if len(r.emitted) > 0 {
				bag.Add(r.emitted...)
			}
		}
	}
	return nil
}

// grid3x3 is the task-local view of a center chunk and its eight
// neighbors, addressed by window coordinates: ex/ey range over
// [-Side, 2*Side) with the center chunk occupying [0, Side).
type grid3x3 struct {
	chunks [3][3]*Chunk // indexed [gz+1][gx+1], gz/gx in {-1,0,1}
	acc    [3][3]Rect
}

func newGrid3x3(mgr *ChunkManager, center ChunkPos) *grid3x3 {
	g := &grid3x3{}
	for gz := int32(-1); gz <= 1; gz++ {
		for gx := int32(-1); gx <= 1; gx++ {
			g.chunks[gz+1][gx+1] = mgr.Get(center.Add(gx, gz))
			g.acc[gz+1][gx+1] = EmptyRect()
		}
	}
	return g
}

func (g *grid3x3) locate(ex, ey int32) (gx, gz, lx, ly int32) {
	gx = floorDiv(ex, Side)
	gz = floorDiv(ey, Side)
	lx = ex - gx*Side
	ly = ey - gz*Side
	return
}

func (g *grid3x3) chunkAt(ex, ey int32) (*Chunk, int32, int32) {
	gx, gz, lx, ly := g.locate(ex, ey)
	if gx < -1 || gx > 1 || gz < -1 || gz > 1 {
		return nil, 0, 0
	}
	return g.chunks[gz+1][gx+1], lx, ly
}

func (g *grid3x3) get(ex, ey int32) (MaterialInstance, bool) {
	c, lx, ly := g.chunkAt(ex, ey)
	if c == nil || !c.Ready() {
		return MaterialInstance{}, false
	}
	m, err := c.At(lx, ly)
	if err != nil {
		return MaterialInstance{}, false
	}
	return m, true
}

// touch records a write at window coordinates (ex, ey), unioning the
// point into every chunk whose interior comes within one pixel of it
// (spec.md §4.4's neighbor-propagation rule: edge/corner strips of a
// change get unioned into the touched neighbors' outgoing dirty rects).
func (g *grid3x3) touch(ex, ey int32) {
	for ddz := int32(-1); ddz <= 1; ddz++ {
		for ddx := int32(-1); ddx <= 1; ddx++ {
			gx, gz, lx, ly := g.locate(ex+ddx, ey+ddz)
			if gx < -1 || gx > 1 || gz < -1 || gz > 1 {
				continue
			}
			if g.chunks[gz+1][gx+1] == nil {
				continue
			}
			g.acc[gz+1][gx+1] = g.acc[gz+1][gx+1].UnionPoint(lx, ly)
		}
	}
}

func (g *grid3x3) set(ex, ey int32, m MaterialInstance) {
	c, lx, ly := g.chunkAt(ex, ey)
	if c == nil || !c.Ready() {
		return
	}
	c.SetAtUnchecked(lx, ly, m)
	g.touch(ex, ey)
}

// applyAccumulated writes each chunk's final dirty-rect contribution:
// the center chunk's rect is replaced outright (it was fully reprocessed
// this phase), neighbors' rects are unioned in, preserving whatever
// remainder they already carried (spec.md §4.4 criteria (i)-(iii)).
//
// Must only be called from RunTick's orchestrator goroutine, after the
// phase's g.Wait() returns: a neighbor chunk can be shared by two
// same-phase center chunks' 3x3 windows, so calling this concurrently
// from inside simulateChunk's task would race on that neighbor's dirty
// rect.
func (g *grid3x3) applyAccumulated() {
	for gz := int32(-1); gz <= 1; gz++ {
		for gx := int32(-1); gx <= 1; gx++ {
			c := g.chunks[gz+1][gx+1]
			if c == nil {
				continue
			}
			rect := g.acc[gz+1][gx+1].Clamp(Side)
			if gx == 0 && gz == 0 {
				c.SetDirtyRect(rect)
			} else if !rect.Empty() {
				c.UnionDirtyRect(rect)
			}
		}
	}
}

// simResult is one chunk task's output from a simulation phase: the
// particles it emitted and its thread-local grid3x3, whose accumulated
// dirty-rect contributions still need to be applied to the chunk
// manager. Both fields are merged into shared state by RunTick on the
// orchestrator goroutine, never by the task itself.
type simResult struct {
	emitted []Particle
	grid    *grid3x3
}

// simulateChunk runs one center chunk's simulation task: it scans the
// center's previous-tick dirty rect bottom-up, applies the sand rule to
// each Sand pixel, and returns the particles emitted during the scan
// along with the task's grid3x3 so the caller can apply its accumulated
// dirty rects once the phase's tasks have all finished.
func (s *Simulator) simulateChunk(mgr *ChunkManager, pos ChunkPos) simResult {
	center := mgr.Get(pos)
	if center == nil || !center.Ready() {
		return simResult{}
	}
	prevDirty := center.DirtyRect()
	if prevDirty.Empty() {
		return simResult{}
	}

	g := newGrid3x3(mgr, pos)
	rng := rand.New(rand.NewSource(int64(xxhash.Sum64(tickSeedKey(s.Tick, pos)))))
	leftToRight := rng.Intn(2) == 0

	var emitted []Particle
	for y := prevDirty.MaxY; y >= prevDirty.MinY; y-- {
		xs := xRange(prevDirty.MinX, prevDirty.MaxX, leftToRight)
		for _, x := range xs {
			mat, ok := g.get(x, y)
			if !ok || mat.IsAir() {
				continue
			}
			def := s.Registry.Def(mat.Material)
			if def.Class != Sand {
				continue
			}
			if p, moved := s.stepSand(g, rng, x, y, mat); moved {
				if p != nil {
					emitted = append(emitted, *p)
				}
			}
		}
		leftToRight = !leftToRight
	}

	return simResult{emitted: emitted, grid: g}
}

func xRange(minX, maxX int32, leftToRight bool) []int32 {
	n := maxX - minX + 1
	out := make([]int32, n)
	if leftToRight {
		for i := range out {
			out[i] = minX + int32(i)
		}
	} else {
		for i := range out {
			out[i] = maxX - int32(i)
		}
	}
	return out
}

func tickSeedKey(tick uint64, pos ChunkPos) []byte {
	b := make([]byte, 16)
	putU64(b[0:8], tick)
	putU64(b[8:16], uint64(uint32(pos.X()))<<32|uint64(uint32(pos.Z())))
	return b
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// stepSand applies spec.md §4.4's sand rule at window coordinates (x, y)
// holding mat. It returns a particle to emit (non-nil) when the pixel is
// converted to a free-falling particle instead of sliding, and a bool
// reporting whether the pixel moved (or was removed) at all.
func (s *Simulator) stepSand(g *grid3x3, rng *rand.Rand, x, y int32, mat MaterialInstance) (*Particle, bool) {
	below, belowOK := g.get(x, y+1)
	belowLeft, blOK := g.get(x-1, y+1)
	belowRight, brOK := g.get(x+1, y+1)

	if belowOK && below.IsAir() {
		clear := clearBelow(g, x, y)
		if clear >= 4 && rng.Float64() < 0.35 {
			g.set(x, y, AirInstance)
			p := &Particle{
				X: float64(x) + 0.5, Y: float64(y) + 0.5,
				VX: (rng.Float64() - 0.5) * 0.6,
				VY: 0.2,
				Mat: mat,
			}
			return p, true
		}
		dist := int32(1)
		if clear >= 2 && rng.Float64() < 0.5 {
			dist = 2
		}
		if rng.Float64() < 0.9 {
			g.set(x, y, AirInstance)
			g.set(x, y+dist, mat)
			return nil, true
		}
		return nil, false
	}

	above, aboveOK := g.get(x, y-1)
	covered := aboveOK && !above.IsAir()
	prob := 0.8
	if covered {
		prob = 0.35
	}

	type choice struct {
		ok   bool
		free bool
		dx   int32
	}
	choices := []choice{
		{blOK, blOK && belowLeft.IsAir(), -1},
		{brOK, brOK && belowRight.IsAir(), 1},
	}
	order := []int{0, 1}
	if rng.Intn(2) == 0 {
		order = []int{1, 0}
	}
	for _, i := range order {
		ch := choices[i]
		if ch.ok && ch.free && rng.Float64() < prob {
			g.set(x, y, AirInstance)
			g.set(x+ch.dx, y+1, mat)
			return nil, true
		}
	}
	return nil, false
}

// clearBelow counts consecutive Air pixels directly below (x, y), up to
// 4, used to decide whether a falling grain should be promoted to a
// free particle rather than slide one cell at a time.
func clearBelow(g *grid3x3, x, y int32) int {
	n := 0
	for dy := int32(1); dy <= 4; dy++ {
		m, ok := g.get(x, y+dy)
		if !ok || !m.IsAir() {
			break
		}
		n++
	}
	return n
}
