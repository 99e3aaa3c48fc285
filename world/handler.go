package world

import (
	"context"
	"log/slog"

	"github.com/fallingsand/engine/world/persist"
)

// Tunables from spec.md §4.5, given as defaults matching the spec's
// examples. NewChunkHandler copies them into the handler's exported
// fields, which callers may overwrite.
const (
	DefaultMaxLoadPerTick          = 64
	DefaultMaxSpawnGeneratePerTick = 32
	DefaultSlowJoinPerTick         = 8
	DefaultFastJoinPerTick         = 32
	DefaultFastJoinThreshold       = 4
)

// genResult is what a generation worker returns for a single chunk.
type genResult struct {
	pos        ChunkPos
	pixels     []MaterialInstance
	background []MaterialInstance
}

// ChunkHandler is the orchestrator: it owns the load queue, drives the
// generation pipeline and worker pool, advances the chunk state machine,
// persists and evicts chunks, and runs the simulator (spec.md §4.5). It
// must only ever be driven from the World's single orchestrator
// goroutine, matching the teacher's single-threaded-transaction-owner
// pattern (see world/world.go's handleTransactions in the teacher repo,
// from which this orchestrator's "one goroutine owns all manager
// mutation" discipline is carried over).
type ChunkHandler struct {
	Log *slog.Logger

	Manager  *ChunkManager
	Loaders  *LoaderSet
	Pipeline *GeneratorPipeline
	Sim      *Simulator

	WorldRoot string
	Seed      int64

	Tick uint64

	MaxLoadPerTick          int
	MaxSpawnGeneratePerTick int
	SlowJoinPerTick         int
	FastJoinPerTick         int
	FastJoinThreshold       int

	queue *LoadQueue

	genPool    chan genTask
	genResults chan genResult
	genPending map[ChunkPos]bool

	activeCount int
	cachedCount int
}

type genTask struct {
	pos  ChunkPos
	seed int64
}

// NewChunkHandler wires a handler with its generation worker pool
// started. poolSize mirrors spec.md §5's "small fixed size (e.g. 2)"
// generation pool.
func NewChunkHandler(log *slog.Logger, mgr *ChunkManager, loaders *LoaderSet, pipeline *GeneratorPipeline, sim *Simulator, worldRoot string, seed int64, poolSize int) *ChunkHandler {
	h := &ChunkHandler{
		Log:                     log,
		Manager:                 mgr,
		Loaders:                 loaders,
		Pipeline:                pipeline,
		Sim:                     sim,
		WorldRoot:               worldRoot,
		Seed:                    seed,
		MaxLoadPerTick:          DefaultMaxLoadPerTick,
		MaxSpawnGeneratePerTick: DefaultMaxSpawnGeneratePerTick,
		SlowJoinPerTick:         DefaultSlowJoinPerTick,
		FastJoinPerTick:         DefaultFastJoinPerTick,
		FastJoinThreshold:       DefaultFastJoinThreshold,
		queue:                   NewLoadQueue(),
		genPool:                 make(chan genTask, 256),
		genResults:              make(chan genResult, 256),
		genPending:              make(map[ChunkPos]bool),
	}
	for i := 0; i < poolSize; i++ {
		go h.generatorWorker()
	}
	return h
}

// generatorWorker runs base generation tasks off the orchestrator
// goroutine. A panic here is deliberately not recovered: spec.md §5
// treats a generation-task panic as fatal ("bugs in generators must be
// fixed rather than retried").
func (h *ChunkHandler) generatorWorker() {
	for t := range h.genPool {
		pixels, background := h.Pipeline.Base.GenerateBase(t.pos, t.seed)
		h.genResults <- genResult{pos: t.pos, pixels: pixels, background: background}
	}
}

// RunTick executes one full orchestrator tick: spec.md §4.5 steps 1-8,
// then the simulator (step 9), returning the set of positions that were
// Active for this tick (used by callers wishing to run physics/tile
// entity updates afterward, step 10).
func (h *ChunkHandler) RunTick(ctx context.Context, bag *ParticleBag) []ChunkPos {
	h.Tick++
	h.computeQueue()
	h.loadFromQueue()

	everyOther := h.Tick%2 == 0
	if everyOther {
		h.stateTransitionsA()
		h.spawnGeneration()
	}
	h.joinGeneration()
	h.advanceGenerating()
	if everyOther {
		h.evictUnloadedNotGenerated()
	}

	active := h.collectActive()
	h.Sim.Tick = h.Tick
	if err := h.Sim.RunTick(ctx, h.Manager, active, bag); err != nil {
		h.Log.Error("simulator tick failed", "error", err)
		panic(err)
	}
	return active
}

// computeQueue implements spec.md §4.5 step 2: enqueue every chunk
// position in the union of load zones that isn't already resident or
// queued, then sort nearest-first.
func (h *ChunkHandler) computeQueue() {
	rect, ok := h.Loaders.UnionChunkRect(ZoneLoad)
	if !ok {
		return
	}
	for cz := rect.MinCZ; cz <= rect.MaxCZ; cz++ {
		for cx := rect.MinCX; cx <= rect.MaxCX; cx++ {
			pos := ChunkPos{cx, cz}
			if h.Manager.Has(pos) || h.queue.Contains(pos) || !h.Loaders.InZone(pos, ZoneLoad) {
				continue
			}
			h.queue.Enqueue(pos)
		}
	}
	h.queue.SortByDistance(h.Loaders)
}

// loadFromQueue implements spec.md §4.5 step 3.
func (h *ChunkHandler) loadFromQueue() {
	for _, pos := range h.queue.Pop(h.MaxLoadPerTick) {
		if h.Manager.Has(pos) {
			continue
		}
		h.Manager.Insert(NewEmpty(pos))
	}
}

// stateTransitionsA implements spec.md §4.5 step 4.
func (h *ChunkHandler) stateTransitionsA() {
	var toEvict []*Chunk
	active, cached := 0, 0
	h.Manager.Range(func(c *Chunk) {
		switch c.State().Kind {
		case Cached:
			if !h.Loaders.InZone(c.Pos, ZoneUnload) {
				toEvict = append(toEvict, c)
				return
			}
			if h.Loaders.InZone(c.Pos, ZoneActive) && h.allNeighborsAtLeastCached(c.Pos) {
				c.SetState(ChunkState{Kind: Active})
				c.SetDirtyRect(Full(Side))
			}
			cached++
		case Active:
			active++
		}
	})
	for _, c := range toEvict {
		h.persistAndEvict(c)
	}
	h.activeCount, h.cachedCount = active, cached
}

func (h *ChunkHandler) allNeighborsAtLeastCached(pos ChunkPos) bool {
	for _, n := range h.Manager.Neighbors8(pos) {
		if n == nil || !n.State().AtLeast(ChunkState{Kind: Cached}) {
			return false
		}
	}
	return true
}

// spawnGeneration implements spec.md §4.5 step 5's load-from-disk-or-spawn
// half.
func (h *ChunkHandler) spawnGeneration() {
	spawned := 0
	h.Manager.Range(func(c *Chunk) {
		if spawned >= h.MaxSpawnGeneratePerTick {
			return
		}
		if c.State().Kind != NotGenerated {
			return
		}
		if !h.Loaders.InZone(c.Pos, ZoneUnload) {
			return
		}
		if h.genPending[c.Pos] {
			return
		}
		if pixels, background, ok, err := persist.Load(h.WorldRoot, c.Pos); err != nil {
			h.Log.Error("chunk load failed", "pos", c.Pos, "error", err)
		} else if ok {
			c.installGenerated(pixels, background)
			c.SetState(ChunkState{Kind: Cached})
			spawned++
			return
		}
		h.genPending[c.Pos] = true
		h.genPool <- genTask{pos: c.Pos, seed: h.Seed}
		spawned++
	})
}

// joinGeneration implements spec.md §4.5 step 5's join half: it drains
// completed generation results (non-blocking try-receive per spec.md
// §5's suspension-point rule (b)) and installs them, then runs stage-0
// populators over the freshly joined chunks (step 6).
func (h *ChunkHandler) joinGeneration() {
	budget := h.SlowJoinPerTick
	if h.activeCount+h.cachedCount < h.FastJoinThreshold {
		budget = h.FastJoinPerTick
	}

	var joined []ChunkPos
	for i := 0; i < budget; i++ {
		select {
		case res := <-h.genResults:
			delete(h.genPending, res.pos)
			c := h.Manager.Get(res.pos)
			if c == nil {
				continue // evicted before the task completed; discard (spec.md §5)
			}
			c.installGenerated(res.pixels, res.background)
			joined = append(joined, res.pos)
		default:
			i = budget
		}
	}

	for _, pos := range joined {
		h.runFeatureGenerators(pos)
	}
}

func (h *ChunkHandler) runFeatureGenerators(pos ChunkPos) {
	c := h.Manager.Get(pos)
	if c == nil {
		return
	}
	w := FeatureWindow{Center: pos, Seed: h.Seed}
	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			w.Chunks[dz+1][dx+1] = h.Manager.Get(pos.Add(dx, dz))
		}
	}
	rngSeed := chunkRNGSeed(h.Seed, pos)
	for _, fg := range h.Pipeline.Features {
		fg.GenerateFeature(w, rngSeed)
	}
	c.SetState(ChunkState{Kind: Generating, Stage: 1})
}

// advanceGenerating implements spec.md §4.5 step 7.
func (h *ChunkHandler) advanceGenerating() {
	budget := h.generationBudget()
	advanced := 0
	h.Manager.Range(func(c *Chunk) {
		if advanced >= budget {
			return
		}
		if c.State().Kind != Generating {
			return
		}
		k := int32(c.State().Stage)
		if !h.windowReady(c.Pos, k) {
			return
		}
		if int(k) >= MaxGenStage {
			c.SetMesh(c.GenerateMesh(nil))
			c.SetState(ChunkState{Kind: Cached})
			advanced++
			return
		}
		h.runPopulators(c.Pos, int(k)+1)
		c.SetState(ChunkState{Kind: Generating, Stage: int(k) + 1})
		advanced++
	})
}

// windowReady reports whether every chunk in the (2k+3)^2 square
// centered on pos has pixels and is at stage >= k (spec.md §3's
// Generating(k) -> Generating(k+1) transition condition).
func (h *ChunkHandler) windowReady(pos ChunkPos, k int32) bool {
	radius := k + 1
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			n := h.Manager.Get(pos.Add(dx, dz))
			if n == nil || !n.Ready() {
				return false
			}
			if !n.State().AtLeast(ChunkState{Kind: Generating, Stage: int(k)}) {
				return false
			}
		}
	}
	return true
}

func (h *ChunkHandler) runPopulators(pos ChunkPos, stage int) {
	k := int32(stage)
	side := 2*k + 1
	chunks := make([]*Chunk, 0, side*side)
	for dz := -k; dz <= k; dz++ {
		for dx := -k; dx <= k; dx++ {
			chunks = append(chunks, h.Manager.Get(pos.Add(dx, dz)))
		}
	}
	w := PopulatorWindow{Center: pos, K: k, Chunks: chunks}
	for _, pop := range h.Pipeline.PopulatorsForStage(stage) {
		pop.Populate(w, h.Seed)
	}
}

// generationBudget implements spec.md §4.5 step 7's throttling: more
// Active chunks means fewer generation advances per tick.
func (h *ChunkHandler) generationBudget() int {
	switch {
	case h.activeCount == 0:
		return 64
	case h.activeCount < 16:
		return 32
	case h.activeCount < 64:
		return 16
	default:
		return 8
	}
}

// evictUnloadedNotGenerated implements spec.md §4.5 step 8.
func (h *ChunkHandler) evictUnloadedNotGenerated() {
	var toEvict []*Chunk
	h.Manager.Range(func(c *Chunk) {
		if c.State().Kind == NotGenerated || c.State().Kind == Generating {
			if !h.Loaders.InZone(c.Pos, ZoneUnload) {
				toEvict = append(toEvict, c)
			}
		}
	})
	for _, c := range toEvict {
		h.persistAndEvict(c)
	}
}

// collectActive implements spec.md §4.5 step 4's Cached<->Active pass's
// complement: also demotes Active chunks that left every active zone,
// then returns the final Active set for this tick's simulator run.
func (h *ChunkHandler) collectActive() []ChunkPos {
	var active []ChunkPos
	var demote []*Chunk
	h.Manager.Range(func(c *Chunk) {
		if c.State().Kind != Active {
			return
		}
		if !h.Loaders.InZone(c.Pos, ZoneActive) {
			demote = append(demote, c)
			return
		}
		active = append(active, c.Pos)
	})
	for _, c := range demote {
		c.SetState(ChunkState{Kind: Cached})
	}
	return active
}

// persistAndEvict saves a chunk (if it has pixels) and removes it from
// the manager. Save failures are logged and the chunk is dropped anyway,
// per spec.md §7's documented (if unfortunate) data-loss path, which it
// requires be logged at ERROR.
func (h *ChunkHandler) persistAndEvict(c *Chunk) {
	if c.Ready() {
		if err := persist.Save(h.WorldRoot, c); err != nil {
			h.Log.Error("dropping chunk after failed save", "pos", c.Pos, "error", err)
		}
	}
	h.Manager.Remove(c.Pos)
	delete(h.genPending, c.Pos)
}

func chunkRNGSeed(seed int64, pos ChunkPos) uint64 {
	return hashChunkSeed(seed, pos.X(), pos.Z())
}
