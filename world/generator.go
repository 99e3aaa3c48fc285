package world

// MaxGenStage is the final stage a chunk's Generating state can reach
// before being promoted to Cached (spec.md §3, §4.3).
const MaxGenStage = 2

// BaseGenerator produces the initial pixels and background for one
// chunk given its position and world seed. Implementations must be pure
// and deterministic in (seed, pos); they run on the generation pool, not
// the orchestrator goroutine (spec.md §4.3).
type BaseGenerator interface {
	GenerateBase(pos ChunkPos, seed int64) (pixels, background []MaterialInstance)
}

// FeatureWindow is the centered 3x3 chunk window a FeatureGenerator is
// given at the stage-0->1 transition.
type FeatureWindow struct {
	Center ChunkPos
	Chunks [3][3]*Chunk // [gz+1][gx+1], may contain nils for missing neighbors
	Seed   int64
}

// At returns the chunk at window-relative offset (dx, dz), dx/dz in
// {-1, 0, 1}.
func (w FeatureWindow) At(dx, dz int32) *Chunk {
	return w.Chunks[dz+1][dx+1]
}

// FeatureGenerator runs once per chunk at the stage-0->1 transition, with
// access to a centered 3x3 window and a per-chunk seeded RNG (spec.md
// §4.3: seed XOR hash(cx, cy)). It may mutate pixels within the window
// and spawn structure-node entities directly into the ECS registry it
// was constructed with.
type FeatureGenerator interface {
	GenerateFeature(w FeatureWindow, rngSeed uint64)
}

// PopulatorWindow is the (2k+1)x(2k+1) chunk window a Populator receives
// at stage k, row-major, centered on Center.
type PopulatorWindow struct {
	Center ChunkPos
	K      int32
	Chunks []*Chunk // len == (2K+1)^2, row-major, nil where a chunk is absent
}

// At returns the chunk at window-relative chunk offset (dx, dz), each in
// [-K, K].
func (w PopulatorWindow) At(dx, dz int32) *Chunk {
	side := 2*w.K + 1
	row := dz + w.K
	col := dx + w.K
	return w.Chunks[row*side+col]
}

// Populator mutates a (2k+1)x(2k+1) chunk window at a stage transition
// k-1 -> k. Each populator declares the stage it runs at; only
// populators whose Stage matches the current transition run (spec.md
// §4.3).
type Populator interface {
	Stage() int
	Populate(w PopulatorWindow, seed int64)
}

// GeneratorPipeline bundles the three generator layers described in
// spec.md §4.3.
type GeneratorPipeline struct {
	Base       BaseGenerator
	Features   []FeatureGenerator
	Populators []Populator
}

// PopulatorsForStage returns the populators registered for the given
// stage.
func (p *GeneratorPipeline) PopulatorsForStage(stage int) []Populator {
	var out []Populator
	for _, pop := range p.Populators {
		if pop.Stage() == stage {
			out = append(out, pop)
		}
	}
	return out
}
