package gen

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/fallingsand/engine/world"
)

// TerrainGenerator is a pure, deterministic base generator (spec.md
// §4.3, layer 1): an opensimplex height field carves Stone below a
// noise-perturbed surface, Dirt in a thin band under that, and Air
// otherwise. It never allocates per-call state beyond the two noise
// sources, so one instance is safe to share across the generation
// worker pool's goroutines (opensimplex.Noise has no mutable state
// after construction).
type TerrainGenerator struct {
	Materials DefaultMaterials

	height opensimplex.Noise
	cave   opensimplex.Noise
}

// NewTerrainGenerator builds a generator whose noise fields are seeded
// from worldSeed.
func NewTerrainGenerator(materials DefaultMaterials, worldSeed int64) *TerrainGenerator {
	return &TerrainGenerator{
		Materials: materials,
		height:    opensimplex.New(worldSeed),
		cave:      opensimplex.New(worldSeed ^ 0x5bd1e995),
	}
}

const (
	surfaceBase   = 0.0
	surfaceAmpl   = 40.0
	surfaceFreq   = 0.004
	dirtBandDepth = 6
	caveFreq      = 0.03
	caveThreshold = 0.62
)

// GenerateBase implements world.BaseGenerator.
func (g *TerrainGenerator) GenerateBase(pos world.ChunkPos, seed int64) (pixels, background []world.MaterialInstance) {
	_ = seed // the generator's own noise fields already derive determinism from worldSeed; per-chunk seed is used by feature/populate stages instead
	n := int(world.Side)
	pixels = make([]world.MaterialInstance, n*n)
	background = make([]world.MaterialInstance, n*n)

	originX := pos.X() * world.Side
	originY := pos.Z() * world.Side

	for ly := int32(0); ly < world.Side; ly++ {
		wy := originY + ly
		for lx := int32(0); lx < world.Side; lx++ {
			wx := originX + lx
			surface := surfaceBase + surfaceAmpl*g.height.Eval2(float64(wx)*surfaceFreq, 0)
			idx := int(ly)*n + int(lx)

			switch {
			case float64(wy) < surface:
				pixels[idx] = world.AirInstance
			case float64(wy) < surface+dirtBandDepth:
				pixels[idx] = g.solidOrCave(wx, wy, g.Materials.Dirt, world.RGBA{R: 0x6B, G: 0x4A, B: 0x2C, A: 0xFF})
			default:
				pixels[idx] = g.solidOrCave(wx, wy, g.Materials.Stone, world.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF})
			}
			background[idx] = world.MaterialInstance{Material: g.Materials.Stone, Class: world.Solid, Color: world.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF}}
		}
	}
	return pixels, background
}

// solidOrCave returns Air if the cave noise field carves out (wx, wy),
// otherwise the given solid material with the given display color.
func (g *TerrainGenerator) solidOrCave(wx, wy int32, solid world.MaterialID, color world.RGBA) world.MaterialInstance {
	v := g.cave.Eval2(float64(wx)*caveFreq, float64(wy)*caveFreq)
	if v > caveThreshold {
		return world.AirInstance
	}
	return world.MaterialInstance{Material: solid, Class: world.Solid, Color: color}
}
