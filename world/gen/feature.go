package gen

import (
	"math/rand"

	"github.com/fallingsand/engine/world"
	"github.com/fallingsand/engine/world/structnode"
)

// VineFeature is a FeatureGenerator (spec.md §4.3, layer 2): with low
// probability per chunk it plants a sensor/emitter pair of structure
// nodes near the surface — a sensor that will later watch for a Sand
// pixel landing on it, and an emitter a few pixels below that reacts by
// spawning a small puff of particles. It demonstrates the
// FeatureGenerator contract (window access, per-chunk seeded RNG,
// spawning directly into the structnode registry) without depending on
// any specific downstream system consuming the nodes.
type VineFeature struct {
	Registry *structnode.Registry
	Chance   float64 // probability this feature fires per chunk, e.g. 0.15
}

// GenerateFeature implements world.FeatureGenerator.
func (f *VineFeature) GenerateFeature(w world.FeatureWindow, rngSeed uint64) {
	rng := rand.New(rand.NewSource(int64(rngSeed)))
	if rng.Float64() > f.Chance {
		return
	}
	center := w.At(0, 0)
	if center == nil || !center.Ready() {
		return
	}

	x := int32(rng.Intn(int(world.Side)))
	y := f.findSurface(center, x)
	if y < 0 {
		return
	}

	key := structnode.ChunkKey{X: w.Center.X(), Z: w.Center.Z()}
	graph := f.Registry.Graph(key)

	sensorID := structnode.ID(len(graph.Palette))
	graph.AddNode(structnode.Node{ID: sensorID, Kind: structnode.KindSensor, X: x, Y: y})

	emitterY := y + 3
	if emitterY >= world.Side {
		emitterY = world.Side - 1
	}
	emitterID := structnode.ID(len(graph.Palette))
	graph.AddNode(structnode.Node{ID: emitterID, Kind: structnode.KindEmitter, X: x, Y: emitterY, Data: uint16(sensorID)})

	f.Registry.Spawn(key, sensorID, x, y, structnode.KindSensor, nil)
	f.Registry.Spawn(key, emitterID, x, emitterY, structnode.KindEmitter, nil)
}

// findSurface scans column x from the top for the first non-Air pixel
// and returns the row just above it, or -1 if the column is entirely
// Air or its top pixel is already non-Air.
func (f *VineFeature) findSurface(c *world.Chunk, x int32) int32 {
	for y := int32(0); y < world.Side; y++ {
		m, err := c.At(x, y)
		if err != nil {
			return -1
		}
		if !m.IsAir() {
			if y == 0 {
				return -1
			}
			return y - 1
		}
	}
	return -1
}
