package gen

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/fallingsand/engine/world"
)

// OrePopulator carves circular ore pockets into Stone at its declared
// generation stage (spec.md §4.3, layer 3). It is the 2D, MaterialID-
// based generalization of the teacher's ellipsoid-cluster Ore populator:
// the same idea of picking cluster centers and growing a randomized
// radial shell around them, but over a flat pixel plane instead of a 3D
// voxel volume, and emitting directly into the populator's chunk window
// rather than a single chunk.
type OrePopulator struct {
	StageN      int
	Materials   DefaultMaterials
	Seed        int64
	ClustersPer int     // cluster attempts per invocation; each is carved with probability 0.6
	MinRadius   float64
	MaxRadius   float64
}

// Stage implements world.Populator.
func (p *OrePopulator) Stage() int { return p.StageN }

// Populate implements world.Populator.
func (p *OrePopulator) Populate(w world.PopulatorWindow, seed int64) {
	center := w.At(0, 0)
	if center == nil || !center.Ready() {
		return
	}

	rng := rand.New(rand.NewSource(seed ^ int64(w.Center.X())<<32 ^ int64(w.Center.Z())))

	for i := 0; i < p.ClustersPer; i++ {
		if rng.Float64() > 0.6 {
			continue
		}
		cx := int32(rng.Intn(int(world.Side)))
		cy := int32(rng.Intn(int(world.Side)))
		radius := p.MinRadius + rng.Float64()*(p.MaxRadius-p.MinRadius)
		angleOffset := rng.Float64() * 2 * math.Pi
		p.carveCluster(w, cx, cy, radius, angleOffset, rng)
	}
}

// carveCluster replaces Stone pixels within an irregular radius of
// (cx, cy) -- expressed in the center chunk's local coordinates, but
// potentially spilling into neighbor chunks in w -- with Ore. The
// boundary is perturbed per-angle by a small sine term seeded from
// angleOffset so clusters aren't perfect circles.
func (p *OrePopulator) carveCluster(w world.PopulatorWindow, cx, cy int32, radius, angleOffset float64, rng *rand.Rand) {
	span := int32(math.Ceil(radius)) + 2
	for dy := -span; dy <= span; dy++ {
		for dx := -span; dx <= span; dx++ {
			v := mgl64.Vec2{float64(dx), float64(dy)}
			dist := v.Len()
			angle := math.Atan2(v.Y(), v.X()) + angleOffset
			wobble := 1 + 0.15*math.Sin(angle*3)
			if dist > radius*wobble {
				continue
			}
			wx, wy := cx+dx, cy+dy
			p.tryCarve(w, wx, wy)
		}
	}
}

// tryCarve converts a coordinate that may fall outside the center
// chunk's [0, Side) range into the right chunk in w and replaces Stone
// with Ore there.
func (p *OrePopulator) tryCarve(w world.PopulatorWindow, ex, ey int32) {
	gx := floorDivLocal(ex, world.Side)
	gz := floorDivLocal(ey, world.Side)
	if gx < -w.K || gx > w.K || gz < -w.K || gz > w.K {
		return
	}
	c := w.At(gx, gz)
	if c == nil || !c.Ready() {
		return
	}
	lx := ex - gx*world.Side
	ly := ey - gz*world.Side
	cur, err := c.At(lx, ly)
	if err != nil || cur.Material != p.Materials.Stone {
		return
	}
	_ = c.Replace(lx, ly, func(world.MaterialInstance) (world.MaterialInstance, bool) {
		return world.MaterialInstance{Material: p.Materials.Ore, Class: world.Solid, Color: world.RGBA{R: 0xD4, G: 0xAF, B: 0x37, A: 0xFF}}, true
	})
}

func floorDivLocal(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
