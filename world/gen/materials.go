// Package gen implements the three-layer generator pipeline described in
// spec.md §4.3: a noise-based base generator, feature generators that
// seed structure nodes, and staged populators that carve ore pockets
// into already-generated terrain.
package gen

import "github.com/fallingsand/engine/world"

// DefaultMaterials registers the small material set this package's base
// generator and populators assume. Callers that want a richer palette
// should build their own world.Registry and keep these IDs stable, since
// Stone/Sand/Dirt/Ore are referenced by value below.
type DefaultMaterials struct {
	Sand, Stone, Dirt, Ore world.MaterialID
}

// RegisterDefaults adds this package's materials to reg and returns
// their assigned IDs.
func RegisterDefaults(reg *world.Registry) DefaultMaterials {
	return DefaultMaterials{
		Sand:  reg.Register(world.MaterialDef{Name: "sand", Class: world.Sand, Color: world.RGBA{R: 0xC2, G: 0xB2, B: 0x80, A: 0xFF}}),
		Stone: reg.Register(world.MaterialDef{Name: "stone", Class: world.Solid, Color: world.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}}),
		Dirt:  reg.Register(world.MaterialDef{Name: "dirt", Class: world.Solid, Color: world.RGBA{R: 0x6B, G: 0x4A, B: 0x2C, A: 0xFF}}),
		Ore:   reg.Register(world.MaterialDef{Name: "ore", Class: world.Solid, Color: world.RGBA{R: 0xD4, G: 0xAF, B: 0x37, A: 0xFF}}),
	}
}
