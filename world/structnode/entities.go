package structnode

import "github.com/mlange-42/ark/ecs"

// Position is a structure node's world pixel position.
type Position struct {
	X, Y int32
}

// Tag carries a feature generator's opaque label for the node (e.g. the
// kind of vine, the door it should open) along with the spawn data the
// generator attached.
type Tag struct {
	Kind Kind
	Data any
}

// Linked marks an entity as belonging to a chunk's Graph, by node ID, so
// systems can go from an ark entity back to its graph-side record.
type Linked struct {
	Chunk ChunkKey
	Node  ID
}

// Registry is the ark ECS world holding every structure-node entity
// spawned across all chunks, plus the per-chunk Graphs their feature
// generators built. It is owned by the orchestrator and only ever
// touched from that goroutine, same as ChunkManager.
type Registry struct {
	world  *ecs.World
	mapper *ecs.Map3[Position, Tag, Linked]
	graphs map[ChunkKey]*Graph
}

// NewRegistry creates an empty structure-node registry.
func NewRegistry() *Registry {
	w := ecs.NewWorld()
	return &Registry{
		world:  w,
		mapper: ecs.NewMap3[Position, Tag, Linked](w),
		graphs: make(map[ChunkKey]*Graph),
	}
}

// Graph returns (creating if necessary) the structure-node graph for a
// chunk.
func (r *Registry) Graph(key ChunkKey) *Graph {
	g, ok := r.graphs[key]
	if !ok {
		g = &Graph{}
		r.graphs[key] = g
	}
	return g
}

// DropGraph discards a chunk's graph. The chunk's ark entities created by
// Spawn are not removed.
func (r *Registry) DropGraph(key ChunkKey) {
	delete(r.graphs, key)
}

// Spawn creates an ark entity for a structure node and links it to its
// chunk's graph node by ID.
func (r *Registry) Spawn(chunk ChunkKey, node ID, x, y int32, kind Kind, data any) ecs.Entity {
	return r.mapper.NewEntity(
		&Position{X: x, Y: y},
		&Tag{Kind: kind, Data: data},
		&Linked{Chunk: chunk, Node: node},
	)
}

// World returns the underlying ark world, for systems that need direct
// query access beyond what Registry exposes.
func (r *Registry) World() *ecs.World { return r.world }
