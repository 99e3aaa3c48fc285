package world

import (
	"sync"

	"github.com/brentp/intintmap"
)

// ChunkManager owns the resident set of chunks: a dense slice of chunk
// pointers plus an intintmap-backed index from packed ChunkPos to slot, so
// the simulator's hot neighbor lookups (spec.md §9's "Chunk key encoding"
// design note) avoid Go's generic map overhead on the int64 key path.
//
// ChunkManager is only ever touched from the World orchestrator goroutine
// during non-simulation phases (load, evict, generation-install); during a
// simulator phase the manager itself is not mutated, only chunk contents
// are, so no lock is taken on the hot path. The mutex below guards the
// rarer case of a collaborator (e.g. console, renderer) reading chunk
// state from a different goroutine between ticks.
type ChunkManager struct {
	mu     sync.RWMutex
	index  *intintmap.Map
	slots  []*Chunk
	free   []int32
}

// NewChunkManager returns an empty manager pre-sized for capacity resident
// chunks.
func NewChunkManager(capacity int) *ChunkManager {
	return &ChunkManager{
		index: intintmap.New(int64(capacity), 0.75),
		slots: make([]*Chunk, 0, capacity),
	}
}

// Get returns the chunk at pos, or nil if it is not resident.
func (m *ChunkManager) Get(pos ChunkPos) *Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(pos)
}

func (m *ChunkManager) getLocked(pos ChunkPos) *Chunk {
	slot, ok := m.index.Get(Index(pos))
	if !ok {
		return nil
	}
	return m.slots[slot]
}

// Has reports whether pos is resident, regardless of lifecycle state.
func (m *ChunkManager) Has(pos ChunkPos) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index.Get(Index(pos))
	return ok
}

// Insert adds a newly loaded chunk, replacing any existing chunk at the
// same position. It is the orchestrator's job to ensure pos is not already
// present except when intentionally replacing a chunk.
func (m *ChunkManager) Insert(c *Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Index(c.Pos)
	if slot, ok := m.index.Get(key); ok {
		m.slots[slot] = c
		return
	}
	if n := len(m.free); n > 0 {
		slot := m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[slot] = c
		m.index.Put(key, int64(slot))
		return
	}
	slot := int32(len(m.slots))
	m.slots = append(m.slots, c)
	m.index.Put(key, int64(slot))
}

// Remove evicts the chunk at pos, returning it (or nil if absent).
func (m *ChunkManager) Remove(pos ChunkPos) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Index(pos)
	slot, ok := m.index.Get(key)
	if !ok {
		return nil
	}
	c := m.slots[slot]
	m.slots[slot] = nil
	m.free = append(m.free, int32(slot))
	m.index.Del(key)
	return c
}

// Len returns the number of resident chunks.
func (m *ChunkManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(m.index.Size())
}

// Range calls f for every chunk resident when Range started. It copies the
// slots under the read lock and releases the lock before calling f, so f
// may call back into the manager; chunks inserted during the call are not
// visited, and chunks removed during the call are still visited.
func (m *ChunkManager) Range(f func(*Chunk)) {
	m.mu.RLock()
	snapshot := make([]*Chunk, len(m.slots))
	copy(snapshot, m.slots)
	m.mu.RUnlock()
	for _, c := range snapshot {
		if c != nil {
			f(c)
		}
	}
}

// Neighbors8 returns the chunk's eight neighbors in row-major order
// (NW, N, NE, W, E, SW, S, SE), each nil if not resident. It is the
// manager's equivalent of the teacher's multi-chunk-read helper, used by
// ChunkHandler's Cached-to-Active neighbor check.
func (m *ChunkManager) Neighbors8(pos ChunkPos) [8]*Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out [8]*Chunk
	i := 0
	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if dx == 0 && dz == 0 {
				continue
			}
			out[i] = m.getLocked(pos.Add(dx, dz))
			i++
		}
	}
	return out
}

// Window returns the (2k+1)x(2k+1) window of chunks centered on pos,
// row-major, each nil if not resident: the same layout as
// PopulatorWindow.Chunks for stage k (spec.md §4.3).
func (m *ChunkManager) Window(pos ChunkPos, k int32) []*Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	side := 2*k + 1
	out := make([]*Chunk, 0, side*side)
	for dz := -k; dz <= k; dz++ {
		for dx := -k; dx <= k; dx++ {
			out = append(out, m.getLocked(pos.Add(dx, dz)))
		}
	}
	return out
}
