package world

import "sort"

// ZoneKind names the four concentric zone rectangles grown around a
// loader (spec.md §3, §4.5).
type ZoneKind int

const (
	ZoneScreen ZoneKind = iota
	ZoneActive
	ZoneLoad
	ZoneUnload
)

// zonePadding is the padding, in chunk-side units, added per ZoneKind
// around a loader's screen rectangle.
var zonePadding = [...]int32{
	ZoneScreen: 0,
	ZoneActive: 1,
	ZoneLoad:   10,
	ZoneUnload: 15,
}

// PixelRect is an axis-aligned rectangle in world pixel coordinates,
// inclusive bounds, used for loader zones (as opposed to Rect which is
// chunk-local).
type PixelRect struct {
	MinX, MinY, MaxX, MaxY int32
}

// Loader is any entity whose position causes chunks around it to be
// loaded. ScreenW/ScreenH are the loader's viewport size in pixels,
// centered on (X, Y); zone rectangles are grown from that base rectangle.
type Loader struct {
	ID               uint64
	X, Y             float64
	ScreenW, ScreenH int32
}

// floorDiv performs floored (not truncated) integer division, required
// so negative world coordinates map to the correct chunk (spec.md §9
// "Floor-division vs truncation").
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorToChunk converts a floating-point world pixel coordinate to the
// chunk coordinate containing it, via floored division.
func floorToChunk(v float64) int32 {
	fl := int32(v)
	if v < 0 && float64(fl) != v {
		fl--
	}
	return floorDiv(fl, Side)
}

// zone returns the rectangle centered at (cx, cy) in world pixels with
// half-width/height equal to half the loader's screen size plus
// padding*S, per spec.md §4.5's get_zone(center, padding_cells).
func (l Loader) zone(kind ZoneKind) PixelRect {
	padPixels := zonePadding[kind] * Side
	halfW := l.ScreenW/2 + padPixels
	halfH := l.ScreenH/2 + padPixels
	cx := int32(l.X)
	cy := int32(l.Y)
	if l.X < 0 && float64(cx) != l.X {
		cx--
	}
	if l.Y < 0 && float64(cy) != l.Y {
		cy--
	}
	return PixelRect{MinX: cx - halfW, MinY: cy - halfH, MaxX: cx + halfW, MaxY: cy + halfH}
}

// chunkRect converts a pixel rect into the inclusive range of chunk
// coordinates it intersects.
func (r PixelRect) chunkRect() (minCX, minCZ, maxCX, maxCZ int32) {
	return floorDiv(r.MinX, Side), floorDiv(r.MinY, Side), floorDiv(r.MaxX, Side), floorDiv(r.MaxY, Side)
}

// LoaderSet is the set of loaders currently registered with the world.
// It is only ever read or mutated from the orchestrator goroutine.
type LoaderSet struct {
	loaders map[uint64]Loader
}

// NewLoaderSet returns an empty loader set.
func NewLoaderSet() *LoaderSet {
	return &LoaderSet{loaders: make(map[uint64]Loader)}
}

// Upsert registers or moves a loader.
func (s *LoaderSet) Upsert(l Loader) {
	s.loaders[l.ID] = l
}

// Remove unregisters a loader.
func (s *LoaderSet) Remove(id uint64) {
	delete(s.loaders, id)
}

// All returns a snapshot of the registered loaders.
func (s *LoaderSet) All() []Loader {
	out := make([]Loader, 0, len(s.loaders))
	for _, l := range s.loaders {
		out = append(out, l)
	}
	return out
}

// UnionChunkRect returns the smallest chunk-coordinate rectangle that
// covers every registered loader's zone of the given kind. With loaders far
// apart it also covers chunks that lie in no zone; use InZone to test
// membership. ok is false if there are no loaders.
func (s *LoaderSet) UnionChunkRect(kind ZoneKind) (rect struct{ MinCX, MinCZ, MaxCX, MaxCZ int32 }, ok bool) {
	first := true
	for _, l := range s.loaders {
		minCX, minCZ, maxCX, maxCZ := l.zone(kind).chunkRect()
		if first {
			rect = struct{ MinCX, MinCZ, MaxCX, MaxCZ int32 }{minCX, minCZ, maxCX, maxCZ}
			first = false
			continue
		}
		if minCX < rect.MinCX {
			rect.MinCX = minCX
		}
		if minCZ < rect.MinCZ {
			rect.MinCZ = minCZ
		}
		if maxCX > rect.MaxCX {
			rect.MaxCX = maxCX
		}
		if maxCZ > rect.MaxCZ {
			rect.MaxCZ = maxCZ
		}
	}
	return rect, !first
}

// InZone reports whether pos is inside any loader's zone of the given
// kind.
func (s *LoaderSet) InZone(pos ChunkPos, kind ZoneKind) bool {
	for _, l := range s.loaders {
		minCX, minCZ, maxCX, maxCZ := l.zone(kind).chunkRect()
		if pos.X() >= minCX && pos.X() <= maxCX && pos.Z() >= minCZ && pos.Z() <= maxCZ {
			return true
		}
	}
	return false
}

// nearestLoaderDistSq returns the squared distance from pos's chunk
// center to the nearest loader, in pixel units.
func (s *LoaderSet) nearestLoaderDistSq(pos ChunkPos) float64 {
	cx := float64(pos.X()*Side) + float64(Side)/2
	cz := float64(pos.Z()*Side) + float64(Side)/2
	best := -1.0
	for _, l := range s.loaders {
		dx := l.X - cx
		dz := l.Y - cz
		d := dx*dx + dz*dz
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// LoadQueue is the deduplicated, distance-ordered sequence of chunk
// positions pending load (spec.md §3's "Load queue").
type LoadQueue struct {
	set   map[ChunkPos]struct{}
	order []ChunkPos
}

// NewLoadQueue returns an empty queue.
func NewLoadQueue() *LoadQueue {
	return &LoadQueue{set: make(map[ChunkPos]struct{})}
}

// Enqueue adds pos if it is not already queued.
func (q *LoadQueue) Enqueue(pos ChunkPos) {
	if _, ok := q.set[pos]; ok {
		return
	}
	q.set[pos] = struct{}{}
	q.order = append(q.order, pos)
}

// Len returns the number of queued positions.
func (q *LoadQueue) Len() int { return len(q.order) }

// SortByDistance reorders the queue by distance to the nearest loader,
// descending, so that Pop returns the nearest position first (spec.md
// §4.5 step 2).
func (q *LoadQueue) SortByDistance(loaders *LoaderSet) {
	sort.Slice(q.order, func(i, j int) bool {
		return loaders.nearestLoaderDistSq(q.order[i]) > loaders.nearestLoaderDistSq(q.order[j])
	})
}

// Pop removes and returns up to n positions from the tail of the queue
// (the nearest, after SortByDistance).
func (q *LoadQueue) Pop(n int) []ChunkPos {
	if n > len(q.order) {
		n = len(q.order)
	}
	if n == 0 {
		return nil
	}
	start := len(q.order) - n
	out := make([]ChunkPos, n)
	copy(out, q.order[start:])
	for _, pos := range out {
		delete(q.set, pos)
	}
	q.order = q.order[:start]
	return out
}

// Contains reports whether pos is currently queued.
func (q *LoadQueue) Contains(pos ChunkPos) bool {
	_, ok := q.set[pos]
	return ok
}
