package world

import "errors"

// Error kinds from spec.md §7. Callers should use errors.Is against these
// sentinels rather than comparing error strings.
var (
	// ErrPositionUnloaded is returned when a pixel operation targets a chunk
	// that is not currently resident in the manager.
	ErrPositionUnloaded = errors.New("world: chunk not loaded at position")
	// ErrInvalidPixelCoord is returned when a local coordinate is negative
	// or >= the chunk side length.
	ErrInvalidPixelCoord = errors.New("world: invalid local pixel coordinate")
	// ErrChunkNotReady is returned when a chunk's pixel storage has not been
	// installed yet. A Generating chunk that already holds pixels is
	// readable and writable.
	ErrChunkNotReady = errors.New("world: chunk not ready")
	// ErrPersistenceFailure names the error kind for a failed chunk save or
	// load (spec.md §7). Package persist returns its own errors and does
	// not wrap them with this sentinel. A save that fails during eviction
	// is logged at ERROR and the chunk is removed anyway (see
	// ChunkHandler.persistAndEvict).
	ErrPersistenceFailure = errors.New("world: chunk persistence failure")
)
