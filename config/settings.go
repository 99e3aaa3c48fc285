// Package config implements the settings surface named in spec.md §6. No
// code in the world package reads these settings: World.Tick and
// ChunkHandler.RunTick run every step regardless of them, and the
// console's set command only updates this struct. It is intentionally a
// thin TOML-backed struct, in the
// style of the teacher's whitelist.go (same pelletier/go-toml
// Marshal/Unmarshal pair, same load-from-path convention).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Settings is the settings surface of spec.md §6. The world package does
// not read it (see the package doc).
type Settings struct {
	TickSpeed            float64 `toml:"tick_speed"`
	TickPhysicsSpeed     float64 `toml:"tick_physics_speed"`
	TickPhysicsTimestep  float64 `toml:"tick_physics_timestep"`
	LoadChunks           bool    `toml:"load_chunks"`
	SimulateChunks       bool    `toml:"simulate_chunks"`
	SimulateParticles    bool    `toml:"simulate_particles"`
	TickPhysics          bool    `toml:"tick_physics"`
	CullChunks           bool    `toml:"cull_chunks"`
	DebugDrawChunkBounds bool    `toml:"debug_draw_chunk_bounds"`
	DebugDrawDirtyRects  bool    `toml:"debug_draw_dirty_rects"`
}

// Default returns the settings a fresh world starts with.
func Default() *Settings {
	return &Settings{
		TickSpeed:           1,
		TickPhysicsSpeed:    1,
		TickPhysicsTimestep: 1.0 / 60,
		LoadChunks:          true,
		SimulateChunks:      true,
		SimulateParticles:   true,
		TickPhysics:         true,
		CullChunks:          true,
	}
}

// Load reads settings from a TOML file at path, falling back to Default
// if the file does not exist.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to path as TOML.
func Save(path string, s *Settings) error {
	encoded, err := toml.Marshal(*s)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// SetBool toggles a named boolean field, used by the console's "set"
// command (spec.md §6: "CLI ... toggles settings"). field matches the
// TOML tag, not the Go field name.
func (s *Settings) SetBool(field string, value bool) error {
	switch field {
	case "load_chunks":
		s.LoadChunks = value
	case "simulate_chunks":
		s.SimulateChunks = value
	case "simulate_particles":
		s.SimulateParticles = value
	case "tick_physics":
		s.TickPhysics = value
	case "cull_chunks":
		s.CullChunks = value
	case "debug_draw_chunk_bounds":
		s.DebugDrawChunkBounds = value
	case "debug_draw_dirty_rects":
		s.DebugDrawDirtyRects = value
	default:
		return fmt.Errorf("config: unknown boolean field %q", field)
	}
	return nil
}
