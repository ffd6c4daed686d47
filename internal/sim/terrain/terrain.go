// Package terrain defines the terrain oracle consumed by the simulation core
// and a few oracle implementations.
package terrain

import (
	"fmt"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// Kind is the terrain sample stored for a single tile.
type Kind uint8

const (
	Water Kind = iota
	Land
	Obstacle
)

func (k Kind) String() string {
	switch k {
	case Water:
		return "water"
	case Land:
		return "land"
	case Obstacle:
		return "obstacle"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Class is the movement class of a unit: which terrain it can walk on.
type Class uint8

const (
	ClassWater Class = iota
	ClassLand
)

func (c Class) String() string {
	switch c {
	case ClassWater:
		return "water"
	case ClassLand:
		return "land"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ParseClass maps a preset or config name to a Class.
func ParseClass(s string) (Class, bool) {
	switch s {
	case "water", "ship", "boat":
		return ClassWater, true
	case "land", "ground":
		return ClassLand, true
	}
	return 0, false
}

// Walkable reports whether a unit of class c may stand on terrain k.
func (c Class) Walkable(k Kind) bool {
	switch c {
	case ClassWater:
		return k == Water
	case ClassLand:
		return k == Land
	}
	return false
}

// Oracle answers terrain questions for world tile coordinates. Answers must
// be deterministic for a given world seed and safe for concurrent use.
type Oracle interface {
	Walkable(class Class, x, y int) bool
	SampleChunk(c hex.ChunkCoord) []Kind
}

// Sampler returns the terrain kind of a single tile.
type Sampler interface {
	KindAt(x, y int) Kind
}

// FromSampler adapts a per-tile Sampler into an Oracle.
func FromSampler(s Sampler) Oracle {
	return samplerOracle{s: s}
}

type samplerOracle struct {
	s Sampler
}

func (o samplerOracle) Walkable(class Class, x, y int) bool {
	return class.Walkable(o.s.KindAt(x, y))
}

func (o samplerOracle) SampleChunk(c hex.ChunkCoord) []Kind {
	return SampleChunk(o.s, c)
}

// SampleChunk fills a row-major ChunkSize×ChunkSize sample slice from s.
func SampleChunk(s Sampler, c hex.ChunkCoord) []Kind {
	origin := hex.ChunkToTile(c)
	out := make([]Kind, hex.ChunkSize*hex.ChunkSize)
	for y := 0; y < hex.ChunkSize; y++ {
		for x := 0; x < hex.ChunkSize; x++ {
			out[y*hex.ChunkSize+x] = s.KindAt(origin.Q+x, origin.R+y)
		}
	}
	return out
}

// Flat is a Sampler with the same kind everywhere.
type Flat Kind

func (f Flat) KindAt(int, int) Kind { return Kind(f) }

// Map is a Sampler backed by explicit tiles; missing tiles read as Fallback.
type Map struct {
	Tiles    map[hex.Coord]Kind
	Fallback Kind
}

// NewMap returns an empty Map filled with fallback.
func NewMap(fallback Kind) *Map {
	return &Map{Tiles: make(map[hex.Coord]Kind), Fallback: fallback}
}

// Set overrides the kind of a single tile.
func (m *Map) Set(c hex.Coord, k Kind) {
	m.Tiles[c] = k
}

func (m *Map) KindAt(x, y int) Kind {
	if k, ok := m.Tiles[hex.Coord{Q: x, R: y}]; ok {
		return k
	}
	return m.Fallback
}
