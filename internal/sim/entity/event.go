package entity

import (
	"github.com/google/uuid"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// EventKind identifies a registry notification.
type EventKind uint8

const (
	EventSpawned EventKind = iota
	EventDespawned
	EventMoveCompleted
	EventMoveFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSpawned:
		return "spawned"
	case EventDespawned:
		return "despawned"
	case EventMoveCompleted:
		return "move_completed"
	case EventMoveFailed:
		return "move_failed"
	}
	return "unknown"
}

// Event is delivered to animation layers. From and To are equal for spawns,
// despawns and failed moves. Path is set for completed moves only.
type Event struct {
	Kind   EventKind
	ID     uuid.UUID
	Entity Entity
	Type   string
	From   hex.Coord
	To     hex.Coord
	Path   []hex.Coord
}

// Stats is a snapshot of registry counters. Culled covers the last gated
// tick only; the other counters are cumulative.
type Stats struct {
	Registered int
	Pending    int
	Culled     int

	Skipped   uint64
	Invalid   uint64
	Attempts  uint64
	Moves     uint64
	Failures  uint64
	Saturated uint64
	Ghosts    uint64
}
