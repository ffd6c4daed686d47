// Package entity schedules movement for the live entity set.
//
// The registry borrows entities; spawning and destroying them belongs to the
// caller. All methods must be called from the simulation goroutine.
package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

// Entity is the contract the scheduler needs from a unit.
type Entity interface {
	// ID is the identity tag. Pooled entities get a new one on reuse.
	ID() uuid.UUID
	// Valid is false once the entity is destroyed, pending destruction or
	// detached from the simulation.
	Valid() bool
}

// Combatant is implemented by entities that can be held by combat.
type Combatant interface {
	InCombat() bool
}

// Transient is implemented by entities that can be temporarily driven by
// something other than the scheduler.
type Transient interface {
	Transient() bool
}

// Alive reports whether e may be used.
func Alive(e Entity) bool {
	return e != nil && e.Valid()
}

// AliveAs reports whether e may be used and still carries identity id. It
// rejects a pooled object that has been handed out again.
func AliveAs(e Entity, id uuid.UUID) bool {
	return Alive(e) && e.ID() == id
}

func busy(e Entity) bool {
	if c, ok := e.(Combatant); ok && c.InCombat() {
		return true
	}
	if t, ok := e.(Transient); ok && t.Transient() {
		return true
	}
	return false
}

// TypeInfo is the per-type movement behavior.
type TypeInfo struct {
	Class        terrain.Class
	MoveInterval time.Duration
	WanderMin    int
	WanderMax    int
}
