package sim

import (
	"time"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// Unit is the demo entity.
type Unit struct {
	id     uuid.UUID
	kind   string
	live   bool
	combat time.Duration
}

func (u *Unit) ID() uuid.UUID { return u.id }
func (u *Unit) Valid() bool   { return u != nil && u.live }

// InCombat reports whether the unit is still locked in a skirmish.
func (u *Unit) InCombat() bool { return u.combat > 0 }

// Kind returns the type key the unit was spawned with.
func (u *Unit) Kind() string { return u.kind }

// Spawner hands out pooled units. A reused unit gets a new identity tag so
// references to its previous life fail validation.
type Spawner struct {
	free   []*Unit
	live   map[uuid.UUID]*Unit
	reused uint64
}

func NewSpawner() *Spawner {
	return &Spawner{live: make(map[uuid.UUID]*Unit)}
}

// Acquire returns a live unit of kind.
func (s *Spawner) Acquire(kind string) *Unit {
	var u *Unit
	if n := len(s.free); n > 0 {
		u = s.free[n-1]
		s.free[n-1] = nil
		s.free = s.free[:n-1]
		s.reused++
	} else {
		u = &Unit{}
	}
	u.id = uuid.New()
	u.kind = kind
	u.live = true
	u.combat = 0
	s.live[u.id] = u
	return u
}

// Release destroys u and returns it to the pool.
func (s *Spawner) Release(u *Unit) {
	if !u.Valid() {
		return
	}
	delete(s.live, u.id)
	u.live = false
	s.free = append(s.free, u)
}

// Live returns the number of units handed out.
func (s *Spawner) Live() int { return len(s.live) }

// Reused returns how many acquisitions were served from the pool.
func (s *Spawner) Reused() uint64 { return s.reused }

func (s *Spawner) forEach(fn func(u *Unit)) {
	for _, u := range s.live {
		fn(u)
	}
}

// Camera pans the viewpoint across the world at a constant velocity.
type Camera struct {
	Pos hex.Point
	Vel hex.Point // pixels per second
}

// Advance moves the camera by dt.
func (c *Camera) Advance(dt time.Duration) {
	s := dt.Seconds()
	c.Pos.X += c.Vel.X * s
	c.Pos.Y += c.Vel.Y * s
}
