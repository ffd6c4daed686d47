package entity

import (
	"github.com/google/uuid"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// Occupancy maps tiles to the entity holding them.
//
// Each tile has one mapped occupant. Entities standing on a tile are tracked
// separately so that after a ghost spawn the tile can be handed back to the
// entity that remains when the mapped one leaves. Reservations mark tiles
// claimed by in-flight moves.
type Occupancy struct {
	mapped   map[hex.Coord]*record
	standing map[hex.Coord][]*record
	reserved map[hex.Coord]uuid.UUID
}

func newOccupancy() *Occupancy {
	return &Occupancy{
		mapped:   make(map[hex.Coord]*record),
		standing: make(map[hex.Coord][]*record),
		reserved: make(map[hex.Coord]uuid.UUID),
	}
}

// At returns the live occupant of c. A stale entry reads as empty.
func (o *Occupancy) At(c hex.Coord) (Entity, bool) {
	rec, ok := o.mapped[c]
	if !ok || !rec.alive() {
		return nil, false
	}
	return rec.entity, true
}

// Reserved reports whether an in-flight move has claimed c.
func (o *Occupancy) Reserved(c hex.Coord) bool {
	_, ok := o.reserved[c]
	return ok
}

// Len returns the number of mapped tiles.
func (o *Occupancy) Len() int { return len(o.mapped) }

// TilesOf returns every tile currently mapped to id.
func (o *Occupancy) TilesOf(id uuid.UUID) []hex.Coord {
	var out []hex.Coord
	for c, rec := range o.mapped {
		if rec.id == id {
			out = append(out, c)
		}
	}
	return out
}

// arrive places rec on c, taking over the mapping. It reports whether
// another live entity was already standing there.
func (o *Occupancy) arrive(c hex.Coord, rec *record) bool {
	ghost := false
	for _, other := range o.standing[c] {
		if other != rec && other.alive() {
			ghost = true
			break
		}
	}
	o.standing[c] = append(o.standing[c], rec)
	o.mapped[c] = rec
	return ghost
}

// leave removes rec from c. The mapping is only touched when it points at
// rec, and then moves to another entity still standing there.
func (o *Occupancy) leave(c hex.Coord, rec *record) {
	list := o.standing[c]
	for i, other := range list {
		if other == rec {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(o.standing, c)
	} else {
		o.standing[c] = list
	}

	if o.mapped[c] != rec {
		return
	}
	delete(o.mapped, c)
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].alive() {
			o.mapped[c] = list[i]
			return
		}
	}
}

func (o *Occupancy) reserve(c hex.Coord, id uuid.UUID) {
	o.reserved[c] = id
}

func (o *Occupancy) unreserve(c hex.Coord, id uuid.UUID) {
	if o.reserved[c] == id {
		delete(o.reserved, c)
	}
}

// freeFor reports whether id may pick c as a destination.
func (o *Occupancy) freeFor(c hex.Coord, id uuid.UUID) bool {
	if owner, ok := o.reserved[c]; ok && owner != id {
		return false
	}
	for _, rec := range o.standing[c] {
		if rec.id != id && rec.alive() {
			return false
		}
	}
	return true
}

// blockedNear returns the tiles held by live entities other than id within
// radius of center. The result is owned by the caller.
func (o *Occupancy) blockedNear(center hex.Coord, radius int, id uuid.UUID) map[hex.Coord]struct{} {
	out := make(map[hex.Coord]struct{})
	for c, list := range o.standing {
		if hex.Distance(center, c) > radius {
			continue
		}
		for _, rec := range list {
			if rec.id != id && rec.alive() {
				out[c] = struct{}{}
				break
			}
		}
	}
	return out
}
