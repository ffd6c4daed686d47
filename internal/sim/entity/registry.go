package entity

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/path"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

// Visibility is the culling and exploration surface the registry needs.
// *chunk.Manager implements it.
type Visibility interface {
	IsTileInVisibleChunk(tile hex.Coord) bool
	RevealAtTile(tile hex.Coord)
}

type noCulling struct{}

func (noCulling) IsTileInVisibleChunk(hex.Coord) bool { return true }
func (noCulling) RevealAtTile(hex.Coord)              {}

// Options configures a Registry.
type Options struct {
	// BatchSize is the number of records considered per gated tick.
	BatchSize int
	// TickInterval is the sim time between gated ticks.
	TickInterval time.Duration
	// Types maps type keys to movement behavior. Unknown keys use Default.
	Types   map[string]TypeInfo
	Default TypeInfo
	// MaxPathCost caps searches and bounds the occupancy snapshot radius.
	MaxPathCost int
	Layout      hex.Layout
	Rand        *rand.Rand
	OnEvent     func(Event)
}

type record struct {
	entity  Entity
	id      uuid.UUID
	typeKey string
	info    TypeInfo
	tile    hex.Coord

	timer    time.Duration
	lastSeen time.Duration

	pending uuid.UUID
	goal    hex.Coord
}

func (r *record) alive() bool { return AliveAs(r.entity, r.id) }

func (r *record) inFlight() bool { return r.pending != uuid.Nil }

// Info is a read-only view of a registered entity.
type Info struct {
	ID      uuid.UUID
	Type    string
	Class   terrain.Class
	Tile    hex.Coord
	Pending bool
	Timer   time.Duration
}

// Registry is the live entity table and movement scheduler.
type Registry struct {
	oracle  terrain.Oracle
	vis     Visibility
	planner path.Planner
	opts    Options
	rng     *rand.Rand
	log     *slog.Logger

	records []*record
	byID    map[uuid.UUID]*record
	pending map[uuid.UUID]uuid.UUID // request ID -> entity ID
	occ     *Occupancy

	cursor int
	acc    time.Duration
	clock  time.Duration
	stats  Stats
}

// NewRegistry creates a registry. oracle is queried on path workers and must
// be safe for concurrent use. A nil vis disables culling.
func NewRegistry(oracle terrain.Oracle, vis Visibility, planner path.Planner, opts Options, log *slog.Logger) *Registry {
	if opts.BatchSize <= 0 {
		panic(fmt.Sprintf("entity: batch size must be positive, got %d", opts.BatchSize))
	}
	if opts.TickInterval <= 0 {
		panic(fmt.Sprintf("entity: tick interval must be positive, got %s", opts.TickInterval))
	}
	if vis == nil {
		vis = noCulling{}
	}
	if opts.MaxPathCost <= 0 {
		opts.MaxPathCost = path.DefaultMaxCost
	}
	if opts.Layout == (hex.Layout{}) {
		opts.Layout = hex.DefaultLayout
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Registry{
		oracle:  oracle,
		vis:     vis,
		planner: planner,
		opts:    opts,
		rng:     rng,
		log:     log,
		byID:    make(map[uuid.UUID]*record),
		pending: make(map[uuid.UUID]uuid.UUID),
		occ:     newOccupancy(),
	}
}

// Register adds e at tile. It fails for an invalid entity or an ID that is
// already registered. Spawning onto an occupied tile succeeds and takes over
// the tile's occupancy entry.
func (r *Registry) Register(e Entity, typeKey string, tile hex.Coord) bool {
	if !Alive(e) {
		r.log.Warn("register rejected: invalid entity", "type", typeKey)
		return false
	}
	id := e.ID()
	if _, dup := r.byID[id]; dup {
		r.log.Warn("register rejected: duplicate entity", "id", id, "type", typeKey)
		return false
	}

	info, _ := r.TypeInfo(typeKey)
	rec := &record{
		entity:   e,
		id:       id,
		typeKey:  typeKey,
		info:     info,
		tile:     tile,
		lastSeen: r.clock,
	}
	r.records = append(r.records, rec)
	r.byID[id] = rec
	if r.occ.arrive(tile, rec) {
		r.stats.Ghosts++
		r.log.Debug("ghost spawn", "id", id, "q", tile.Q, "r", tile.R)
	}
	r.emit(Event{Kind: EventSpawned, ID: id, Entity: e, Type: typeKey, From: tile, To: tile})
	return true
}

// Unregister removes e by identity. Outstanding path results for it are
// dropped when they arrive.
func (r *Registry) Unregister(e Entity) bool {
	if e == nil {
		return false
	}
	return r.remove(e.ID())
}

// UnregisterID removes the entity registered under id.
func (r *Registry) UnregisterID(id uuid.UUID) bool {
	return r.remove(id)
}

func (r *Registry) remove(id uuid.UUID) bool {
	rec, ok := r.byID[id]
	if !ok {
		return false
	}
	idx := slices.Index(r.records, rec)
	r.records = slices.Delete(r.records, idx, idx+1)
	if idx < r.cursor {
		r.cursor--
	}
	if r.cursor >= len(r.records) {
		r.cursor = 0
	}
	delete(r.byID, id)

	if rec.inFlight() {
		delete(r.pending, rec.pending)
		r.occ.unreserve(rec.tile, id)
		r.occ.unreserve(rec.goal, id)
	} else {
		r.occ.leave(rec.tile, rec)
	}
	r.emit(Event{Kind: EventDespawned, ID: id, Entity: rec.entity, Type: rec.typeKey, From: rec.tile, To: rec.tile})
	return true
}

// Tick advances the scheduler by delta. Path results are applied first.
// Records are only considered once the accumulated time reaches the tick
// interval; Tick reports whether that happened.
func (r *Registry) Tick(delta time.Duration) bool {
	r.drain()

	r.acc += delta
	if r.acc < r.opts.TickInterval {
		return false
	}
	r.clock += r.acc
	r.acc = 0

	r.runBatch()
	r.drain()
	return true
}

func (r *Registry) runBatch() {
	n := len(r.records)
	r.stats.Culled = 0
	if n == 0 {
		return
	}

	size := min(r.opts.BatchSize, n)
	batch := make([]*record, 0, size)
	for i := 0; i < size; i++ {
		batch = append(batch, r.records[(r.cursor+i)%n])
	}
	r.cursor = (r.cursor + r.opts.BatchSize) % n

	var stale []uuid.UUID
	for _, rec := range batch {
		if !r.consider(rec) {
			stale = append(stale, rec.id)
		}
	}
	for _, id := range stale {
		r.log.Warn("dropping stale entity", "id", id)
		r.remove(id)
	}
}

// consider runs one record through the schedule. It returns false when the
// record's entity is no longer usable.
func (r *Registry) consider(rec *record) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("entity tick panicked", "id", rec.id, "error", fmt.Sprint(p))
			ok = true
		}
	}()

	elapsed := r.clock - rec.lastSeen
	rec.lastSeen = r.clock

	if !rec.alive() {
		r.stats.Invalid++
		return false
	}
	if busy(rec.entity) {
		r.stats.Skipped++
		return true
	}
	if rec.inFlight() {
		return true
	}
	if !r.vis.IsTileInVisibleChunk(rec.tile) {
		r.stats.Culled++
		return true
	}

	rec.timer += elapsed
	if rec.timer < rec.info.MoveInterval {
		return true
	}
	rec.timer = 0
	r.attempt(rec)
	return true
}

func (r *Registry) attempt(rec *record) {
	r.stats.Attempts++
	from := rec.tile
	class := rec.info.Class

	pick := func(c hex.Coord) bool {
		if c == from {
			return true
		}
		return r.oracle.Walkable(class, c.Q, c.R) && r.occ.freeFor(c, rec.id)
	}
	goal := path.RandomDestination(r.rng, from, pick, rec.info.WanderMin, rec.info.WanderMax)
	if goal == from {
		return
	}

	blocked := r.occ.blockedNear(from, r.opts.MaxPathCost, rec.id)
	oracle := r.oracle
	req := path.Request{
		ID:      uuid.New(),
		Start:   from,
		Goal:    goal,
		MaxCost: r.opts.MaxPathCost,
		Valid: func(c hex.Coord) bool {
			if _, ok := blocked[c]; ok {
				return false
			}
			return oracle.Walkable(class, c.Q, c.R)
		},
	}

	r.occ.leave(from, rec)
	r.occ.reserve(from, rec.id)
	r.occ.reserve(goal, rec.id)
	rec.pending = req.ID
	rec.goal = goal
	r.pending[req.ID] = rec.id

	if !r.planner.Submit(req) {
		r.stats.Saturated++
		r.log.Warn("path planner saturated", "id", rec.id)
		r.settle(rec)
		r.occ.arrive(from, rec)
	}
}

// settle clears the in-flight bookkeeping of rec.
func (r *Registry) settle(rec *record) {
	delete(r.pending, rec.pending)
	r.occ.unreserve(rec.tile, rec.id)
	r.occ.unreserve(rec.goal, rec.id)
	rec.pending = uuid.Nil
}

func (r *Registry) drain() {
	r.planner.Drain(r.complete)
}

func (r *Registry) complete(res path.Result) {
	id, ok := r.pending[res.ID]
	if !ok {
		return
	}
	rec, ok := r.byID[id]
	if !ok || rec.pending != res.ID {
		delete(r.pending, res.ID)
		return
	}
	r.settle(rec)

	if !rec.alive() {
		r.log.Warn("path result for stale entity", "id", id)
		r.occ.arrive(rec.tile, rec)
		return
	}

	if res.Found() {
		to := res.Path[len(res.Path)-1]
		if r.occ.freeFor(to, id) {
			from := rec.tile
			rec.tile = to
			r.occ.arrive(to, rec)
			r.vis.RevealAtTile(to)
			r.stats.Moves++
			r.log.Debug("move completed", "id", id, "steps", len(res.Path), "q", to.Q, "r", to.R)
			r.emit(Event{Kind: EventMoveCompleted, ID: id, Entity: rec.entity, Type: rec.typeKey, From: from, To: to, Path: res.Path})
			return
		}
	}

	r.occ.arrive(rec.tile, rec)
	r.stats.Failures++
	r.emit(Event{Kind: EventMoveFailed, ID: id, Entity: rec.entity, Type: rec.typeKey, From: rec.tile, To: rec.tile})
}

// FindEntityNearPosition returns the live entity closest to the world
// position p within radius.
func (r *Registry) FindEntityNearPosition(p hex.Point, radius float64) (Entity, bool) {
	var best *record
	bestDist := radius
	for _, rec := range r.records {
		if !rec.alive() {
			continue
		}
		if d := r.opts.Layout.TileToWorld(rec.tile).Dist(p); d <= bestDist {
			best, bestDist = rec, d
		}
	}
	if best == nil {
		return nil, false
	}
	return best.entity, true
}

// Lookup returns the view of the entity registered under id.
func (r *Registry) Lookup(id uuid.UUID) (Info, bool) {
	rec, ok := r.byID[id]
	if !ok {
		return Info{}, false
	}
	return Info{
		ID:      rec.id,
		Type:    rec.typeKey,
		Class:   rec.info.Class,
		Tile:    rec.tile,
		Pending: rec.inFlight(),
		Timer:   rec.timer,
	}, true
}

// TypeInfo returns the behavior registered entities of typeKey get. Unknown
// keys report false along with the default.
func (r *Registry) TypeInfo(typeKey string) (TypeInfo, bool) {
	if info, ok := r.opts.Types[typeKey]; ok {
		return info, true
	}
	return r.opts.Default, false
}

// OccupantAt returns the live entity mapped to tile c.
func (r *Registry) OccupantAt(c hex.Coord) (Entity, bool) {
	return r.occ.At(c)
}

// Occupancy exposes the tile map for read-only queries.
func (r *Registry) Occupancy() *Occupancy { return r.occ }

// Len returns the number of registered entities.
func (r *Registry) Len() int { return len(r.records) }

// Stats returns the current counters.
func (r *Registry) Stats() Stats {
	st := r.stats
	st.Registered = len(r.records)
	st.Pending = len(r.pending)
	return st
}

func (r *Registry) emit(e Event) {
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(e)
	}
}
