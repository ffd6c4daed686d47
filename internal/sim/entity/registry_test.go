package entity

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/path"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

const step = 500 * time.Millisecond

type unit struct {
	id     uuid.UUID
	dead   bool
	combat bool
}

func newUnit() *unit { return &unit{id: uuid.New()} }

func (u *unit) ID() uuid.UUID  { return u.id }
func (u *unit) Valid() bool    { return !u.dead }
func (u *unit) InCombat() bool { return u.combat }

// manual holds requests until the test resolves them, in any order.
type manual struct {
	reqs   []path.Request
	ready  []path.Result
	reject bool
}

func (m *manual) Submit(req path.Request) bool {
	if m.reject {
		return false
	}
	m.reqs = append(m.reqs, req)
	return true
}

func (m *manual) Drain(fn func(path.Result)) int {
	ready := m.ready
	m.ready = nil
	for _, r := range ready {
		fn(r)
	}
	return len(ready)
}

func (m *manual) resolve(i int) {
	req := m.reqs[i]
	m.ready = append(m.ready, path.Result{
		ID:    req.ID,
		Start: req.Start,
		Goal:  req.Goal,
		Path:  path.FindPath(req.Start, req.Goal, req.Valid, req.MaxCost),
	})
}

func (m *manual) fail(i int) {
	req := m.reqs[i]
	m.ready = append(m.ready, path.Result{ID: req.ID, Start: req.Start, Goal: req.Goal})
}

type window struct {
	maxQ     int
	revealed []hex.Coord
}

func (w *window) IsTileInVisibleChunk(c hex.Coord) bool { return c.Q < w.maxQ }
func (w *window) RevealAtTile(c hex.Coord)              { w.revealed = append(w.revealed, c) }

var testTypes = map[string]TypeInfo{
	"viking": {Class: terrain.ClassWater, MoveInterval: 4 * time.Second, WanderMin: 2, WanderMax: 8},
	"fast":   {Class: terrain.ClassLand, MoveInterval: time.Nanosecond, WanderMin: 2, WanderMax: 6},
	"slow":   {Class: terrain.ClassLand, MoveInterval: time.Hour, WanderMin: 2, WanderMax: 6},
	"steady": {Class: terrain.ClassLand, MoveInterval: 2 * time.Second, WanderMin: 2, WanderMax: 6},
}

type harness struct {
	reg    *Registry
	events []Event
}

func newHarness(t *testing.T, k terrain.Kind, vis Visibility, planner path.Planner, batch int) *harness {
	t.Helper()
	h := &harness{}
	h.reg = NewRegistry(terrain.FromSampler(terrain.Flat(k)), vis, planner, Options{
		BatchSize:    batch,
		TickInterval: step,
		Types:        testTypes,
		Default:      testTypes["steady"],
		MaxPathCost:  32,
		Rand:         rand.New(rand.NewPCG(7, 11)),
		OnEvent:      func(e Event) { h.events = append(h.events, e) },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h
}

func (h *harness) kinds(kind EventKind) []Event {
	var out []Event
	for _, e := range h.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestVikingMovesOncePerInterval(t *testing.T) {
	h := newHarness(t, terrain.Water, nil, path.NewInline(), 50)
	a := newUnit()
	start := hex.Coord{Q: 2, R: 2}
	require.True(t, h.reg.Register(a, "viking", start))

	for i := 0; i < 7; i++ {
		assert.True(t, h.reg.Tick(step))
		assert.Equal(t, []hex.Coord{start}, h.reg.Occupancy().TilesOf(a.id))
	}
	assert.Zero(t, h.reg.Stats().Attempts)

	require.True(t, h.reg.Tick(step))
	st := h.reg.Stats()
	assert.Equal(t, uint64(1), st.Attempts)
	assert.Equal(t, uint64(1), st.Moves)

	info, ok := h.reg.Lookup(a.id)
	require.True(t, ok)
	assert.False(t, info.Pending)
	assert.Equal(t, []hex.Coord{info.Tile}, h.reg.Occupancy().TilesOf(a.id))
	d := hex.Distance(start, info.Tile)
	assert.GreaterOrEqual(t, d, 2)
	assert.LessOrEqual(t, d, 8)

	for i := 0; i < 7; i++ {
		h.reg.Tick(step)
		assert.Len(t, h.reg.Occupancy().TilesOf(a.id), 1)
	}
	assert.Equal(t, uint64(1), h.reg.Stats().Attempts)
}

func TestTickIsThrottled(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	require.True(t, h.reg.Register(newUnit(), "fast", hex.Coord{}))

	assert.False(t, h.reg.Tick(100*time.Millisecond))
	assert.False(t, h.reg.Tick(100*time.Millisecond))
	assert.Zero(t, h.reg.Stats().Attempts)
	assert.True(t, h.reg.Tick(300*time.Millisecond))
	assert.Equal(t, uint64(1), h.reg.Stats().Attempts)
}

func TestEveryEntityReachesABatch(t *testing.T) {
	const n, batch = 100, 10
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, batch)
	units := make([]*unit, n)
	for i := range units {
		units[i] = newUnit()
		require.True(t, h.reg.Register(units[i], "fast", hex.Coord{Q: (i % 10) * 20, R: (i / 10) * 20}))
	}

	for i := 0; i < n/batch; i++ {
		require.True(t, h.reg.Tick(step))
	}

	st := h.reg.Stats()
	assert.Equal(t, uint64(n), st.Attempts)
	assert.Equal(t, n, st.Pending)
	for _, u := range units {
		info, ok := h.reg.Lookup(u.id)
		require.True(t, ok)
		assert.True(t, info.Pending, "entity %s never scheduled", u.id)
	}
}

func TestGhostSpawnReconciles(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	a, b := newUnit(), newUnit()
	origin := hex.Coord{}
	require.True(t, h.reg.Register(a, "slow", origin))
	require.True(t, h.reg.Register(b, "fast", origin))

	got, ok := h.reg.OccupantAt(origin)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, uint64(1), h.reg.Stats().Ghosts)

	require.NotPanics(t, func() { h.reg.Tick(step) })
	require.Equal(t, uint64(1), h.reg.Stats().Moves)

	got, ok = h.reg.OccupantAt(origin)
	require.True(t, ok)
	assert.Same(t, a, got)

	info, _ := h.reg.Lookup(b.id)
	assert.NotEqual(t, origin, info.Tile)
	assert.Equal(t, []hex.Coord{info.Tile}, h.reg.Occupancy().TilesOf(b.id))
}

func TestRegisterRejectsInvalidAndDuplicate(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	dead := &unit{id: uuid.New(), dead: true}
	assert.False(t, h.reg.Register(dead, "fast", hex.Coord{}))
	assert.False(t, h.reg.Register(nil, "fast", hex.Coord{}))

	u := newUnit()
	assert.True(t, h.reg.Register(u, "fast", hex.Coord{}))
	assert.False(t, h.reg.Register(u, "fast", hex.Coord{Q: 4}))
	assert.Equal(t, 1, h.reg.Len())
	assert.Len(t, h.kinds(EventSpawned), 1)
}

func TestUnknownTypeUsesDefault(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	u := newUnit()
	require.True(t, h.reg.Register(u, "dragon", hex.Coord{}))

	for i := 0; i < 3; i++ {
		h.reg.Tick(step)
	}
	assert.Zero(t, h.reg.Stats().Attempts)
	h.reg.Tick(step)
	assert.Equal(t, uint64(1), h.reg.Stats().Attempts)
}

func TestStaleEntityIsDropped(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	dead, reused := newUnit(), newUnit()
	require.True(t, h.reg.Register(dead, "slow", hex.Coord{}))
	require.True(t, h.reg.Register(reused, "slow", hex.Coord{Q: 5}))

	dead.dead = true
	reused.id = uuid.New()

	_, ok := h.reg.OccupantAt(hex.Coord{})
	assert.False(t, ok, "stale occupant reads as empty")

	require.NotPanics(t, func() { h.reg.Tick(step) })
	assert.Zero(t, h.reg.Len())
	assert.Equal(t, uint64(2), h.reg.Stats().Invalid)
	assert.Zero(t, h.reg.Occupancy().Len())
	assert.Len(t, h.kinds(EventDespawned), 2)
}

func TestUnregisterDropsLateResult(t *testing.T) {
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, 50)
	u := newUnit()
	require.True(t, h.reg.Register(u, "fast", hex.Coord{}))
	h.reg.Tick(step)
	require.Len(t, planner.reqs, 1)
	goal := planner.reqs[0].Goal
	assert.True(t, h.reg.Occupancy().Reserved(goal))

	require.True(t, h.reg.Unregister(u))
	assert.False(t, h.reg.Unregister(u))
	assert.False(t, h.reg.Occupancy().Reserved(goal))

	planner.resolve(0)
	require.NotPanics(t, func() { h.reg.Tick(time.Nanosecond) })

	_, ok := h.reg.OccupantAt(goal)
	assert.False(t, ok)
	assert.Empty(t, h.kinds(EventMoveCompleted))
	assert.Zero(t, h.reg.Stats().Pending)
}

func TestSaturatedPlannerRestoresTile(t *testing.T) {
	planner := &manual{reject: true}
	h := newHarness(t, terrain.Land, nil, planner, 50)
	u := newUnit()
	start := hex.Coord{Q: 3, R: 3}
	require.True(t, h.reg.Register(u, "fast", start))
	h.reg.Tick(step)

	st := h.reg.Stats()
	assert.Equal(t, uint64(1), st.Saturated)
	assert.Zero(t, st.Pending)
	got, ok := h.reg.OccupantAt(start)
	require.True(t, ok)
	assert.Same(t, u, got)
	assert.False(t, h.reg.Occupancy().Reserved(start))

	info, _ := h.reg.Lookup(u.id)
	assert.False(t, info.Pending)
}

func TestFailedMoveRestoresOrigin(t *testing.T) {
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, 50)
	u := newUnit()
	start := hex.Coord{Q: 1, R: 1}
	require.True(t, h.reg.Register(u, "fast", start))
	h.reg.Tick(step)
	require.Len(t, planner.reqs, 1)

	_, ok := h.reg.OccupantAt(start)
	assert.False(t, ok, "origin is freed while the move is in flight")
	assert.True(t, h.reg.Occupancy().Reserved(start))

	planner.fail(0)
	h.reg.Tick(time.Nanosecond)

	got, ok := h.reg.OccupantAt(start)
	require.True(t, ok)
	assert.Same(t, u, got)
	assert.Equal(t, uint64(1), h.reg.Stats().Failures)
	require.Len(t, h.kinds(EventMoveFailed), 1)
}

func TestOutOfOrderCompletion(t *testing.T) {
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, 50)
	a, b := newUnit(), newUnit()
	require.True(t, h.reg.Register(a, "fast", hex.Coord{}))
	require.True(t, h.reg.Register(b, "fast", hex.Coord{Q: 30}))
	h.reg.Tick(step)
	require.Len(t, planner.reqs, 2)

	planner.resolve(1)
	planner.resolve(0)
	h.reg.Tick(time.Nanosecond)

	moves := h.kinds(EventMoveCompleted)
	require.Len(t, moves, 2)
	assert.Equal(t, b.id, moves[0].ID)
	assert.Equal(t, a.id, moves[1].ID)

	for i, u := range []*unit{a, b} {
		goal := planner.reqs[i].Goal
		got, ok := h.reg.OccupantAt(goal)
		require.True(t, ok)
		assert.Same(t, u, got)
		info, _ := h.reg.Lookup(u.id)
		assert.Equal(t, goal, info.Tile)
		assert.False(t, h.reg.Occupancy().Reserved(goal))
	}
	assert.Zero(t, h.reg.Stats().Pending)
}

func TestDestinationAvoidsOccupiedAndReservedTiles(t *testing.T) {
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, 50)
	mover := newUnit()
	require.True(t, h.reg.Register(mover, "fast", hex.Coord{}))
	for q := -6; q <= 6; q++ {
		for r := -13; r <= 13; r++ {
			c := hex.Coord{Q: q, R: r}
			if c == (hex.Coord{}) || c == (hex.Coord{Q: 3, R: 0}) {
				continue
			}
			require.True(t, h.reg.Register(&unit{id: uuid.New()}, "slow", c))
		}
	}

	h.reg.Tick(step)
	require.Len(t, planner.reqs, 1)
	assert.Equal(t, hex.Coord{Q: 3, R: 0}, planner.reqs[0].Goal)
}

func TestCulledEntitiesAreCountedAndDoNotBankTime(t *testing.T) {
	vis := &window{maxQ: 10}
	planner := &manual{}
	h := newHarness(t, terrain.Land, vis, planner, 50)
	near, far := newUnit(), newUnit()
	require.True(t, h.reg.Register(near, "slow", hex.Coord{}))
	require.True(t, h.reg.Register(far, "steady", hex.Coord{Q: 50}))

	for i := 0; i < 10; i++ {
		h.reg.Tick(step)
		assert.Equal(t, 1, h.reg.Stats().Culled)
	}
	assert.Zero(t, h.reg.Stats().Attempts)

	vis.maxQ = 100
	for i := 0; i < 3; i++ {
		h.reg.Tick(step)
	}
	assert.Zero(t, h.reg.Stats().Attempts, "time spent culled is not banked")
	assert.Zero(t, h.reg.Stats().Culled)
	h.reg.Tick(step)
	assert.Equal(t, uint64(1), h.reg.Stats().Attempts)
}

func TestCompletedMoveRevealsChunk(t *testing.T) {
	vis := &window{maxQ: 1 << 20}
	h := newHarness(t, terrain.Land, vis, path.NewInline(), 50)
	u := newUnit()
	require.True(t, h.reg.Register(u, "fast", hex.Coord{}))
	h.reg.Tick(step)

	info, _ := h.reg.Lookup(u.id)
	assert.Equal(t, []hex.Coord{info.Tile}, vis.revealed)
}

func TestCombatantsAreSkipped(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	u := newUnit()
	u.combat = true
	require.True(t, h.reg.Register(u, "fast", hex.Coord{}))

	h.reg.Tick(step)
	h.reg.Tick(step)
	st := h.reg.Stats()
	assert.Zero(t, st.Attempts)
	assert.Equal(t, uint64(2), st.Skipped)
}

func TestUnregisterKeepsRoundRobinOrder(t *testing.T) {
	planner := &manual{}
	h := newHarness(t, terrain.Land, nil, planner, 2)
	units := make([]*unit, 5)
	for i := range units {
		units[i] = newUnit()
		require.True(t, h.reg.Register(units[i], "fast", hex.Coord{Q: i * 20}))
	}

	h.reg.Tick(step)
	require.True(t, h.reg.Unregister(units[0]))
	h.reg.Tick(step)
	h.reg.Tick(step)

	for _, u := range units[1:] {
		info, ok := h.reg.Lookup(u.id)
		require.True(t, ok)
		assert.True(t, info.Pending, "entity %s skipped", u.id)
	}
}

func TestFindEntityNearPosition(t *testing.T) {
	h := newHarness(t, terrain.Land, nil, path.NewInline(), 50)
	a, b := newUnit(), newUnit()
	require.True(t, h.reg.Register(a, "slow", hex.Coord{}))
	require.True(t, h.reg.Register(b, "slow", hex.Coord{Q: 5, R: 5}))

	p := hex.DefaultLayout.TileToWorld(hex.Coord{Q: 5, R: 5})
	p.X += 3
	got, ok := h.reg.FindEntityNearPosition(p, 10)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = h.reg.FindEntityNearPosition(hex.Point{X: 5000, Y: 5000}, 10)
	assert.False(t, ok)

	b.dead = true
	_, ok = h.reg.FindEntityNearPosition(p, 10)
	assert.False(t, ok)
}

func TestNewRegistryRejectsMisuse(t *testing.T) {
	oracle := terrain.FromSampler(terrain.Flat(terrain.Land))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Panics(t, func() {
		NewRegistry(oracle, nil, path.NewInline(), Options{TickInterval: step}, log)
	})
	assert.Panics(t, func() {
		NewRegistry(oracle, nil, path.NewInline(), Options{BatchSize: 1}, log)
	})
}
