package chunk

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

// EventKind identifies a visibility notification.
type EventKind uint8

const (
	// EventRevealed fires when a chunk becomes explored for the first time.
	EventRevealed EventKind = iota
	// EventHidden fires when a chunk leaves the visible window.
	EventHidden
	// EventVisibleSetChanged fires when the visible window moves.
	EventVisibleSetChanged
)

func (k EventKind) String() string {
	switch k {
	case EventRevealed:
		return "revealed"
	case EventHidden:
		return "hidden"
	case EventVisibleSetChanged:
		return "visible_set_changed"
	}
	return "unknown"
}

// Event is delivered to renderers and overlays.
type Event struct {
	Kind    EventKind
	Chunk   hex.ChunkCoord
	Entered []hex.ChunkCoord
	Exited  []hex.ChunkCoord
}

// Requester accepts chunk generation requests. Generation happens elsewhere
// and is delivered back through Manager.ChunkLoaded, with no time bound.
type Requester interface {
	RequestChunk(c hex.ChunkCoord) bool
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Radius         int
	FogEnabled     bool
	CullingEnabled bool
	Layout         hex.Layout
	OnEvent        func(Event)
}

// Manager tracks per-chunk visibility and the window of chunks around the
// viewpoint. State is stored sparsely: absent chunks are hidden.
type Manager struct {
	pool *Pool
	gen  Requester
	opts ManagerOptions
	log  *slog.Logger

	states  map[hex.ChunkCoord]State
	visible map[hex.ChunkCoord]struct{}
	pending map[hex.ChunkCoord]struct{}

	center    hex.ChunkCoord
	hasCenter bool
}

// NewManager creates a manager over pool that sends generation requests to gen.
func NewManager(pool *Pool, gen Requester, opts ManagerOptions, log *slog.Logger) *Manager {
	if opts.Radius < 0 {
		opts.Radius = 0
	}
	if opts.Layout == (hex.Layout{}) {
		opts.Layout = hex.DefaultLayout
	}
	m := &Manager{
		pool:    pool,
		gen:     gen,
		opts:    opts,
		log:     log,
		states:  make(map[hex.ChunkCoord]State),
		visible: make(map[hex.ChunkCoord]struct{}),
		pending: make(map[hex.ChunkCoord]struct{}),
	}
	// An evicted chunk is no longer drawn, even inside the window.
	next := pool.OnEvict
	pool.OnEvict = func(c hex.ChunkCoord) {
		m.hide(c)
		if next != nil {
			next(c)
		}
	}
	return m
}

// UpdateVisibleWindow recomputes the visible window for a world-space
// viewpoint. It reports whether the window changed.
func (m *Manager) UpdateVisibleWindow(viewpoint hex.Point) bool {
	return m.UpdateVisibleChunk(hex.TileToChunk(m.opts.Layout.WorldToTile(viewpoint)))
}

// UpdateVisibleChunk recomputes the visible window centered on center. Calls
// with an unchanged center are no-ops.
func (m *Manager) UpdateVisibleChunk(center hex.ChunkCoord) bool {
	if m.hasCenter && center == m.center {
		return false
	}
	m.center, m.hasCenter = center, true

	next := make(map[hex.ChunkCoord]struct{}, (2*m.opts.Radius+1)*(2*m.opts.Radius+1))
	r := m.opts.Radius
	for y := center.Y - r; y <= center.Y+r; y++ {
		for x := center.X - r; x <= center.X+r; x++ {
			next[hex.ChunkCoord{X: x, Y: y}] = struct{}{}
		}
	}

	var entered, exited []hex.ChunkCoord
	for c := range next {
		if _, ok := m.visible[c]; !ok {
			entered = append(entered, c)
		}
	}
	for c := range m.visible {
		if _, ok := next[c]; !ok {
			exited = append(exited, c)
		}
	}
	if len(entered) == 0 && len(exited) == 0 {
		return false
	}
	sortChunks(entered)
	sortChunks(exited)

	m.visible = next
	m.emit(Event{Kind: EventVisibleSetChanged, Chunk: center, Entered: entered, Exited: exited})

	m.RequestMissing()

	for _, c := range exited {
		m.hide(c)
	}
	m.pool.ForEach(func(pl *Payload) {
		if _, ok := m.visible[pl.Coord]; ok {
			m.show(pl)
		} else {
			m.hide(pl.Coord)
			setHandlesVisible(pl, false)
		}
	})
	return true
}

// RequestMissing asks for generation of every visible chunk that is neither
// loaded nor already requested. It returns the number of requests sent.
func (m *Manager) RequestMissing() int {
	var missing []hex.ChunkCoord
	for c := range m.visible {
		if m.pool.IsLoaded(c) {
			continue
		}
		if _, ok := m.pending[c]; ok {
			continue
		}
		missing = append(missing, c)
	}
	sortChunks(missing)

	sent := 0
	for _, c := range missing {
		if !m.gen.RequestChunk(c) {
			m.log.Warn("chunk generation queue full", "x", c.X, "y", c.Y)
			break
		}
		m.pending[c] = struct{}{}
		sent++
	}
	return sent
}

// ChunkLoaded installs generated samples into the pool. A chunk arriving
// inside the visible window is shown immediately.
func (m *Manager) ChunkLoaded(c hex.ChunkCoord, samples []terrain.Kind) *Payload {
	delete(m.pending, c)
	pl := m.pool.Load(c, samples)
	if _, ok := m.visible[c]; ok {
		m.show(pl)
	}
	return pl
}

// ChunkFailed clears the pending mark of a chunk whose generation failed, so
// the next RequestMissing asks for it again while it is still in the window.
func (m *Manager) ChunkFailed(c hex.ChunkCoord) {
	if _, ok := m.pending[c]; !ok {
		return
	}
	delete(m.pending, c)
	m.log.Warn("chunk generation failed", "x", c.X, "y", c.Y)
}

// Reveal marks c explored. Repeated calls are no-ops.
func (m *Manager) Reveal(c hex.ChunkCoord) {
	old := m.states[c]
	m.states[c] = old.explore()
	if !old.Explored() {
		m.emit(Event{Kind: EventRevealed, Chunk: c})
	}
}

// RevealAtTile marks the chunk containing tile explored.
func (m *Manager) RevealAtTile(tile hex.Coord) {
	m.Reveal(hex.TileToChunk(tile))
}

// RevealAll forces every currently loaded chunk to explored and revealed.
// Chunks loaded afterwards are not affected.
func (m *Manager) RevealAll() {
	m.pool.ForEach(func(pl *Payload) {
		old := m.states[pl.Coord]
		m.states[pl.Coord] = old.forceReveal()
		if !old.Explored() {
			m.emit(Event{Kind: EventRevealed, Chunk: pl.Coord})
		}
	})
}

// SetFogEnabled toggles fog of war. Disabling reveals everything loaded;
// re-enabling hides nothing.
func (m *Manager) SetFogEnabled(enabled bool) {
	m.opts.FogEnabled = enabled
	if !enabled {
		m.RevealAll()
	}
}

// FogEnabled reports whether fog of war is on.
func (m *Manager) FogEnabled() bool { return m.opts.FogEnabled }

// SetCullingEnabled toggles visibility culling for IsTileInVisibleChunk.
func (m *Manager) SetCullingEnabled(enabled bool) { m.opts.CullingEnabled = enabled }

// IsTileInVisibleChunk reports whether tile lies in the visible window. It is
// always true while culling is disabled.
func (m *Manager) IsTileInVisibleChunk(tile hex.Coord) bool {
	if !m.opts.CullingEnabled {
		return true
	}
	_, ok := m.visible[hex.TileToChunk(tile)]
	return ok
}

// Flags returns the visibility state of c.
func (m *Manager) Flags(c hex.ChunkCoord) State { return m.states[c] }

// IsChunkVisible reports whether c has the VISIBLE flag.
func (m *Manager) IsChunkVisible(c hex.ChunkCoord) bool { return m.states[c].Visible() }

// IsChunkExplored reports whether c has the EXPLORED flag.
func (m *Manager) IsChunkExplored(c hex.ChunkCoord) bool { return m.states[c].Explored() }

// VisibleChunks returns the current window in row-major order.
func (m *Manager) VisibleChunks() []hex.ChunkCoord {
	out := make([]hex.ChunkCoord, 0, len(m.visible))
	for c := range m.visible {
		out = append(out, c)
	}
	sortChunks(out)
	return out
}

// Pending returns the number of chunks requested but not yet delivered.
func (m *Manager) Pending() int { return len(m.pending) }

// Pool returns the underlying chunk pool.
func (m *Manager) Pool() *Pool { return m.pool }

func (m *Manager) show(pl *Payload) {
	old := m.states[pl.Coord]
	m.states[pl.Coord] = old.show()
	setHandlesVisible(pl, true)
	if !old.Explored() {
		m.emit(Event{Kind: EventRevealed, Chunk: pl.Coord})
	}
}

func (m *Manager) hide(c hex.ChunkCoord) {
	old, ok := m.states[c]
	if !ok || !old.Visible() {
		return
	}
	m.states[c] = old.hide()
	m.emit(Event{Kind: EventHidden, Chunk: c})
}

func (m *Manager) emit(e Event) {
	if m.opts.OnEvent != nil {
		m.opts.OnEvent(e)
	}
}

func setHandlesVisible(pl *Payload, visible bool) {
	for _, h := range pl.Handles {
		h.Visible = visible
	}
}

func sortChunks(cs []hex.ChunkCoord) {
	slices.SortFunc(cs, func(a, b hex.ChunkCoord) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
}
