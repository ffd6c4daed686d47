// Package chunk caches streamed world chunks and tracks fog-of-war visibility.
//
// Pool and Manager are owned by the simulation goroutine and are not safe for
// concurrent use.
package chunk

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

// RenderHandle is a reusable render instance. The pool recycles handles
// through a free-list instead of destroying them.
type RenderHandle struct {
	ID      int
	Chunk   hex.ChunkCoord
	Layer   terrain.Kind
	Visible bool
}

func (h *RenderHandle) reset() {
	h.Chunk = hex.ChunkCoord{}
	h.Layer = 0
	h.Visible = false
}

// Payload is a loaded chunk: its terrain samples and the render handles it
// owns, one per terrain layer present.
type Payload struct {
	Coord   hex.ChunkCoord
	Samples []terrain.Kind
	Handles []*RenderHandle

	lastAccess uint64
}

// KindAt returns the sample for a tile inside this chunk.
func (p *Payload) KindAt(c hex.Coord) terrain.Kind {
	return p.Samples[hex.LocalIndex(c)]
}

// LastAccess returns the logical time of the last load or hit.
func (p *Payload) LastAccess() uint64 { return p.lastAccess }

// PoolStats is a snapshot of cache counters.
type PoolStats struct {
	Loaded      int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	FreeHandles int
	Allocated   int
}

// Pool is a capacity-bounded chunk cache with strict least-recently-used
// eviction. Recency order is kept by the underlying LRU list; a logical clock
// advanced on every load and hit stamps payloads for inspection.
type Pool struct {
	capacity int
	entries  *simplelru.LRU[hex.ChunkCoord, *Payload]
	clock    uint64

	free      []*RenderHandle
	allocated int

	// evicted collects capacity evictions during Load.
	adding  bool
	evicted []hex.ChunkCoord

	hits, misses, evictions uint64

	// OnEvict, when set, is called after a chunk is evicted for capacity.
	OnEvict func(hex.ChunkCoord)

	log *slog.Logger
}

// NewPool creates a pool holding at most capacity chunks.
func NewPool(capacity int, log *slog.Logger) *Pool {
	if capacity <= 0 {
		panic(fmt.Sprintf("chunk: pool capacity must be positive, got %d", capacity))
	}
	p := &Pool{capacity: capacity, log: log}
	entries, err := simplelru.NewLRU[hex.ChunkCoord, *Payload](capacity, p.release)
	if err != nil {
		panic(fmt.Sprintf("chunk: %v", err))
	}
	p.entries = entries
	return p
}

// Capacity returns the configured cap.
func (p *Pool) Capacity() int { return p.capacity }

// Len returns the number of loaded chunks.
func (p *Pool) Len() int { return p.entries.Len() }

// IsLoaded reports whether c is cached. It does not touch the entry.
func (p *Pool) IsLoaded(c hex.ChunkCoord) bool {
	return p.entries.Contains(c)
}

// Get returns the payload for c and refreshes its recency, or nil on a miss.
func (p *Pool) Get(c hex.ChunkCoord) *Payload {
	pl, ok := p.entries.Get(c)
	if !ok {
		p.misses++
		return nil
	}
	p.hits++
	p.touch(pl)
	return pl
}

// Load inserts a chunk built from samples. Loading an already cached chunk
// returns the existing payload unchanged. Inserting into a full pool evicts
// the least recently used chunk; the new chunk is never the one evicted.
func (p *Pool) Load(c hex.ChunkCoord, samples []terrain.Kind) *Payload {
	if pl, ok := p.entries.Peek(c); ok {
		return pl
	}

	pl := &Payload{Coord: c, Samples: samples}
	for _, layer := range layersOf(samples) {
		h := p.AcquireRenderHandle()
		h.Chunk = c
		h.Layer = layer
		pl.Handles = append(pl.Handles, h)
	}
	p.touch(pl)

	p.adding = true
	p.entries.Add(c, pl)
	p.adding = false

	evicted := p.evicted
	p.evicted = nil
	for _, old := range evicted {
		p.evictions++
		p.log.Debug("chunk evicted", "x", old.X, "y", old.Y)
		if p.OnEvict != nil {
			p.OnEvict(old)
		}
	}
	return pl
}

// Unload releases the chunk's handles and removes it. It returns false when
// c was not loaded.
func (p *Pool) Unload(c hex.ChunkCoord) bool {
	return p.entries.Remove(c)
}

// Clear unloads every chunk.
func (p *Pool) Clear() {
	p.entries.Purge()
}

// ForEach calls fn for every loaded chunk, least recently used first, without
// touching recency.
func (p *Pool) ForEach(fn func(*Payload)) {
	for _, c := range p.entries.Keys() {
		if pl, ok := p.entries.Peek(c); ok {
			fn(pl)
		}
	}
}

// AcquireRenderHandle pops a handle from the free-list or allocates one.
func (p *Pool) AcquireRenderHandle() *RenderHandle {
	if n := len(p.free); n > 0 {
		h := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return h
	}
	p.allocated++
	return &RenderHandle{ID: p.allocated}
}

// ReleaseRenderHandle resets h and returns it to the free-list.
func (p *Pool) ReleaseRenderHandle(h *RenderHandle) {
	if h == nil {
		return
	}
	h.reset()
	p.free = append(p.free, h)
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Loaded:      p.entries.Len(),
		Hits:        p.hits,
		Misses:      p.misses,
		Evictions:   p.evictions,
		FreeHandles: len(p.free),
		Allocated:   p.allocated,
	}
}

func (p *Pool) touch(pl *Payload) {
	p.clock++
	pl.lastAccess = p.clock
}

// release is the LRU removal callback. It runs for evictions, Unload and
// Clear alike.
func (p *Pool) release(c hex.ChunkCoord, pl *Payload) {
	for _, h := range pl.Handles {
		p.ReleaseRenderHandle(h)
	}
	pl.Handles = nil
	pl.Samples = nil
	if p.adding {
		p.evicted = append(p.evicted, c)
	}
}

// layersOf returns the distinct kinds in samples in ascending order.
func layersOf(samples []terrain.Kind) []terrain.Kind {
	var seen [256]bool
	for _, k := range samples {
		seen[k] = true
	}
	var out []terrain.Kind
	for k, ok := range seen {
		if ok {
			out = append(out, terrain.Kind(k))
		}
	}
	return out
}
