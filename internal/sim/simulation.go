// Package sim runs the hex world: chunk streaming around a panning camera,
// pathfinding workers and the entity scheduler.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/hexworld/internal/sim/chunk"
	"github.com/OCharnyshevich/hexworld/internal/sim/config"
	"github.com/OCharnyshevich/hexworld/internal/sim/entity"
	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/path"
	"github.com/OCharnyshevich/hexworld/internal/sim/preset"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

const (
	recycleEvery = time.Second
	combatFor    = 2 * time.Second
	spawnTries   = 32
)

// Simulation owns every component and the main loop. Everything except the
// path and chunk workers runs on the goroutine calling Run.
type Simulation struct {
	cfg *config.Config
	log *slog.Logger

	oracle  terrain.Oracle
	cached  *terrain.CachedOracle
	workers *path.Pool
	gen     *generator

	chunks   *chunk.Manager
	registry *entity.Registry
	spawner  *Spawner
	camera   Camera
	layout   hex.Layout

	kinds []string
	rng   *rand.Rand
	// shortfall holds kinds whose respawn found no tile, retried on the
	// next recycle.
	shortfall []string

	elapsed     time.Duration
	lastStats   time.Duration
	lastRecycle time.Duration
	revealed    int
	hidden      int
}

// New creates a Simulation with the given config and logger.
func New(cfg *config.Config, log *slog.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	types := preset.Builtin()
	if cfg.PresetDir != "" {
		store, err := preset.New(cfg.PresetDir, log)
		if err != nil {
			return nil, fmt.Errorf("open presets: %w", err)
		}
		if types, err = store.Load(); err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	}
	def := entity.TypeInfo{
		Class:        terrain.ClassLand,
		MoveInterval: cfg.DefaultMoveInterval,
		WanderMin:    cfg.WanderMin,
		WanderMax:    cfg.WanderMax,
	}
	table, err := preset.Table(types, def)
	if err != nil {
		return nil, fmt.Errorf("build type table: %w", err)
	}

	s := &Simulation{
		cfg:     cfg,
		log:     log,
		oracle:  terrain.FromSampler(terrain.NewIsland(cfg.Seed)),
		spawner: NewSpawner(),
		layout:  hex.DefaultLayout,
		kinds:   slices.Sorted(maps.Keys(table)),
		rng:     rand.New(rand.NewPCG(uint64(cfg.Seed), 0x9E3779B97F4A7C15)),
	}
	if cfg.OracleCacheSize > 0 {
		if s.cached, err = terrain.NewCachedOracle(s.oracle, cfg.OracleCacheSize); err != nil {
			return nil, err
		}
		s.oracle = s.cached
	}

	var planner path.Planner = path.NewInline()
	if cfg.PathWorkers > 0 {
		s.workers = path.NewPool(cfg.PathWorkers, cfg.PathQueue, log)
		planner = s.workers
	}
	s.gen = newGenerator(s.oracle, cfg.GenQueue, log)

	pool := chunk.NewPool(cfg.ChunkCacheSize, log)
	s.chunks = chunk.NewManager(pool, s.gen, chunk.ManagerOptions{
		Radius:         cfg.RenderDistance,
		FogEnabled:     cfg.FogEnabled,
		CullingEnabled: cfg.CullingEnabled,
		Layout:         s.layout,
		OnEvent:        s.onChunkEvent,
	}, log)
	if !cfg.FogEnabled {
		s.chunks.SetFogEnabled(false)
	}

	s.registry = entity.NewRegistry(s.oracle, s.chunks, planner, entity.Options{
		BatchSize:    cfg.BatchSize,
		TickInterval: cfg.ScheduleInterval,
		Types:        table,
		Default:      def,
		MaxPathCost:  cfg.MaxPathCost,
		Layout:       s.layout,
		Rand:         s.rng,
		OnEvent:      s.onEntityEvent,
	}, log)

	s.camera = Camera{
		Pos: s.layout.TileToWorld(hex.Coord{}),
		Vel: hex.Point{X: cfg.CameraSpeed, Y: cfg.CameraSpeed / 3},
	}
	return s, nil
}

// Run starts the workers and the frame loop, and blocks until ctx is
// cancelled.
func (s *Simulation) Run(ctx context.Context) error {
	defer func() {
		if s.cached != nil {
			s.cached.Close()
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	if s.workers != nil {
		g.Go(func() error { return s.workers.Run(ctx) })
	}
	g.Go(func() error { return s.gen.run(ctx) })
	g.Go(func() error { return s.loop(ctx) })
	return g.Wait()
}

func (s *Simulation) loop(ctx context.Context) error {
	frame := time.Second / time.Duration(s.cfg.FrameRate)
	s.log.Info("simulation started",
		"seed", s.cfg.Seed,
		"population", s.cfg.Population,
		"frame", frame,
		"batch", s.cfg.BatchSize,
		"workers", s.cfg.PathWorkers,
	)

	s.chunks.UpdateVisibleWindow(s.camera.Pos)
	s.Populate(s.cfg.Population)

	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logStats()
			s.log.Info("simulation stopped", "elapsed", s.elapsed)
			return nil
		case <-ticker.C:
			s.Step(frame)
		}
	}
}

// Step advances the simulation by one frame of length dt.
func (s *Simulation) Step(dt time.Duration) {
	s.elapsed += dt

	s.camera.Advance(dt)
	s.chunks.UpdateVisibleWindow(s.camera.Pos)
	s.gen.drain(func(gc generatedChunk) {
		if !gc.ok {
			s.chunks.ChunkFailed(gc.coord)
			return
		}
		s.chunks.ChunkLoaded(gc.coord, gc.samples)
	})
	s.chunks.RequestMissing()

	s.spawner.forEach(func(u *Unit) {
		if u.combat > 0 {
			u.combat -= dt
		}
	})
	s.registry.Tick(dt)

	if s.elapsed-s.lastRecycle >= recycleEvery {
		s.lastRecycle = s.elapsed
		s.recycle()
	}
	if s.cfg.StatsEvery > 0 && s.elapsed-s.lastStats >= s.cfg.StatsEvery {
		s.lastStats = s.elapsed
		s.logStats()
	}
}

// Populate spawns up to n units near the camera and returns how many were
// placed.
func (s *Simulation) Populate(n int) int {
	if len(s.kinds) == 0 {
		return 0
	}
	placed := 0
	for i := 0; i < n; i++ {
		if s.spawn(s.kinds[i%len(s.kinds)]) {
			placed++
		}
	}
	return placed
}

func (s *Simulation) spawn(kind string) bool {
	tile, ok := s.spawnTile(kind)
	if !ok {
		return false
	}
	u := s.spawner.Acquire(kind)
	if !s.registry.Register(u, kind, tile) {
		s.spawner.Release(u)
		return false
	}
	return true
}

// spawnTile picks a free walkable tile for kind inside the visible window.
func (s *Simulation) spawnTile(kind string) (hex.Coord, bool) {
	info, _ := s.registry.TypeInfo(kind)
	window := s.chunks.VisibleChunks()
	if len(window) == 0 {
		return hex.Coord{}, false
	}
	for i := 0; i < spawnTries; i++ {
		origin := hex.ChunkToTile(window[s.rng.IntN(len(window))])
		c := hex.Coord{
			Q: origin.Q + s.rng.IntN(hex.ChunkSize),
			R: origin.R + s.rng.IntN(hex.ChunkSize),
		}
		if !s.walkable(info.Class, c) {
			continue
		}
		if _, taken := s.registry.OccupantAt(c); taken {
			continue
		}
		return c, true
	}
	return hex.Coord{}, false
}

// walkable answers from the loaded chunk when there is one.
func (s *Simulation) walkable(class terrain.Class, c hex.Coord) bool {
	if pl := s.chunks.Pool().Get(hex.TileToChunk(c)); pl != nil {
		return class.Walkable(pl.KindAt(c))
	}
	return s.oracle.Walkable(class, c.Q, c.R)
}

// recycle despawns units the camera has left far behind and respawns them
// near the viewpoint. Respawns that find no tile are retried next time.
func (s *Simulation) recycle() {
	center := hex.TileToChunk(s.layout.WorldToTile(s.camera.Pos))
	limit := s.cfg.RenderDistance + 2

	var far []*Unit
	s.spawner.forEach(func(u *Unit) {
		info, ok := s.registry.Lookup(u.ID())
		if !ok || info.Pending {
			return
		}
		c := hex.TileToChunk(info.Tile)
		if max(abs(c.X-center.X), abs(c.Y-center.Y)) > limit {
			far = append(far, u)
		}
	})

	kinds := s.shortfall
	s.shortfall = nil
	for _, u := range far {
		kinds = append(kinds, u.Kind())
		s.registry.Unregister(u)
		s.spawner.Release(u)
	}
	for _, kind := range kinds {
		if !s.spawn(kind) {
			s.shortfall = append(s.shortfall, kind)
		}
	}
	if len(far) > 0 {
		s.log.Debug("recycled units", "count", len(far))
	}
	if len(s.shortfall) > 0 {
		s.log.Warn("respawn short of free tiles", "missing", len(s.shortfall))
	}
}

func (s *Simulation) onChunkEvent(e chunk.Event) {
	switch e.Kind {
	case chunk.EventRevealed:
		s.revealed++
	case chunk.EventHidden:
		s.hidden++
	case chunk.EventVisibleSetChanged:
		s.log.Debug("visible window moved", "x", e.Chunk.X, "y", e.Chunk.Y, "entered", len(e.Entered), "exited", len(e.Exited))
	}
}

// onEntityEvent starts a skirmish when a unit stops next to another one.
func (s *Simulation) onEntityEvent(e entity.Event) {
	if e.Kind != entity.EventMoveCompleted {
		return
	}
	u, ok := e.Entity.(*Unit)
	if !ok {
		return
	}
	for _, n := range e.To.Neighbors() {
		other, ok := s.registry.OccupantAt(n)
		if !ok {
			continue
		}
		if ou, ok := other.(*Unit); ok {
			u.combat = combatFor
			ou.combat = combatFor
			return
		}
	}
}

func (s *Simulation) logStats() {
	rs := s.registry.Stats()
	ps := s.chunks.Pool().Stats()
	attrs := []any{
		"registered", rs.Registered,
		"pending", rs.Pending,
		"culled", rs.Culled,
		"moves", rs.Moves,
		"failed", rs.Failures,
		"saturated", rs.Saturated,
		"chunks", ps.Loaded,
		"hits", ps.Hits,
		"misses", ps.Misses,
		"evictions", ps.Evictions,
		"revealed", s.revealed,
		"hidden", s.hidden,
		"reused", s.spawner.Reused(),
	}
	if s.cached != nil {
		attrs = append(attrs, "oracleHitRatio", fmt.Sprintf("%.2f", s.cached.HitRatio()))
	}
	s.log.Info("simulation stats", attrs...)
}

// Registry returns the entity scheduler.
func (s *Simulation) Registry() *entity.Registry { return s.registry }

// Chunks returns the chunk manager.
func (s *Simulation) Chunks() *chunk.Manager { return s.chunks }

// Camera returns the camera.
func (s *Simulation) Camera() *Camera { return &s.camera }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
