package terrain

import (
	"fmt"
	"math"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// CachedOracle memoizes Walkable answers of an underlying oracle. It is safe
// for concurrent use by path workers. Writes to the cache are buffered, so a
// lookup right after a miss may miss again; the underlying oracle is
// deterministic, which makes that harmless.
type CachedOracle struct {
	next   Oracle
	caches map[Class]*ristretto.Cache[uint64, bool]
}

// NewCachedOracle wraps next with one cache per movement class, each holding
// up to entries answers.
func NewCachedOracle(next Oracle, entries int64) (*CachedOracle, error) {
	if entries <= 0 {
		return nil, fmt.Errorf("terrain cache: entries must be positive, got %d", entries)
	}
	co := &CachedOracle{
		next:   next,
		caches: make(map[Class]*ristretto.Cache[uint64, bool], 2),
	}
	for _, class := range []Class{ClassWater, ClassLand} {
		c, err := ristretto.NewCache(&ristretto.Config[uint64, bool]{
			NumCounters: entries * 10,
			MaxCost:     entries,
			BufferItems: 64,
			Metrics:     true,
			// Each answer costs 1, so MaxCost counts entries.
			IgnoreInternalCost: true,
		})
		if err != nil {
			co.Close()
			return nil, fmt.Errorf("terrain cache %s: %w", class, err)
		}
		co.caches[class] = c
	}
	return co, nil
}

func (co *CachedOracle) Walkable(class Class, x, y int) bool {
	c, ok := co.caches[class]
	if !ok || !fitsKey(x, y) {
		return co.next.Walkable(class, x, y)
	}
	key := tileKey(x, y)
	if v, ok := c.Get(key); ok {
		return v
	}
	v := co.next.Walkable(class, x, y)
	c.Set(key, v, 1)
	return v
}

func (co *CachedOracle) SampleChunk(c hex.ChunkCoord) []Kind {
	return co.next.SampleChunk(c)
}

// Wait blocks until buffered writes are applied.
func (co *CachedOracle) Wait() {
	for _, c := range co.caches {
		c.Wait()
	}
}

// HitRatio returns the combined hit ratio across classes.
func (co *CachedOracle) HitRatio() float64 {
	var hits, misses uint64
	for _, c := range co.caches {
		hits += c.Metrics.Hits()
		misses += c.Metrics.Misses()
	}
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Close releases the cache goroutines.
func (co *CachedOracle) Close() {
	for _, c := range co.caches {
		c.Close()
	}
}

func fitsKey(x, y int) bool {
	return x >= math.MinInt32 && x <= math.MaxInt32 && y >= math.MinInt32 && y <= math.MaxInt32
}

func tileKey(x, y int) uint64 {
	return uint64(uint32(int32(x)))<<32 | uint64(uint32(int32(y)))
}
