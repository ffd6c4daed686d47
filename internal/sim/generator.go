package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

type generatedChunk struct {
	coord   hex.ChunkCoord
	samples []terrain.Kind
	ok      bool
}

// generator samples chunks off the simulation goroutine. Finished chunks are
// handed back through drain, failed ones with ok unset.
type generator struct {
	oracle terrain.Oracle
	jobs   chan hex.ChunkCoord
	out    chan generatedChunk
	log    *slog.Logger
}

func newGenerator(oracle terrain.Oracle, queue int, log *slog.Logger) *generator {
	if queue <= 0 {
		queue = 64
	}
	return &generator{
		oracle: oracle,
		jobs:   make(chan hex.ChunkCoord, queue),
		out:    make(chan generatedChunk, queue),
		log:    log,
	}
}

// RequestChunk queues c without blocking.
func (g *generator) RequestChunk(c hex.ChunkCoord) bool {
	select {
	case g.jobs <- c:
		return true
	default:
		return false
	}
}

func (g *generator) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-g.jobs:
			samples, ok := g.sample(c)
			select {
			case g.out <- generatedChunk{coord: c, samples: samples, ok: ok}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (g *generator) sample(c hex.ChunkCoord) (samples []terrain.Kind, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("generate chunk: panic", "error", fmt.Sprint(r), "x", c.X, "y", c.Y)
			samples, ok = nil, false
		}
	}()
	return g.oracle.SampleChunk(c), true
}

func (g *generator) drain(fn func(generatedChunk)) int {
	n := 0
	for {
		select {
		case gc := <-g.out:
			fn(gc)
			n++
		default:
			return n
		}
	}
}
