package path

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// Request asks for a path between two tiles. Valid must not touch state
// owned by the simulation goroutine: it runs on a worker.
type Request struct {
	ID      uuid.UUID
	Start   hex.Coord
	Goal    hex.Coord
	Valid   Validator
	MaxCost int
}

// Result carries the outcome of a Request, matched by ID.
type Result struct {
	ID    uuid.UUID
	Start hex.Coord
	Goal  hex.Coord
	Path  []hex.Coord
}

// Found reports whether a path was produced.
func (r Result) Found() bool { return len(r.Path) > 0 }

// Planner accepts path requests and hands back results when polled.
type Planner interface {
	// Submit queues req. It returns false when the request was not accepted.
	Submit(req Request) bool
	// Drain calls fn for every result that is ready and returns the count.
	Drain(fn func(Result)) int
}

func solve(req Request) Result {
	return Result{
		ID:    req.ID,
		Start: req.Start,
		Goal:  req.Goal,
		Path:  FindPath(req.Start, req.Goal, req.Valid, req.MaxCost),
	}
}

// Inline solves requests synchronously on Submit and delivers the results on
// the next Drain.
type Inline struct {
	ready []Result
}

// NewInline returns a synchronous planner.
func NewInline() *Inline { return &Inline{} }

func (p *Inline) Submit(req Request) bool {
	p.ready = append(p.ready, solve(req))
	return true
}

func (p *Inline) Drain(fn func(Result)) int {
	ready := p.ready
	p.ready = nil
	for _, r := range ready {
		fn(r)
	}
	return len(ready)
}

// Pool solves requests on a fixed set of worker goroutines. Results are only
// delivered through Drain, so callers consume them on their own goroutine.
type Pool struct {
	workers int
	jobs    chan Request
	results chan Result
	log     *slog.Logger
}

// NewPool creates a pool with the given worker count and queue depth.
func NewPool(workers, queue int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan Request, queue),
		results: make(chan Result, queue),
		log:     log,
	}
}

// Run starts the workers and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	p.log.Info("path workers started", "workers", p.workers)
	err := g.Wait()
	p.log.Info("path workers stopped")
	return err
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.jobs:
			res := solve(req)
			select {
			case p.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Submit never blocks; a full queue rejects the request.
func (p *Pool) Submit(req Request) bool {
	select {
	case p.jobs <- req:
		return true
	default:
		return false
	}
}

func (p *Pool) Drain(fn func(Result)) int {
	n := 0
	for {
		select {
		case r := <-p.results:
			fn(r)
			n++
		default:
			return n
		}
	}
}

// Queued returns the number of requests waiting for a worker.
func (p *Pool) Queued() int { return len(p.jobs) }
