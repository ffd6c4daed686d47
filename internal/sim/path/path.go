// Package path finds routes across the hex grid and runs the searches off the
// simulation goroutine.
package path

import (
	"container/heap"
	"math/rand/v2"

	"github.com/OCharnyshevich/hexworld/internal/sim/hex"
)

// Validator reports whether a unit may enter c.
type Validator func(c hex.Coord) bool

// DefaultMaxCost bounds the g-score a search may reach before giving up.
const DefaultMaxCost = 64

// Neighbors returns the six tiles adjacent to c.
func Neighbors(c hex.Coord) [6]hex.Coord {
	return c.Neighbors()
}

// FindPath runs A* from start to goal. The result excludes start and ends at
// goal; it is empty when goal is invalid, unreachable, or the search exceeds
// maxCost. Among equal-cost routes the one found first wins, callers must not
// rely on which.
func FindPath(start, goal hex.Coord, valid Validator, maxCost int) []hex.Coord {
	if start == goal || !valid(goal) {
		return nil
	}
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}

	open := &openSet{}
	cameFrom := make(map[hex.Coord]hex.Coord)
	gScore := map[hex.Coord]int{start: 0}
	closed := make(map[hex.Coord]struct{})
	var seq int

	heap.Push(open, &node{coord: start, g: 0, f: hex.Distance(start, goal), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.g > maxCost {
			return nil
		}
		if cur.coord == goal {
			return reconstruct(cameFrom, start, goal)
		}
		if _, done := closed[cur.coord]; done {
			continue
		}
		closed[cur.coord] = struct{}{}

		for _, n := range cur.coord.Neighbors() {
			if _, done := closed[n]; done {
				continue
			}
			if !valid(n) {
				continue
			}
			g := cur.g + 1
			if old, seen := gScore[n]; seen && g >= old {
				continue
			}
			cameFrom[n] = cur.coord
			gScore[n] = g
			seq++
			heap.Push(open, &node{coord: n, g: g, f: g + hex.Distance(n, goal), seq: seq})
		}
	}
	return nil
}

// RandomDestination picks uniformly among valid tiles whose distance from
// start lies in [minDist, maxDist]. It returns start when there is none;
// callers treat that as "stay put".
func RandomDestination(rng *rand.Rand, start hex.Coord, valid Validator, minDist, maxDist int) hex.Coord {
	if maxDist < minDist || maxDist < 0 {
		return start
	}
	minDist = max(minDist, 0)

	// Distance >= dx and Distance >= (dy-dx)/2, so the band fits inside
	// |dq| <= maxDist, |dr| <= 2*maxDist+1.
	rowSpan := 2*maxDist + 1
	var candidates []hex.Coord
	for dr := -rowSpan; dr <= rowSpan; dr++ {
		for dq := -maxDist; dq <= maxDist; dq++ {
			c := hex.Coord{Q: start.Q + dq, R: start.R + dr}
			d := hex.Distance(start, c)
			if d < minDist || d > maxDist {
				continue
			}
			if !valid(c) {
				continue
			}
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return start
	}
	return candidates[rng.IntN(len(candidates))]
}

func reconstruct(cameFrom map[hex.Coord]hex.Coord, start, goal hex.Coord) []hex.Coord {
	var out []hex.Coord
	for c := goal; c != start; c = cameFrom[c] {
		out = append(out, c)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type node struct {
	coord hex.Coord
	g, f  int
	seq   int
}

// openSet orders by lowest f, then by insertion order.
type openSet []*node

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(*node)) }
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}
