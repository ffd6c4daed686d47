// Package hex implements the odd-row offset hex grid used by the world:
// tile and chunk coordinates, neighbor tables and pixel layout.
package hex

// ChunkSize is the edge length of a chunk in tiles.
const ChunkSize = 32

// Coord is a tile position in odd-row offset coordinates. Odd rows are
// shifted half a tile to the right. The grid is unbounded.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// ChunkCoord identifies a ChunkSize×ChunkSize block of tiles.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Neighbor offsets indexed by row parity (0 = even row, 1 = odd row).
var neighborOffsets = [2][6]Coord{
	{
		{Q: 1, R: 0}, {Q: -1, R: 0},
		{Q: 0, R: -1}, {Q: -1, R: -1},
		{Q: 0, R: 1}, {Q: -1, R: 1},
	},
	{
		{Q: 1, R: 0}, {Q: -1, R: 0},
		{Q: 1, R: -1}, {Q: 0, R: -1},
		{Q: 1, R: 1}, {Q: 0, R: 1},
	},
}

// Neighbors returns the six tiles adjacent to c.
func (c Coord) Neighbors() [6]Coord {
	var out [6]Coord
	for i, d := range neighborOffsets[c.R&1] {
		out[i] = Coord{Q: c.Q + d.Q, R: c.R + d.R}
	}
	return out
}

// IsNeighbor reports whether b is one of the six tiles adjacent to a.
func IsNeighbor(a, b Coord) bool {
	for _, n := range a.Neighbors() {
		if n == b {
			return true
		}
	}
	return false
}

// Distance is the search heuristic over absolute coordinate deltas:
// dx + max(0, (dy-dx)/2).
func Distance(a, b Coord) int {
	dx := abs(a.Q - b.Q)
	dy := abs(a.R - b.R)
	return dx + max(0, (dy-dx)/2)
}

// TileToChunk returns the chunk containing c.
func TileToChunk(c Coord) ChunkCoord {
	return ChunkCoord{X: floorDiv(c.Q, ChunkSize), Y: floorDiv(c.R, ChunkSize)}
}

// ChunkToTile returns the top-left tile of the chunk.
func ChunkToTile(c ChunkCoord) Coord {
	return Coord{Q: c.X * ChunkSize, R: c.Y * ChunkSize}
}

// LocalIndex returns the row-major index of c inside its chunk.
func LocalIndex(c Coord) int {
	return floorMod(c.R, ChunkSize)*ChunkSize + floorMod(c.Q, ChunkSize)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
