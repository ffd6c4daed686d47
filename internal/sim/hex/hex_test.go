package hex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborsDependOnRowParity(t *testing.T) {
	even := Coord{Q: 2, R: 2}.Neighbors()
	odd := Coord{Q: 2, R: 3}.Neighbors()

	assert.Contains(t, even[:], Coord{Q: 1, R: 1})
	assert.NotContains(t, even[:], Coord{Q: 3, R: 1})
	assert.Contains(t, odd[:], Coord{Q: 3, R: 2})
	assert.NotContains(t, odd[:], Coord{Q: 1, R: 2})
}

func TestNeighborsAreSymmetric(t *testing.T) {
	for q := -3; q <= 3; q++ {
		for r := -3; r <= 3; r++ {
			c := Coord{Q: q, R: r}
			for _, n := range c.Neighbors() {
				require.Truef(t, IsNeighbor(n, c), "%v -> %v not symmetric", c, n)
			}
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{0, 0}, 0},
		{Coord{0, 0}, Coord{3, 0}, 3},
		{Coord{0, 0}, Coord{0, 4}, 2},
		{Coord{0, 0}, Coord{1, 5}, 3},
		{Coord{5, 5}, Coord{2, 1}, 3},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Distance(tt.a, tt.b), "Distance(%v, %v)", tt.a, tt.b)
		assert.Equalf(t, tt.want, Distance(tt.b, tt.a), "Distance(%v, %v)", tt.b, tt.a)
	}
}

func TestTileToChunkFloorsNegatives(t *testing.T) {
	assert.Equal(t, ChunkCoord{X: 0, Y: 0}, TileToChunk(Coord{Q: 0, R: 31}))
	assert.Equal(t, ChunkCoord{X: -1, Y: 0}, TileToChunk(Coord{Q: -1, R: 0}))
	assert.Equal(t, ChunkCoord{X: -1, Y: -2}, TileToChunk(Coord{Q: -32, R: -33}))
	assert.Equal(t, ChunkCoord{X: 1, Y: 0}, TileToChunk(Coord{Q: 32, R: 0}))
}

func TestChunkRoundTrip(t *testing.T) {
	for x := -5; x <= 5; x++ {
		for y := -5; y <= 5; y++ {
			c := ChunkCoord{X: x, Y: y}
			require.Equal(t, c, TileToChunk(ChunkToTile(c)))
		}
	}
}

func TestLocalIndex(t *testing.T) {
	assert.Equal(t, 0, LocalIndex(Coord{Q: 0, R: 0}))
	assert.Equal(t, 0, LocalIndex(Coord{Q: -32, R: 64}))
	assert.Equal(t, ChunkSize*ChunkSize-1, LocalIndex(Coord{Q: -1, R: -1}))
	assert.Equal(t, 2*ChunkSize+5, LocalIndex(Coord{Q: 5, R: 2}))
}

func TestLayoutRoundTrip(t *testing.T) {
	l := DefaultLayout
	for q := -10; q <= 10; q++ {
		for r := -10; r <= 10; r++ {
			c := Coord{Q: q, R: r}
			require.Equal(t, c, l.WorldToTile(l.TileToWorld(c)))
		}
	}
}

func TestLayoutOddRowShift(t *testing.T) {
	l := DefaultLayout
	even := l.TileToWorld(Coord{Q: 0, R: 0})
	odd := l.TileToWorld(Coord{Q: 0, R: 1})
	assert.InDelta(t, l.HSpacing/2, odd.X-even.X, 1e-9)
	assert.InDelta(t, l.VSpacing, odd.Y-even.Y, 1e-9)
}
