package hex

import "math"

// Point is a position in world pixel space.
type Point struct {
	X, Y float64
}

// Layout converts between tile coordinates and world pixels for a
// pointy-top, odd-row offset grid.
type Layout struct {
	HSpacing float64 // horizontal distance between centers in a row
	VSpacing float64 // vertical distance between rows
	OriginX  float64
	OriginY  float64
}

// DefaultLayout matches the tile atlas spacing of the renderer.
var DefaultLayout = Layout{
	HSpacing: 24.5,
	VSpacing: 28.5,
	OriginX:  16,
	OriginY:  28,
}

// TileToWorld returns the pixel center of c.
func (l Layout) TileToWorld(c Coord) Point {
	x := l.OriginX + float64(c.Q)*l.HSpacing
	if c.R&1 == 1 {
		x += l.HSpacing / 2
	}
	return Point{X: x, Y: l.OriginY + float64(c.R)*l.VSpacing}
}

// WorldToTile returns the tile whose row and column bracket p.
func (l Layout) WorldToTile(p Point) Coord {
	r := int(math.Round((p.Y - l.OriginY) / l.VSpacing))
	x := p.X - l.OriginX
	if r&1 == 1 {
		x -= l.HSpacing / 2
	}
	q := int(math.Round(x / l.HSpacing))
	return Coord{Q: q, R: r}
}

// Dist returns the euclidean distance between two points.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}
