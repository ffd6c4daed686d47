package terrain

// Simplex noise after Ken Perlin.
// Produces values in the range [-1, 1].

var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// Noise produces deterministic 2D simplex noise from a seed.
type Noise struct {
	perm [512]int
}

// NewNoise creates a noise source with a seeded permutation table.
func NewNoise(seed int64) *Noise {
	n := &Noise{}

	var p [256]int
	for i := range p {
		p[i] = i
	}

	// Fisher-Yates shuffle driven by an LCG on the seed.
	s := seed
	for i := 255; i > 0; i-- {
		s = s*6364136223846793005 + 1442695040888963407
		j := int((s>>33)&0x7FFFFFFF) % (i + 1)
		p[i], p[j] = p[j], p[i]
	}

	for i := 0; i < 512; i++ {
		n.perm[i] = p[i&255]
	}
	return n
}

// At returns the noise value at (x, y), in [-1, 1].
func (n *Noise) At(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	s := (x + y) * f2
	i := fastFloor(x + s)
	j := fastFloor(y + s)

	t := float64(i+j) * g2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	var i1, j1 int
	if x0 > y0 {
		i1 = 1
	} else {
		j1 = 1
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1.0 + 2.0*g2
	y2 := y0 - 1.0 + 2.0*g2

	ii := i & 255
	jj := j & 255
	gi0 := n.perm[ii+n.perm[jj]] % 12
	gi1 := n.perm[ii+i1+n.perm[jj+j1]] % 12
	gi2 := n.perm[ii+1+n.perm[jj+1]] % 12

	return 70.0 * (corner(grad3[gi0], x0, y0) + corner(grad3[gi1], x1, y1) + corner(grad3[gi2], x2, y2))
}

// Octaves layers several frequencies of noise. Returns a value roughly in [-1, 1].
func (n *Noise) Octaves(x, y float64, octaves int, persistence float64) float64 {
	var total, maxVal float64
	frequency, amplitude := 1.0, 1.0

	for range octaves {
		total += n.At(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2.0
	}
	return total / maxVal
}

func corner(g [3]float64, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y)
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}

// Island is a Sampler that turns elevation noise into water, land and
// scattered obstacles. It stands in for the external world generator.
type Island struct {
	noise     *Noise
	detail    *Noise
	Scale     float64
	SeaLevel  float64
	RockLevel float64
}

// NewIsland builds an Island sampler for seed with default thresholds.
func NewIsland(seed int64) *Island {
	return &Island{
		noise:     NewNoise(seed),
		detail:    NewNoise(seed ^ 0x5DEECE66D),
		Scale:     0.035,
		SeaLevel:  -0.05,
		RockLevel: 0.82,
	}
}

func (is *Island) KindAt(x, y int) Kind {
	e := is.noise.Octaves(float64(x)*is.Scale, float64(y)*is.Scale, 4, 0.5)
	if e < is.SeaLevel {
		return Water
	}
	if is.detail.At(float64(x)*0.3, float64(y)*0.3) > is.RockLevel {
		return Obstacle
	}
	return Land
}
