package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Density noise parameters: alpha, beta and octave count of the fractal sum.
const (
	densityAlpha   = 2
	densityBeta    = 2
	densityOctaves = 3
)

var simplexGradients = [12][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {1, 0}, {-1, 0},
	{0, 1}, {0, -1}, {0, 1}, {0, -1},
}

// simplex is a 2D simplex noise with a seed-shuffled permutation table.
// Output lies in [-1, 1].
type simplex struct {
	perm [512]uint8
}

func newSimplex(seed int64) *simplex {
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	state := uint64(seed)
	for i := 255; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int((state >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	s := &simplex{}
	for i := range s.perm {
		s.perm[i] = p[i&255]
	}
	return s
}

func (s *simplex) noise2(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3)-1)/2
		g2 = 0.21132486540518711775 // (3-sqrt(3))/6
	)

	skew := (x + y) * f2
	i := int(math.Floor(x + skew))
	j := int(math.Floor(y + skew))
	unskew := float64(i+j) * g2
	x0 := x - (float64(i) - unskew)
	y0 := y - (float64(j) - unskew)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1 + 2*g2
	y2 := y0 - 1 + 2*g2

	ii := i & 255
	jj := j & 255
	corners := [3]struct {
		x, y float64
		grad int
	}{
		{x0, y0, int(s.perm[ii+int(s.perm[jj])]) % 12},
		{x1, y1, int(s.perm[ii+i1+int(s.perm[jj+j1])]) % 12},
		{x2, y2, int(s.perm[ii+1+int(s.perm[jj+1])]) % 12},
	}

	var sum float64
	for _, c := range corners {
		t := 0.5 - c.x*c.x - c.y*c.y
		if t < 0 {
			continue
		}
		t *= t
		g := simplexGradients[c.grad]
		sum += t * t * (g[0]*c.x + g[1]*c.y)
	}
	return 70 * sum
}

// Noise bundles the two independent noise fields of a world. Both are
// read-only after construction and safe for concurrent use.
type Noise struct {
	height  *simplex
	density *perlin.Perlin
}

func NewNoise(seed int64) *Noise {
	return &Noise{
		height:  newSimplex(seed),
		density: perlin.NewPerlin(densityAlpha, densityBeta, densityOctaves, int64(hashCoords(seed, saltDensity))),
	}
}

// Height samples the surface noise.
func (n *Noise) Height(x, y float64) float64 {
	return n.height.noise2(x, y)
}

// Density samples the fractal cave noise.
func (n *Noise) Density(x, y float64) float64 {
	return n.density.Noise2D(x, y)
}
