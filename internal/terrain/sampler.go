package terrain

import "math"

// Terrain block names produced by the sampler.
const (
	BlockGrassBlock = "grass_block"
	BlockDirt       = "dirt"
	BlockStone      = "stone"
	BlockGrass      = "grass"
	BlockPoppy      = "poppy"
	BlockDandelion  = "dandelion"
)

const (
	heightFrequency = 0.1
	heightAmplitude = 5
	heightBase      = 5
	dirtDepth       = 4

	caveScale       = 70.0
	densityRange    = 255.0
	densityExponent = 0.9
	caveDensityMin  = 92.7
	caveDensityMax  = 100.0
)

type decoration struct {
	name   string
	weight float64
}

// Cover rolled on the row above the surface. The remaining weight up to
// decorationTotal leaves the cell empty.
var decorations = [...]decoration{
	{BlockGrass, 30},
	{BlockPoppy, 4},
	{BlockDandelion, 4},
}

const decorationTotal = 100.0

// Sampler classifies single cells of the base terrain. Every method is a pure
// function of the world seed and its arguments.
type Sampler struct {
	seed  int64
	noise *Noise
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{seed: seed, noise: NewNoise(seed)}
}

func (s *Sampler) Seed() int64 {
	return s.seed
}

// HeightAt returns the surface row of column x. Rows grow downward.
func (s *Sampler) HeightAt(x int) int {
	return -int(math.Floor(s.noise.Height(float64(x)*heightFrequency, 0)*heightAmplitude)) + heightBase
}

func (s *Sampler) CaveDensityAt(x, y int) float64 {
	n := s.noise.Density(float64(x)/caveScale, float64(y)/caveScale)
	if n < 0 {
		n = 0
	} else {
		n += 0.5
	}
	return math.Pow(n*densityRange, densityExponent)
}

func (s *Sampler) IsCave(x, y int) bool {
	d := s.CaveDensityAt(x, y)
	return d > caveDensityMin && d < caveDensityMax
}

// BlockAt returns the terrain block of a cell, or false for open air and
// caves.
func (s *Sampler) BlockAt(x, y int) (string, bool) {
	if s.IsCave(x, y) {
		return "", false
	}
	h := s.HeightAt(x)
	switch {
	case y == h:
		return BlockGrassBlock, true
	case y > h && y < h+dirtDepth:
		return BlockDirt, true
	case y >= h+dirtDepth:
		return BlockStone, true
	case y == h-1:
		if s.IsCave(x, h) {
			return "", false
		}
		return s.decorationAt(x, y)
	}
	return "", false
}

func (s *Sampler) decorationAt(x, y int) (string, bool) {
	roll := unitFloat(hashCoords(s.seed, saltDecoration, x, y)) * decorationTotal
	for _, d := range decorations {
		if roll < d.weight {
			return d.name, true
		}
		roll -= d.weight
	}
	return "", false
}

// TerrainNames lists every block BlockAt can return.
func TerrainNames() []string {
	names := []string{BlockGrassBlock, BlockDirt, BlockStone}
	for _, d := range decorations {
		names = append(names, d.name)
	}
	return names
}
