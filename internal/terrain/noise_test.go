package terrain

import (
	"math"
	"reflect"
	"testing"

	"sideworld/internal/grid"
)

func TestNoiseIsSeededAndPure(t *testing.T) {
	a := NewNoise(7)
	b := NewNoise(7)
	c := NewNoise(8)

	differs := false
	for i := 0; i < 200; i++ {
		x := float64(i)*0.37 - 20
		y := float64(i%13) * 0.71
		if a.Height(x, y) != b.Height(x, y) || a.Density(x, y) != b.Density(x, y) {
			t.Fatalf("same seed disagrees at (%v,%v)", x, y)
		}
		if v := a.Height(x, y); v < -1 || v > 1 {
			t.Fatalf("simplex sample %v outside [-1,1]", v)
		}
		if a.Height(x, y) != c.Height(x, y) {
			differs = true
		}
	}
	if !differs {
		t.Fatalf("different seeds produced identical height noise")
	}
}

func TestHeightAndCaveDensityDependOnlyOnCoordinates(t *testing.T) {
	first := NewSampler(42)
	second := NewSampler(42)

	// query in opposite orders
	heights := make([]int, 0, 64)
	for x := -32; x < 32; x++ {
		heights = append(heights, first.HeightAt(x))
	}
	for x := 31; x >= -32; x-- {
		if got := second.HeightAt(x); got != heights[x+32] {
			t.Fatalf("HeightAt(%d) = %d, want %d", x, got, heights[x+32])
		}
	}
	for y := 0; y < 20; y++ {
		if first.CaveDensityAt(3, y) != second.CaveDensityAt(3, y) {
			t.Fatalf("density differs at (3,%d)", y)
		}
	}
}

func TestHeightAtOrigin(t *testing.T) {
	s := NewSampler(42)
	// simplex noise is zero at the lattice origin
	if got := s.HeightAt(0); got != heightBase {
		t.Fatalf("HeightAt(0) = %d, want %d", got, heightBase)
	}
}

func TestCaveDensityFormula(t *testing.T) {
	s := NewSampler(3)
	for _, pos := range []grid.BlockCoord{{X: 0, Y: 0}, {X: 15, Y: 40}, {X: -90, Y: 12}} {
		n := s.noise.Density(float64(pos.X)/caveScale, float64(pos.Y)/caveScale)
		if n < 0 {
			n = 0
		} else {
			n += 0.5
		}
		want := math.Pow(n*255, 0.9)
		if got := s.CaveDensityAt(pos.X, pos.Y); got != want {
			t.Fatalf("density at %v = %v, want %v", pos, got, want)
		}
		isCave := want > 92.7 && want < 100
		if s.IsCave(pos.X, pos.Y) != isCave {
			t.Fatalf("IsCave mismatch at %v", pos)
		}
	}
}

func TestBlockAtBands(t *testing.T) {
	s := NewSampler(11)
	for x := -40; x <= 40; x++ {
		h := s.HeightAt(x)
		for y := h - 1; y <= h+8; y++ {
			name, ok := s.BlockAt(x, y)
			if s.IsCave(x, y) {
				if ok {
					t.Fatalf("cave cell (%d,%d) holds %q", x, y, name)
				}
				continue
			}
			switch {
			case y == h-1:
				if ok && name != BlockGrass && name != BlockPoppy && name != BlockDandelion {
					t.Fatalf("unexpected decoration %q at (%d,%d)", name, x, y)
				}
				if ok && s.IsCave(x, h) {
					t.Fatalf("decoration floats over cave at (%d,%d)", x, y)
				}
			case y == h:
				if name != BlockGrassBlock {
					t.Fatalf("(%d,%d) = %q, want grass_block", x, y, name)
				}
			case y < h+dirtDepth:
				if name != BlockDirt {
					t.Fatalf("(%d,%d) = %q, want dirt", x, y, name)
				}
			default:
				if name != BlockStone {
					t.Fatalf("(%d,%d) = %q, want stone", x, y, name)
				}
			}
		}
		if name, ok := s.BlockAt(x, h-2); ok {
			t.Fatalf("air cell (%d,%d) holds %q", x, h-2, name)
		}
	}
}

func TestDecorationRollsAreStable(t *testing.T) {
	s := NewSampler(5)
	got := make(map[int]string)
	for x := 0; x < 300; x++ {
		h := s.HeightAt(x)
		name, _ := s.BlockAt(x, h-1)
		got[x] = name
	}
	again := make(map[int]string)
	for x := 299; x >= 0; x-- {
		name, _ := s.BlockAt(x, s.HeightAt(x)-1)
		again[x] = name
	}
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("decorations changed between passes")
	}
	seen := make(map[string]bool)
	for _, name := range got {
		seen[name] = true
	}
	if !seen[BlockGrass] || !seen[""] {
		t.Fatalf("expected both grass and bare cells over 300 columns, got %v", seen)
	}
}

func TestHashCoordsSeparatesKeys(t *testing.T) {
	if hashCoords(1, saltChunk, 0, 1) == hashCoords(1, saltChunk, 1, 0) {
		t.Fatalf("swapped coordinates collide")
	}
	if hashCoords(1, saltChunk, 2, 3) == hashCoords(2, saltChunk, 2, 3) {
		t.Fatalf("seed ignored")
	}
	if hashCoords(1, saltChunk, 2, 3) != hashCoords(1, saltChunk, 2, 3) {
		t.Fatalf("hash not pure")
	}
	a := newRand(9, saltInstance, 4, 5).Int63()
	b := newRand(9, saltInstance, 4, 5).Int63()
	if a != b {
		t.Fatalf("rand streams differ for the same key")
	}
}
