package terrain

import (
	"fmt"
	"math/rand"

	"sideworld/internal/grid"
	"sideworld/internal/structures"
)

// Chance bounds how many structures of a category a chunk may seed: up to
// MaxPerChunk trials, each succeeding with probability 1/OneInN.
type Chance struct {
	MaxPerChunk int
	OneInN      int
}

type categoryInfo struct {
	category *structures.Category
	salt     uint64
	reach    [2]int // chunks to scan on each side, per axis
}

// StructureGenerator seeds and instantiates structures. Its output depends
// only on the world seed, the catalog and its arguments.
type StructureGenerator struct {
	seed      int64
	chunkSize int
	sampler   *Sampler
	info      map[string]*categoryInfo
}

func NewStructureGenerator(sampler *Sampler, catalog *structures.Catalog, chunkSize int) *StructureGenerator {
	g := &StructureGenerator{
		seed:      sampler.Seed(),
		chunkSize: chunkSize,
		sampler:   sampler,
		info:      make(map[string]*categoryInfo),
	}
	for _, name := range catalog.Names() {
		cat, _ := catalog.Category(name)
		w, h := cat.Extent()
		g.info[name] = &categoryInfo{
			category: cat,
			salt:     nameSalt(name),
			reach:    [2]int{ceilDiv(w, chunkSize), ceilDiv(h, chunkSize)},
		}
	}
	return g
}

// ChunksToCheck returns how many neighbouring chunks per axis can hold an
// origin whose structure reaches into a given chunk.
func (g *StructureGenerator) ChunksToCheck(category string) (int, int) {
	info, ok := g.info[category]
	if !ok {
		return 0, 0
	}
	return info.reach[0], info.reach[1]
}

// CandidateOrigins returns the structure anchors seeded by chunk. Anchors sit
// one row above the surface and always belong to the chunk itself.
func (g *StructureGenerator) CandidateOrigins(chunk grid.ChunkCoord, category string, chance Chance) []grid.BlockCoord {
	info, ok := g.info[category]
	if !ok || chance.MaxPerChunk <= 0 || chance.OneInN <= 0 {
		return nil
	}
	rng := newRand(g.seed, saltChunk^info.salt, chunk.X, chunk.Y)
	origin := chunk.Origin(g.chunkSize)

	var out []grid.BlockCoord
	for trial := 0; trial < chance.MaxPerChunk; trial++ {
		if rng.Intn(chance.OneInN) != 0 {
			continue
		}
		x := origin.X + rng.Intn(g.chunkSize)
		surface := g.sampler.HeightAt(x)
		anchor := surface - 1
		if g.sampler.IsCave(x, surface) || g.sampler.IsCave(x, anchor) {
			continue
		}
		if anchor < origin.Y || anchor >= origin.Y+g.chunkSize {
			continue
		}
		out = append(out, grid.BlockCoord{X: x, Y: anchor})
	}
	return out
}

// Instantiate builds the structure anchored at origin: a weighted template
// pick, an optional horizontal mirror and the resolution of weighted cells.
func (g *StructureGenerator) Instantiate(origin grid.BlockCoord, category string) (map[grid.BlockCoord]string, error) {
	info, ok := g.info[category]
	if !ok {
		return nil, fmt.Errorf("unknown structure category %q", category)
	}
	rng := newRand(g.seed, saltInstance^info.salt, origin.X, origin.Y)

	tmplName := pickWeighted(rng, info.category.Distribution)
	tmpl, ok := info.category.Templates[tmplName]
	if !ok {
		return nil, fmt.Errorf("category %s: template %q missing", category, tmplName)
	}
	mirror := rng.Intn(2) == 1

	out := make(map[grid.BlockCoord]string, len(tmpl.Cells))
	for _, off := range tmpl.SortedOffsets() {
		dx := off.DX
		if mirror {
			dx = -dx
		}
		cell := tmpl.Cells[off]
		name := cell[0].Name
		if !cell.Fixed() {
			name = pickWeighted(rng, cell)
		}
		out[grid.BlockCoord{X: origin.X + dx, Y: origin.Y + off.DY}] = name
	}
	return out, nil
}

func pickWeighted(rng *rand.Rand, choices []structures.Weighted) string {
	var total float64
	for _, c := range choices {
		total += c.Weight
	}
	roll := rng.Float64() * total
	for _, c := range choices {
		if roll < c.Weight {
			return c.Name
		}
		roll -= c.Weight
	}
	return choices[len(choices)-1].Name
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
