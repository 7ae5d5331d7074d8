package terrain

import (
	"context"
	"fmt"
	"log"
	"maps"

	"sideworld/internal/blocks"
	"sideworld/internal/config"
	"sideworld/internal/grid"
	"sideworld/internal/structures"
)

// Generator produces the block-name data of whole chunks.
type Generator struct {
	chunkSize  int
	registry   *blocks.Registry
	sampler    *Sampler
	structures *StructureGenerator
	placements []config.StructureConfig
	logger     *log.Logger
}

// NewGenerator checks that every block the terrain and the configured
// structure categories can emit is registered.
func NewGenerator(cfg config.WorldConfig, placements []config.StructureConfig, registry *blocks.Registry, catalog *structures.Catalog, logger *log.Logger) (*Generator, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	if err := registry.Require(TerrainNames()...); err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	for _, p := range placements {
		cat, ok := catalog.Category(p.Name)
		if !ok {
			return nil, fmt.Errorf("structure category %q not in catalog", p.Name)
		}
		if err := registry.Require(cat.BlockNames()...); err != nil {
			return nil, fmt.Errorf("structure category %s: %w", p.Name, err)
		}
	}

	sampler := NewSampler(cfg.Seed)
	return &Generator{
		chunkSize:  cfg.ChunkSize,
		registry:   registry,
		sampler:    sampler,
		structures: NewStructureGenerator(sampler, catalog, cfg.ChunkSize),
		placements: append([]config.StructureConfig(nil), placements...),
		logger:     logger,
	}, nil
}

func (g *Generator) Sampler() *Sampler {
	return g.sampler
}

func (g *Generator) Structures() *StructureGenerator {
	return g.structures
}

func (g *Generator) ChunkSize() int {
	return g.chunkSize
}

// Generate builds the name data of one chunk: base terrain first, then every
// configured structure category in order. The result depends only on the
// seed and coord, never on which chunks were generated before.
func (g *Generator) Generate(ctx context.Context, coord grid.ChunkCoord) (map[grid.BlockCoord]string, error) {
	run := &generation{
		ctx:        ctx,
		stages:     make(map[stageKey]map[grid.BlockCoord]string),
		candidates: make(map[stageKey][]candidate),
	}
	return g.stage(run, coord, len(g.placements))
}

// stageKey names a chunk after the first category placements were merged.
type stageKey struct {
	coord    grid.ChunkCoord
	category int
}

// candidate is one instantiated structure seeded by a source chunk. Order is
// its trial index within that chunk.
type candidate struct {
	source grid.ChunkCoord
	order  int
	origin grid.BlockCoord
	cells  map[grid.BlockCoord]string
}

// before orders candidates of one category the same way for every target:
// source chunk row-major, then trial index.
func (c candidate) before(other candidate) bool {
	if c.source.Y != other.source.Y {
		return c.source.Y < other.source.Y
	}
	if c.source.X != other.source.X {
		return c.source.X < other.source.X
	}
	return c.order < other.order
}

// generation memoizes the chunk stages and candidates computed while
// generating a single chunk. Stored maps are never mutated once cached.
type generation struct {
	ctx        context.Context
	stages     map[stageKey]map[grid.BlockCoord]string
	candidates map[stageKey][]candidate
}

// stage returns the data of coord with terrain and the first upto categories
// merged.
func (g *Generator) stage(run *generation, coord grid.ChunkCoord, upto int) (map[grid.BlockCoord]string, error) {
	key := stageKey{coord: coord, category: upto}
	if data, ok := run.stages[key]; ok {
		return data, nil
	}
	if err := run.ctx.Err(); err != nil {
		return nil, err
	}

	var data map[grid.BlockCoord]string
	if upto == 0 {
		data = make(map[grid.BlockCoord]string, g.chunkSize*g.chunkSize)
		for _, cell := range coord.Cells(g.chunkSize) {
			if name, ok := g.sampler.BlockAt(cell.X, cell.Y); ok {
				data[cell] = name
			}
		}
	} else {
		prev, err := g.stage(run, coord, upto-1)
		if err != nil {
			return nil, err
		}
		data = maps.Clone(prev)
		if err := g.mergeCategory(run, coord, upto-1, data); err != nil {
			return nil, err
		}
	}
	run.stages[key] = data
	return data, nil
}

func (g *Generator) candidatesIn(run *generation, source grid.ChunkCoord, category int) ([]candidate, error) {
	key := stageKey{coord: source, category: category}
	if out, ok := run.candidates[key]; ok {
		return out, nil
	}
	p := g.placements[category]
	chance := Chance{MaxPerChunk: p.MaxPerChunk, OneInN: p.OneInN}
	var out []candidate
	for i, origin := range g.structures.CandidateOrigins(source, p.Name, chance) {
		cells, err := g.structures.Instantiate(origin, p.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{source: source, order: i, origin: origin, cells: cells})
	}
	run.candidates[key] = out
	return out, nil
}

func (g *Generator) mergeCategory(run *generation, target grid.ChunkCoord, category int, data map[grid.BlockCoord]string) error {
	p := g.placements[category]
	rx, ry := g.structures.ChunksToCheck(p.Name)

	for dy := -ry; dy <= ry; dy++ {
		for dx := -rx; dx <= rx; dx++ {
			source := grid.ChunkCoord{X: target.X + dx, Y: target.Y + dy}
			cands, err := g.candidatesIn(run, source, category)
			if err != nil {
				return err
			}
			for _, c := range cands {
				if !g.touches(target, c.cells) {
					continue
				}
				if !p.Obstruction {
					g.merge(target, c.cells, data)
					continue
				}
				fits, err := g.fits(run, category, c)
				if err != nil {
					return err
				}
				if !fits {
					g.logger.Printf("structure %s at %v obstructed, skipped for chunk %v", p.Name, c.origin, target)
					continue
				}
				for pos, name := range c.cells {
					if target.Contains(pos, g.chunkSize) {
						data[pos] = name
					}
				}
			}
		}
	}
	return nil
}

func (g *Generator) touches(target grid.ChunkCoord, cells map[grid.BlockCoord]string) bool {
	for pos := range cells {
		if target.Contains(pos, g.chunkSize) {
			return true
		}
	}
	return false
}

// merge writes the cells of a non-obstructing structure that fall inside
// target. A cell may only replace a block its own type lists as
// overwriteable; blocked cells are skipped one by one.
func (g *Generator) merge(target grid.ChunkCoord, cells map[grid.BlockCoord]string, data map[grid.BlockCoord]string) {
	inside := make([]grid.BlockCoord, 0, len(cells))
	for pos := range cells {
		if target.Contains(pos, g.chunkSize) {
			inside = append(inside, pos)
		}
	}
	grid.SortBlockCoords(inside)
	for _, pos := range inside {
		name := cells[pos]
		if existing, occupied := data[pos]; occupied && !g.canOverwrite(name, existing) {
			continue
		}
		data[pos] = name
	}
}

// fits decides whether an obstructing structure is placed. Every cell, in
// whichever chunk it lands, is checked against that chunk before the
// structure's category was merged, and against the cells of every earlier
// candidate of the same category. The answer is the same for all chunks the
// structure touches, so it is placed whole or not at all.
func (g *Generator) fits(run *generation, category int, c candidate) (bool, error) {
	for pos, name := range c.cells {
		prior, err := g.stage(run, pos.Chunk(g.chunkSize), category)
		if err != nil {
			return false, err
		}
		if existing, occupied := prior[pos]; occupied && !g.canOverwrite(name, existing) {
			return false, nil
		}
	}

	// an earlier overlapping candidate can claim a cell within reach of
	// any chunk this structure touches
	rx, ry := g.structures.ChunksToCheck(g.placements[category].Name)
	seen := make(map[grid.ChunkCoord]struct{})
	for pos := range c.cells {
		home := pos.Chunk(g.chunkSize)
		for dy := -ry; dy <= ry; dy++ {
			for dx := -rx; dx <= rx; dx++ {
				source := grid.ChunkCoord{X: home.X + dx, Y: home.Y + dy}
				if _, ok := seen[source]; ok {
					continue
				}
				seen[source] = struct{}{}
				others, err := g.candidatesIn(run, source, category)
				if err != nil {
					return false, err
				}
				for _, other := range others {
					if !other.before(c) {
						continue
					}
					for cell, name := range c.cells {
						if existing, ok := other.cells[cell]; ok && !g.canOverwrite(name, existing) {
							return false, nil
						}
					}
				}
			}
		}
	}
	return true, nil
}

func (g *Generator) canOverwrite(name, existing string) bool {
	def, ok := g.registry.Lookup(name)
	return ok && def.CanOverwrite(existing)
}
