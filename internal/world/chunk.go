package world

import (
	"sideworld/internal/blocks"
	"sideworld/internal/grid"
)

// ChunkState is the lifecycle stage of a chunk coordinate. A coordinate never
// returns to Unloaded once generated.
type ChunkState uint8

const (
	Unloaded ChunkState = iota
	Generated
	Materialized
)

func (s ChunkState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Generated:
		return "generated"
	case Materialized:
		return "materialized"
	default:
		return "unknown"
	}
}

type sliceNames [grid.SliceCount]string

func (n sliceNames) empty() bool {
	for _, name := range n {
		if name != "" {
			return false
		}
	}
	return true
}

// Chunk owns the cached name data of its footprint and, while materialized,
// the Location records built from it. The store's lock guards every field.
type Chunk struct {
	Coord grid.ChunkCoord

	names     map[grid.BlockCoord]sliceNames
	locations map[grid.BlockCoord]*Location // nil while not materialized
	dirty     bool
}

// newChunk places every generated name into the slice its block type
// occupies. Unknown names fall back to the foreground.
func newChunk(coord grid.ChunkCoord, data map[grid.BlockCoord]string, reg *blocks.Registry) *Chunk {
	c := &Chunk{Coord: coord, names: make(map[grid.BlockCoord]sliceNames, len(data))}
	for pos, name := range data {
		slice := grid.Foreground
		if def, ok := reg.Lookup(name); ok {
			slice = def.Slice
		}
		cell := c.names[pos]
		cell[slice] = name
		c.names[pos] = cell
	}
	return c
}

func chunkFromRecord(coord grid.ChunkCoord, rec ChunkRecord) *Chunk {
	c := &Chunk{Coord: coord, names: make(map[grid.BlockCoord]sliceNames, len(rec.Cells))}
	for _, cell := range rec.Cells {
		names := sliceNames(cell.Slices)
		if names.empty() {
			continue
		}
		c.names[grid.BlockCoord{X: cell.X, Y: cell.Y}] = names
	}
	return c
}

func (c *Chunk) record() ChunkRecord {
	coords := make([]grid.BlockCoord, 0, len(c.names))
	for pos := range c.names {
		coords = append(coords, pos)
	}
	grid.SortBlockCoords(coords)
	rec := ChunkRecord{Cells: make([]CellRecord, 0, len(coords))}
	for _, pos := range coords {
		rec.Cells = append(rec.Cells, CellRecord{X: pos.X, Y: pos.Y, Slices: c.names[pos]})
	}
	return rec
}

func (c *Chunk) State() ChunkState {
	if c.locations != nil {
		return Materialized
	}
	return Generated
}

func (c *Chunk) nameAt(pos grid.BlockCoord, slice grid.WorldSlice) (string, bool) {
	name := c.names[pos][slice]
	return name, name != ""
}

// Names returns a copy of the cached name data of one slice.
func (c *Chunk) Names(slice grid.WorldSlice) map[grid.BlockCoord]string {
	out := make(map[grid.BlockCoord]string)
	for pos, cell := range c.names {
		if cell[slice] != "" {
			out[pos] = cell[slice]
		}
	}
	return out
}

// setName writes through to the cached data and, when materialized, to the
// live Location.
func (c *Chunk) setName(pos grid.BlockCoord, slice grid.WorldSlice, name string) {
	cell := c.names[pos]
	cell[slice] = name
	if cell.empty() {
		delete(c.names, pos)
	} else {
		c.names[pos] = cell
	}
	c.dirty = true

	if c.locations == nil {
		return
	}
	loc, ok := c.locations[pos]
	if !ok {
		if name == "" {
			return
		}
		loc = &Location{Pos: pos}
		c.locations[pos] = loc
	}
	if name == "" {
		loc.Slices[slice] = nil
	} else {
		loc.Slices[slice] = &Block{Name: name, Chunk: c.Coord, Pos: pos, Slice: slice}
	}
	if loc.Empty() {
		delete(c.locations, pos)
	}
}

func (c *Chunk) materialize() {
	if c.locations != nil {
		return
	}
	c.locations = make(map[grid.BlockCoord]*Location, len(c.names))
	for pos, cell := range c.names {
		loc := &Location{Pos: pos}
		for s, name := range cell {
			if name != "" {
				loc.Slices[s] = &Block{Name: name, Chunk: c.Coord, Pos: pos, Slice: grid.WorldSlice(s)}
			}
		}
		c.locations[pos] = loc
	}
}

func (c *Chunk) unmaterialize() {
	c.locations = nil
}

func (c *Chunk) location(pos grid.BlockCoord) (*Location, bool) {
	loc, ok := c.locations[pos]
	return loc, ok
}
