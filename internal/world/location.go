package world

import (
	"sideworld/internal/blocks"
	"sideworld/internal/grid"
)

// Block is one placed block. It refers to its chunk and location by
// coordinate only.
type Block struct {
	Name  string
	Chunk grid.ChunkCoord
	Pos   grid.BlockCoord
	Slice grid.WorldSlice
}

// Location is the slice stack at one coordinate, background first.
type Location struct {
	Pos    grid.BlockCoord
	Slices [grid.SliceCount]*Block
}

func (l *Location) Empty() bool {
	for _, b := range l.Slices {
		if b != nil {
			return false
		}
	}
	return true
}

// HighestOpaqueSlice scans from the foreground back and returns the first
// slice holding a block that is not transparent. Blocks of unknown type count
// as opaque.
func HighestOpaqueSlice(slices [grid.SliceCount]*Block, reg *blocks.Registry) (grid.WorldSlice, bool) {
	for s := grid.SliceCount - 1; s >= 0; s-- {
		b := slices[s]
		if b == nil {
			continue
		}
		if def, ok := reg.Lookup(b.Name); ok && def.Transparent {
			continue
		}
		return grid.WorldSlice(s), true
	}
	return 0, false
}

// VisibleBlocks returns the blocks a renderer has to draw at l, back to
// front: everything from the highest opaque slice forward.
func VisibleBlocks(l *Location, reg *blocks.Registry) []*Block {
	if l == nil {
		return nil
	}
	from := grid.Background
	if s, ok := HighestOpaqueSlice(l.Slices, reg); ok {
		from = s
	}
	var out []*Block
	for s := from; s < grid.SliceCount; s++ {
		if l.Slices[s] != nil {
			out = append(out, l.Slices[s])
		}
	}
	return out
}
