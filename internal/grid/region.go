package grid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BlockCoord describes a block position in global block space. Y grows
// downward: row 0 sits above row 1.
type BlockCoord struct {
	X int
	Y int
}

// ChunkCoord identifies a chunk in global chunk space.
type ChunkCoord struct {
	X int
	Y int
}

// Offset is a relative displacement between two block coordinates.
type Offset struct {
	DX int
	DY int
}

// Cardinal lists the four direct neighbours in a fixed order: up, right, down, left.
var Cardinal = [...]Offset{
	{DX: 0, DY: -1},
	{DX: 1, DY: 0},
	{DX: 0, DY: 1},
	{DX: -1, DY: 0},
}

func (b BlockCoord) Add(o Offset) BlockCoord {
	return BlockCoord{X: b.X + o.DX, Y: b.Y + o.DY}
}

// Sub returns the offset that leads from other to b.
func (b BlockCoord) Sub(other BlockCoord) Offset {
	return Offset{DX: b.X - other.X, DY: b.Y - other.Y}
}

// Chunk returns the chunk containing b for the given chunk size.
func (b BlockCoord) Chunk(size int) ChunkCoord {
	return ChunkCoord{X: FloorDiv(b.X, size), Y: FloorDiv(b.Y, size)}
}

func (b BlockCoord) String() string {
	return fmt.Sprintf("(%d,%d)", b.X, b.Y)
}

// Origin returns the top-left block of the chunk.
func (c ChunkCoord) Origin(size int) BlockCoord {
	return BlockCoord{X: c.X * size, Y: c.Y * size}
}

// Contains reports whether the block lies inside the chunk's footprint.
func (c ChunkCoord) Contains(b BlockCoord, size int) bool {
	return b.Chunk(size) == c
}

// Cells enumerates the chunk footprint column by column, top to bottom.
func (c ChunkCoord) Cells(size int) []BlockCoord {
	origin := c.Origin(size)
	cells := make([]BlockCoord, 0, size*size)
	for dx := 0; dx < size; dx++ {
		for dy := 0; dy < size; dy++ {
			cells = append(cells, BlockCoord{X: origin.X + dx, Y: origin.Y + dy})
		}
	}
	return cells
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("[%d,%d]", c.X, c.Y)
}

func (o Offset) Neg() Offset {
	return Offset{DX: -o.DX, DY: -o.DY}
}

// String renders the offset in the "dx dy" form used by the data files.
func (o Offset) String() string {
	return strconv.Itoa(o.DX) + " " + strconv.Itoa(o.DY)
}

// ParseOffset decodes a "dx dy" string.
func ParseOffset(s string) (Offset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Offset{}, fmt.Errorf("offset %q: want \"dx dy\"", s)
	}
	dx, err := strconv.Atoi(fields[0])
	if err != nil {
		return Offset{}, fmt.Errorf("offset %q: dx: %w", s, err)
	}
	dy, err := strconv.Atoi(fields[1])
	if err != nil {
		return Offset{}, fmt.Errorf("offset %q: dy: %w", s, err)
	}
	return Offset{DX: dx, DY: dy}, nil
}

// WorldSlice is one of the three depth layers stacked at a location.
type WorldSlice uint8

const (
	Background WorldSlice = iota
	Middleground
	Foreground

	SliceCount = 3
)

var sliceNames = [SliceCount]string{"background", "middleground", "foreground"}

func (s WorldSlice) String() string {
	if int(s) < len(sliceNames) {
		return sliceNames[s]
	}
	return "slice(" + strconv.Itoa(int(s)) + ")"
}

// ParseSlice maps a slice name back to its value.
func ParseSlice(name string) (WorldSlice, error) {
	for i, n := range sliceNames {
		if n == name {
			return WorldSlice(i), nil
		}
	}
	return 0, fmt.Errorf("unknown world slice %q", name)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

// FloorMod is the non-negative remainder matching FloorDiv.
func FloorMod(value, size int) int {
	if size <= 0 {
		return 0
	}
	m := value % size
	if m < 0 {
		m += size
	}
	return m
}

func SortBlockCoords(coords []BlockCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Y < coords[j].Y
	})
}

func SortChunkCoords(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
}

func SortOffsets(offsets []Offset) {
	sort.Slice(offsets, func(i, j int) bool {
		if offsets[i].DY != offsets[j].DY {
			return offsets[i].DY < offsets[j].DY
		}
		return offsets[i].DX < offsets[j].DX
	})
}
