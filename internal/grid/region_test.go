package grid

import "testing"

func TestFloorDivRoundsTowardNegativeInfinity(t *testing.T) {
	tests := []struct {
		value, size, div, mod int
	}{
		{value: 0, size: 8, div: 0, mod: 0},
		{value: 7, size: 8, div: 0, mod: 7},
		{value: 8, size: 8, div: 1, mod: 0},
		{value: -1, size: 8, div: -1, mod: 7},
		{value: -8, size: 8, div: -1, mod: 0},
		{value: -9, size: 8, div: -2, mod: 7},
	}
	for _, tt := range tests {
		if got := FloorDiv(tt.value, tt.size); got != tt.div {
			t.Fatalf("FloorDiv(%d,%d) = %d, want %d", tt.value, tt.size, got, tt.div)
		}
		if got := FloorMod(tt.value, tt.size); got != tt.mod {
			t.Fatalf("FloorMod(%d,%d) = %d, want %d", tt.value, tt.size, got, tt.mod)
		}
	}
}

func TestChunkCellsCoverFootprint(t *testing.T) {
	chunk := ChunkCoord{X: -1, Y: 2}
	cells := chunk.Cells(8)
	if len(cells) != 64 {
		t.Fatalf("expected 64 cells, got %d", len(cells))
	}
	for _, cell := range cells {
		if !chunk.Contains(cell, 8) {
			t.Fatalf("cell %v outside chunk %v", cell, chunk)
		}
	}
	if cells[0] != (BlockCoord{X: -8, Y: 16}) {
		t.Fatalf("unexpected first cell %v", cells[0])
	}
}

func TestParseOffset(t *testing.T) {
	got, err := ParseOffset(" -1  2 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != (Offset{DX: -1, DY: 2}) {
		t.Fatalf("unexpected offset %v", got)
	}
	if got.String() != "-1 2" {
		t.Fatalf("unexpected string form %q", got.String())
	}

	for _, bad := range []string{"", "1", "1 2 3", "a 1", "1 b"} {
		if _, err := ParseOffset(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseSliceRoundTrip(t *testing.T) {
	for s := Background; s <= Foreground; s++ {
		parsed, err := ParseSlice(s.String())
		if err != nil || parsed != s {
			t.Fatalf("slice %v did not round trip: %v %v", s, parsed, err)
		}
	}
	if _, err := ParseSlice("attic"); err == nil {
		t.Fatalf("expected unknown slice error")
	}
}
