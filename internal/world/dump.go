package world

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"unicode"

	"sideworld/internal/grid"
)

const (
	dumpEmpty    = '.'
	dumpUnloaded = ' '
)

// Dump writes the cached name data of rng as text, one glyph per cell and
// one line per block row, followed by a legend. Each cell shows its
// front-most block. Chunks that were never generated print as blanks.
func (s *Store) Dump(w io.Writer, rng ChunkRange) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	glyphs := newGlyphTable()
	minPos := rng.Min.Origin(s.chunkSize)
	maxPos := rng.Max.Origin(s.chunkSize).Add(grid.Offset{DX: s.chunkSize - 1, DY: s.chunkSize - 1})

	bw := bufio.NewWriter(w)
	for y := minPos.Y; y <= maxPos.Y; y++ {
		line := make([]rune, 0, maxPos.X-minPos.X+1)
		for x := minPos.X; x <= maxPos.X; x++ {
			pos := grid.BlockCoord{X: x, Y: y}
			if _, ok := s.chunks[pos.Chunk(s.chunkSize)]; !ok {
				line = append(line, dumpUnloaded)
				continue
			}
			names := s.namesLocked(pos)
			r := dumpEmpty
			for sl := grid.SliceCount - 1; sl >= 0; sl-- {
				if names[sl] != "" {
					r = glyphs.glyph(names[sl])
					break
				}
			}
			line = append(line, r)
		}
		fmt.Fprintf(bw, "%6d %s\n", y, string(line))
	}
	for _, entry := range glyphs.legend() {
		fmt.Fprintf(bw, "%c %s\n", entry.glyph, entry.name)
	}
	return bw.Flush()
}

type glyphEntry struct {
	glyph rune
	name  string
}

// glyphTable hands out one glyph per block name, preferring the first letter
// of the name and falling back to the next free letter or digit.
type glyphTable struct {
	byName map[string]rune
	used   map[rune]struct{}
}

func newGlyphTable() *glyphTable {
	return &glyphTable{
		byName: make(map[string]rune),
		used:   map[rune]struct{}{dumpEmpty: {}, dumpUnloaded: {}},
	}
}

func (t *glyphTable) glyph(name string) rune {
	if r, ok := t.byName[name]; ok {
		return r
	}
	var candidates []rune
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			candidates = append(candidates, r, unicode.ToUpper(r))
		}
	}
	for r := 'a'; r <= 'z'; r++ {
		candidates = append(candidates, r, unicode.ToUpper(r))
	}
	for r := '0'; r <= '9'; r++ {
		candidates = append(candidates, r)
	}
	for _, r := range candidates {
		if _, taken := t.used[r]; !taken {
			t.byName[name] = r
			t.used[r] = struct{}{}
			return r
		}
	}
	t.byName[name] = '?'
	return '?'
}

func (t *glyphTable) legend() []glyphEntry {
	out := make([]glyphEntry, 0, len(t.byName))
	for name, r := range t.byName {
		out = append(out, glyphEntry{glyph: r, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
