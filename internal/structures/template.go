package structures

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"sideworld/internal/grid"
)

// Weighted is one alternative of a weighted choice.
type Weighted struct {
	Name   string
	Weight float64
}

// Cell holds the block choices for one template cell. A single entry is a
// fixed block.
type Cell []Weighted

func (c Cell) Fixed() bool {
	return len(c) == 1
}

// Names lists every block the cell can produce.
func (c Cell) Names() []string {
	out := make([]string, len(c))
	for i, w := range c {
		out[i] = w.Name
	}
	return out
}

// Template is a parsed structure file. Cell offsets are relative to the
// anchor cell named by the origin marker.
type Template struct {
	Name   string
	Origin grid.Offset // anchor position inside the ASCII grid
	Cells  map[grid.Offset]Cell
	Width  int
	Height int
}

// SortedOffsets returns the cell offsets in a stable order.
func (t *Template) SortedOffsets() []grid.Offset {
	out := make([]grid.Offset, 0, len(t.Cells))
	for off := range t.Cells {
		out = append(out, off)
	}
	grid.SortOffsets(out)
	return out
}

type parseState int

const (
	stateLegend parseState = iota
	stateRows
	stateOrigin
)

// ParseTemplate reads the legend / structure: / origin: text format.
func ParseTemplate(name string, data []byte) (*Template, error) {
	legend := make(map[rune]Cell)
	var rows []string
	var origin *grid.Offset

	state := stateLegend
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		switch strings.TrimSpace(line) {
		case "structure:":
			if state != stateLegend {
				return nil, fmt.Errorf("line %d: unexpected structure marker", lineNo)
			}
			state = stateRows
			continue
		case "origin:":
			if state != stateRows {
				return nil, fmt.Errorf("line %d: origin before structure", lineNo)
			}
			state = stateOrigin
			continue
		}

		switch state {
		case stateLegend:
			if strings.TrimSpace(line) == "" {
				continue
			}
			key, cell, err := parseLegendLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if _, dup := legend[key]; dup {
				return nil, fmt.Errorf("line %d: legend key %q defined twice", lineNo, key)
			}
			legend[key] = cell
		case stateRows:
			rows = append(rows, line)
		case stateOrigin:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if origin != nil {
				return nil, fmt.Errorf("line %d: extra origin line", lineNo)
			}
			off, err := grid.ParseOffset(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: origin: %w", lineNo, err)
			}
			origin = &off
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if state == stateLegend {
		return nil, fmt.Errorf("missing structure marker")
	}
	if origin == nil {
		return nil, fmt.Errorf("missing origin")
	}

	// blank rows at the bottom belong to the marker layout, not the grid
	for len(rows) > 0 && strings.TrimSpace(rows[len(rows)-1]) == "" {
		rows = rows[:len(rows)-1]
	}

	t := &Template{
		Name:   name,
		Origin: *origin,
		Cells:  make(map[grid.Offset]Cell),
		Height: len(rows),
	}
	for y, row := range rows {
		for x, ch := range []rune(row) {
			if ch == ' ' {
				continue
			}
			cell, ok := legend[ch]
			if !ok {
				return nil, fmt.Errorf("row %d col %d: %q not in legend", y, x, ch)
			}
			if x+1 > t.Width {
				t.Width = x + 1
			}
			t.Cells[grid.Offset{DX: x - origin.DX, DY: y - origin.DY}] = cell
		}
	}
	if len(t.Cells) == 0 {
		return nil, fmt.Errorf("structure has no cells")
	}
	return t, nil
}

func parseLegendLine(line string) (rune, Cell, error) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return 0, nil, fmt.Errorf("legend line %q: want key:name", line)
	}
	keyRunes := []rune(strings.TrimSpace(key))
	if len(keyRunes) != 1 || keyRunes[0] == ' ' {
		return 0, nil, fmt.Errorf("legend key %q must be a single character", key)
	}
	cell, err := ParseCell(value)
	if err != nil {
		return 0, nil, err
	}
	return keyRunes[0], cell, nil
}

// ParseCell decodes "name" or "name=weight,name=weight".
func ParseCell(s string) (Cell, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty block name")
	}
	if !strings.ContainsAny(s, ",=") {
		return Cell{{Name: s, Weight: 1}}, nil
	}
	var cell Cell
	for _, part := range strings.Split(s, ",") {
		name, weight, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("choice %q: empty name", part)
		}
		w := 1.0
		if ok {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
			if err != nil {
				return nil, fmt.Errorf("choice %q: %w", part, err)
			}
			w = parsed
		}
		if w <= 0 {
			return nil, fmt.Errorf("choice %q: weight must be positive", part)
		}
		cell = append(cell, Weighted{Name: name, Weight: w})
	}
	return cell, nil
}

// ParseDistribution reads "template_name weight%" lines.
func ParseDistribution(data []byte) ([]Weighted, error) {
	var out []Weighted
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"name weight%%\"", lineNo)
		}
		w, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: weight: %w", lineNo, err)
		}
		if w <= 0 {
			return nil, fmt.Errorf("line %d: weight must be positive", lineNo)
		}
		if _, dup := seen[fields[0]]; dup {
			return nil, fmt.Errorf("line %d: %s listed twice", lineNo, fields[0])
		}
		seen[fields[0]] = struct{}{}
		out = append(out, Weighted{Name: fields[0], Weight: w})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty distribution")
	}
	return out, nil
}
