package world

import (
	"sort"

	"sideworld/internal/grid"
)

type ChangeReason string

const (
	ReasonPlace   ChangeReason = "place"
	ReasonReplace ChangeReason = "replace"
	ReasonRemove  ChangeReason = "remove"
	ReasonCascade ChangeReason = "cascade"
)

var reasonPriority = map[ChangeReason]int{
	ReasonPlace:   1,
	ReasonReplace: 2,
	ReasonRemove:  3,
	ReasonCascade: 4,
}

// BlockChange captures the before/after name of one (cell, slice). An empty
// name means no block.
type BlockChange struct {
	Pos    grid.BlockCoord
	Slice  grid.WorldSlice
	Before string
	After  string
	Reason ChangeReason
}

type changeKey struct {
	pos   grid.BlockCoord
	slice grid.WorldSlice
}

// ChangeSummary accumulates every cell touched by one placement or removal,
// including cascaded removals.
type ChangeSummary struct {
	changes map[changeKey]BlockChange
	chunks  map[grid.ChunkCoord]struct{}
}

func NewChangeSummary() *ChangeSummary {
	return &ChangeSummary{
		changes: make(map[changeKey]BlockChange),
		chunks:  make(map[grid.ChunkCoord]struct{}),
	}
}

// AddChange records change. A repeated cell keeps its first Before and the
// higher-priority reason.
func (s *ChangeSummary) AddChange(change BlockChange) {
	key := changeKey{pos: change.Pos, slice: change.Slice}
	if existing, ok := s.changes[key]; ok {
		change.Before = existing.Before
		if reasonPriority[existing.Reason] > reasonPriority[change.Reason] {
			change.Reason = existing.Reason
		}
	}
	s.changes[key] = change
}

func (s *ChangeSummary) AddChunk(coord grid.ChunkCoord) {
	s.chunks[coord] = struct{}{}
}

// Changes lists the recorded changes ordered by position then slice.
func (s *ChangeSummary) Changes() []BlockChange {
	if len(s.changes) == 0 {
		return nil
	}
	out := make([]BlockChange, 0, len(s.changes))
	for _, change := range s.changes {
		out = append(out, change)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pos.X != b.Pos.X {
			return a.Pos.X < b.Pos.X
		}
		if a.Pos.Y != b.Pos.Y {
			return a.Pos.Y < b.Pos.Y
		}
		return a.Slice < b.Slice
	})
	return out
}

func (s *ChangeSummary) DirtyChunks() []grid.ChunkCoord {
	if len(s.chunks) == 0 {
		return nil
	}
	out := make([]grid.ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		out = append(out, coord)
	}
	grid.SortChunkCoords(out)
	return out
}

// Cascaded lists the cells removed because they lost their support.
func (s *ChangeSummary) Cascaded() []grid.BlockCoord {
	var out []grid.BlockCoord
	for key, change := range s.changes {
		if change.Reason == ReasonCascade {
			out = append(out, key.pos)
		}
	}
	grid.SortBlockCoords(out)
	return out
}

func (s *ChangeSummary) Len() int {
	return len(s.changes)
}

func (s *ChangeSummary) Merge(other *ChangeSummary) {
	if other == nil {
		return
	}
	for _, change := range other.changes {
		s.AddChange(change)
	}
	for coord := range other.chunks {
		s.AddChunk(coord)
	}
}
