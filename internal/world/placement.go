package world

import (
	"context"

	"sideworld/internal/blocks"
	"sideworld/internal/grid"
)

// unit maps every cell of a multi-cell block being placed (or already
// standing) to the name it holds there.
type unit map[grid.BlockCoord]string

// unitFor returns the cells pos and def's counterparts cover.
func unitFor(pos grid.BlockCoord, def *blocks.Def) unit {
	u := unit{pos: def.Name}
	for _, off := range def.CounterpartOffsets() {
		u[pos.Add(off)] = def.Counterparts[off]
	}
	return u
}

// IsOccupied reports whether nothing can be placed into (pos, slice): the
// player stands there or a non-replaceable block already holds the slot.
// Only that slice is checked; blocks in the other slices at pos never
// occupy it.
func (s *Store) IsOccupied(pos grid.BlockCoord, slice grid.WorldSlice) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.occupiedLocked(pos, slice)
}

func (s *Store) occupiedLocked(pos grid.BlockCoord, slice grid.WorldSlice) bool {
	if s.player != nil && s.player.Overlaps(pos) {
		return true
	}
	existing, ok := s.nameLocked(pos, slice)
	if !ok {
		return false
	}
	def, known := s.registry.Lookup(existing)
	return !known || !def.Replaceable
}

// IsSupported reports whether def may stand at pos. Support rules are
// alternatives; a rule pointing into placing is satisfied by the cell being
// placed together with pos. Neighbours count in any slice.
func (s *Store) IsSupported(pos grid.BlockCoord, def *blocks.Def, placing map[grid.BlockCoord]string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supportedLocked(pos, def, placing)
}

func (s *Store) supportedLocked(pos grid.BlockCoord, def *blocks.Def, placing map[grid.BlockCoord]string) bool {
	if !def.NeedsSupport() {
		return true
	}
	for _, rule := range def.Support {
		target := pos.Add(rule.Direction)
		if _, ok := placing[target]; ok && target != pos {
			return true
		}
		for _, name := range s.namesLocked(target) {
			if name != "" && rule.Accepted(name) {
				return true
			}
		}
	}
	return false
}

// IsPlaceable is the combination of IsOccupied and IsSupported for one cell.
func (s *Store) IsPlaceable(pos grid.BlockCoord, def *blocks.Def, placing map[grid.BlockCoord]string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.occupiedLocked(pos, def.Slice) && s.supportedLocked(pos, def, placing)
}

// unitPlaceableLocked checks every cell of u against the others as one
// simultaneous placement.
func (s *Store) unitPlaceableLocked(u unit) bool {
	for pos, name := range u {
		def, ok := s.registry.Lookup(name)
		if !ok {
			return false
		}
		if s.occupiedLocked(pos, def.Slice) || !s.supportedLocked(pos, def, u) {
			return false
		}
	}
	return true
}

// ensureAround generates the chunks holding cells and their direct
// neighbours so checks never read a chunk that is yet to be generated.
func (s *Store) ensureAround(ctx context.Context, cells ...grid.BlockCoord) error {
	seen := make(map[grid.ChunkCoord]struct{})
	var coords []grid.ChunkCoord
	for _, pos := range cells {
		around := append([]grid.BlockCoord{pos}, neighbours(pos)...)
		for _, p := range around {
			c := p.Chunk(s.chunkSize)
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			coords = append(coords, c)
		}
	}
	for _, c := range coords {
		if err := s.EnsureGenerated(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func neighbours(pos grid.BlockCoord) []grid.BlockCoord {
	out := make([]grid.BlockCoord, len(grid.Cardinal))
	for i, off := range grid.Cardinal {
		out[i] = pos.Add(off)
	}
	return out
}

func (u unit) cells() []grid.BlockCoord {
	out := make([]grid.BlockCoord, 0, len(u))
	for pos := range u {
		out = append(out, pos)
	}
	grid.SortBlockCoords(out)
	return out
}

// QueryPlaceable reports whether Place would succeed, without changing
// anything.
func (s *Store) QueryPlaceable(ctx context.Context, pos grid.BlockCoord, name string) bool {
	def, ok := s.registry.Lookup(name)
	if !ok {
		return false
	}
	u := unitFor(pos, def)
	if err := s.ensureAround(ctx, u.cells()...); err != nil {
		s.logger.Printf("query %s at %v: %v", name, pos, err)
		return false
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unitPlaceableLocked(u)
}

// Place puts name at pos together with all of its counterparts, or changes
// nothing. Neighbours that lose support to a replaced block are settled
// afterwards.
func (s *Store) Place(ctx context.Context, pos grid.BlockCoord, name string) (*ChangeSummary, bool) {
	summary := NewChangeSummary()
	def, ok := s.registry.Lookup(name)
	if !ok {
		return summary, false
	}
	u := unitFor(pos, def)
	if err := s.ensureAround(ctx, u.cells()...); err != nil {
		s.logger.Printf("place %s at %v: %v", name, pos, err)
		return summary, false
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	s.mu.Lock()
	if !s.unitPlaceableLocked(u) {
		s.mu.Unlock()
		return summary, false
	}
	for _, cell := range u.cells() {
		cellDef, _ := s.registry.Lookup(u[cell])
		before, _ := s.nameLocked(cell, cellDef.Slice)
		reason := ReasonPlace
		if before != "" {
			reason = ReasonReplace
		}
		s.setLocked(cell, cellDef.Slice, u[cell], reason, summary)
	}
	s.mu.Unlock()

	if err := s.settle(ctx, u.cells(), summary); err != nil {
		s.logger.Printf("settle after placing %s at %v: %v", name, pos, err)
	}
	return summary, true
}

// Remove clears the front-most block at pos. A block with a next layer is
// replaced by it instead; counterparts go with the block. Neighbours left
// without support are removed in the same call.
func (s *Store) Remove(ctx context.Context, pos grid.BlockCoord) (*ChangeSummary, bool) {
	summary := NewChangeSummary()
	if err := s.ensureAround(ctx, pos); err != nil {
		s.logger.Printf("remove at %v: %v", pos, err)
		return summary, false
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	s.mu.Lock()
	slice, name, ok := s.topLocked(pos)
	if !ok {
		s.mu.Unlock()
		return summary, false
	}
	def, known := s.registry.Lookup(name)
	s.mu.Unlock()

	touched := []grid.BlockCoord{pos}
	if known {
		for _, off := range def.CounterpartOffsets() {
			touched = append(touched, pos.Add(off))
		}
		if err := s.ensureAround(ctx, touched...); err != nil {
			s.logger.Printf("remove at %v: %v", pos, err)
			return summary, false
		}
	}

	s.mu.Lock()
	if known && def.NextLayer != "" {
		s.setLocked(pos, slice, def.NextLayer, ReasonRemove, summary)
	} else {
		s.setLocked(pos, slice, "", ReasonRemove, summary)
	}
	if known {
		s.removeCounterpartsLocked(pos, def, ReasonRemove, summary)
	}
	s.mu.Unlock()

	if err := s.settle(ctx, touched, summary); err != nil {
		s.logger.Printf("settle after removal at %v: %v", pos, err)
	}
	return summary, true
}

func (s *Store) topLocked(pos grid.BlockCoord) (grid.WorldSlice, string, bool) {
	names := s.namesLocked(pos)
	for sl := grid.SliceCount - 1; sl >= 0; sl-- {
		if names[sl] != "" {
			return grid.WorldSlice(sl), names[sl], true
		}
	}
	return 0, "", false
}

// removeCounterpartsLocked deletes the counterpart cells of a block at pos
// that still hold the expected names.
func (s *Store) removeCounterpartsLocked(pos grid.BlockCoord, def *blocks.Def, reason ChangeReason, summary *ChangeSummary) []grid.BlockCoord {
	var removed []grid.BlockCoord
	for _, off := range def.CounterpartOffsets() {
		other := def.Counterparts[off]
		cell := pos.Add(off)
		otherDef, ok := s.registry.Lookup(other)
		if !ok {
			continue
		}
		if current, _ := s.nameLocked(cell, otherDef.Slice); current != other {
			continue
		}
		s.setLocked(cell, otherDef.Slice, "", reason, summary)
		removed = append(removed, cell)
	}
	return removed
}

// standingUnitLocked returns the counterpart cells of the block at pos that
// are actually present, so a multi-cell block keeps supporting itself.
func (s *Store) standingUnitLocked(pos grid.BlockCoord, def *blocks.Def) unit {
	u := unit{pos: def.Name}
	for off, other := range def.Counterparts {
		cell := pos.Add(off)
		for _, name := range s.namesLocked(cell) {
			if name == other {
				u[cell] = other
				break
			}
		}
	}
	return u
}

// settle removes blocks that lost their support, starting from the
// neighbours of changed. It works through a queue; a removed (cell, slice)
// is never visited again, so the pass ends once no new removal happens.
func (s *Store) settle(ctx context.Context, changed []grid.BlockCoord, summary *ChangeSummary) error {
	type slot struct {
		pos   grid.BlockCoord
		slice grid.WorldSlice
	}
	removed := make(map[slot]struct{})
	var queue []grid.BlockCoord
	for _, pos := range changed {
		queue = append(queue, neighbours(pos)...)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if err := s.ensureAround(ctx, current); err != nil {
			return err
		}

		s.mu.Lock()
		names := s.namesLocked(current)
		var fallen []grid.BlockCoord
		for sl, name := range names {
			if name == "" {
				continue
			}
			key := slot{pos: current, slice: grid.WorldSlice(sl)}
			if _, done := removed[key]; done {
				continue
			}
			def, ok := s.registry.Lookup(name)
			if !ok || !def.NeedsSupport() {
				continue
			}
			if s.supportedLocked(current, def, s.standingUnitLocked(current, def)) {
				continue
			}
			s.setLocked(current, key.slice, "", ReasonCascade, summary)
			removed[key] = struct{}{}
			fallen = append(fallen, current)
			for _, cell := range s.removeCounterpartsLocked(current, def, ReasonCascade, summary) {
				otherDef, _ := s.registry.Lookup(def.Counterparts[cell.Sub(current)])
				removed[slot{pos: cell, slice: otherDef.Slice}] = struct{}{}
				fallen = append(fallen, cell)
			}
		}
		s.mu.Unlock()

		for _, pos := range fallen {
			queue = append(queue, neighbours(pos)...)
		}
	}
	return nil
}

// setLocked writes one (cell, slice) and records it in summary.
func (s *Store) setLocked(pos grid.BlockCoord, slice grid.WorldSlice, name string, reason ChangeReason, summary *ChangeSummary) {
	coord := pos.Chunk(s.chunkSize)
	ch, ok := s.chunks[coord]
	if !ok {
		return
	}
	before, _ := ch.nameAt(pos, slice)
	if before == name {
		return
	}
	ch.setName(pos, slice, name)
	summary.AddChange(BlockChange{Pos: pos, Slice: slice, Before: before, After: name, Reason: reason})
	summary.AddChunk(coord)
}

// PlaceBlock is Place without the change summary.
func (s *Store) PlaceBlock(ctx context.Context, pos grid.BlockCoord, name string) bool {
	_, ok := s.Place(ctx, pos, name)
	return ok
}

// RemoveBlock is Remove without the change summary.
func (s *Store) RemoveBlock(ctx context.Context, pos grid.BlockCoord) bool {
	_, ok := s.Remove(ctx, pos)
	return ok
}
