package world

import (
	"context"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"sideworld/internal/grid"
)

func renderedStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(t, &layeredGenerator{}, nil)
	store.stream.PreloadMargin = 1
	if _, err := store.StreamWindow(context.Background(), mgl64.Vec2{0, 0}, mgl64.Vec2{8, 8}); err != nil {
		t.Fatalf("stream: %v", err)
	}
	return store
}

func mustName(t *testing.T, s *Store, pos grid.BlockCoord, slice grid.WorldSlice, want string) {
	t.Helper()
	got, _ := s.BlockAt(pos, slice)
	if got != want {
		t.Fatalf("%v %v: expected %q, got %q", pos, slice, want, got)
	}
}

func TestPlaceRequiresSupport(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()

	onGrass := grid.BlockCoord{X: 1, Y: groundRow - 1}
	if !store.QueryPlaceable(ctx, onGrass, "flower") {
		t.Fatalf("flower on grass should be placeable")
	}
	if _, ok := store.Location(onGrass); ok {
		t.Fatalf("query must not create a location")
	}
	summary, ok := store.Place(ctx, onGrass, "flower")
	if !ok {
		t.Fatalf("expected placement on grass")
	}
	want := []BlockChange{{Pos: onGrass, Slice: grid.Foreground, After: "flower", Reason: ReasonPlace}}
	if !reflect.DeepEqual(summary.Changes(), want) {
		t.Fatalf("unexpected changes %+v", summary.Changes())
	}

	// strip the surface down to stone
	surface := grid.BlockCoord{X: 3, Y: groundRow}
	store.RemoveBlock(ctx, surface)
	store.RemoveBlock(ctx, surface)
	mustName(t, store, surface, grid.Foreground, "")

	if store.QueryPlaceable(ctx, surface, "flower") {
		t.Fatalf("flower on stone should not be placeable")
	}
	if store.PlaceBlock(ctx, surface, "flower") {
		t.Fatalf("flower placed on stone")
	}
	if _, ok := store.Location(surface); ok {
		t.Fatalf("failed placement left a location behind")
	}
}

func TestPlaceUnknownBlockFails(t *testing.T) {
	store := renderedStore(t)
	if store.PlaceBlock(context.Background(), grid.BlockCoord{X: 0, Y: 0}, "missing") {
		t.Fatalf("unknown block placed")
	}
}

func TestOccupiedSlots(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	grass := grid.BlockCoord{X: 0, Y: groundRow}

	if !store.IsOccupied(grass, grid.Foreground) {
		t.Fatalf("non-replaceable block should occupy its slot")
	}
	if store.IsOccupied(grass, grid.Background) {
		t.Fatalf("empty background slot reported occupied")
	}

	cell := grid.BlockCoord{X: 0, Y: groundRow - 1}
	if !store.PlaceBlock(ctx, cell, "flower") {
		t.Fatalf("flower placement failed")
	}
	if store.IsOccupied(cell, grid.Foreground) {
		t.Fatalf("replaceable flower should not occupy its slot")
	}
	summary, ok := store.Place(ctx, cell, "pillar")
	if !ok {
		t.Fatalf("pillar should replace the flower")
	}
	changes := summary.Changes()
	if len(changes) != 1 || changes[0].Reason != ReasonReplace || changes[0].Before != "flower" {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestPlayerBoxBlocksPlacement(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	cell := grid.BlockCoord{X: 2, Y: 1}

	store.SetPlayerBox(&Box{Min: mgl64.Vec2{2.2, 0.5}, Max: mgl64.Vec2{2.8, 1.5}})
	if !store.IsOccupied(cell, grid.Background) {
		t.Fatalf("player box should occupy every slice")
	}
	if store.PlaceBlock(ctx, cell, "wall") {
		t.Fatalf("placed a block inside the player")
	}

	store.SetPlayerBox(nil)
	if !store.PlaceBlock(ctx, cell, "wall") {
		t.Fatalf("placement failed once the player moved")
	}
}

func TestCounterpartsPlaceAndRemoveTogether(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	bottom := grid.BlockCoord{X: 2, Y: groundRow - 1}
	top := grid.BlockCoord{X: 2, Y: groundRow - 2}

	// the top half would land inside the player
	store.SetPlayerBox(&Box{Min: mgl64.Vec2{2, float64(top.Y)}, Max: mgl64.Vec2{3, float64(top.Y) + 0.5}})
	if store.QueryPlaceable(ctx, bottom, "door_bottom") || store.PlaceBlock(ctx, bottom, "door_bottom") {
		t.Fatalf("door placed although its top half is blocked")
	}
	mustName(t, store, bottom, grid.Foreground, "")
	mustName(t, store, top, grid.Foreground, "")

	store.SetPlayerBox(nil)
	summary, ok := store.Place(ctx, bottom, "door_bottom")
	if !ok {
		t.Fatalf("door placement failed")
	}
	if summary.Len() != 2 {
		t.Fatalf("expected both halves in the summary, got %+v", summary.Changes())
	}
	mustName(t, store, bottom, grid.Foreground, "door_bottom")
	mustName(t, store, top, grid.Foreground, "door_top")

	summary, ok = store.Remove(ctx, top)
	if !ok {
		t.Fatalf("remove failed")
	}
	mustName(t, store, bottom, grid.Foreground, "")
	mustName(t, store, top, grid.Foreground, "")
	if summary.Len() != 2 || len(summary.Cascaded()) != 0 {
		t.Fatalf("unexpected removal summary %+v", summary.Changes())
	}
}

func TestCounterpartBlockedByPlacedBlock(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	bottom := grid.BlockCoord{X: 1, Y: groundRow - 1}
	top := grid.BlockCoord{X: 1, Y: groundRow - 2}

	if !store.PlaceBlock(ctx, top, "crate") {
		t.Fatalf("crate placement failed")
	}
	if store.QueryPlaceable(ctx, bottom, "door_bottom") {
		t.Fatalf("door reported placeable under a crate")
	}
	if summary, ok := store.Place(ctx, bottom, "door_bottom"); ok {
		t.Fatalf("door placed into a crate: %+v", summary.Changes())
	}
	mustName(t, store, bottom, grid.Foreground, "")
	mustName(t, store, top, grid.Foreground, "crate")
}

func TestRemoveUsesNextLayer(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	pos := grid.BlockCoord{X: -3, Y: groundRow}

	summary, ok := store.Remove(ctx, pos)
	if !ok {
		t.Fatalf("remove failed")
	}
	want := []BlockChange{{Pos: pos, Slice: grid.Foreground, Before: "grass_block", After: "dirt", Reason: ReasonRemove}}
	if !reflect.DeepEqual(summary.Changes(), want) {
		t.Fatalf("unexpected changes %+v", summary.Changes())
	}
	loc, ok := store.Location(pos)
	if !ok || loc.Slices[grid.Foreground].Name != "dirt" {
		t.Fatalf("location not updated: %+v", loc)
	}

	store.RemoveBlock(ctx, pos)
	if _, ok := store.Location(pos); ok {
		t.Fatalf("emptied cell still has a location")
	}
	if store.RemoveBlock(ctx, pos) {
		t.Fatalf("removing from an empty cell should fail")
	}
}

func TestRemoveTakesFrontSlice(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	pos := grid.BlockCoord{X: -1, Y: 2}

	for _, name := range []string{"wall", "glass"} {
		if !store.PlaceBlock(ctx, pos, name) {
			t.Fatalf("place %s failed", name)
		}
	}
	store.RemoveBlock(ctx, pos)
	mustName(t, store, pos, grid.Middleground, "")
	mustName(t, store, pos, grid.Background, "wall")
}

func TestOccupancyIsPerSlice(t *testing.T) {
	store := renderedStore(t)
	pos := grid.BlockCoord{X: 2, Y: groundRow + 1}

	if !store.IsOccupied(pos, grid.Foreground) {
		t.Fatalf("stone should occupy the foreground slot")
	}
	if store.IsOccupied(pos, grid.Middleground) {
		t.Fatalf("foreground stone should not occupy the middleground slot")
	}
	if !store.PlaceBlock(context.Background(), pos, "glass") {
		t.Fatalf("glass placement behind stone failed")
	}
	mustName(t, store, pos, grid.Foreground, "stone")
	mustName(t, store, pos, grid.Middleground, "glass")
}

func TestRemovalCascades(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	column := []grid.BlockCoord{{X: 0, Y: 4}, {X: 0, Y: 3}, {X: 0, Y: 2}}
	for _, pos := range column {
		if !store.PlaceBlock(ctx, pos, "pillar") {
			t.Fatalf("pillar at %v failed", pos)
		}
	}
	flower := grid.BlockCoord{X: 1, Y: 4}
	if !store.PlaceBlock(ctx, flower, "flower") {
		t.Fatalf("flower failed")
	}

	summary, ok := store.Remove(ctx, column[0])
	if !ok {
		t.Fatalf("remove failed")
	}
	want := []grid.BlockCoord{{X: 0, Y: 2}, {X: 0, Y: 3}}
	if got := summary.Cascaded(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected cascade %v, got %v", want, got)
	}
	for _, pos := range column {
		mustName(t, store, pos, grid.Foreground, "")
	}
	mustName(t, store, flower, grid.Foreground, "flower")

	// turning grass into dirt takes the flower with it
	summary, _ = store.Remove(ctx, grid.BlockCoord{X: 1, Y: groundRow})
	if got := summary.Cascaded(); !reflect.DeepEqual(got, []grid.BlockCoord{flower}) {
		t.Fatalf("expected flower cascade, got %v", got)
	}
	if dirty := summary.DirtyChunks(); !reflect.DeepEqual(dirty, []grid.ChunkCoord{{X: 0, Y: 1}}) {
		t.Fatalf("unexpected dirty chunks %v", dirty)
	}
}

func TestCascadeRemovesStandingDoor(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	base := grid.BlockCoord{X: -2, Y: 3}
	for _, pos := range []grid.BlockCoord{{X: -2, Y: 4}, base} {
		if !store.PlaceBlock(ctx, pos, "pillar") {
			t.Fatalf("pillar at %v failed", pos)
		}
	}
	// door_bottom is not supported by a pillar
	if store.PlaceBlock(ctx, base.Add(above), "door_bottom") {
		t.Fatalf("door stood on a pillar")
	}
	if !store.PlaceBlock(ctx, grid.BlockCoord{X: -1, Y: 4}, "door_bottom") {
		t.Fatalf("door on grass failed")
	}

	summary, _ := store.Remove(ctx, grid.BlockCoord{X: -1, Y: groundRow})
	if len(summary.Cascaded()) != 0 {
		t.Fatalf("door on dirt should keep standing, cascaded %v", summary.Cascaded())
	}
	summary, _ = store.Remove(ctx, grid.BlockCoord{X: -1, Y: groundRow})
	if got := summary.Cascaded(); !reflect.DeepEqual(got, []grid.BlockCoord{{X: -1, Y: 3}, {X: -1, Y: 4}}) {
		t.Fatalf("expected both door halves to fall, got %v", got)
	}
	mustName(t, store, grid.BlockCoord{X: -1, Y: 4}, grid.Foreground, "")
	mustName(t, store, grid.BlockCoord{X: -1, Y: 3}, grid.Foreground, "")
}

func TestVisibleBlocksStopAtOpaque(t *testing.T) {
	store := renderedStore(t)
	ctx := context.Background()
	pos := grid.BlockCoord{X: 1, Y: 1}

	store.PlaceBlock(ctx, pos, "wall")
	store.PlaceBlock(ctx, pos, "glass")
	if got := blockNames(store.VisibleBlocks(pos)); !reflect.DeepEqual(got, []string{"wall", "glass"}) {
		t.Fatalf("expected wall and glass, got %v", got)
	}

	store.PlaceBlock(ctx, pos, "crate")
	if got := blockNames(store.VisibleBlocks(pos)); !reflect.DeepEqual(got, []string{"crate"}) {
		t.Fatalf("expected crate only, got %v", got)
	}

	loc, _ := store.Location(pos)
	if slice, ok := HighestOpaqueSlice(loc.Slices, store.Registry()); !ok || slice != grid.Foreground {
		t.Fatalf("expected foreground, got %v %v", slice, ok)
	}
	if _, ok := HighestOpaqueSlice([grid.SliceCount]*Block{}, store.Registry()); ok {
		t.Fatalf("empty stack has no opaque slice")
	}
}

func blockNames(blocks []*Block) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b.Name)
	}
	return out
}

func TestChangeSummaryKeepsFirstBefore(t *testing.T) {
	s := NewChangeSummary()
	pos := grid.BlockCoord{X: 1, Y: 1}
	s.AddChange(BlockChange{Pos: pos, Before: "grass_block", After: "dirt", Reason: ReasonRemove})
	s.AddChange(BlockChange{Pos: pos, Before: "dirt", After: "", Reason: ReasonPlace})

	other := NewChangeSummary()
	other.AddChange(BlockChange{Pos: grid.BlockCoord{X: 0, Y: 1}, After: "crate", Reason: ReasonPlace})
	other.AddChunk(grid.ChunkCoord{X: 1})
	s.Merge(other)

	changes := s.Changes()
	if len(changes) != 2 {
		t.Fatalf("expected two changes, got %+v", changes)
	}
	if changes[1].Before != "grass_block" || changes[1].After != "" || changes[1].Reason != ReasonRemove {
		t.Fatalf("unexpected merged change %+v", changes[1])
	}
	if got := s.DirtyChunks(); !reflect.DeepEqual(got, []grid.ChunkCoord{{X: 1}}) {
		t.Fatalf("unexpected chunks %v", got)
	}
}
