package world

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"sideworld/internal/blocks"
	"sideworld/internal/config"
	"sideworld/internal/grid"
)

// Generator produces the block-name data of one chunk. Implementations must
// be pure functions of the coordinate.
type Generator interface {
	Generate(ctx context.Context, coord grid.ChunkCoord) (map[grid.BlockCoord]string, error)
}

// Box is an axis-aligned rectangle in block units.
type Box struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// Overlaps reports whether the box intersects the unit cell at pos.
func (b Box) Overlaps(pos grid.BlockCoord) bool {
	x, y := float64(pos.X), float64(pos.Y)
	return b.Min.X() < x+1 && b.Max.X() > x && b.Min.Y() < y+1 && b.Max.Y() > y
}

// Store owns every chunk, its cached name data and its live Location records.
type Store struct {
	chunkSize int
	stream    config.StreamingConfig
	generator Generator
	registry  *blocks.Registry
	cache     ChunkCache
	logger    *log.Logger

	mu       sync.RWMutex
	chunks   map[grid.ChunkCoord]*Chunk
	rendered map[grid.ChunkCoord]struct{}
	player   *Box

	// editMu serializes placements and removals.
	editMu sync.Mutex

	flight      singleflight.Group
	generations atomic.Int64
}

type Options struct {
	ChunkSize int
	Streaming config.StreamingConfig
	Generator Generator
	Registry  *blocks.Registry
	Cache     ChunkCache // nil keeps data in memory only
	Logger    *log.Logger
}

func NewStore(opts Options) (*Store, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("block registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Streaming.BlockPixels <= 0 {
		opts.Streaming.BlockPixels = config.Default().Streaming.BlockPixels
	}
	return &Store{
		chunkSize: opts.ChunkSize,
		stream:    opts.Streaming,
		generator: opts.Generator,
		registry:  opts.Registry,
		cache:     opts.Cache,
		logger:    opts.Logger,
		chunks:    make(map[grid.ChunkCoord]*Chunk),
		rendered:  make(map[grid.ChunkCoord]struct{}),
	}, nil
}

func (s *Store) ChunkSize() int {
	return s.chunkSize
}

func (s *Store) Registry() *blocks.Registry {
	return s.registry
}

// Generations reports how many times the generator has run.
func (s *Store) Generations() int64 {
	return s.generations.Load()
}

func (s *Store) State(coord grid.ChunkCoord) ChunkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[coord]
	if !ok {
		return Unloaded
	}
	return ch.State()
}

// EnsureGenerated makes sure coord has name data, loading it from the cache
// or generating it. Concurrent calls for one coordinate share a single
// generation; generated data is kept for the lifetime of the store.
func (s *Store) EnsureGenerated(ctx context.Context, coord grid.ChunkCoord) error {
	s.mu.RLock()
	_, ok := s.chunks[coord]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	_, err, _ := s.flight.Do(coord.String(), func() (any, error) {
		s.mu.RLock()
		_, ok := s.chunks[coord]
		s.mu.RUnlock()
		if ok {
			return nil, nil
		}

		ch, err := s.loadOrGenerate(ctx, coord)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.chunks[coord]; !exists {
			s.chunks[coord] = ch
		}
		return nil, nil
	})
	return err
}

func (s *Store) loadOrGenerate(ctx context.Context, coord grid.ChunkCoord) (*Chunk, error) {
	if s.cache != nil {
		rec, ok, err := s.cache.Load(coord)
		if err != nil {
			s.logger.Printf("chunk cache load %v: %v", coord, err)
		} else if ok {
			return chunkFromRecord(coord, rec), nil
		}
	}

	data, err := s.generator.Generate(ctx, coord)
	if err != nil {
		return nil, fmt.Errorf("generate chunk %v: %w", coord, err)
	}
	s.generations.Add(1)

	ch := newChunk(coord, data, s.registry)
	if s.cache != nil {
		if err := s.cache.Save(coord, ch.record()); err != nil {
			s.logger.Printf("chunk cache save %v: %v", coord, err)
		}
	}
	return ch, nil
}

// ensureAll generates every missing coordinate in coords, at most
// streaming.workers at a time.
func (s *Store) ensureAll(ctx context.Context, coords []grid.ChunkCoord) error {
	if timeout := s.stream.GenerationTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.stream.Workers > 0 {
		g.SetLimit(s.stream.Workers)
	}
	for _, coord := range coords {
		coord := coord
		g.Go(func() error {
			return s.EnsureGenerated(gctx, coord)
		})
	}
	return g.Wait()
}

// ChunkRange is an inclusive rectangle of chunk coordinates.
type ChunkRange struct {
	Min grid.ChunkCoord
	Max grid.ChunkCoord
}

func (r ChunkRange) Contains(c grid.ChunkCoord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X && c.Y >= r.Min.Y && c.Y <= r.Max.Y
}

func (r ChunkRange) Inflate(margin int) ChunkRange {
	return ChunkRange{
		Min: grid.ChunkCoord{X: r.Min.X - margin, Y: r.Min.Y - margin},
		Max: grid.ChunkCoord{X: r.Max.X + margin, Y: r.Max.Y + margin},
	}
}

// Coords lists the range row by row.
func (r ChunkRange) Coords() []grid.ChunkCoord {
	var out []grid.ChunkCoord
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			out = append(out, grid.ChunkCoord{X: x, Y: y})
		}
	}
	return out
}

// ViewRange returns the chunks whose pixel footprint intersects a viewport of
// size viewSize centred on center.
func (s *Store) ViewRange(center, viewSize mgl64.Vec2) ChunkRange {
	chunkPixels := s.stream.BlockPixels * float64(s.chunkSize)
	half := viewSize.Mul(0.5)
	lo := center.Sub(half).Mul(1 / chunkPixels)
	hi := center.Add(half).Mul(1 / chunkPixels)
	return ChunkRange{
		Min: grid.ChunkCoord{X: int(math.Floor(lo.X())), Y: int(math.Floor(lo.Y()))},
		Max: grid.ChunkCoord{X: lastCovered(hi.X(), lo.X()), Y: lastCovered(hi.Y(), lo.Y())},
	}
}

// lastCovered is the index of the last chunk a half-open span [lo, hi)
// reaches, in chunk units.
func lastCovered(hi, lo float64) int {
	last := int(math.Ceil(hi)) - 1
	if first := int(math.Floor(lo)); last < first {
		return first
	}
	return last
}

// StreamWindow updates the rendered set for a viewport. Chunks within
// preloadMargin of the view are generated and materialized; rendered chunks
// beyond evictMargin are unmaterialized. The returned set is ordered.
func (s *Store) StreamWindow(ctx context.Context, center, viewSize mgl64.Vec2) ([]grid.ChunkCoord, error) {
	view := s.ViewRange(center, viewSize)
	keep := view.Inflate(s.stream.PreloadMargin)
	hold := view.Inflate(s.stream.EvictMargin)

	wanted := keep.Coords()
	if err := s.ensureAll(ctx, wanted); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for coord := range s.rendered {
		if hold.Contains(coord) {
			continue
		}
		ch := s.chunks[coord]
		s.flushLocked(ch)
		ch.unmaterialize()
		delete(s.rendered, coord)
	}
	for _, coord := range wanted {
		ch, ok := s.chunks[coord]
		if !ok {
			continue
		}
		ch.materialize()
		s.rendered[coord] = struct{}{}
	}
	return s.renderedLocked(), nil
}

// flushLocked persists edited chunk data. Callers hold s.mu.
func (s *Store) flushLocked(ch *Chunk) {
	if ch == nil || !ch.dirty || s.cache == nil {
		return
	}
	if err := s.cache.Save(ch.Coord, ch.record()); err != nil {
		s.logger.Printf("chunk cache save %v: %v", ch.Coord, err)
		return
	}
	ch.dirty = false
}

func (s *Store) RenderedChunks() []grid.ChunkCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderedLocked()
}

func (s *Store) renderedLocked() []grid.ChunkCoord {
	out := make([]grid.ChunkCoord, 0, len(s.rendered))
	for coord := range s.rendered {
		out = append(out, coord)
	}
	grid.SortChunkCoords(out)
	return out
}

// BlockAt returns the block name at (pos, slice). Cells of chunks that were
// never generated read as empty.
func (s *Store) BlockAt(pos grid.BlockCoord, slice grid.WorldSlice) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameLocked(pos, slice)
}

func (s *Store) nameLocked(pos grid.BlockCoord, slice grid.WorldSlice) (string, bool) {
	ch, ok := s.chunks[pos.Chunk(s.chunkSize)]
	if !ok {
		return "", false
	}
	return ch.nameAt(pos, slice)
}

func (s *Store) namesLocked(pos grid.BlockCoord) sliceNames {
	ch, ok := s.chunks[pos.Chunk(s.chunkSize)]
	if !ok {
		return sliceNames{}
	}
	return ch.names[pos]
}

// Location returns the live slice stack at pos. Only materialized chunks have
// locations.
func (s *Store) Location(pos grid.BlockCoord) (*Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[pos.Chunk(s.chunkSize)]
	if !ok {
		return nil, false
	}
	loc, ok := ch.location(pos)
	if !ok {
		return nil, false
	}
	dup := *loc
	return &dup, true
}

func (s *Store) VisibleBlocks(pos grid.BlockCoord) []*Block {
	loc, ok := s.Location(pos)
	if !ok {
		return nil
	}
	return VisibleBlocks(loc, s.registry)
}

// ChunkNames returns the cached name data of one slice of a generated chunk.
func (s *Store) ChunkNames(coord grid.ChunkCoord, slice grid.WorldSlice) (map[grid.BlockCoord]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[coord]
	if !ok {
		return nil, false
	}
	return ch.Names(slice), true
}

// SetPlayerBox records the player's bounding box; nil clears it.
func (s *Store) SetPlayerBox(box *Box) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if box == nil {
		s.player = nil
		return
	}
	b := *box
	s.player = &b
}

// Close flushes edited chunks and closes the cache.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chunks {
		s.flushLocked(ch)
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
