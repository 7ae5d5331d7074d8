package world

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"sideworld/internal/config"
	"sideworld/internal/grid"
)

// ChunkRecord is the persisted name data of one chunk.
type ChunkRecord struct {
	Cells []CellRecord
}

// CellRecord holds the per-slice block names of one cell.
type CellRecord struct {
	X, Y   int
	Slices [grid.SliceCount]string
}

// ChunkCache persists generated (and edited) chunk data so it survives a
// restart. Loading a chunk from the cache counts as having generated it.
type ChunkCache interface {
	Load(coord grid.ChunkCoord) (ChunkRecord, bool, error)
	Save(coord grid.ChunkCoord, rec ChunkRecord) error
	Close() error
}

// CacheMeta names the world a persistent cache was filled for. A cache
// opened with a different meta drops its records and starts over.
type CacheMeta struct {
	Seed      int64
	ChunkSize int
}

func MetaFor(cfg config.WorldConfig) CacheMeta {
	return CacheMeta{Seed: cfg.Seed, ChunkSize: cfg.ChunkSize}
}

// OpenCache builds the cache backend named by cfg.
func OpenCache(cfg config.CacheConfig, meta CacheMeta) (ChunkCache, error) {
	switch cfg.Backend {
	case "", config.CacheMemory:
		return NewMemoryCache(), nil
	case config.CacheDisk:
		return OpenDiskCache(cfg.Path, meta)
	case config.CacheSQLite:
		return OpenSQLiteCache(cfg.Path, meta)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

var (
	payloadEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	payloadDecoder, _ = zstd.NewReader(nil)
)

// encodeRecord gob-encodes rec and compresses it with zstd.
func encodeRecord(rec ChunkRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("encode chunk record: %w", err)
	}
	return payloadEncoder.EncodeAll(buf.Bytes(), nil), nil
}

func decodeRecord(payload []byte) (ChunkRecord, error) {
	raw, err := payloadDecoder.DecodeAll(payload, nil)
	if err != nil {
		return ChunkRecord{}, fmt.Errorf("decompress chunk record: %w", err)
	}
	var rec ChunkRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return ChunkRecord{}, fmt.Errorf("decode chunk record: %w", err)
	}
	return rec, nil
}

func cloneRecord(rec ChunkRecord) ChunkRecord {
	return ChunkRecord{Cells: append([]CellRecord(nil), rec.Cells...)}
}
