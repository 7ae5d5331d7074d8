package world

import (
	"sync"

	"sideworld/internal/grid"
)

type memoryCache struct {
	mu      sync.RWMutex
	records map[grid.ChunkCoord]ChunkRecord
}

// NewMemoryCache keeps records for the lifetime of the process only.
func NewMemoryCache() ChunkCache {
	return &memoryCache{records: make(map[grid.ChunkCoord]ChunkRecord)}
}

func (m *memoryCache) Load(coord grid.ChunkCoord) (ChunkRecord, bool, error) {
	m.mu.RLock()
	rec, ok := m.records[coord]
	m.mu.RUnlock()
	if !ok {
		return ChunkRecord{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (m *memoryCache) Save(coord grid.ChunkCoord, rec ChunkRecord) error {
	m.mu.Lock()
	m.records[coord] = cloneRecord(rec)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Close() error {
	return nil
}
