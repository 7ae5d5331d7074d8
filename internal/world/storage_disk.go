package world

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"sideworld/internal/grid"
)

const (
	diskOpSet byte = 1

	// op, chunk x, chunk y, payload size
	diskHeaderSize = 1 + 4 + 4 + 4

	// magic, seed, chunk size
	diskFileHeaderSize = 4 + 8 + 4
)

var diskMagic = [4]byte{'s', 'w', 'c', '1'}

type diskRecordMeta struct {
	offset int64
	size   uint32
}

// diskCache is an append-only log of chunk records behind a file header
// naming the world. The latest entry for a coordinate wins.
type diskCache struct {
	file    *os.File
	mu      sync.RWMutex
	records map[grid.ChunkCoord]diskRecordMeta
}

// OpenDiskCache opens (or creates) the log at path and indexes its entries.
// A log written for another seed or chunk size is truncated.
func OpenDiskCache(path string, meta CacheMeta) (ChunkCache, error) {
	if path == "" {
		return nil, errors.New("disk cache: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	c := &diskCache{
		file:    f,
		records: make(map[grid.ChunkCoord]diskRecordMeta),
	}
	if err := c.checkMeta(meta); err != nil {
		f.Close()
		return nil, err
	}
	if err := c.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// checkMeta writes the file header of an empty log and resets a log that
// belongs to another world.
func (c *diskCache) checkMeta(meta CacheMeta) error {
	info, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("stat cache file: %w", err)
	}
	if info.Size() > 0 {
		header := make([]byte, diskFileHeaderSize)
		if _, err := c.file.ReadAt(header, 0); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("truncated cache file header: %w", err)
			}
			return fmt.Errorf("read cache file header: %w", err)
		}
		stored, ok := parseDiskFileHeader(header)
		if !ok {
			return errors.New("disk cache: not a chunk cache file")
		}
		if stored == meta {
			return nil
		}
		log.Printf("disk cache %s was written for seed %d chunk size %d, starting over", c.file.Name(), stored.Seed, stored.ChunkSize)
	}

	if err := c.file.Truncate(0); err != nil {
		return fmt.Errorf("reset cache file: %w", err)
	}
	if _, err := c.file.WriteAt(diskFileHeader(meta), 0); err != nil {
		return fmt.Errorf("write cache file header: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync cache file: %w", err)
	}
	return nil
}

func diskFileHeader(meta CacheMeta) []byte {
	header := make([]byte, diskFileHeaderSize)
	copy(header[0:4], diskMagic[:])
	binary.LittleEndian.PutUint64(header[4:12], uint64(meta.Seed))
	binary.LittleEndian.PutUint32(header[12:16], uint32(meta.ChunkSize))
	return header
}

func parseDiskFileHeader(header []byte) (CacheMeta, bool) {
	if [4]byte(header[0:4]) != diskMagic {
		return CacheMeta{}, false
	}
	return CacheMeta{
		Seed:      int64(binary.LittleEndian.Uint64(header[4:12])),
		ChunkSize: int(binary.LittleEndian.Uint32(header[12:16])),
	}, true
}

func (c *diskCache) loadIndex() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := int64(diskFileHeaderSize)
	if _, err := c.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("rewind cache file: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	for {
		if _, err := io.ReadFull(c.file, header); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("truncated cache header: %w", err)
			}
			return fmt.Errorf("read cache header: %w", err)
		}
		op, coord, size := parseDiskHeader(header)
		recordOffset := offset
		offset += diskHeaderSize + int64(size)

		if _, err := c.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if op != diskOpSet {
			return fmt.Errorf("unknown cache entry op %d at offset %d", op, recordOffset)
		}
		c.records[coord] = diskRecordMeta{offset: recordOffset, size: size}
	}
	return nil
}

func diskHeader(op byte, coord grid.ChunkCoord, size int) []byte {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], uint32(int32(coord.X)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(int32(coord.Y)))
	binary.LittleEndian.PutUint32(header[9:13], uint32(size))
	return header
}

func parseDiskHeader(header []byte) (byte, grid.ChunkCoord, uint32) {
	coord := grid.ChunkCoord{
		X: int(int32(binary.LittleEndian.Uint32(header[1:5]))),
		Y: int(int32(binary.LittleEndian.Uint32(header[5:9]))),
	}
	return header[0], coord, binary.LittleEndian.Uint32(header[9:13])
}

func (c *diskCache) Load(coord grid.ChunkCoord) (ChunkRecord, bool, error) {
	c.mu.RLock()
	meta, ok := c.records[coord]
	c.mu.RUnlock()
	if !ok {
		return ChunkRecord{}, false, nil
	}

	payload := make([]byte, meta.size)
	if _, err := c.file.ReadAt(payload, meta.offset+diskHeaderSize); err != nil {
		return ChunkRecord{}, false, fmt.Errorf("read payload for %v: %w", coord, err)
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return ChunkRecord{}, false, fmt.Errorf("chunk %v: %w", coord, err)
	}
	return rec, true, nil
}

func (c *diskCache) Save(coord grid.ChunkCoord, rec ChunkRecord) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	offset, err := c.append(diskHeader(diskOpSet, coord, len(payload)), payload)
	if err != nil {
		return err
	}
	c.records[coord] = diskRecordMeta{offset: offset, size: uint32(len(payload))}
	return nil
}

// append writes one entry at the end of the log. Callers hold c.mu.
func (c *diskCache) append(header, payload []byte) (int64, error) {
	offset, err := c.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek cache end: %w", err)
	}
	if _, err := c.file.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := c.file.Write(payload); err != nil {
			return 0, fmt.Errorf("write payload: %w", err)
		}
	}
	if err := c.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync cache file: %w", err)
	}
	return offset, nil
}

func (c *diskCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
