package world

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"sideworld/internal/grid"
)

type sqliteCache struct {
	db *sql.DB
}

// OpenSQLiteCache stores one row per chunk in the database at path. The meta
// table records the world the rows belong to; rows of another world are
// dropped on open.
func OpenSQLiteCache(path string, meta CacheMeta) (ChunkCache, error) {
	if path == "" {
		return nil, errors.New("sqlite cache: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (cx, cy)
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			seed INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
	}
	c := &sqliteCache{db: db}
	if err := c.checkMeta(meta); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *sqliteCache) checkMeta(meta CacheMeta) error {
	var stored CacheMeta
	err := c.db.QueryRow(`SELECT seed, chunk_size FROM meta WHERE id = 0`).Scan(&stored.Seed, &stored.ChunkSize)
	switch {
	case err == nil && stored == meta:
		return nil
	case err == nil:
		log.Printf("sqlite cache was written for seed %d chunk size %d, starting over", stored.Seed, stored.ChunkSize)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read sqlite cache meta: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin meta reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("reset sqlite cache: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO meta (id, seed, chunk_size) VALUES (0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET seed = excluded.seed, chunk_size = excluded.chunk_size`, meta.Seed, meta.ChunkSize); err != nil {
		return fmt.Errorf("write sqlite cache meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit meta reset: %w", err)
	}
	return nil
}

func (c *sqliteCache) Load(coord grid.ChunkCoord) (ChunkRecord, bool, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT data FROM chunks WHERE cx = ? AND cy = ?`, coord.X, coord.Y).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ChunkRecord{}, false, nil
	}
	if err != nil {
		return ChunkRecord{}, false, fmt.Errorf("query chunk %v: %w", coord, err)
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return ChunkRecord{}, false, fmt.Errorf("chunk %v: %w", coord, err)
	}
	return rec, true, nil
}

func (c *sqliteCache) Save(coord grid.ChunkCoord, rec ChunkRecord) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT INTO chunks (cx, cy, data) VALUES (?, ?, ?)
		ON CONFLICT(cx, cy) DO UPDATE SET data = excluded.data`, coord.X, coord.Y, payload)
	if err != nil {
		return fmt.Errorf("save chunk %v: %w", coord, err)
	}
	return nil
}

func (c *sqliteCache) Close() error {
	return c.db.Close()
}
