package datapack

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"

	getter "github.com/hashicorp/go-getter"

	"sideworld/internal/blocks"
	"sideworld/internal/config"
	"sideworld/internal/structures"
)

//go:embed defaults
var embedded embed.FS

// Defaults returns the built-in data pack: block types under blocks/ and
// structure categories under structures/.
func Defaults() fs.FS {
	sub, err := fs.Sub(embedded, "defaults")
	if err != nil {
		panic(err)
	}
	return sub
}

// Pack is the loaded, read-only world data shared by the generator and the
// placement rules.
type Pack struct {
	Registry *blocks.Registry
	Catalog  *structures.Catalog
}

// Fetch downloads the data pack at src into dst. src is any go-getter
// address (local path, http archive, git::, s3::).
func Fetch(ctx context.Context, src, dst string) error {
	if src == "" {
		return fmt.Errorf("data source is empty")
	}
	if dst == "" {
		return fmt.Errorf("data destination is empty")
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear %s: %w", dst, err)
	}
	if err := getter.Get(dst, src, getter.WithContext(ctx)); err != nil {
		return fmt.Errorf("fetch data pack %s: %w", src, err)
	}
	return nil
}

// Open resolves the data pack filesystem for cfg. A configured source is
// fetched into cfg.Dir first; without a Dir the embedded pack is used.
func Open(ctx context.Context, cfg config.DataConfig, logger *log.Logger) (fs.FS, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Source != "" {
		logger.Printf("fetching data pack %s into %s", cfg.Source, cfg.Dir)
		if err := Fetch(ctx, cfg.Source, cfg.Dir); err != nil {
			return nil, err
		}
	}
	if cfg.Dir == "" {
		return Defaults(), nil
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", cfg.Dir)
	}
	return os.DirFS(cfg.Dir), nil
}

// Load reads the block registry and structure catalog from fsys. Any
// malformed file fails the load.
func Load(fsys fs.FS, cfg config.DataConfig, logger *log.Logger) (*Pack, error) {
	if logger == nil {
		logger = log.Default()
	}
	blocksDir := path.Clean(cfg.BlocksDir)
	structuresDir := path.Clean(cfg.StructuresDir)

	reg, err := blocks.Load(fsys, blocksDir)
	if err != nil {
		return nil, fmt.Errorf("load block types: %w", err)
	}
	logger.Printf("loaded %d block types", reg.Len())

	cat, err := structures.Load(fsys, structuresDir, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("load structures: %w", err)
	}
	return &Pack{Registry: reg, Catalog: cat}, nil
}
