package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"sideworld/internal/config"
	"sideworld/internal/datapack"
	"sideworld/internal/terrain"
	"sideworld/internal/world"
)

type options struct {
	cfgPath string
	centerX float64 // blocks
	centerY float64 // blocks
	width   float64 // pixels
	height  float64 // pixels
	dump    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.cfgPath, "config", "", "path to world configuration file (JSON or YAML)")
	flag.Float64Var(&opts.centerX, "x", 0, "viewport centre column, in blocks")
	flag.Float64Var(&opts.centerY, "y", 0, "viewport centre row, in blocks")
	flag.Float64Var(&opts.width, "width", 1280, "viewport width in pixels")
	flag.Float64Var(&opts.height, "height", 720, "viewport height in pixels")
	flag.BoolVar(&opts.dump, "dump", false, "print the streamed window as text")
	flag.Parse()

	if _, err := writeConfigFromEnv(opts.cfgPath); err != nil {
		log.Fatalf("apply environment config: %v", err)
	}

	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("sideworld: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	logger := log.New(os.Stderr, "sideworld ", log.LstdFlags)

	fsys, err := datapack.Open(ctx, cfg.Data, logger)
	if err != nil {
		return fmt.Errorf("open data pack: %w", err)
	}
	pack, err := datapack.Load(fsys, cfg.Data, logger)
	if err != nil {
		return err
	}

	gen, err := terrain.NewGenerator(cfg.World, cfg.Structures, pack.Registry, pack.Catalog, logger)
	if err != nil {
		return fmt.Errorf("initialise generator: %w", err)
	}

	cache, err := world.OpenCache(cfg.Cache, world.MetaFor(cfg.World))
	if err != nil {
		return fmt.Errorf("open chunk cache: %w", err)
	}
	store, err := world.NewStore(world.Options{
		ChunkSize: cfg.World.ChunkSize,
		Streaming: cfg.Streaming,
		Generator: gen,
		Registry:  pack.Registry,
		Cache:     cache,
		Logger:    logger,
	})
	if err != nil {
		_ = cache.Close()
		return fmt.Errorf("initialise chunk store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("close chunk store: %v", err)
		}
	}()

	center := mgl64.Vec2{opts.centerX, opts.centerY}.Mul(cfg.Streaming.BlockPixels)
	view := mgl64.Vec2{opts.width, opts.height}

	started := time.Now()
	rendered, err := store.StreamWindow(ctx, center, view)
	if err != nil {
		return fmt.Errorf("stream window: %w", err)
	}
	logger.Printf("rendered %d chunks around (%.1f, %.1f) in %s (%d generated)",
		len(rendered), opts.centerX, opts.centerY, time.Since(started).Round(time.Millisecond), store.Generations())

	if opts.dump {
		rng := store.ViewRange(center, view).Inflate(cfg.Streaming.PreloadMargin)
		if err := store.Dump(os.Stdout, rng); err != nil {
			return fmt.Errorf("dump window: %w", err)
		}
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if generation stalls after a signal.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
