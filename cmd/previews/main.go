package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"fitroom/internal/asset"
	"fitroom/internal/batch"
	"fitroom/internal/catalog"
	"fitroom/internal/config"
	"fitroom/internal/logging"
	"fitroom/internal/looks"
	"fitroom/internal/mesh"
	"fitroom/internal/preview"
	"fitroom/internal/texture"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config file (.yaml or .json)")
	testN := flag.Int("test", 0, "Render only first N items for testing")
	only := flag.String("item", "", "Render only the item with this id")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	baseDir := flag.String("base", "", "Base directory (default: auto-detect)")
	assetDir := flag.String("assets", "", "Asset directory (default: <base>/assets)")
	outputDir := flag.String("output", "", "Output directory (default: <assets>/previews)")
	force := flag.Bool("force", false, "Re-render previews that already exist")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		BaseDir:   *baseDir,
		AssetDir:  *assetDir,
		OutputDir: *outputDir,
		Workers:   *workers,
	})
	logger := logging.New(cfg.Log)
	defer logger.Sync()

	// Load catalog
	cat := catalog.New(cfg.CatalogFile, cfg.AssetDir, logger, catalog.WithExclude(looks.Dir+"/"))
	if err := cat.Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}
	items := cat.Items()

	if *only != "" {
		it, err := cat.Get(*only)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		items = []catalog.Item{it}
	}

	// Limit for testing
	if *testN > 0 && *testN < len(items) {
		items = items[:*testN]
	}

	if len(items) == 0 {
		fmt.Println("No items to render.")
		os.Exit(0)
	}

	loader := asset.NewLoader(asset.Config{
		AssetDir:         cfg.AssetDir,
		Timeout:          cfg.FetchTimeout.Duration,
		MaxBytes:         cfg.MaxAssetBytes,
		LegacyTiltAssets: cfg.LegacyTiltAssets,
	}, nil, mesh.NewTracker(), texture.NewCache(), logger)

	opts := preview.DefaultOptions()
	opts.Width, opts.Height = cfg.RenderSize, cfg.RenderSize
	opts.Supersample = cfg.Supersample

	fmt.Println("Wardrobe previews → WebP")
	fmt.Printf("Items: %d, Workers: %d\n", len(items), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println(strings.Repeat("-", 60))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()

	// Run batch
	results := batch.Run(ctx, batch.Config{
		Loader:       loader,
		OutputDir:    cfg.OutputDir,
		Render:       opts,
		Workers:      cfg.Workers,
		SkipExisting: cfg.SkipExisting && !*force,
		Logger:       logger,
	}, items)

	elapsed := time.Since(start)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, skipped := 0, 0
	var failed []batch.Result
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
			success++
		case r.Success:
			success++
		default:
			failed = append(failed, r)
		}
	}

	fmt.Printf("Rendered: %d/%d (%d already present)\n", success, len(items), skipped)

	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failed))
		limit := min(20, len(failed))
		for _, e := range failed[:limit] {
			fmt.Printf("  %s: %s\n", e.Name, e.Error)
		}
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := batch.WriteManifest(manifestPath, items, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if len(failed) > 0 {
		os.Exit(1)
	}
}
