// Package batch renders catalog previews in parallel.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/catalog"
	"fitroom/internal/mathutil"
	"fitroom/internal/preview"
)

// Loader is the part of asset.Loader the batch needs.
type Loader interface {
	Load(ctx context.Context, url string, opts asset.Options) (*asset.Asset, error)
}

// Config holds all shared resources for a batch run.
type Config struct {
	Loader    Loader
	OutputDir string
	Render    preview.Options
	Workers   int
	// Skip items whose preview already exists.
	SkipExisting bool
	Logger       *zap.Logger
}

// Result holds the outcome of processing one item.
type Result struct {
	ID      string
	Name    string
	Image   string
	Success bool
	Skipped bool
	Error   string
}

// ImageName is the preview file name for an item, relative to the output dir.
func ImageName(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(id) + ".webp"
}

// Run processes all items using a worker pool. Cancelling ctx stops
// handing out work; items never started are reported as failed.
func Run(ctx context.Context, cfg Config, items []catalog.Item) []Result {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "batch"))

	total := len(items)
	results := make([]Result, total)
	for i, it := range items {
		results[i] = Result{ID: it.ID, Name: it.Name, Image: ImageName(it.ID), Error: "not processed"}
	}
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					logger.Info("batch progress",
						zap.Int64("done", p),
						zap.Int("total", total),
						zap.Float64("items_per_sec", float64(p)/elapsed))
				}
			}
		}
	}()

	// Worker pool
	itemChan := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				results[idx] = processItem(ctx, cfg, items[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
send:
	for i := range items {
		select {
		case itemChan <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(itemChan)

	wg.Wait()
	close(done)

	logger.Info("batch finished",
		zap.Int("total", total),
		zap.Int64("processed", processed.Load()),
		zap.Duration("elapsed", time.Since(start)))
	return results
}

func processItem(ctx context.Context, cfg Config, item catalog.Item) Result {
	res := Result{ID: item.ID, Name: item.Name, Image: ImageName(item.ID)}
	outPath := filepath.Join(cfg.OutputDir, res.Image)

	if cfg.SkipExisting {
		if _, err := os.Stat(outPath); err == nil {
			res.Success, res.Skipped = true, true
			return res
		}
	}

	a, err := cfg.Loader.Load(ctx, item.URL, asset.Options{Wearable: true})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	items := preview.Collect(a.Root, mathutil.Mat4Identity())
	a.Root.Dispose()

	if len(items) == 0 {
		res.Error = "no visible meshes"
		return res
	}
	img := preview.Render(items, cfg.Render)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := preview.SaveWebP(outPath, img); err != nil {
		res.Error = fmt.Sprintf("WebP encode: %v", err)
		return res
	}

	res.Success = true
	return res
}
