// Package catalog lists the wearables available to load, from a catalog
// file and from .glb files found in the asset directory.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("catalog: item not found")

// Catalog merges listed and scanned items. Listed items win when both
// point at the same URL. Safe for concurrent use.
type Catalog struct {
	file     string
	dir      string
	exclude  []string
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.RWMutex
	listed  []Item
	scanned []Item
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithExclude hides scanned files whose relative URL starts with any prefix
// (for example the avatar directory or exported looks).
func WithExclude(prefixes ...string) Option {
	return func(c *Catalog) { c.exclude = append(c.exclude, prefixes...) }
}

func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) { c.debounce = d }
}

// New builds a catalog from file (may be empty) and dir (may be empty).
func New(file, dir string, logger *zap.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		file:     file,
		dir:      dir,
		debounce: 250 * time.Millisecond,
		logger:   logger.With(zap.String("component", "catalog")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reload re-reads the catalog file and rescans the directory.
func (c *Catalog) Reload() error {
	var listed []Item
	if c.file != "" {
		items, err := Parse(c.file)
		if err != nil {
			return err
		}
		listed = items
	}
	c.mu.Lock()
	c.listed = listed
	c.mu.Unlock()
	return c.Rescan()
}

// Rescan refreshes the directory items only.
func (c *Catalog) Rescan() error {
	if c.dir == "" {
		return nil
	}
	items, err := Scan(c.dir)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if !c.excluded(it.URL) {
			kept = append(kept, it)
		}
	}
	c.mu.Lock()
	c.scanned = kept
	c.mu.Unlock()
	c.logger.Debug("catalog rescanned", zap.Int("scanned", len(kept)))
	return nil
}

func (c *Catalog) excluded(url string) bool {
	for _, p := range c.exclude {
		if strings.HasPrefix(strings.TrimPrefix(url, "/"), strings.TrimPrefix(p, "/")) {
			return true
		}
	}
	return false
}

// Items returns listed items followed by scanned items not already listed.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, 0, len(c.listed)+len(c.scanned))
	urls := make(map[string]bool, len(c.listed))
	for _, it := range c.listed {
		out = append(out, it)
		urls[normalizeURL(it.URL)] = true
	}
	for _, it := range c.scanned {
		if !urls[normalizeURL(it.URL)] {
			out = append(out, it)
		}
	}
	return out
}

func normalizeURL(u string) string {
	return "/" + strings.TrimPrefix(u, "/")
}

// Get looks up an item by id.
func (c *Catalog) Get(id string) (Item, error) {
	for _, it := range c.Items() {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Watch rescans the directory and reloads the catalog file on change
// until ctx is done. Bursts of events are coalesced.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	defer w.Close()

	if c.dir != "" {
		if err := addTree(w, c.dir); err != nil {
			return err
		}
	}
	if c.file != "" {
		if err := w.Add(filepath.Dir(c.file)); err != nil {
			return fmt.Errorf("catalog: watch %s: %w", c.file, err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !c.relevant(ev) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				// new subdirectories need their own watch
				_ = addTree(w, ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := c.Reload(); err != nil {
				c.logger.Warn("catalog reload failed", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}

func (c *Catalog) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return false
	}
	if c.file != "" && filepath.Clean(ev.Name) == filepath.Clean(c.file) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == ".glb" || ext == ""
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("catalog: watch %s: %w", path, err)
		}
		return nil
	})
}
