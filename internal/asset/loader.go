package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/texture"
)

// BlobPrefix marks references to uploaded files.
const BlobPrefix = "blob:"

// BlobResolver returns the bytes behind a blob: reference.
type BlobResolver interface {
	ResolveBlob(ref string) ([]byte, error)
}

// Config controls fetching and post-load preparation.
type Config struct {
	// AssetDir confines local references. Empty means paths are used as given.
	AssetDir string
	Timeout  time.Duration
	MaxBytes int64
	// LegacyTiltAssets lists URL substrings whose fragments were authored
	// with a baked tilt: their X rotation is cleared instead of recentering.
	LegacyTiltAssets []string
	// RequireRiggedWearables rejects wearables with no skinned mesh.
	RequireRiggedWearables bool
}

// Options select the acceptance path.
type Options struct {
	Wearable bool
}

// Asset is a loaded, prepared fragment.
type Asset struct {
	URL   string
	Root  *mesh.Node
	Class Classification
}

// Loader fetches, parses and prepares GLB assets.
type Loader struct {
	cfg      Config
	client   *http.Client
	blobs    BlobResolver
	tracker  *mesh.Tracker
	textures *texture.Cache
	group    singleflight.Group
	logger   *zap.Logger
}

func NewLoader(cfg Config, blobs BlobResolver, tracker *mesh.Tracker, textures *texture.Cache, logger *zap.Logger) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		cfg:      cfg,
		client:   &http.Client{},
		blobs:    blobs,
		tracker:  tracker,
		textures: textures,
		logger:   logger.With(zap.String("component", "asset_loader")),
	}
}

// Load fetches and prepares the asset at url. Every mesh gets shadow flags,
// and the root is either recentered on its bounds or, for legacy tilt
// assets, stripped of its X tilt. Cancelling ctx abandons the load.
func (l *Loader) Load(ctx context.Context, url string, opts Options) (*Asset, error) {
	start := time.Now()
	data, err := l.fetchShared(ctx, url)
	if err != nil {
		return nil, err
	}

	root, err := l.parse(data)
	if err != nil {
		reason := ReasonMalformed
		if errors.Is(err, errUnsupported) {
			reason = ReasonUnsupported
		}
		return nil, &LoadError{URL: url, Reason: reason, Err: err}
	}
	if err := ctx.Err(); err != nil {
		root.Dispose()
		return nil, err
	}

	class := Classify(root)
	if class.Meshes == 0 {
		root.Dispose()
		return nil, &LoadError{URL: url, Reason: ReasonNoGeometry}
	}
	if opts.Wearable && l.cfg.RequireRiggedWearables && !class.Rigged() {
		root.Dispose()
		return nil, &LoadError{URL: url, Reason: ReasonNotRigged}
	}

	l.prepare(root, url)
	class.Bounds = root.Bounds(mathutil.Mat4Identity())

	l.logger.Debug("asset loaded",
		zap.String("url", url),
		zap.Bool("wearable", opts.Wearable),
		zap.Int("meshes", class.Meshes),
		zap.Int("skinned", class.Skinned),
		zap.Int("vertices", class.Vertices),
		zap.Duration("took", time.Since(start)),
	)
	return &Asset{URL: url, Root: root, Class: class}, nil
}

func (l *Loader) parse(data []byte) (root *mesh.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			root, err = nil, fmt.Errorf("asset: parse panic: %v", r)
		}
	}()
	return Parse(data, l.tracker, l.textures, l.logger)
}

// IsLegacyTilt reports whether url matches a configured legacy tilt asset.
func (l *Loader) IsLegacyTilt(url string) bool {
	for _, s := range l.cfg.LegacyTiltAssets {
		if s != "" && strings.Contains(url, s) {
			return true
		}
	}
	return false
}

func (l *Loader) prepare(root *mesh.Node, url string) {
	for _, n := range root.MeshNodes() {
		n.Mesh.CastShadow = true
		n.Mesh.ReceiveShadow = true
	}
	if l.IsLegacyTilt(url) {
		root.Rotation[0] = 0
		for _, c := range root.Children {
			c.Rotation[0] = 0
		}
		return
	}
	b := root.Bounds(mathutil.Mat4Identity())
	if !b.IsEmpty() {
		root.Position = root.Position.Sub(b.Center())
	}
}

// fetchShared de-duplicates concurrent fetches of one url. The shared
// fetch runs detached from any single caller so one cancellation does not
// fail the others.
func (l *Loader) fetchShared(ctx context.Context, url string) ([]byte, error) {
	ch := l.group.DoChan(url, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
		defer cancel()
		return l.fetch(fctx, url)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	switch {
	case strings.HasPrefix(url, BlobPrefix):
		if l.blobs == nil {
			return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: errors.New("no blob store")}
		}
		data, err := l.blobs.ResolveBlob(url)
		if err != nil {
			return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
		}
		return data, nil
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return l.fetchHTTP(ctx, url)
	default:
		return l.readLocal(url)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: fmt.Errorf("status %s", resp.Status)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	if int64(len(data)) > l.cfg.MaxBytes {
		return nil, &LoadError{URL: url, Reason: ReasonTooLarge}
	}
	return data, nil
}

func (l *Loader) readLocal(url string) ([]byte, error) {
	path, err := l.localPath(url)
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	if info.Size() > l.cfg.MaxBytes {
		return nil, &LoadError{URL: url, Reason: ReasonTooLarge}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	return data, nil
}

// localPath maps a reference to a file. With an asset dir, references are
// web-style paths relative to it and may not escape it.
func (l *Loader) localPath(ref string) (string, error) {
	p := strings.TrimPrefix(ref, "file://")
	if l.cfg.AssetDir == "" {
		return filepath.Clean(p), nil
	}
	rel := filepath.Clean("/" + filepath.ToSlash(p))
	full := filepath.Join(l.cfg.AssetDir, filepath.FromSlash(rel))
	if r, err := filepath.Rel(l.cfg.AssetDir, full); err != nil || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("path %q escapes asset dir", ref)
	}
	return full, nil
}
