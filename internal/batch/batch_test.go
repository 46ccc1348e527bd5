package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/catalog"
	"fitroom/internal/mesh"
	"fitroom/internal/preview"
	"fitroom/internal/testutil"
	"fitroom/internal/texture"
)

func setup(t *testing.T) (string, *asset.Loader, *mesh.Tracker) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hat.glb"),
		testutil.GLB(t, testutil.Cube{Name: "hat", Normals: true, UV: true}), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.glb"), []byte("nope"), 0o644))
	tr := mesh.NewTracker()
	l := asset.NewLoader(asset.Config{AssetDir: dir}, nil, tr, texture.NewCache(), zap.NewNop())
	return dir, l, tr
}

func TestRunRendersAndReportsFailures(t *testing.T) {
	_, loader, tr := setup(t)
	out := t.TempDir()
	items := []catalog.Item{
		{ID: "hat", Name: "Hat", URL: "/hat.glb"},
		{ID: "broken", Name: "Broken", URL: "/broken.glb"},
		{ID: "missing", Name: "Missing", URL: "/missing.glb"},
	}
	opts := preview.DefaultOptions()
	opts.Width, opts.Height, opts.Supersample = 32, 32, 1

	results := Run(context.Background(), Config{Loader: loader, OutputDir: out, Render: opts, Workers: 2, Logger: zap.NewNop()}, items)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.NotEmpty(t, results[2].Error)

	_, err := os.Stat(filepath.Join(out, "hat.webp"))
	assert.NoError(t, err)
	assert.Zero(t, tr.Total(), "rendered fragments are released")

	manifest := filepath.Join(out, "manifest.json")
	require.NoError(t, WriteManifest(manifest, items, results))
	entries, err := ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "hat.webp", entries[0].Image)
	assert.Empty(t, entries[1].Image)
	assert.NotEmpty(t, entries[1].Error)
}

func TestRunSkipExisting(t *testing.T) {
	_, loader, _ := setup(t)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "hat.webp"), []byte("old"), 0o644))

	results := Run(context.Background(), Config{Loader: loader, OutputDir: out, Workers: 1, SkipExisting: true},
		[]catalog.Item{{ID: "hat", URL: "/hat.glb"}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	data, err := os.ReadFile(filepath.Join(out, "hat.webp"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestRunCancelled(t *testing.T) {
	_, loader, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, Config{Loader: loader, OutputDir: t.TempDir(), Workers: 1},
		[]catalog.Item{{ID: "hat", URL: "/hat.glb"}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestImageName(t *testing.T) {
	assert.Equal(t, "scan_wearables_hat.webp", ImageName("scan:wearables/hat"))
	assert.Equal(t, "_.webp", ImageName(".."))
}
