package looks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/testutil"
	"fitroom/internal/texture"
)

func TestEncodeGLBBakesTransforms(t *testing.T) {
	tr := mesh.NewTracker()
	root := testutil.Fragment(tr, testutil.Cube{Name: "shirt", UV: true, Normals: true, Colors: true})
	root.Position = mathutil.Vec3{2, 0, 0}
	defer root.Dispose()

	data, err := EncodeGLB(root)
	require.NoError(t, err)

	parsed, err := asset.Parse(data, tr, texture.NewCache(), zap.NewNop())
	require.NoError(t, err)
	defer parsed.Dispose()

	b := parsed.Bounds(mathutil.Mat4Identity())
	assert.InDelta(t, 2.0, b.Center()[0], 1e-5)
	nodes := parsed.MeshNodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"color", "normal", "position", "uv"}, nodes[0].Mesh.Geometry.Layout())
	assert.Equal(t, 12, nodes[0].Mesh.Geometry.TriangleCount())
}

func TestEncodeGLBEmbedsTexture(t *testing.T) {
	tr := mesh.NewTracker()
	src := testutil.GLB(t, testutil.Cube{Name: "hat", UV: true, Texture: true})
	root, err := asset.Parse(src, tr, texture.NewCache(), zap.NewNop())
	require.NoError(t, err)
	defer root.Dispose()

	data, err := EncodeGLB(root)
	require.NoError(t, err)
	back, err := asset.Parse(data, tr, texture.NewCache(), zap.NewNop())
	require.NoError(t, err)
	defer back.Dispose()
	mat := back.MeshNodes()[0].Mesh.Material
	require.NotNil(t, mat)
	assert.NotNil(t, mat.Texture)
}

func TestEncodeGLBSkipsHidden(t *testing.T) {
	tr := mesh.NewTracker()
	root := testutil.Fragment(tr, testutil.Cube{Name: "x"})
	defer root.Dispose()
	root.Visible = false
	_, err := EncodeGLB(root)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestStoreSaveListDelete(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "data", "looks.json")
	assets := filepath.Join(dir, "assets")

	s, err := Open(index, assets, zap.NewNop())
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time { calls++; return base.Add(time.Duration(calls) * time.Minute) }

	first, err := s.Save("  Friday  ", []byte("glb1"), Meta{Owner: "u1", Vertices: 3})
	require.NoError(t, err)
	assert.Equal(t, "Friday", first.Name)
	assert.Equal(t, "/looks/"+first.ID+".glb", first.URL)
	second, err := s.Save("", []byte("glb2"), Meta{Owner: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "Untitled look", second.Name)

	data, err := os.ReadFile(filepath.Join(assets, "looks", first.ID+".glb"))
	require.NoError(t, err)
	assert.Equal(t, "glb1", string(data))

	all := s.List("")
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Len(t, s.List("u1"), 1)

	reopened, err := Open(index, assets, zap.NewNop())
	require.NoError(t, err)
	got, err := reopened.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Vertices)

	require.NoError(t, reopened.Delete(first.ID))
	_, err = reopened.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(assets, "looks", first.ID+".glb"))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, reopened.Delete("missing"), ErrNotFound)
}
