package uploads

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/mesh"
	"fitroom/internal/testutil"
	"fitroom/internal/texture"
)

func newStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), max, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSaveAndResolve(t *testing.T) {
	s := newStore(t, 0)
	data := testutil.GLB(t, testutil.Cube{Name: "shirt"})

	ref, err := s.Save(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, asset.BlobPrefix))

	got, err := s.ResolveBlob(ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Remove(ref))
	_, err = s.ResolveBlob(ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejects(t *testing.T) {
	s := newStore(t, 64)

	_, err := s.Save(strings.NewReader("ply\nformat ascii 1.0\n"))
	assert.ErrorIs(t, err, ErrNotGLB)

	_, err = s.Save(bytes.NewReader(append([]byte("glTF"), make([]byte, 100)...)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestResolveUnknown(t *testing.T) {
	s := newStore(t, 0)
	_, err := s.ResolveBlob("blob:../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveBlob("blob:7d444840-9dc0-11d1-b245-5ffdce74fad2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveBlob("/avatars/a.glb")
	assert.Error(t, err)
}

func TestLoaderReadsUploads(t *testing.T) {
	s := newStore(t, 0)
	ref, err := s.Save(bytes.NewReader(testutil.GLB(t, testutil.Cube{Name: "hat"})))
	require.NoError(t, err)

	tr := mesh.NewTracker()
	l := asset.NewLoader(asset.Config{}, s, tr, texture.NewCache(), zap.NewNop())
	a, err := l.Load(context.Background(), ref, asset.Options{Wearable: true})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Class.Meshes)
	a.Root.Dispose()
}
