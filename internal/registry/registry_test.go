package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/testutil"
)

func TestAvatarReplacementDisposesPrevious(t *testing.T) {
	tr := mesh.NewTracker()
	r := New(zap.NewNop())

	first := testutil.Fragment(tr, testutil.Cube{Name: "a"})
	inst, err := r.RegisterAvatar(first, "a.glb")
	require.NoError(t, err)
	inst.Transform.Rotation[1] = 1.5
	require.NoError(t, r.Select(AvatarID))

	second := testutil.Fragment(tr, testutil.Cube{Name: "b"})
	inst, err = r.RegisterAvatar(second, "b.glb")
	require.NoError(t, err)

	assert.Equal(t, 1, tr.Live(mesh.KindGeometry))
	assert.True(t, first.Children[0].Mesh.Geometry.Disposed())
	assert.Equal(t, "b.glb", inst.SourceURL)
	assert.Equal(t, 1.5, inst.Transform.Rotation[1])
	assert.Empty(t, r.Selected())
}

func TestWearableOrderAndRemoval(t *testing.T) {
	tr := mesh.NewTracker()
	r := New(nil)
	var ids []string
	for _, name := range []string{"shirt", "hat", "boots"} {
		inst, err := r.RegisterWearable(testutil.Fragment(tr, testutil.Cube{Name: name}), name+".glb", name, Transform{})
		require.NoError(t, err)
		assert.NotEqual(t, AvatarID, inst.ID)
		ids = append(ids, inst.ID)
	}
	require.NoError(t, r.Select(ids[1]))
	require.NoError(t, r.Remove(ids[1]))
	assert.Empty(t, r.Selected())

	names := []string{}
	for _, w := range r.Wearables() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"shirt", "boots"}, names)
	assert.ErrorIs(t, r.Remove(ids[1]), ErrNotFound)

	n, err := r.RemoveWearables()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, tr.Total())
}

func TestLockedRejectsMutation(t *testing.T) {
	tr := mesh.NewTracker()
	r := New(nil)
	w, err := r.RegisterWearable(testutil.Fragment(tr, testutil.Cube{Name: "w"}), "w.glb", "w", Transform{})
	require.NoError(t, err)

	r.SetLocked(true)
	_, err = r.RegisterAvatar(testutil.Fragment(nil, testutil.Cube{}), "a.glb")
	assert.ErrorIs(t, err, ErrMerged)
	_, err = r.RegisterWearable(testutil.Fragment(nil, testutil.Cube{}), "x.glb", "x", Transform{})
	assert.ErrorIs(t, err, ErrMerged)
	assert.ErrorIs(t, r.Remove(w.ID), ErrMerged)
	assert.ErrorIs(t, r.SetVisible(w.ID, false), ErrMerged)
	_, err = r.RemoveWearables()
	assert.ErrorIs(t, err, ErrMerged)
	assert.Len(t, r.Wearables(), 1)
}

func TestCenteringFlag(t *testing.T) {
	r := New(nil)
	assert.False(t, r.TakeCentering())
	_, err := r.RegisterWearable(testutil.Fragment(nil, testutil.Cube{Name: "w"}), "w.glb", "w", Transform{})
	require.NoError(t, err)
	assert.True(t, r.TakeCentering())
	assert.False(t, r.TakeCentering())
}

func TestSceneBoundsFollowsTransforms(t *testing.T) {
	r := New(nil)
	w, err := r.RegisterWearable(testutil.Fragment(nil, testutil.Cube{Name: "w", Size: 2}), "w.glb", "w",
		Transform{Position: mathutil.Vec3{1, 0, 0}})
	require.NoError(t, err)
	b := r.SceneBounds()
	assert.True(t, b.Min.Near(mathutil.Vec3{0, -1, -1}, 1e-6))

	require.NoError(t, r.SetVisible(w.ID, false))
	assert.True(t, r.SceneBounds().IsEmpty())
}
