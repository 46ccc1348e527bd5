package controller

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fitroom/internal/mathutil"
	"fitroom/internal/registry"
	"fitroom/internal/testutil"
)

func setup(t *testing.T) (*Controller, *registry.Registry, *registry.Instance, *registry.Instance) {
	t.Helper()
	reg := registry.New(zap.NewNop())
	_, err := reg.RegisterAvatar(testutil.Fragment(nil, testutil.Cube{Name: "body", Size: 2}), "avatar.glb")
	require.NoError(t, err)
	a, err := reg.RegisterWearable(testutil.Fragment(nil, testutil.Cube{Name: "shirt", Center: [3]float32{0, 0, 1.5}}), "shirt.glb", "shirt", registry.Transform{})
	require.NoError(t, err)
	b, err := reg.RegisterWearable(testutil.Fragment(nil, testutil.Cube{Name: "hat", Center: [3]float32{3, 0, 0}}), "hat.glb", "hat", registry.Transform{})
	require.NoError(t, err)
	return New(reg, zap.NewNop()), reg, a, b
}

// ndcForOffset returns the horizontal NDC that moves the drag-plane hit by
// dx when the plane sits at depth distance d from the default camera.
func ndcForOffset(dx, d float64) float64 {
	return dx / (d * math.Tan(mathutil.Deg2Rad(45)/2))
}

func TestDragMovesOnlyTarget(t *testing.T) {
	c, _, a, b := setup(t)
	cam := DefaultCamera()

	id, err := c.PointerDown(cam, Pointer{})
	require.NoError(t, err)
	require.Equal(t, a.ID, id)
	assert.False(t, c.OrbitEnabled())

	// shirt front face is at z=2, 3 units from the camera
	assert.True(t, c.PointerMove(cam, Pointer{X: ndcForOffset(0.2, 3)}))
	assert.InDelta(t, 0.2, a.Transform.Position[0], 1e-9)
	assert.InDelta(t, 0, a.Transform.Position[2], 1e-9)
	assert.Equal(t, registry.Transform{}, b.Transform)

	assert.Equal(t, a.ID, c.PointerUp())
	assert.True(t, c.OrbitEnabled())
	assert.False(t, c.PointerMove(cam, Pointer{X: 0.5}))
}

func TestPointerOnAvatarDoesNotDrag(t *testing.T) {
	c, _, _, _ := setup(t)
	cam := DefaultCamera()
	// aim below the shirt at the avatar body
	id, err := c.PointerDown(cam, Pointer{Y: -ndcForOffset(0.8, 4)})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.True(t, c.OrbitEnabled())

	_, err = c.PointerDown(cam, Pointer{Target: registry.AvatarID})
	assert.ErrorIs(t, err, ErrNotDraggable)
}

func TestPickFindsWearableInsideAvatarBox(t *testing.T) {
	reg := registry.New(zap.NewNop())
	_, err := reg.RegisterAvatar(testutil.Fragment(nil, testutil.Cube{Name: "body", Size: 2}), "avatar.glb")
	require.NoError(t, err)
	vest, err := reg.RegisterWearable(testutil.Fragment(nil, testutil.Cube{Name: "vest", Size: 1.5}), "vest.glb", "vest", registry.Transform{})
	require.NoError(t, err)
	c := New(reg, zap.NewNop())
	cam := DefaultCamera()

	id, err := c.PointerDown(cam, Pointer{})
	require.NoError(t, err)
	require.Equal(t, vest.ID, id)

	// vest front face is at z=0.75, 4.25 units from the camera
	assert.True(t, c.PointerMove(cam, Pointer{X: ndcForOffset(0.1, 4.25)}))
	assert.InDelta(t, 0.1, vest.Transform.Position[0], 1e-6)
	avatar := reg.Avatar()
	assert.Equal(t, mathutil.Vec3{}, avatar.Transform.Position)
	c.PointerUp()

	require.NoError(t, reg.SetVisible(vest.ID, false))
	id, err = c.PointerDown(cam, Pointer{})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestExplicitTargetDrag(t *testing.T) {
	c, _, _, b := setup(t)
	id, err := c.PointerDown(DefaultCamera(), Pointer{Target: b.ID})
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
	assert.True(t, c.Interacting(b.ID))
	c.PointerLeave()
	assert.False(t, c.Interacting(b.ID))
}

func TestManipulationsAreExclusive(t *testing.T) {
	c, _, a, b := setup(t)
	require.NoError(t, c.Select(b.ID))
	require.NoError(t, c.BeginGizmo(GizmoTranslate))
	assert.False(t, c.OrbitEnabled())

	_, err := c.PointerDown(DefaultCamera(), Pointer{Target: a.ID})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, c.UpdateGizmo(registry.Transform{Position: mathutil.Vec3{1, 2, 3}, Rotation: mathutil.Vec3{1, 1, 1}}))
	assert.Equal(t, mathutil.Vec3{1, 2, 3}, b.Transform.Position)
	assert.Equal(t, mathutil.Vec3{}, b.Transform.Rotation)

	require.NoError(t, c.BeginGizmo(GizmoRotate))
	require.NoError(t, c.UpdateGizmo(registry.Transform{Rotation: mathutil.Vec3{0, 1, 0}}))
	assert.Equal(t, mathutil.Vec3{1, 2, 3}, b.Transform.Position)
	assert.Equal(t, mathutil.Vec3{0, 1, 0}, b.Transform.Rotation)
	assert.Equal(t, registry.Transform{}, a.Transform)

	// selecting another instance detaches the gizmo and frees the orbit
	require.NoError(t, c.Select(a.ID))
	assert.True(t, c.OrbitEnabled())
	assert.ErrorIs(t, c.UpdateGizmo(registry.Transform{}), ErrNoGizmo)
}

func TestGizmoNeedsSelection(t *testing.T) {
	c, _, _, _ := setup(t)
	assert.ErrorIs(t, c.BeginGizmo(GizmoRotate), ErrNoSelection)
}

func TestMergedRejectsInput(t *testing.T) {
	c, reg, a, _ := setup(t)
	reg.SetLocked(true)
	_, err := c.PointerDown(DefaultCamera(), Pointer{})
	assert.ErrorIs(t, err, registry.ErrMerged)
	assert.ErrorIs(t, c.Select(a.ID), registry.ErrMerged)
	assert.ErrorIs(t, c.ResetTransform(a.ID), registry.ErrMerged)
}

func TestVelocityClamp(t *testing.T) {
	c, _, _, _ := setup(t)
	c.SetVelocity(3)
	assert.Equal(t, 1.0, c.Velocity())
	c.SetVelocity(-0.4)
	assert.Equal(t, -0.4, c.Velocity())
	c.SetVelocity(math.NaN())
	assert.Equal(t, 0.0, c.Velocity())
}

func TestSuspendClearsEverything(t *testing.T) {
	c, reg, a, _ := setup(t)
	require.NoError(t, c.Select(a.ID))
	require.NoError(t, c.BeginGizmo(GizmoTranslate))
	c.Suspend()
	assert.Empty(t, reg.Selected())
	assert.True(t, c.OrbitEnabled())
	assert.Equal(t, State{OrbitEnabled: true}, c.State())
}

func TestCameraFrame(t *testing.T) {
	cam := DefaultCamera().Frame(mathutil.Vec3{0, 1, 0}, 100)
	assert.Equal(t, mathutil.Vec3{0, 1, 0}, cam.Target)
	assert.InDelta(t, MaxDistance, cam.Position.Sub(cam.Target).Len(), 1e-9)

	cam = DefaultCamera().Frame(mathutil.Vec3{}, 0)
	assert.InDelta(t, MinDistance, cam.Position.Len(), 1e-9)
}
