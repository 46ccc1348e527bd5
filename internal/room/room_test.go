package room

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"fitroom/internal/asset"
	"fitroom/internal/controller"
	"fitroom/internal/looks"
	"fitroom/internal/mathutil"
	"fitroom/internal/merge"
	"fitroom/internal/mesh"
	"fitroom/internal/registry"
	"fitroom/internal/spin"
	"fitroom/internal/testutil"
)

// fakeLoader serves cube fragments by URL. A gated URL blocks until its
// gate is closed or the load is cancelled.
type fakeLoader struct {
	tr    *mesh.Tracker
	mu    sync.Mutex
	cubes map[string]testutil.Cube
	gates map[string]chan struct{}

	// stubborn loads wait for their gate even when cancelled
	stubborn map[string]bool
	panic    map[string]bool
}

func newFakeLoader(tr *mesh.Tracker) *fakeLoader {
	return &fakeLoader{
		tr: tr,
		cubes: map[string]testutil.Cube{
			"/avatar.glb":  {Name: "avatar", Normals: true, UV: true},
			"/avatar2.glb": {Name: "avatar2", Normals: true, Size: 2},
			"/shirt.glb":   {Name: "shirt", Normals: true, Size: 1.2},
			"/hat.glb":     {Name: "hat", Normals: true, Colors: true, Size: 0.4, Center: [3]float32{0, 1, 0}},
		},
		gates:    make(map[string]chan struct{}),
		stubborn: make(map[string]bool),
		panic:    make(map[string]bool),
	}
}

func (f *fakeLoader) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[url] = ch
	return ch
}

func (f *fakeLoader) Load(ctx context.Context, url string, opts asset.Options) (*asset.Asset, error) {
	f.mu.Lock()
	gate := f.gates[url]
	c, ok := f.cubes[url]
	boom := f.panic[url]
	stubborn := f.stubborn[url]
	f.mu.Unlock()
	if gate != nil && stubborn {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if boom {
		panic("decoder exploded")
	}
	if !ok {
		return nil, &asset.LoadError{URL: url, Reason: asset.ReasonNetwork}
	}
	root := testutil.Fragment(f.tr, c)
	return &asset.Asset{URL: url, Root: root, Class: asset.Classify(root)}, nil
}

func newRoom(t *testing.T) (*Room, *fakeLoader, *mesh.Tracker) {
	t.Helper()
	tr := mesh.NewTracker()
	fl := newFakeLoader(tr)
	r := New("test", Options{Loader: fl, Tracker: tr, Logger: zap.NewNop()})
	t.Cleanup(r.Close)
	return r, fl, tr
}

func drain(ch <-chan Notice) []Notice {
	var out []Notice
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestMergeWithoutAvatarReportsFailure(t *testing.T) {
	r, _, _ := newRoom(t)
	notices, cancel := r.Subscribe(8)
	defer cancel()

	err := r.MergeLook()
	require.Error(t, err)
	assert.True(t, merge.IsReason(err, merge.ReasonNoAvatar))
	assert.False(t, r.Snapshot().Merged)

	got := drain(notices)
	require.Len(t, got, 1)
	assert.Equal(t, LevelError, got[0].Level)
	assert.Equal(t, "Load avatar first", got[0].Title)
}

func TestMergeBakesDraggedOffset(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	wid, err := r.LoadWearable(ctx, "/shirt.glb", "Shirt")
	require.NoError(t, err)

	before := r.Snapshot().Wearables[0].Bounds
	require.NotNil(t, before)

	// contact lies on the front face at z=0.6; the drag plane faces the camera
	tan := math.Tan(mathutil.Deg2Rad(45) / 2)
	ndc := 0.2 / ((5 - 0.6) * tan)
	id, err := r.PointerDown(controller.Pointer{X: 0, Y: 0, Target: wid})
	require.NoError(t, err)
	require.Equal(t, wid, id)
	assert.False(t, r.Snapshot().Controller.OrbitEnabled)
	require.True(t, r.PointerMove(controller.Pointer{X: ndc, Y: 0}))
	assert.Equal(t, wid, r.PointerUp())
	assert.True(t, r.Snapshot().Controller.OrbitEnabled)

	pos := r.Snapshot().Wearables[0].Transform.Position
	// the plane depth comes from float32 vertex bounds
	assert.InDelta(t, 0.2, pos[0], 1e-6)
	assert.InDelta(t, 0, pos[1], 1e-6)
	assert.InDelta(t, 0, pos[2], 1e-6)

	require.NoError(t, r.MergeLook())
	s := r.Snapshot()
	require.True(t, s.Merged)
	require.NotNil(t, s.Combined)
	assert.Equal(t, 1, s.Combined.Wearables)
	assert.InDelta(t, before.Max[0]+0.2, s.Combined.Bounds.Max[0], 1e-5)
	assert.InDelta(t, -0.5, s.Combined.Bounds.Min[0], 1e-5, "avatar bounds the left side")
	assert.False(t, s.Avatar.Visible)
	assert.False(t, s.Wearables[0].Visible)
}

func TestMergeSuccessNotice(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	_, err := r.LoadWearable(ctx, "/shirt.glb", "")
	require.NoError(t, err)
	_, err = r.LoadWearable(ctx, "/hat.glb", "")
	require.NoError(t, err)

	notices, cancel := r.Subscribe(8)
	defer cancel()
	require.NoError(t, r.MergeLook())
	got := drain(notices)
	require.Len(t, got, 1)
	assert.Equal(t, "Models merged successfully", got[0].Title)
	assert.Equal(t, "Combined avatar with 2 wearable(s)", got[0].Description)
}

func TestMergePreconditionsLeaveStateUntouched(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))

	err := r.MergeLook()
	assert.True(t, merge.IsReason(err, merge.ReasonNoWearables))
	assert.True(t, r.Snapshot().Avatar.Visible)

	wid, err := r.LoadWearable(ctx, "/shirt.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.SetWearableVisible(wid, false))
	err = r.MergeLook()
	assert.True(t, merge.IsReason(err, merge.ReasonNoWearables))
	s := r.Snapshot()
	assert.False(t, s.Merged)
	assert.True(t, s.Avatar.Visible)
	assert.False(t, s.Wearables[0].Visible)

	require.NoError(t, r.SetWearableVisible(wid, true))
	require.NoError(t, r.MergeLook())
	err = r.MergeLook()
	assert.True(t, merge.IsReason(err, merge.ReasonAlreadyMerged))
	s = r.Snapshot()
	assert.True(t, s.Merged)
	assert.False(t, s.Avatar.Visible)

	require.NoError(t, r.UnmergeLook())
	err = r.UnmergeLook()
	assert.True(t, merge.IsReason(err, merge.ReasonNotMerged))
}

func TestMergeUnmergeRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := mesh.NewTracker()
		r := New("prop", Options{Loader: newFakeLoader(tr), Tracker: tr})
		defer r.Close()
		ctx := context.Background()
		require.NoError(rt, r.LoadAvatar(ctx, "/avatar.glb"))

		n := rapid.IntRange(1, 4).Draw(rt, "wearables")
		want := make(map[string]bool)
		for i := 0; i < n; i++ {
			url := rapid.SampledFrom([]string{"/shirt.glb", "/hat.glb"}).Draw(rt, "url")
			id, err := r.LoadWearableAt(ctx, url, "", registry.Transform{
				Position: mathutil.Vec3{
					rapid.Float64Range(-2, 2).Draw(rt, "x"),
					rapid.Float64Range(-2, 2).Draw(rt, "y"),
					rapid.Float64Range(-2, 2).Draw(rt, "z"),
				},
				Rotation: mathutil.Vec3{0, rapid.Float64Range(-math.Pi, math.Pi).Draw(rt, "yaw"), 0},
			})
			require.NoError(rt, err)
			visible := i == 0 || rapid.Bool().Draw(rt, "visible")
			require.NoError(rt, r.SetWearableVisible(id, visible))
			want[id] = visible
		}
		live := tr.Total()

		require.NoError(rt, r.MergeLook())
		require.NoError(rt, r.UnmergeLook())

		s := r.Snapshot()
		assert.False(rt, s.Merged)
		assert.Nil(rt, s.Combined)
		assert.True(rt, s.Avatar.Visible)
		for _, w := range s.Wearables {
			assert.Equal(rt, want[w.ID], w.Visible, w.ID)
		}
		assert.Equal(rt, live, tr.Total(), "combined object released")
	})
}

func TestMutationsRejectedWhileMerged(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	wid, err := r.LoadWearable(ctx, "/shirt.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.Select(wid))
	require.NoError(t, r.MergeLook())
	assert.Empty(t, r.Snapshot().Selected, "merge clears the selection")

	notices, cancel := r.Subscribe(16)
	defer cancel()

	_, err = r.LoadWearable(ctx, "/hat.glb", "")
	assert.ErrorIs(t, err, registry.ErrMerged)
	assert.ErrorIs(t, r.LoadAvatar(ctx, "/avatar2.glb"), registry.ErrMerged)
	assert.ErrorIs(t, r.UnloadWearable(wid), registry.ErrMerged)
	assert.ErrorIs(t, r.UnloadAll(), registry.ErrMerged)
	assert.ErrorIs(t, r.ResetTransform(wid), registry.ErrMerged)
	assert.ErrorIs(t, r.SetWearableVisible(wid, false), registry.ErrMerged)
	_, err = r.PointerDown(controller.Pointer{Target: wid})
	assert.ErrorIs(t, err, registry.ErrMerged)

	got := drain(notices)
	assert.Len(t, got, 7)
	for _, n := range got {
		assert.Equal(t, LevelError, n.Level)
	}
	assert.Len(t, r.Snapshot().Wearables, 1)
}

func TestDragLeavesOtherInstancesAlone(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	a, err := r.LoadWearableAt(ctx, "/hat.glb", "A", registry.Transform{Position: mathutil.Vec3{-1, 0, 0}})
	require.NoError(t, err)
	b, err := r.LoadWearableAt(ctx, "/shirt.glb", "B", registry.Transform{Position: mathutil.Vec3{1, 0, 0}, Rotation: mathutil.Vec3{0, 0.5, 0}})
	require.NoError(t, err)

	_, err = r.PointerDown(controller.Pointer{X: -0.1, Y: 0.1, Target: a})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		r.PointerMove(controller.Pointer{X: -0.1 + float64(i)*0.05, Y: 0.1 - float64(i)*0.02})
	}
	r.PointerLeave()

	for _, w := range r.Snapshot().Wearables {
		if w.ID == b {
			assert.Equal(t, mathutil.Vec3{1, 0, 0}, w.Transform.Position)
			assert.Equal(t, mathutil.Vec3{0, 0.5, 0}, w.Transform.Rotation)
		} else {
			assert.NotEqual(t, mathutil.Vec3{-1, 0, 0}, w.Transform.Position)
		}
	}
}

func TestPointerOnAvatarDoesNotDrag(t *testing.T) {
	r, _, _ := newRoom(t)
	require.NoError(t, r.LoadAvatar(context.Background(), "/avatar.glb"))
	id, err := r.PointerDown(controller.Pointer{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.True(t, r.Snapshot().Controller.OrbitEnabled)
}

func TestSpinIsFrameRateIndependent(t *testing.T) {
	run := func(steps int, v, total float64) float64 {
		r, _, _ := newRoom(t)
		require.NoError(t, r.LoadAvatar(context.Background(), "/avatar.glb"))
		require.NoError(t, r.SetRotationVelocity(v))
		for i := 0; i < steps; i++ {
			r.Tick(total / float64(steps))
		}
		return r.Snapshot().Avatar.Transform.Rotation[1]
	}
	v, total := 0.6, 3.0
	want := v * total * spin.Gain
	assert.InDelta(t, want, run(1, v, total), 1e-9)
	assert.InDelta(t, want, run(1000, v, total), 1e-9)
}

func TestSpinPausesWhileAvatarSelectedOrMerged(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	require.NoError(t, r.SetRotationVelocity(1))

	require.NoError(t, r.Select(registry.AvatarID))
	r.Tick(1)
	assert.Zero(t, r.Snapshot().Avatar.Transform.Rotation[1])

	require.NoError(t, r.Select(""))
	r.Tick(1)
	assert.InDelta(t, spin.Gain, r.Snapshot().Avatar.Transform.Rotation[1], 1e-9)
	assert.Equal(t, 1.0, r.Snapshot().Controller.Velocity, "velocity survives interaction")

	_, err := r.LoadWearable(ctx, "/shirt.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.MergeLook())
	r.Tick(1)
	assert.InDelta(t, spin.Gain, r.Snapshot().Avatar.Transform.Rotation[1], 1e-9)
}

func TestAvatarReplaceReleasesGizmo(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	require.NoError(t, r.SetRotationVelocity(1))
	require.NoError(t, r.Select(registry.AvatarID))
	require.NoError(t, r.BeginGizmo("rotate"))
	require.False(t, r.Snapshot().Controller.OrbitEnabled)

	require.NoError(t, r.LoadAvatar(ctx, "/avatar2.glb"))
	s := r.Snapshot()
	assert.Empty(t, s.Selected)
	assert.Empty(t, s.Controller.Gizmo)
	assert.True(t, s.Controller.OrbitEnabled)

	r.Tick(1)
	assert.InDelta(t, spin.Gain, r.Snapshot().Avatar.Transform.Rotation[1], 1e-9)
}

func TestSelectionClearsOnRemoval(t *testing.T) {
	r, _, _ := newRoom(t)
	wid, err := r.LoadWearable(context.Background(), "/hat.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.Select(wid))
	require.NoError(t, r.BeginGizmo("rotate"))
	assert.Equal(t, wid, r.Snapshot().Selected)

	require.NoError(t, r.UnloadWearable(wid))
	s := r.Snapshot()
	assert.Empty(t, s.Selected)
	assert.Empty(t, s.Controller.Gizmo)
	assert.True(t, s.Controller.OrbitEnabled)
}

func TestAvatarReplaceDisposesPrevious(t *testing.T) {
	r, _, tr := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	require.NoError(t, r.LoadAvatar(ctx, "/avatar2.glb"))
	assert.Equal(t, 1, tr.Live(mesh.KindGeometry))
	assert.Equal(t, "/avatar2.glb", r.Snapshot().Avatar.URL)
}

func TestFailedAvatarLoadKeepsPrevious(t *testing.T) {
	r, _, tr := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	notices, cancel := r.Subscribe(4)
	defer cancel()

	err := r.LoadAvatar(ctx, "/missing.glb")
	assert.True(t, asset.IsReason(err, asset.ReasonNetwork))
	s := r.Snapshot()
	assert.Equal(t, "/avatar.glb", s.Avatar.URL)
	assert.Empty(t, s.Pending)
	assert.Equal(t, 1, tr.Live(mesh.KindGeometry))

	got := drain(notices)
	require.Len(t, got, 1)
	assert.Equal(t, "Failed to load avatar", got[0].Title)
	assert.Equal(t, asset.ReasonNetwork, got[0].Description)
}

func TestLoaderPanicIsContained(t *testing.T) {
	r, fl, _ := newRoom(t)
	fl.panic["/avatar.glb"] = true
	err := r.LoadAvatar(context.Background(), "/avatar.glb")
	assert.True(t, asset.IsReason(err, asset.ReasonMalformed))
	assert.Nil(t, r.Snapshot().Avatar)
}

func TestSupersededAvatarLoadIsDiscarded(t *testing.T) {
	r, fl, tr := newRoom(t)
	ctx := context.Background()
	fl.gate("/avatar.glb")

	first := make(chan error, 1)
	go func() { first <- r.LoadAvatar(ctx, "/avatar.glb") }()
	require.Eventually(t, func() bool { return len(r.Snapshot().Pending) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.LoadAvatar(ctx, "/avatar2.glb"))
	select {
	case err := <-first:
		assert.ErrorIs(t, err, asset.ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first load did not finish")
	}
	s := r.Snapshot()
	assert.Equal(t, "/avatar2.glb", s.Avatar.URL)
	assert.Empty(t, s.Pending)
	assert.Equal(t, 1, tr.Live(mesh.KindGeometry))
}

func TestStaleResultDisposedWhenNewerLoadWins(t *testing.T) {
	r, fl, tr := newRoom(t)
	ctx := context.Background()
	gate := fl.gate("/avatar.glb")
	fl.stubborn["/avatar.glb"] = true

	older := make(chan error, 1)
	go func() { older <- r.LoadAvatar(ctx, "/avatar.glb") }()
	require.Eventually(t, func() bool { return len(r.Snapshot().Pending) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.LoadAvatar(ctx, "/avatar2.glb"))
	close(gate)
	assert.ErrorIs(t, <-older, asset.ErrSuperseded)
	assert.Equal(t, "/avatar2.glb", r.Snapshot().Avatar.URL)
	assert.Equal(t, 1, tr.Live(mesh.KindGeometry))
}

func TestSelectAvatarWhileLoadingIsRejected(t *testing.T) {
	r, fl, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	gate := fl.gate("/avatar2.glb")
	done := make(chan error, 1)
	go func() { done <- r.LoadAvatar(ctx, "/avatar2.glb") }()
	require.Eventually(t, func() bool { return len(r.Snapshot().Pending) == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, r.Select(registry.AvatarID), ErrLoading)
	close(gate)
	require.NoError(t, <-done)
	assert.NoError(t, r.Select(registry.AvatarID))
}

func TestUnloadAllDropsPendingWearables(t *testing.T) {
	r, fl, tr := newRoom(t)
	ctx := context.Background()
	_, err := r.LoadWearable(ctx, "/hat.glb", "")
	require.NoError(t, err)

	gate := fl.gate("/shirt.glb")
	done := make(chan error, 1)
	go func() {
		_, err := r.LoadWearable(ctx, "/shirt.glb", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(r.Snapshot().Pending) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.UnloadAll())
	assert.Empty(t, r.Snapshot().Pending)
	close(gate)
	assert.ErrorIs(t, <-done, asset.ErrSuperseded)
	assert.Empty(t, r.Snapshot().Wearables)
	assert.Zero(t, tr.Live(mesh.KindGeometry))
}

func TestUnloadAvatarAsWearableRejected(t *testing.T) {
	r, _, _ := newRoom(t)
	require.NoError(t, r.LoadAvatar(context.Background(), "/avatar.glb"))
	assert.ErrorIs(t, r.UnloadWearable(registry.AvatarID), ErrNotWearable)
	assert.ErrorIs(t, r.UnloadWearable("nope"), registry.ErrNotFound)
}

func TestCenteringConsumedOnTick(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	assert.True(t, r.Snapshot().Framing.Empty)

	_, err := r.LoadWearableAt(ctx, "/hat.glb", "", registry.Transform{Position: mathutil.Vec3{2, 0, 0}})
	require.NoError(t, err)
	assert.True(t, r.Snapshot().Framing.Empty, "recomputed on the next frame only")

	assert.True(t, r.Tick(0.016))
	f := r.Snapshot().Framing
	assert.False(t, f.Empty)
	assert.InDelta(t, 2, f.Center[0], 1e-6)
	assert.InDelta(t, 1, f.Center[1], 1e-6)
	assert.False(t, r.Tick(0.016), "nothing pending")

	require.NoError(t, r.ResetCameraFraming())
	cam := r.Snapshot().Camera
	assert.InDelta(t, 2, cam.Target[0], 1e-6)
	dist := cam.Position.Sub(cam.Target).Len()
	assert.GreaterOrEqual(t, dist, controller.MinDistance-1e-9)
	assert.LessOrEqual(t, dist, controller.MaxDistance+1e-9)
}

func TestResetTransform(t *testing.T) {
	r, _, _ := newRoom(t)
	wid, err := r.LoadWearableAt(context.Background(), "/hat.glb", "", registry.Transform{Position: mathutil.Vec3{1, 2, 3}, Rotation: mathutil.Vec3{0.1, 0, 0}})
	require.NoError(t, err)
	require.NoError(t, r.ResetTransform(wid))
	assert.Equal(t, registry.Transform{}, r.Snapshot().Wearables[0].Transform)
}

func TestGizmoEditsSelection(t *testing.T) {
	r, _, _ := newRoom(t)
	wid, err := r.LoadWearable(context.Background(), "/hat.glb", "")
	require.NoError(t, err)

	assert.ErrorIs(t, r.BeginGizmo("translate"), controller.ErrNoSelection)
	require.NoError(t, r.Select(wid))
	require.NoError(t, r.BeginGizmo("translate"))
	assert.False(t, r.Snapshot().Controller.OrbitEnabled)
	require.NoError(t, r.UpdateGizmo(registry.Transform{Position: mathutil.Vec3{0, 0.5, 0}, Rotation: mathutil.Vec3{1, 1, 1}}))
	require.NoError(t, r.BeginGizmo("rotate"))
	require.NoError(t, r.UpdateGizmo(registry.Transform{Position: mathutil.Vec3{9, 9, 9}, Rotation: mathutil.Vec3{0, 0.3, 0}}))
	require.NoError(t, r.EndGizmo())

	tf := r.Snapshot().Wearables[0].Transform
	assert.Equal(t, mathutil.Vec3{0, 0.5, 0}, tf.Position)
	assert.Equal(t, mathutil.Vec3{0, 0.3, 0}, tf.Rotation)
	assert.True(t, r.Snapshot().Controller.OrbitEnabled)
	assert.Error(t, r.BeginGizmo("scale"))
}

func TestDispatch(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	_, err := r.Dispatch(ctx, Action{Action: "loadAvatar", URL: "/avatar.glb"})
	require.NoError(t, err)
	res, err := r.Dispatch(ctx, Action{Action: "loadWearable", URL: "/hat.glb", Name: "Hat",
		Transform: &registry.Transform{Position: mathutil.Vec3{0, 0.5, 0}}})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)

	hidden := false
	_, err = r.Dispatch(ctx, Action{Action: "setWearableVisible", ID: res.ID, Visible: &hidden})
	require.NoError(t, err)
	_, err = r.Dispatch(ctx, Action{Action: "setRotationVelocity", Velocity: 3})
	require.NoError(t, err)

	s := r.Snapshot()
	require.Len(t, s.Wearables, 1)
	assert.Equal(t, "Hat", s.Wearables[0].Name)
	assert.Equal(t, 0.5, s.Wearables[0].Transform.Position[1])
	assert.False(t, s.Wearables[0].Visible)
	assert.Equal(t, 1.0, s.Controller.Velocity)

	_, err = r.Dispatch(ctx, Action{Action: "setWearableVisible", ID: res.ID})
	assert.Error(t, err)
	_, err = r.Dispatch(ctx, Action{Action: "explode"})
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = r.Dispatch(ctx, Action{Action: "loadAvatar"})
	assert.Error(t, err)
}

type saverFunc func(name string, glb []byte, meta looks.Meta) (looks.Look, error)

func (f saverFunc) Save(name string, glb []byte, meta looks.Meta) (looks.Look, error) {
	return f(name, glb, meta)
}

func TestExportLook(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	var saved []byte
	saver := saverFunc(func(name string, glb []byte, meta looks.Meta) (looks.Look, error) {
		saved = glb
		return looks.Look{ID: "l1", Name: name, Owner: meta.Owner, Vertices: meta.Vertices}, nil
	})

	_, err := r.ExportLook(saver, "x", "")
	assert.True(t, merge.IsReason(err, merge.ReasonNotMerged))

	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	_, err = r.LoadWearable(ctx, "/hat.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.MergeLook())

	look, err := r.ExportLook(saver, "Evening", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Evening", look.Name)
	assert.Equal(t, 48, look.Vertices)
	assert.Equal(t, "glTF", string(saved[:4]))

	failing := saverFunc(func(string, []byte, looks.Meta) (looks.Look, error) { return looks.Look{}, errors.New("disk full") })
	_, err = r.ExportLook(failing, "x", "")
	assert.Error(t, err)
}

func TestPreviewItems(t *testing.T) {
	r, _, _ := newRoom(t)
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	wid, err := r.LoadWearable(ctx, "/hat.glb", "")
	require.NoError(t, err)
	assert.Len(t, r.PreviewItems(), 2)
	require.NoError(t, r.SetWearableVisible(wid, false))
	assert.Len(t, r.PreviewItems(), 1)
	require.NoError(t, r.SetWearableVisible(wid, true))
	require.NoError(t, r.MergeLook())
	assert.Len(t, r.PreviewItems(), 1)
}

func TestCloseReleasesEverything(t *testing.T) {
	tr := mesh.NewTracker()
	r := New("c", Options{Loader: newFakeLoader(tr), Tracker: tr})
	ctx := context.Background()
	require.NoError(t, r.LoadAvatar(ctx, "/avatar.glb"))
	_, err := r.LoadWearable(ctx, "/hat.glb", "")
	require.NoError(t, err)
	require.NoError(t, r.MergeLook())
	notices, _ := r.Subscribe(1)

	r.Close()
	assert.Zero(t, tr.Total())
	_, open := <-notices
	assert.False(t, open)
	assert.ErrorIs(t, r.MergeLook(), ErrClosed)
	assert.ErrorIs(t, r.LoadAvatar(ctx, "/avatar.glb"), ErrClosed)
	assert.False(t, r.Tick(1))
}

func TestManager(t *testing.T) {
	tr := mesh.NewTracker()
	m := NewManager(ManagerConfig{
		Room:     Options{Loader: newFakeLoader(tr), Tracker: tr},
		IdleTTL:  time.Minute,
		MaxRooms: 2,
	})
	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	_, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManyRooms)

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, a.LoadAvatar(context.Background(), "/avatar.glb"))
	require.NoError(t, a.SetRotationVelocity(1))
	m.TickAll(0.5)
	assert.InDelta(t, 0.5*spin.Gain, a.Snapshot().Avatar.Transform.Rotation[1], 1e-9)

	_, unsubscribe := b.Subscribe(1)
	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, m.Sweep(), "subscribed room stays")
	assert.Equal(t, 1, m.Len())
	_, err = m.Get(b.ID)
	assert.NoError(t, err)
	assert.Zero(t, tr.Total())

	unsubscribe()
	m.CloseAll()
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, m.Close(b.ID), ErrRoomNotFound)
}
