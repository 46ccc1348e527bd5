// Package room is the authoritative fitting room state: one avatar, its
// wearables, the manipulation controller, the spin driver and the merge
// engine, with every mutation funneled through Room methods.
package room

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitroom/internal/asset"
	"fitroom/internal/controller"
	"fitroom/internal/mathutil"
	"fitroom/internal/merge"
	"fitroom/internal/mesh"
	"fitroom/internal/metrics"
	"fitroom/internal/registry"
	"fitroom/internal/spin"
)

var (
	ErrClosed      = errors.New("room: closed")
	ErrLoading     = errors.New("room: slot is loading")
	ErrNotWearable = errors.New("room: not a wearable")
)

// Loader fetches and prepares a fragment.
type Loader interface {
	Load(ctx context.Context, url string, opts asset.Options) (*asset.Asset, error)
}

// Slot names the kind of instance a load fills.
type Slot string

const (
	SlotAvatar   Slot = "avatar"
	SlotWearable Slot = "wearable"
)

// Pending is a load placeholder shown while an asset is in flight.
type Pending struct {
	ID      string    `json:"id"`
	Slot    Slot      `json:"slot"`
	URL     string    `json:"url"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`
}

// Framing is the sphere the camera fits when re-centered.
type Framing struct {
	Center mathutil.Vec3 `json:"center"`
	Radius float64       `json:"radius"`
	Empty  bool          `json:"empty"`
}

// Options configure a room.
type Options struct {
	Loader Loader
	// Tracker must be the tracker the loader registers resources with.
	Tracker  *mesh.Tracker
	SpinGain float64
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

// Room serializes all access with one mutex. Loads run without the lock
// held and re-validate state when they complete.
type Room struct {
	ID string

	mu      sync.Mutex
	loader  Loader
	tracker *mesh.Tracker
	reg     *registry.Registry
	ctrl    *controller.Controller
	spin    *spin.Driver
	merge   *merge.Engine
	metrics *metrics.Collector
	logger  *zap.Logger
	notices hub

	camera  controller.Camera
	framing Framing

	// avatar loads are last-request-wins
	avatarToken  uint64
	avatarCancel context.CancelFunc

	// bumped by UnloadAll so wearable loads started before it are dropped
	wearableGen uint64
	pending     map[string]Pending

	rev     uint64
	closed  bool
	created time.Time
	active  atomic.Int64
	now     func() time.Time
}

// New creates an empty room.
func New(id string, opts Options) *Room {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With(zap.String("room", id))
	reg := registry.New(logger)
	r := &Room{
		ID:      id,
		loader:  opts.Loader,
		tracker: opts.Tracker,
		reg:     reg,
		ctrl:    controller.New(reg, logger),
		spin:    spin.New(opts.SpinGain),
		merge:   merge.NewEngine(opts.Tracker, logger),
		metrics: opts.Metrics,
		logger:  logger.With(zap.String("component", "room")),
		camera:  controller.DefaultCamera(),
		framing: Framing{Empty: true},
		pending: make(map[string]Pending),
		now:     time.Now,
	}
	r.created = r.now()
	r.Touch()
	return r
}

// Touch records activity for idle eviction.
func (r *Room) Touch() { r.active.Store(time.Now().UnixNano()) }

// LastActive is the time of the last recorded activity.
func (r *Room) LastActive() time.Time { return time.Unix(0, r.active.Load()) }

// Subscribe returns a channel of notices and a function that ends the
// subscription.
func (r *Room) Subscribe(buf int) (<-chan Notice, func()) {
	return r.notices.subscribe(buf)
}

// Subscribers is the number of live subscriptions.
func (r *Room) Subscribers() int {
	r.notices.mu.Lock()
	defer r.notices.mu.Unlock()
	return len(r.notices.subs)
}

// Revision increases on every state change.
func (r *Room) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rev
}

func (r *Room) notify(level Level, title, desc string) {
	r.notices.publish(Notice{Level: level, Title: title, Description: desc, Time: r.now()})
}

// fail publishes an error notice for err under the given title. Merge
// errors carry their own title.
func (r *Room) fail(title string, err error) {
	var me *merge.Error
	if errors.As(err, &me) {
		r.notify(LevelError, string(me.Reason), mergeHint(me.Reason))
		return
	}
	r.notify(LevelError, title, describe(err))
}

func mergeHint(reason merge.Reason) string {
	switch reason {
	case merge.ReasonNoAvatar:
		return "Upload or choose an avatar before merging"
	case merge.ReasonNoWearables:
		return "Load at least one wearable"
	case merge.ReasonAlreadyMerged:
		return "Unmerge the current look first"
	case merge.ReasonNotMerged:
		return "Merge a look first"
	default:
		return "Technical error during geometry combination."
	}
}

func describe(err error) string {
	var le *asset.LoadError
	switch {
	case errors.As(err, &le):
		return le.Reason
	case errors.Is(err, registry.ErrMerged):
		return "Unmerge the look to make changes"
	case errors.Is(err, registry.ErrNotFound):
		return "The item no longer exists"
	case errors.Is(err, controller.ErrBusy):
		return "Another item is being moved"
	case errors.Is(err, controller.ErrNoSelection):
		return "Select an item first"
	case errors.Is(err, ErrLoading):
		return "Wait for the current load to finish"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The load was cancelled"
	}
	return err.Error()
}

// act runs fn under the room lock. A panic in fn is converted to an error
// and every error is reported as a notice titled failTitle.
func (r *Room) act(name, failTitle string, fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("action panicked", zap.String("action", name), zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("room: %s: internal error: %v", name, p)
		}
		if err != nil {
			r.logger.Debug("action rejected", zap.String("action", name), zap.Error(err))
			r.fail(failTitle, err)
		}
		r.rev++
	}()
	if r.closed {
		return ErrClosed
	}
	r.Touch()
	return fn()
}

// displayName derives a label from an asset URL.
func displayName(url string) string {
	if strings.HasPrefix(url, asset.BlobPrefix) {
		return "Uploaded model"
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	base := path.Base(url)
	if base == "." || base == "/" {
		return url
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// load calls the loader, converting a panic into a malformed-file error.
func (r *Room) load(ctx context.Context, url string, opts asset.Options) (a *asset.Asset, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("loader panicked", zap.String("url", url), zap.Any("panic", p))
			a, err = nil, &asset.LoadError{URL: url, Reason: asset.ReasonMalformed, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if r.loader == nil {
		return nil, &asset.LoadError{URL: url, Reason: asset.ReasonNetwork, Err: errors.New("no loader configured")}
	}
	return r.loader.Load(ctx, url, opts)
}

// LoadAvatar replaces the avatar with the asset at url. Starting a new
// avatar load cancels the one in flight; the older load then returns
// asset.ErrSuperseded and its result is discarded. A failed load keeps
// the current avatar.
func (r *Room) LoadAvatar(ctx context.Context, url string) error {
	const failTitle = "Failed to load avatar"
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.merge.Merged() {
		r.fail(failTitle, registry.ErrMerged)
		r.mu.Unlock()
		return registry.ErrMerged
	}
	if r.avatarCancel != nil {
		r.avatarCancel()
	}
	r.avatarToken++
	token := r.avatarToken
	lctx, cancel := context.WithCancel(ctx)
	r.avatarCancel = cancel
	r.pending[string(SlotAvatar)] = Pending{ID: registry.AvatarID, Slot: SlotAvatar, URL: url, Name: displayName(url), Started: r.now()}
	r.rev++
	r.Touch()
	r.mu.Unlock()

	start := time.Now()
	a, err := r.load(lctx, url, asset.Options{})

	r.mu.Lock()
	defer r.mu.Unlock()
	cancel()
	if token != r.avatarToken || r.closed {
		if a != nil {
			a.Root.Dispose()
		}
		r.metrics.RecordLoad(string(SlotAvatar), "superseded", time.Since(start))
		if r.closed {
			return ErrClosed
		}
		r.logger.Debug("avatar load superseded", zap.String("url", url))
		return asset.ErrSuperseded
	}
	delete(r.pending, string(SlotAvatar))
	r.avatarCancel = nil
	r.rev++

	if err == nil && r.merge.Merged() {
		a.Root.Dispose()
		err = registry.ErrMerged
	}
	if err == nil {
		if _, err = r.reg.RegisterAvatar(a.Root, url); err != nil {
			a.Root.Dispose()
		} else {
			r.ctrl.Forget(registry.AvatarID)
		}
	}
	if err != nil {
		r.metrics.RecordLoad(string(SlotAvatar), "error", time.Since(start))
		r.logger.Warn("avatar load failed", zap.String("url", url), zap.Error(err))
		r.fail(failTitle, err)
		return err
	}
	r.metrics.RecordLoad(string(SlotAvatar), "ok", time.Since(start))
	r.logger.Info("avatar loaded", zap.String("url", url), zap.Duration("took", time.Since(start)))
	r.notify(LevelSuccess, "Avatar updated successfully", displayName(url))
	return nil
}

// LoadWearable adds the asset at url as a wearable at the origin.
func (r *Room) LoadWearable(ctx context.Context, url, name string) (string, error) {
	return r.LoadWearableAt(ctx, url, name, registry.Transform{})
}

// LoadWearableAt adds the asset at url as a wearable placed at at and
// returns its id. Wearable loads are independent of each other; UnloadAll
// discards loads still in flight.
func (r *Room) LoadWearableAt(ctx context.Context, url, name string, at registry.Transform) (string, error) {
	const failTitle = "Failed to load wearable"
	if name == "" {
		name = displayName(url)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	if r.merge.Merged() {
		r.fail(failTitle, registry.ErrMerged)
		r.mu.Unlock()
		return "", registry.ErrMerged
	}
	if !at.Position.IsFinite() || !at.Rotation.IsFinite() {
		at = registry.Transform{}
	}
	key := uuid.NewString()
	gen := r.wearableGen
	r.pending[key] = Pending{ID: key, Slot: SlotWearable, URL: url, Name: name, Started: r.now()}
	r.rev++
	r.Touch()
	r.mu.Unlock()

	start := time.Now()
	a, err := r.load(ctx, url, asset.Options{Wearable: true})

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
	r.rev++
	if gen != r.wearableGen || r.closed {
		if a != nil {
			a.Root.Dispose()
		}
		r.metrics.RecordLoad(string(SlotWearable), "superseded", time.Since(start))
		if r.closed {
			return "", ErrClosed
		}
		return "", asset.ErrSuperseded
	}

	var id string
	if err == nil && r.merge.Merged() {
		a.Root.Dispose()
		err = registry.ErrMerged
	}
	if err == nil {
		inst, rerr := r.reg.RegisterWearable(a.Root, url, name, at)
		if rerr != nil {
			a.Root.Dispose()
			err = rerr
		} else {
			id = inst.ID
		}
	}
	if err != nil {
		r.metrics.RecordLoad(string(SlotWearable), "error", time.Since(start))
		r.logger.Warn("wearable load failed", zap.String("url", url), zap.Error(err))
		r.fail(failTitle, err)
		return "", err
	}
	r.metrics.RecordLoad(string(SlotWearable), "ok", time.Since(start))
	r.logger.Info("wearable loaded", zap.String("id", id), zap.String("url", url))
	r.notify(LevelSuccess, "Wearable equipped successfully", name)
	return id, nil
}

// Close cancels loads in flight and releases every owned resource.
// Subscriptions are ended.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.avatarCancel != nil {
		r.avatarCancel()
		r.avatarCancel = nil
	}
	r.ctrl.Suspend()
	if r.merge.Merged() {
		_ = r.merge.Unmerge()
	}
	r.reg.SetLocked(false)
	_, _ = r.reg.RemoveWearables()
	if r.reg.Avatar() != nil {
		_ = r.reg.Remove(registry.AvatarID)
	}
	r.pending = make(map[string]Pending)
	r.notices.close()
	r.logger.Info("room closed", zap.Duration("age", r.now().Sub(r.created)))
}
