package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitroom/internal/mesh"
	"fitroom/internal/metrics"
)

var (
	ErrRoomNotFound = errors.New("room: not found")
	ErrTooManyRooms = errors.New("room: too many rooms")
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Room Options
	// IdleTTL evicts rooms with no activity and no subscribers. Zero
	// disables eviction.
	IdleTTL  time.Duration
	MaxRooms int
}

// Manager owns the open rooms.
type Manager struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	cfg     ManagerConfig
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Room.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		rooms:   make(map[string]*Room),
		cfg:     cfg,
		metrics: cfg.Room.Metrics,
		logger:  logger.With(zap.String("component", "rooms")),
		now:     time.Now,
	}
}

// Create opens a new empty room.
func (m *Manager) Create() (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxRooms > 0 && len(m.rooms) >= m.cfg.MaxRooms {
		return nil, ErrTooManyRooms
	}
	id := uuid.NewString()
	r := New(id, m.cfg.Room)
	m.rooms[id] = r
	m.metrics.SetRooms(len(m.rooms))
	m.logger.Info("room created", zap.String("room", id))
	return r, nil
}

// Get returns the room and records activity on it.
func (m *Manager) Get(id string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.Touch()
	return r, nil
}

// Close closes and forgets a room.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	r, ok := m.rooms[id]
	delete(m.rooms, id)
	n := len(m.rooms)
	m.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	r.Close()
	m.metrics.SetRooms(n)
	return nil
}

// Len is the number of open rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) list() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// TickAll advances every room by elapsed seconds.
func (m *Manager) TickAll(elapsed float64) {
	for _, r := range m.list() {
		r.Tick(elapsed)
	}
}

// Sweep closes idle rooms and publishes resource gauges. It returns the
// number of rooms closed.
func (m *Manager) Sweep() int {
	closed := 0
	if m.cfg.IdleTTL > 0 {
		cutoff := m.now().Add(-m.cfg.IdleTTL)
		for _, r := range m.list() {
			if r.Subscribers() == 0 && r.LastActive().Before(cutoff) {
				if m.Close(r.ID) == nil {
					closed++
					m.logger.Info("idle room evicted", zap.String("room", r.ID))
				}
			}
		}
	}
	tr := m.cfg.Room.Tracker
	m.metrics.SetLiveResources(string(mesh.KindGeometry), tr.Live(mesh.KindGeometry))
	m.metrics.SetLiveResources(string(mesh.KindMaterial), tr.Live(mesh.KindMaterial))
	m.metrics.SetRooms(m.Len())
	return closed
}

// CloseAll closes every room.
func (m *Manager) CloseAll() {
	for _, r := range m.list() {
		_ = m.Close(r.ID)
	}
}
