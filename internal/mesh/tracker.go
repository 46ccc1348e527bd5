package mesh

import "sync"

// Kind classifies an owned resource.
type Kind string

const (
	KindGeometry Kind = "geometry"
	KindMaterial Kind = "material"
)

// Tracker counts live owned resources. Every geometry and material created
// against a tracker stays live until its Dispose is called. A nil *Tracker
// is valid and tracks nothing.
type Tracker struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]Kind
}

func NewTracker() *Tracker {
	return &Tracker{live: make(map[uint64]Kind)}
}

// Live returns the number of undisposed resources of kind k.
func (t *Tracker) Live(k Kind) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, kind := range t.live {
		if kind == k {
			n++
		}
	}
	return n
}

// Total returns the number of undisposed resources of any kind.
func (t *Tracker) Total() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

func (t *Tracker) acquire(k Kind) *handle {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.live[t.next] = k
	return &handle{id: t.next, tracker: t}
}

type handle struct {
	id       uint64
	tracker  *Tracker
	released bool
}

// release reports false on a second call.
func (h *handle) release() bool {
	if h == nil {
		return true
	}
	if h.released {
		return false
	}
	h.released = true
	h.tracker.mu.Lock()
	delete(h.tracker.live, h.id)
	h.tracker.mu.Unlock()
	return true
}

func (h *handle) owner() *Tracker {
	if h == nil {
		return nil
	}
	return h.tracker
}
