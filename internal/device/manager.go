package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
)

// Manager is the process-wide device lock. The first acquirer wins; others
// get ErrBusy until the holder releases.
type Manager struct {
	src   Source
	hooks *hooks.Manager
	log   *logging.Logger

	mu       sync.Mutex
	owner    string
	acquired int
	released int
}

// NewManager wraps src with the global lock.
func NewManager(src Source, hk *hooks.Manager, log *logging.Logger) *Manager {
	return &Manager{src: src, hooks: hk, log: log.Sub("device")}
}

// Acquire takes the lock for owner and acquires the devices selected by c.
// The lock is held while the source is pending, so a concurrent acquirer
// fails fast instead of racing for the hardware.
func (m *Manager) Acquire(ctx context.Context, owner string, c Constraints) (*Handle, error) {
	m.mu.Lock()
	if m.owner != "" {
		holder := m.owner
		m.mu.Unlock()
		return nil, fmt.Errorf("%w by %s", ErrBusy, holder)
	}
	m.owner = owner
	m.mu.Unlock()

	stream, err := m.src.Acquire(ctx, c)
	if err != nil {
		m.mu.Lock()
		m.owner = ""
		m.mu.Unlock()
		m.log.Debug().Err(err).Str("owner", owner).Str("kind", Classify(err).String()).Msg("acquire failed")
		return nil, err
	}

	h := &Handle{id: uuid.NewString(), owner: owner, stream: stream, m: m}
	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()

	m.log.Debug().Str("owner", owner).Str("handle", h.id).Stringer("constraints", c).Msg("device acquired")
	m.hooks.Emit(ctx, hooks.EventDeviceAcquired, map[string]any{"owner": owner, "handle": h.id})
	return h, nil
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	m.released++
	if m.owner == h.owner {
		m.owner = ""
	}
	m.mu.Unlock()

	m.log.Debug().Str("owner", h.owner).Str("handle", h.id).Msg("device released")
	m.hooks.Emit(context.Background(), hooks.EventDeviceReleased, map[string]any{"owner": h.owner, "handle": h.id})
}

// Stats are lifetime acquire/release counters.
type Stats struct {
	Acquired int
	Released int
	Owner    string
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Acquired: m.acquired, Released: m.released, Owner: m.owner}
}

// Handle is exclusive ownership of an acquired stream.
type Handle struct {
	id     string
	owner  string
	stream Stream
	m      *Manager
	once   sync.Once
}

func (h *Handle) ID() string      { return h.id }
func (h *Handle) Owner() string   { return h.owner }
func (h *Handle) Stream() Stream  { return h.stream }
func (h *Handle) Tracks() []Track { return h.stream.Tracks() }

// Release stops every track and frees the lock. Only the first call has any
// effect.
func (h *Handle) Release() {
	h.once.Do(func() {
		for _, t := range h.stream.Tracks() {
			t.Stop()
		}
		h.m.release(h)
	})
}
