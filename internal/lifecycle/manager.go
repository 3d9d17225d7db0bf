// Package lifecycle owns the active profile: it caches the materialized
// configuration and tells subscribers when the profile reloads.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/profile"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoLoader is returned before a loader is attached
var ErrNoLoader = errors.New("no profile loader attached")

// subscriberBuffer is how many undelivered events a slow subscriber may hold
const subscriberBuffer = 8

// EventType names a lifecycle event
type EventType string

const (
	// EventReload fires when the loader replaced its cached document
	EventReload EventType = "reload"
	// EventLoaded fires when a materialization completed
	EventLoaded EventType = "loaded"
)

// Event is delivered to subscribers
type Event struct {
	Type      EventType `json:"type"`
	ProfileID string    `json:"profileId"`
	At        time.Time `json:"at"`
	HasErrors bool      `json:"hasErrors,omitempty"`
}

// Manager caches the materialized config of one loader
type Manager struct {
	logger *zap.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	loader     profile.Loader
	cached     *types.ConfigResult[types.AppConfig]
	generation uint64

	subsMu  sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
	closed  bool
}

// NewManager creates a manager. Attach a loader before calling Config; the
// loader's reload callback should be m.OnReload.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logging.OrNop(logger).Named("lifecycle"),
		subs:   make(map[uint64]chan Event),
	}
}

// Attach makes loader the active profile, activating it and deactivating
// the previous one. The previous loader is returned so the caller can close
// it.
func (m *Manager) Attach(loader profile.Loader) profile.Loader {
	m.mu.Lock()
	prev := m.loader
	m.loader = loader
	m.cached = nil
	m.generation++
	m.mu.Unlock()

	if prev != nil {
		prev.SetActive(false)
	}
	loader.SetActive(true)

	m.logger.Info("Profile attached", zap.String("profile", loader.Description().ID))
	return prev
}

// Loader returns the attached loader, or nil
func (m *Manager) Loader() profile.Loader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loader
}

// Config returns the cached materialized config, loading it if needed.
// Concurrent callers share one load.
func (m *Manager) Config(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	m.mu.RLock()
	cached := m.cached
	m.mu.RUnlock()
	if cached != nil {
		return cached.Clone(), nil
	}
	return m.load(ctx)
}

// Reload discards the cached config and loads again
func (m *Manager) Reload(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	m.invalidate()
	return m.load(ctx)
}

// OnReload is the loader's reload callback. It drops the cached config and
// notifies subscribers.
func (m *Manager) OnReload() {
	m.invalidate()

	id := ""
	if loader := m.Loader(); loader != nil {
		id = loader.Description().ID
	}
	m.logger.Debug("Profile reloaded", zap.String("profile", id))
	m.publish(Event{Type: EventReload, ProfileID: id, At: time.Now()})
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.generation++
	m.mu.Unlock()
	m.group.Forget("config")
}

func (m *Manager) load(ctx context.Context) (types.ConfigResult[types.AppConfig], error) {
	v, err, _ := m.group.Do("config", func() (interface{}, error) {
		m.mu.RLock()
		loader := m.loader
		generation := m.generation
		m.mu.RUnlock()

		if loader == nil {
			return nil, ErrNoLoader
		}

		result, err := loader.LoadConfig(ctx)
		if err != nil {
			m.logger.Error("Failed to load profile config", zap.String("profile", loader.Description().ID), zap.Error(err))
			return nil, err
		}

		// A reload that happened mid-load makes this result stale
		m.mu.Lock()
		if m.generation == generation {
			stored := result.Clone()
			m.cached = &stored
		}
		m.mu.Unlock()

		m.publish(Event{
			Type:      EventLoaded,
			ProfileID: loader.Description().ID,
			At:        time.Now(),
			HasErrors: result.HasErrors(),
		})
		return result, nil
	})
	if err != nil {
		return types.ConfigResult[types.AppConfig]{}, err
	}
	return v.(types.ConfigResult[types.AppConfig]).Clone(), nil
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. Events are dropped for subscribers whose buffer is full.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	key := m.nextSub
	m.nextSub++
	m.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if sub, ok := m.subs[key]; ok {
				delete(m.subs, key)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions
func (m *Manager) Subscribers() int {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return len(m.subs)
}

func (m *Manager) publish(ev Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for key, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("Dropping event for slow subscriber", zap.Uint64("subscriber", key), zap.String("type", string(ev.Type)))
		}
	}
}

// Close closes the attached loader and ends every subscription
func (m *Manager) Close() error {
	m.subsMu.Lock()
	if !m.closed {
		m.closed = true
		for key, ch := range m.subs {
			delete(m.subs, key)
			close(ch)
		}
	}
	m.subsMu.Unlock()

	if loader := m.Loader(); loader != nil {
		return loader.Close()
	}
	return nil
}
