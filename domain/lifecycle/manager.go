// Package lifecycle tracks locally created media handles (object URLs and
// camera streams) and releases each of them exactly once.
package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Kind identifies what a handle owns.
type Kind int

const (
	KindObjectURL Kind = iota + 1
	KindCameraStream
)

func (k Kind) String() string {
	switch k {
	case KindObjectURL:
		return "object-url"
	case KindCameraStream:
		return "camera-stream"
	default:
		return "unknown"
	}
}

func (k Kind) scheme() string {
	if k == KindCameraStream {
		return "stream"
	}
	return "blob"
}

// Handle is an opaque identifier such as "blob:6f1c..." or "stream:9a2e...".
type Handle string

// ReleaseFunc performs the externally visible side effect of a release.
type ReleaseFunc func() error

type entry struct {
	kind    Kind
	release ReleaseFunc
	leases  int
	retired bool
}

// Manager owns every tracked handle. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	logger   *slog.Logger
	entries  map[Handle]*entry
	released uint64
}

// NewManager returns an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logger, entries: make(map[Handle]*entry)}
}

// Track registers a new handle of the given kind. fn runs once on release.
func (m *Manager) Track(kind Kind, fn ReleaseFunc) Handle {
	h := Handle(kind.scheme() + ":" + uuid.NewString())
	m.mu.Lock()
	m.entries[h] = &entry{kind: kind, release: fn}
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.Debug("handle tracked", "handle", string(h), "kind", kind.String())
	}
	return h
}

// Live reports whether h is tracked and not retired.
func (m *Manager) Live(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[h]
	return ok && !e.retired
}

// Retain takes a read lease on h. It fails for unknown or retired handles.
// Every successful Retain must be paired with Return.
func (m *Manager) Retain(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[h]
	if !ok || e.retired {
		return false
	}
	e.leases++
	return true
}

// Return gives back a lease. When the handle was released while leased, its
// side effect runs now.
func (m *Manager) Return(h Handle) {
	m.mu.Lock()
	e, ok := m.entries[h]
	if !ok || e.leases == 0 {
		m.mu.Unlock()
		return
	}
	e.leases--
	if !e.retired || e.leases > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, h)
	m.released++
	m.mu.Unlock()
	if err := m.run(h, e); err != nil && m.logger != nil {
		m.logger.Error("deferred release", "handle", string(h), "error", err)
	}
}

// Release releases h. Releasing an unknown or already released handle is a
// no-op. A leased handle is retired immediately and its side effect runs
// once the last lease is returned.
func (m *Manager) Release(h Handle) error {
	m.mu.Lock()
	e, ok := m.entries[h]
	if !ok || e.retired {
		m.mu.Unlock()
		return nil
	}
	e.retired = true
	if e.leases > 0 {
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Debug("release deferred until leases return", "handle", string(h), "leases", e.leases)
		}
		return nil
	}
	delete(m.entries, h)
	m.released++
	m.mu.Unlock()
	return m.run(h, e)
}

// ReleaseAll releases every handle still tracked and combines their errors.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	handles := make([]Handle, 0, len(m.entries))
	for h := range m.entries {
		handles = append(handles, h)
	}
	m.mu.Unlock()
	var err error
	for _, h := range handles {
		err = multierr.Append(err, m.Release(h))
	}
	return err
}

// Outstanding counts handles whose side effect has not run yet, including
// retired handles waiting on leases.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Released counts completed releases.
func (m *Manager) Released() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func (m *Manager) run(h Handle, e *entry) error {
	if m.logger != nil {
		m.logger.Debug("handle released", "handle", string(h), "kind", e.kind.String())
	}
	if e.release == nil {
		return nil
	}
	if err := e.release(); err != nil {
		return errors.Wrapf(err, "release %s", h)
	}
	return nil
}
