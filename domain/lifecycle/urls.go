package lifecycle

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrRevoked is returned when resolving a URL that was released.
var ErrRevoked = errors.New("object url revoked")

// URLRegistry mints ephemeral object URLs for local files. A revoked URL no
// longer resolves, so stale references become unusable.
type URLRegistry struct {
	m     *Manager
	mu    sync.Mutex
	paths map[Handle]string
}

// NewURLRegistry returns a registry whose handles are owned by m.
func NewURLRegistry(m *Manager) *URLRegistry {
	return &URLRegistry{m: m, paths: make(map[Handle]string)}
}

// Create allocates a URL for path.
func (r *URLRegistry) Create(path string) Handle {
	var h Handle
	h = r.m.Track(KindObjectURL, func() error {
		r.mu.Lock()
		delete(r.paths, h)
		r.mu.Unlock()
		return nil
	})
	r.mu.Lock()
	r.paths[h] = path
	r.mu.Unlock()
	return h
}

// Resolve returns the path behind h, or ErrRevoked once h is released or retired.
func (r *URLRegistry) Resolve(h Handle) (string, error) {
	if !r.m.Live(h) {
		return "", errors.Wrapf(ErrRevoked, "resolve %s", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.paths[h]
	if !ok {
		return "", errors.Wrapf(ErrRevoked, "resolve %s", h)
	}
	return p, nil
}

// Revoke releases h. Same semantics as Manager.Release.
func (r *URLRegistry) Revoke(h Handle) error { return r.m.Release(h) }
