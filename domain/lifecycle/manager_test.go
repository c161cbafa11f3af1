package lifecycle

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRelease_IsIdempotent(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	h := m.Track(KindObjectURL, func() error { calls++; return nil })
	if !strings.HasPrefix(string(h), "blob:") {
		t.Fatalf("unexpected handle %q", h)
	}
	for i := 0; i < 3; i++ {
		if err := m.Release(h); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one side effect, got %d", calls)
	}
	if m.Outstanding() != 0 || m.Released() != 1 {
		t.Fatalf("outstanding=%d released=%d", m.Outstanding(), m.Released())
	}
}

func TestRelease_UnknownHandleIsNoop(t *testing.T) {
	m := NewManager(nil)
	if err := m.Release("blob:does-not-exist"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Released() != 0 {
		t.Fatalf("unknown handle counted as released")
	}
}

func TestReleaseAll_CombinesErrors(t *testing.T) {
	m := NewManager(nil)
	boom := errors.New("boom")
	var stopped int
	m.Track(KindCameraStream, func() error { stopped++; return boom })
	m.Track(KindObjectURL, func() error { return boom })
	m.Track(KindObjectURL, nil)

	err := m.ReleaseAll()
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("expected combined error wrapping boom, got %v", err)
	}
	if m.Outstanding() != 0 {
		t.Fatalf("expected nothing outstanding, got %d", m.Outstanding())
	}
	if stopped != 1 {
		t.Fatalf("stream stop ran %d times", stopped)
	}
	if err := m.ReleaseAll(); err != nil {
		t.Fatalf("second ReleaseAll should be a no-op, got %v", err)
	}
}

func TestLease_DefersSideEffectUntilReturned(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	h := m.Track(KindObjectURL, func() error { calls++; return nil })
	if !m.Retain(h) {
		t.Fatalf("retain failed on live handle")
	}
	if err := m.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
	if m.Live(h) {
		t.Fatalf("released handle must not be live while leased")
	}
	if m.Retain(h) {
		t.Fatalf("retired handle must not accept new leases")
	}
	if calls != 0 {
		t.Fatalf("side effect ran while leased")
	}
	if m.Outstanding() != 1 {
		t.Fatalf("leased handle should still be outstanding")
	}
	m.Return(h)
	if calls != 1 || m.Outstanding() != 0 {
		t.Fatalf("calls=%d outstanding=%d after return", calls, m.Outstanding())
	}
	m.Return(h)
	if calls != 1 {
		t.Fatalf("extra return re-ran the side effect")
	}
}

func TestConcurrentRelease_RunsOnce(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	calls := 0
	h := m.Track(KindCameraStream, func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Release(h)
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected exactly one release, got %d", calls)
	}
}

func TestURLRegistry_RevokedURLDoesNotResolve(t *testing.T) {
	m := NewManager(nil)
	r := NewURLRegistry(m)
	h := r.Create("/tmp/clip.mp4")
	p, err := r.Resolve(h)
	if err != nil || p != "/tmp/clip.mp4" {
		t.Fatalf("resolve: %q %v", p, err)
	}
	if err := r.Revoke(h); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := r.Resolve(h); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if m.Outstanding() != 0 {
		t.Fatalf("registry leaked a handle")
	}
}
