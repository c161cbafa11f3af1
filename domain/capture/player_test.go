package capture

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/vision-live-go/domain/lifecycle"
	"github.com/soocke/vision-live-go/domain/media"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeReader struct {
	mu     sync.Mutex
	left   int // frames before EOF, <0 for endless
	closed atomic.Bool
}

func (r *fakeReader) Read() (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.left == 0 {
		return nil, io.EOF
	}
	if r.left > 0 {
		r.left--
	}
	return image.NewRGBA(image.Rect(0, 0, 320, 240)), nil
}

func (r *fakeReader) Size() (int, int) { return 320, 240 }
func (r *fakeReader) Close() error     { r.closed.Store(true); return nil }
func (r *fakeReader) Stop() error      { return r.Close() }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestPlayer(r *fakeReader) (*Player, *lifecycle.Manager, *lifecycle.URLRegistry, *[]string) {
	res := lifecycle.NewManager(nil)
	urls := lifecycle.NewURLRegistry(res)
	var opened []string
	open := func(path string) (media.FrameReader, error) {
		opened = append(opened, path)
		return r, nil
	}
	return NewPlayer(discardLogger(), res, urls, open, 200), res, urls, &opened
}

func TestPlayer_PublishesFramesWithIncreasingSequence(t *testing.T) {
	r := &fakeReader{left: -1}
	p, _, urls, opened := newTestPlayer(r)
	src := media.LocalFileSource{URL: urls.Create("/v/clip.mp4"), Class: media.Video, Name: "clip.mp4"}
	if err := p.Play(src); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer p.Stop()
	waitFor(t, func() bool { _, seq, ok := p.Latest(); return ok && seq >= 3 })
	if len(*opened) != 1 || (*opened)[0] != "/v/clip.mp4" {
		t.Fatalf("opened %v", *opened)
	}
	if w, h := p.NativeSize(); w != 320 || h != 240 {
		t.Fatalf("native size %dx%d", w, h)
	}
}

func TestPlayer_PauseHoldsFrame(t *testing.T) {
	r := &fakeReader{left: -1}
	p, _, urls, _ := newTestPlayer(r)
	src := media.LocalFileSource{URL: urls.Create("/v/clip.mp4"), Class: media.Video}
	_ = p.Play(src)
	defer p.Stop()
	waitFor(t, func() bool { _, seq, ok := p.Latest(); return ok && seq >= 1 })
	p.Pause()
	time.Sleep(20 * time.Millisecond)
	_, held, _ := p.Latest()
	time.Sleep(30 * time.Millisecond)
	if _, seq, _ := p.Latest(); seq != held {
		t.Fatalf("frame advanced while paused: %d -> %d", held, seq)
	}
	if err := p.Play(src); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, func() bool { _, seq, _ := p.Latest(); return seq > held })
}

func TestPlayer_EndOfFile(t *testing.T) {
	r := &fakeReader{left: 2}
	p, _, urls, _ := newTestPlayer(r)
	_ = p.Play(media.LocalFileSource{URL: urls.Create("/v/short.mp4"), Class: media.Video})
	defer p.Stop()
	waitFor(t, p.Ended)
	if _, seq, ok := p.Latest(); !ok || seq != 2 {
		t.Fatalf("expected last frame kept, seq=%d ok=%v", seq, ok)
	}
}

func TestPlayer_RevokeWhilePlayingDefersRelease(t *testing.T) {
	r := &fakeReader{left: -1}
	p, res, urls, _ := newTestPlayer(r)
	h := urls.Create("/v/clip.mp4")
	_ = p.Play(media.LocalFileSource{URL: h, Class: media.Video})
	waitFor(t, func() bool { _, _, ok := p.Latest(); return ok })

	if err := urls.Revoke(h); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := urls.Resolve(h); !errors.Is(err, lifecycle.ErrRevoked) {
		t.Fatal("revoked url still resolves")
	}
	if res.Outstanding() != 1 {
		t.Fatal("release should wait for the reader's lease")
	}
	p.Stop()
	if !r.closed.Load() {
		t.Fatal("reader not closed on stop")
	}
	if res.Outstanding() != 0 || res.Released() != 1 {
		t.Fatalf("outstanding=%d released=%d after stop", res.Outstanding(), res.Released())
	}
	if _, _, ok := p.Latest(); ok {
		t.Fatal("stopped player still exposes a frame")
	}
}

func TestPlayer_RejectsRevokedAndStillSources(t *testing.T) {
	r := &fakeReader{left: -1}
	p, _, urls, _ := newTestPlayer(r)
	h := urls.Create("/v/clip.mp4")
	_ = urls.Revoke(h)
	if err := p.Play(media.LocalFileSource{URL: h, Class: media.Video}); !errors.Is(err, lifecycle.ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if err := p.Play(media.DemoSource{AssetID: "sample1"}); err == nil {
		t.Fatal("demo source should not play")
	}
	if p.Running() {
		t.Fatal("player running after rejected play")
	}
}

func TestPlayer_WebcamStreamNotClosedByPlayer(t *testing.T) {
	r := &fakeReader{left: -1}
	p, _, _, _ := newTestPlayer(r)
	_ = p.Play(media.WebcamSource{Handle: "stream:x", Stream: r})
	waitFor(t, func() bool { _, _, ok := p.Latest(); return ok })
	p.Stop()
	if r.closed.Load() {
		t.Fatal("player must leave stream shutdown to the lifecycle manager")
	}
}

func TestPlayer_ReplayAfterEnd(t *testing.T) {
	res := lifecycle.NewManager(nil)
	urls := lifecycle.NewURLRegistry(res)
	var readers []*fakeReader
	open := func(path string) (media.FrameReader, error) {
		r := &fakeReader{left: 2}
		readers = append(readers, r)
		return r, nil
	}
	p := NewPlayer(discardLogger(), res, urls, open, 200)
	src := media.LocalFileSource{URL: urls.Create("/v/short.mp4"), Class: media.Video, Name: "short.mp4"}
	if err := p.Play(src); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer p.Stop()
	waitFor(t, p.Ended)
	_, lastSeq, _ := p.Latest()
	p.Pause()

	if err := p.Play(src); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if p.Ended() || !p.Running() {
		t.Fatalf("after replay: ended=%v running=%v", p.Ended(), p.Running())
	}
	if len(readers) != 2 || !readers[0].closed.Load() {
		t.Fatalf("expected the file reopened and the old reader closed, opened %d", len(readers))
	}
	waitFor(t, func() bool { _, seq, ok := p.Latest(); return ok && seq > lastSeq })
	waitFor(t, p.Ended)
	if res.Outstanding() != 1 {
		t.Fatalf("lease leaked across replay: outstanding=%d", res.Outstanding())
	}
}
