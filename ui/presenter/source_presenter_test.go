package presenter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/ui/model"
)

func newSource(t *testing.T, cams *fakeCameras) (*SourcePresenter, *model.StatusModel, *mockSourceView) {
	t.Helper()
	m := newMachine(t, cams)
	status := &model.StatusModel{}
	view := &mockSourceView{}
	return NewSourcePresenter(context.Background(), m, status, view, func() string { return "0" }, nil), status, view
}

func statusOf(s *model.StatusModel) string {
	msg, _ := s.Get()
	return msg
}

func TestSourcePresenter_WebcamGranted(t *testing.T) {
	cams := newCameras()
	p, status, view := newSource(t, cams)
	p.RequestWebcam()
	if got := statusOf(status); got != "Requesting camera 0..." {
		t.Fatalf("unexpected status %q", got)
	}
	cams.grants <- grant{stream: &fakeStream{}}
	waitFor(t, func() bool { p.Tick(time.Now()); return p.Pending() == 0 })

	if got := statusOf(status); got != "Webcam active" {
		t.Fatalf("unexpected status %q", got)
	}
	st := p.machine.Snapshot()
	if st.Kind != media.Webcam || !st.Playing {
		t.Fatalf("expected playing webcam, got %+v", st)
	}
	if len(view.playing) == 0 || !view.playing[len(view.playing)-1] {
		t.Fatalf("play toggle not synced: %v", view.playing)
	}
}

func TestSourcePresenter_WebcamDeniedKeepsState(t *testing.T) {
	cams := newCameras()
	p, status, _ := newSource(t, cams)
	p.SelectDemo("sample1")
	p.RequestWebcam()
	cams.grants <- grant{err: errors.New("permission denied")}
	waitFor(t, func() bool { p.Tick(time.Now()); return p.Pending() == 0 })

	if got := statusOf(status); !strings.HasPrefix(got, "Webcam unavailable") || !strings.Contains(got, "permission denied") {
		t.Fatalf("unexpected status %q", got)
	}
	if k := p.machine.Snapshot().Kind; k != media.Demo {
		t.Fatalf("denied request changed the source to %v", k)
	}
}

func TestSourcePresenter_StaleWebcamIgnored(t *testing.T) {
	cams := newCameras()
	p, status, _ := newSource(t, cams)
	p.RequestWebcam()
	p.SelectDemo("sample1")
	s := &fakeStream{}
	cams.grants <- grant{stream: s}
	waitFor(t, func() bool { p.Tick(time.Now()); return p.Pending() == 0 })

	if got := statusOf(status); got != "Demo scene sample1" {
		t.Fatalf("stale answer overwrote status: %q", got)
	}
	if s.stopped.Load() != 1 {
		t.Fatalf("stale stream not stopped")
	}
	if k := p.machine.Snapshot().Kind; k != media.Demo {
		t.Fatalf("expected demo, got %v", k)
	}
}

func TestSourcePresenter_SelectFile(t *testing.T) {
	p, status, _ := newSource(t, newCameras())

	notes := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(notes, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p.SelectFile(notes)
	if got := statusOf(status); got != "Unsupported file: notes.txt" {
		t.Fatalf("unexpected status %q", got)
	}
	if k := p.machine.Snapshot().Kind; k != media.None {
		t.Fatalf("unsupported file changed state to %v", k)
	}

	img := writePNG(t, "street.png", 64, 48)
	p.SelectFile(img)
	st := p.machine.Snapshot()
	if st.Kind != media.LocalFile || st.Source.VideoLike() {
		t.Fatalf("expected local still image, got %+v", st)
	}
	if got := statusOf(status); got != "Loaded street.png" {
		t.Fatalf("unexpected status %q", got)
	}

	p.SelectFile(filepath.Join(t.TempDir(), "missing.png"))
	if got := statusOf(status); got != "Cannot open missing.png" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestSourcePresenter_LiveAndPlayGuards(t *testing.T) {
	p, status, view := newSource(t, newCameras())
	p.SelectDemo("sample1")

	p.ToggleLive()
	if got := statusOf(status); got != "Live overlay needs a playing video or webcam" {
		t.Fatalf("unexpected status %q", got)
	}
	if p.machine.Snapshot().LiveOverlayRequested {
		t.Fatalf("live overlay must stay off for a still source")
	}
	p.TogglePlay()
	if got := statusOf(status); got != "Nothing to play" {
		t.Fatalf("unexpected status %q", got)
	}

	p.Tick(time.Now())
	p.Tick(time.Now())
	if len(view.playing) != 1 || len(view.live) != 1 {
		t.Fatalf("toggles should sync once when unchanged: playing=%v live=%v", view.playing, view.live)
	}
}

func TestSourcePresenter_LiveToggleOnWebcam(t *testing.T) {
	cams := newCameras()
	m := newMachine(t, cams)
	status := &model.StatusModel{}
	view := &mockSourceView{}
	p := NewSourcePresenter(context.Background(), m, status, view, nil, nil)
	activateWebcam(t, m, cams, &fakeStream{})

	p.ToggleLive()
	p.Tick(time.Now())
	if !m.LiveEligible() || len(view.live) == 0 || !view.live[len(view.live)-1] {
		t.Fatalf("live overlay should be on: eligible=%v view=%v", m.LiveEligible(), view.live)
	}
	p.TogglePlay()
	p.Tick(time.Now())
	if m.LiveEligible() || view.live[len(view.live)-1] {
		t.Fatalf("pausing must suspend the live overlay")
	}
	if !m.Snapshot().LiveOverlayRequested {
		t.Fatalf("pause keeps the request so resuming restores live sampling")
	}
	p.Reset()
	if st := m.Snapshot(); st.Kind != media.None || st.LiveOverlayRequested {
		t.Fatalf("reset should clear everything, got %+v", st)
	}
}
