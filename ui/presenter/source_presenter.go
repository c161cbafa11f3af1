package presenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/domain/viewstate"
	"github.com/soocke/vision-live-go/ui/model"
)

// SourceMachine is the part of the source state machine driven by the
// source panel.
type SourceMachine interface {
	SelectFile(path, mimeType string, size int64) error
	EnterSnapshotURL(raw string) error
	RequestWebcam(ctx context.Context, device string) <-chan error
	SelectDemo(id string) error
	Reset()
	SetPlaying(on bool) error
	SetLiveOverlay(on bool) bool
	Snapshot() viewstate.State
}

// SourceView mirrors the play and live toggles.
type SourceView interface {
	SetPlaying(bool)
	SetLiveOverlay(bool)
}

// SourcePresenter turns source panel actions into machine transitions and
// reports their outcome on the status line.
type SourcePresenter struct {
	machine SourceMachine
	status  *model.StatusModel
	view    SourceView
	device  func() string
	ctx     context.Context
	logger  *slog.Logger

	// stat is os.Stat outside tests.
	stat func(string) (os.FileInfo, error)

	pending []<-chan error

	shownPlaying, shownLive bool
	synced                  bool
}

func NewSourcePresenter(ctx context.Context, machine SourceMachine, status *model.StatusModel, view SourceView, device func() string, logger *slog.Logger) *SourcePresenter {
	if ctx == nil {
		ctx = context.Background()
	}
	if device == nil {
		device = func() string { return "0" }
	}
	return &SourcePresenter{
		machine: machine,
		status:  status,
		view:    view,
		device:  device,
		ctx:     ctx,
		logger:  logger,
		stat:    os.Stat,
	}
}

// SelectFile activates a local image or video. Unsupported files leave the
// current source untouched.
func (p *SourcePresenter) SelectFile(path string) {
	if p == nil || p.machine == nil || path == "" {
		return
	}
	fi, err := p.stat(path)
	if err != nil {
		p.status.Set("Cannot open " + filepath.Base(path))
		p.logf("stat file", err)
		return
	}
	if fi.IsDir() {
		p.status.Set(filepath.Base(path) + " is a directory")
		return
	}
	err = p.machine.SelectFile(path, media.DetectMime(path), fi.Size())
	switch {
	case errors.Is(err, media.ErrUnsupportedMedia):
		p.status.Set("Unsupported file: " + filepath.Base(path))
	case errors.Is(err, media.ErrFileTooLarge):
		p.status.Set(err.Error())
	case err != nil:
		p.status.Set("Cannot open " + filepath.Base(path))
		p.logf("select file", err)
	default:
		p.status.Set("Loaded " + filepath.Base(path))
	}
}

// EnterURL shows a remote still image.
func (p *SourcePresenter) EnterURL(raw string) {
	if p == nil || p.machine == nil {
		return
	}
	if err := p.machine.EnterSnapshotURL(raw); err != nil {
		p.status.Set("Invalid snapshot URL")
		p.logf("snapshot url", err)
		return
	}
	p.status.Set("Snapshot URL set")
}

// RequestWebcam starts a camera request. The answer is picked up by Tick.
func (p *SourcePresenter) RequestWebcam() {
	if p == nil || p.machine == nil {
		return
	}
	dev := p.device()
	p.pending = append(p.pending, p.machine.RequestWebcam(p.ctx, dev))
	p.status.Set("Requesting camera " + dev + "...")
}

// SelectDemo activates a demo scene.
func (p *SourcePresenter) SelectDemo(id string) {
	if p == nil || p.machine == nil {
		return
	}
	if err := p.machine.SelectDemo(id); err != nil {
		p.status.Set("Unknown demo scene " + id)
		return
	}
	p.status.Set("Demo scene " + id)
}

// Reset clears the source.
func (p *SourcePresenter) Reset() {
	if p == nil || p.machine == nil {
		return
	}
	p.machine.Reset()
	p.status.Set("")
}

// TogglePlay starts or pauses the active video.
func (p *SourcePresenter) TogglePlay() {
	if p == nil || p.machine == nil {
		return
	}
	st := p.machine.Snapshot()
	if err := p.machine.SetPlaying(!st.Playing); err != nil {
		if errors.Is(err, viewstate.ErrNotVideo) {
			p.status.Set("Nothing to play")
		} else {
			p.status.Set("Playback failed")
			p.logf("playback", err)
		}
	}
}

// ToggleLive flips the live overlay request. Turning it on without a
// playing video is ignored and explained on the status line.
func (p *SourcePresenter) ToggleLive() {
	if p == nil || p.machine == nil {
		return
	}
	st := p.machine.Snapshot()
	want := !st.LiveOverlayRequested
	if got := p.machine.SetLiveOverlay(want); want && !got {
		p.status.Set("Live overlay needs a playing video or webcam")
	}
}

// Tick collects answered webcam requests and syncs the toggles.
func (p *SourcePresenter) Tick(now time.Time) {
	if p == nil || p.machine == nil {
		return
	}
	kept := p.pending[:0]
	for _, ch := range p.pending {
		select {
		case err, ok := <-ch:
			if ok {
				p.onWebcam(err)
			}
		default:
			kept = append(kept, ch)
		}
	}
	for i := len(kept); i < len(p.pending); i++ {
		p.pending[i] = nil
	}
	p.pending = kept

	if p.view == nil {
		return
	}
	st := p.machine.Snapshot()
	if !p.synced || st.Playing != p.shownPlaying {
		p.view.SetPlaying(st.Playing)
		p.shownPlaying = st.Playing
	}
	if !p.synced || st.LiveOverlayEnabled != p.shownLive {
		p.view.SetLiveOverlay(st.LiveOverlayEnabled)
		p.shownLive = st.LiveOverlayEnabled
	}
	p.synced = true
}

// Pending reports how many webcam requests are still unanswered.
func (p *SourcePresenter) Pending() int {
	if p == nil {
		return 0
	}
	return len(p.pending)
}

func (p *SourcePresenter) onWebcam(err error) {
	switch {
	case err == nil:
		p.status.Set("Webcam active")
	case errors.Is(err, viewstate.ErrStaleRequest):
	default:
		p.status.Set(fmt.Sprintf("Webcam unavailable: %v", err))
		p.logf("webcam", err)
	}
}

func (p *SourcePresenter) logf(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "error", err)
	}
}
