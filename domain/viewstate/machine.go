// Package viewstate owns the active media source and applies the side
// effects of switching between sources.
package viewstate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/soocke/vision-live-go/domain/lifecycle"
	"github.com/soocke/vision-live-go/domain/media"
)

var (
	ErrInvalidURL   = errors.New("invalid snapshot url")
	ErrStaleRequest = errors.New("stale webcam request")
	ErrUnknownAsset = errors.New("unknown demo asset")
	ErrNotVideo     = errors.New("source is not video-like")
	ErrClosed       = errors.New("view state closed")
)

// CameraProvider acquires camera streams. Open may block until the device
// is granted or refused.
type CameraProvider interface {
	Open(ctx context.Context, device string) (media.Stream, error)
}

// DemoCatalog resolves pre-registered demo assets.
type DemoCatalog interface {
	Asset(id string) (media.DemoAsset, bool)
}

// Sampler is the live sampling loop.
type Sampler interface {
	Cancel()
}

// Results holds the current detection results.
type Results interface {
	Clear()
}

// Player plays video-like sources.
type Player interface {
	Play(src media.Source) error
	Pause()
	Stop()
}

// Deps are the collaborators of a Machine. Sampler, Results and Player may
// be nil.
type Deps struct {
	Resources    *lifecycle.Manager
	URLs         *lifecycle.URLRegistry
	Cameras      CameraProvider
	Demo         DemoCatalog
	Sampler      Sampler
	Results      Results
	Player       Player
	MaxFileBytes int64
	Logger       *slog.Logger
}

// State is a read-only snapshot of the machine.
type State struct {
	Source               media.Source
	Kind                 media.Kind
	Playing              bool
	LiveOverlayRequested bool
	LiveOverlayEnabled   bool
	WebcamPending        bool
}

type event struct {
	prev, next media.Kind
}

// Machine is the source state machine. Every transition goes through enter.
type Machine struct {
	deps Deps

	mu               sync.Mutex
	active           media.Source
	playing          bool
	overlayRequested bool
	webcamToken      uint64
	webcamPending    bool
	closed           bool
	listeners        []func(prev, next media.Kind)
}

// New returns a machine with no active source.
func New(deps Deps) *Machine {
	if deps.Resources == nil {
		deps.Resources = lifecycle.NewManager(deps.Logger)
	}
	if deps.URLs == nil {
		deps.URLs = lifecycle.NewURLRegistry(deps.Resources)
	}
	return &Machine{deps: deps}
}

// AddListener registers fn for kind changes. Same-kind replacements do not fire.
func (m *Machine) AddListener(fn func(prev, next media.Kind)) {
	if m == nil || fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// SelectFile makes a local file the active source. Unsupported or oversize
// files are rejected without touching the current state.
func (m *Machine) SelectFile(path, mimeType string, size int64) error {
	class, err := media.Classify(path, mimeType)
	if err != nil {
		return err
	}
	if err := media.CheckSize(size, m.deps.MaxFileBytes); err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	h := m.deps.URLs.Create(path)
	ev := m.enterLocked(media.LocalFileSource{
		URL:   h,
		Path:  path,
		Name:  baseName(path),
		Class: class,
		Size:  size,
	})
	m.mu.Unlock()
	m.emit(ev)
	return nil
}

// EnterSnapshotURL shows a remote still image. Only http and https URLs are accepted.
func (m *Machine) EnterSnapshotURL(raw string) error {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q", raw)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	ev := m.enterLocked(media.SnapshotURLSource{URL: u.String()})
	m.mu.Unlock()
	m.emit(ev)
	return nil
}

// SelectDemo activates a demo asset.
func (m *Machine) SelectDemo(id string) error {
	if m.deps.Demo == nil {
		return errors.Wrap(ErrUnknownAsset, id)
	}
	if _, ok := m.deps.Demo.Asset(id); !ok {
		return errors.Wrap(ErrUnknownAsset, id)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	ev := m.enterLocked(media.DemoSource{AssetID: id})
	m.mu.Unlock()
	m.emit(ev)
	return nil
}

// RequestWebcam asks for a camera stream in the background. The returned
// channel yields exactly one value: nil once the webcam is active, the
// acquisition error (state unchanged), or ErrStaleRequest when another
// transition happened first.
func (m *Machine) RequestWebcam(ctx context.Context, device string) <-chan error {
	out := make(chan error, 1)
	m.mu.Lock()
	if m.closed || m.deps.Cameras == nil {
		m.mu.Unlock()
		out <- ErrClosed
		close(out)
		return out
	}
	m.webcamToken++
	token := m.webcamToken
	m.webcamPending = true
	m.mu.Unlock()

	go func() {
		defer close(out)
		stream, err := m.deps.Cameras.Open(ctx, device)
		out <- m.completeWebcam(token, device, stream, err)
	}()
	return out
}

func (m *Machine) completeWebcam(token uint64, device string, stream media.Stream, err error) error {
	m.mu.Lock()
	if token != m.webcamToken || m.closed {
		m.mu.Unlock()
		if stream != nil {
			if serr := stream.Stop(); serr != nil && m.deps.Logger != nil {
				m.deps.Logger.Warn("stop stale stream", "error", serr)
			}
		}
		if m.deps.Logger != nil {
			m.deps.Logger.Debug("webcam completion discarded", "device", device)
		}
		return ErrStaleRequest
	}
	m.webcamPending = false
	if err != nil {
		m.mu.Unlock()
		if m.deps.Logger != nil {
			m.deps.Logger.Warn("webcam unavailable", "device", device, "error", err)
		}
		return errors.Wrapf(err, "open camera %s", device)
	}
	h := m.deps.Resources.Track(lifecycle.KindCameraStream, stream.Stop)
	src := media.WebcamSource{Handle: h, Stream: stream, Device: device}
	ev := m.enterLocked(src)
	// A granted camera starts playing right away.
	if m.deps.Player != nil {
		if perr := m.deps.Player.Play(src); perr != nil {
			if m.deps.Logger != nil {
				m.deps.Logger.Warn("webcam playback", "error", perr)
			}
		} else {
			m.playing = true
		}
	} else {
		m.playing = true
	}
	m.mu.Unlock()
	m.emit(ev)
	return nil
}

// Reset returns to the empty state, releasing everything the source owned.
func (m *Machine) Reset() {
	m.mu.Lock()
	ev := m.enterLocked(nil)
	m.mu.Unlock()
	m.emit(ev)
}

// Close resets the machine, refuses further transitions and releases any
// handle still tracked.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	ev := m.enterLocked(nil)
	m.closed = true
	m.mu.Unlock()
	m.emit(ev)
	return m.deps.Resources.ReleaseAll()
}

// SetPlaying starts or pauses playback. Only video-like sources can play.
func (m *Machine) SetPlaying(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !on {
		if m.playing && m.deps.Player != nil {
			m.deps.Player.Pause()
		}
		m.playing = false
		return nil
	}
	if m.active == nil || !m.active.VideoLike() {
		return ErrNotVideo
	}
	if m.playing {
		return nil
	}
	if m.deps.Player != nil {
		if err := m.deps.Player.Play(m.active); err != nil {
			return err
		}
	}
	m.playing = true
	return nil
}

// SetLiveOverlay records the live overlay request and returns whether it is
// now in effect. Enabling it while no video-like source is playing is ignored.
func (m *Machine) SetLiveOverlay(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !on {
		if m.overlayRequested && m.deps.Sampler != nil {
			m.deps.Sampler.Cancel()
		}
		m.overlayRequested = false
		return false
	}
	if !m.liveEligibleLocked(true) {
		if m.deps.Logger != nil {
			m.deps.Logger.Debug("live overlay request ignored", "kind", kindOf(m.active).String(), "playing", m.playing)
		}
		return false
	}
	m.overlayRequested = true
	return true
}

// LiveEligible reports whether the sampling loop may run.
func (m *Machine) LiveEligible() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveEligibleLocked(m.overlayRequested)
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Source:               m.active,
		Kind:                 kindOf(m.active),
		Playing:              m.playing,
		LiveOverlayRequested: m.overlayRequested,
		LiveOverlayEnabled:   m.liveEligibleLocked(m.overlayRequested),
		WebcamPending:        m.webcamPending,
	}
}

// Resources exposes the lifecycle manager for diagnostics.
func (m *Machine) Resources() *lifecycle.Manager { return m.deps.Resources }

func (m *Machine) liveEligibleLocked(requested bool) bool {
	return requested && m.playing && m.active != nil && m.active.VideoLike()
}

// enterLocked is the single transition function.
func (m *Machine) enterLocked(next media.Source) event {
	prev := m.active
	if m.deps.Sampler != nil {
		m.deps.Sampler.Cancel()
	}
	if m.deps.Player != nil {
		m.deps.Player.Stop()
	}
	if m.deps.Results != nil {
		m.deps.Results.Clear()
	}
	if err := m.releaseLocked(prev); err != nil && m.deps.Logger != nil {
		m.deps.Logger.Error("release previous source", "kind", kindOf(prev).String(), "error", err)
	}
	m.playing = false
	m.overlayRequested = false
	m.webcamToken++
	m.webcamPending = false
	m.active = next
	if m.deps.Logger != nil {
		m.deps.Logger.Info("source changed", "from", kindOf(prev).String(), "to", kindOf(next).String())
	}
	return event{prev: kindOf(prev), next: kindOf(next)}
}

func (m *Machine) releaseLocked(src media.Source) error {
	var err error
	switch s := src.(type) {
	case media.LocalFileSource:
		err = multierr.Append(err, m.deps.URLs.Revoke(s.URL))
	case media.WebcamSource:
		err = multierr.Append(err, m.deps.Resources.Release(s.Handle))
	}
	return err
}

func (m *Machine) emit(ev event) {
	if ev.prev == ev.next {
		return
	}
	m.mu.Lock()
	ls := append([]func(prev, next media.Kind){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(ev.prev, ev.next)
	}
}

func kindOf(src media.Source) media.Kind {
	if src == nil {
		return media.None
	}
	return src.Kind()
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
