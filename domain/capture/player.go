package capture

import (
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/lifecycle"
	"github.com/soocke/vision-live-go/domain/media"
)

const playbackStatsLogInterval = 5 * time.Second

// FileOpener opens a local video file for decoding.
type FileOpener func(path string) (media.FrameReader, error)

// Player decodes frames of the active video-like source on a background
// goroutine and publishes the latest one. Local files are read through a
// lease on their object URL, so revoking the URL mid-read is safe.
type Player struct {
	logger   *slog.Logger
	res      *lifecycle.Manager
	urls     *lifecycle.URLRegistry
	openFile FileOpener
	interval time.Duration

	mu      sync.Mutex // serialises Play/Stop
	src     media.Source
	reader  media.FrameReader
	owned   bool
	lease   lifecycle.Handle
	stop    chan struct{}
	done    chan struct{}
	w, h    atomic.Int64
	running atomic.Bool
	paused  atomic.Bool
	ended   atomic.Bool

	latest    atomic.Pointer[FrameSnapshot]
	frames    atomic.Uint64
	skipped   atomic.Uint64
	readNanos atomic.Uint64
	sequence  atomic.Uint64
}

// NewPlayer returns a stopped player. fps paces file playback.
func NewPlayer(logger *slog.Logger, res *lifecycle.Manager, urls *lifecycle.URLRegistry, openFile FileOpener, fps float64) *Player {
	if fps <= 0 {
		fps = 30
	}
	return &Player{
		logger:   logger,
		res:      res,
		urls:     urls,
		openFile: openFile,
		interval: time.Duration(float64(time.Second) / fps),
	}
}

// Play starts (or resumes) playback of src. A file that reached its end
// is reopened and plays from the first frame.
func (p *Player) Play(src media.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() && sameSource(p.src, src) && !p.ended.Load() {
		p.paused.Store(false)
		return nil
	}
	p.stopLocked()

	switch s := src.(type) {
	case media.LocalFileSource:
		if s.Class != media.Video {
			return errors.New("capture: local file is not a video")
		}
		if !p.res.Retain(s.URL) {
			return errors.Wrapf(lifecycle.ErrRevoked, "play %s", s.Name)
		}
		path, err := p.urls.Resolve(s.URL)
		if err != nil {
			p.res.Return(s.URL)
			return err
		}
		if p.openFile == nil {
			p.res.Return(s.URL)
			return errors.New("capture: no video decoder")
		}
		r, err := p.openFile(path)
		if err != nil {
			p.res.Return(s.URL)
			return errors.Wrapf(err, "open %s", s.Name)
		}
		p.reader, p.owned, p.lease = r, true, s.URL
	case media.WebcamSource:
		if s.Stream == nil {
			return errors.New("capture: webcam without stream")
		}
		p.reader, p.owned = s.Stream, false
	default:
		return errors.Errorf("capture: %s cannot play", kindName(src))
	}

	p.src = src
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.paused.Store(false)
	p.ended.Store(false)
	p.latest.Store(nil)
	p.w.Store(0)
	p.h.Store(0)
	p.running.Store(true)
	go p.loop(p.reader, p.stop, p.done)
	return nil
}

// Pause holds the current frame.
func (p *Player) Pause() { p.paused.Store(true) }

// Stop ends playback and waits for the decoder goroutine to exit. The
// reader is closed and any lease returned before Stop returns.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	if p.owned && p.reader != nil {
		if err := p.reader.Close(); err != nil && p.logger != nil {
			p.logger.Warn("close reader", "error", err)
		}
	}
	if p.lease != "" {
		p.res.Return(p.lease)
	}
	p.src, p.reader, p.owned, p.lease = nil, nil, false, ""
	p.stop, p.done = nil, nil
	p.running.Store(false)
	p.latest.Store(nil)
}

// Latest returns the freshest frame and its sequence.
func (p *Player) Latest() (image.Image, uint64, bool) {
	snap := p.latest.Load()
	if snap == nil || snap.Image == nil {
		return nil, 0, false
	}
	return snap.Image, snap.Sequence, true
}

// LatestFrame returns the freshest snapshot.
func (p *Player) LatestFrame() FrameSnapshot {
	snap := p.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

// NativeSize reports the dimensions of the decoded frames, zero before the first frame.
func (p *Player) NativeSize() (int, int) { return int(p.w.Load()), int(p.h.Load()) }

// Running reports whether a source is loaded.
func (p *Player) Running() bool { return p.running.Load() }

// Ended reports whether a file reached its end.
func (p *Player) Ended() bool { return p.ended.Load() }

func (p *Player) Stats() PlaybackStats {
	frames := p.frames.Load()
	total := p.readNanos.Load()
	var avg time.Duration
	if frames > 0 && total > 0 {
		avg = time.Duration(total / frames)
	}
	snap := p.LatestFrame()
	age := time.Duration(0)
	if !snap.CapturedAt.IsZero() {
		age = time.Since(snap.CapturedAt)
	}
	return PlaybackStats{
		Frames:         frames,
		Skipped:        p.skipped.Load(),
		AvgRead:        avg,
		LastFrame:      snap.CapturedAt,
		LatestFrameAge: age,
		Sequence:       snap.Sequence,
		Running:        p.running.Load(),
		Paused:         p.paused.Load(),
		Ended:          p.ended.Load(),
	}
}

func (p *Player) loop(r media.FrameReader, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if rec := recover(); rec != nil && p.logger != nil {
			p.logger.Error("panic in playback loop", "recover", rec)
		}
	}()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(playbackStatsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-logTicker.C:
			p.logStats()
			continue
		case <-ticker.C:
		}
		if p.paused.Load() || p.ended.Load() {
			continue
		}
		start := time.Now()
		img, err := r.Read()
		if errors.Is(err, io.EOF) {
			p.ended.Store(true)
			if p.logger != nil {
				p.logger.Debug("playback ended", "frames", p.frames.Load())
			}
			continue
		}
		if err != nil || img == nil {
			p.skipped.Add(1)
			if err != nil && p.logger != nil {
				p.logger.Error("read frame", "error", err)
			}
			continue
		}
		p.readNanos.Add(uint64(time.Since(start).Nanoseconds()))
		p.frames.Add(1)
		b := img.Bounds()
		p.w.Store(int64(b.Dx()))
		p.h.Store(int64(b.Dy()))
		seq := p.sequence.Add(1)
		p.latest.Store(&FrameSnapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})
	}
}

func (p *Player) logStats() {
	if p.logger == nil {
		return
	}
	stats := p.Stats()
	p.logger.Debug("capture.stats",
		"frames", stats.Frames,
		"skipped", stats.Skipped,
		"avg_read", stats.AvgRead,
		"age", stats.LatestFrameAge,
	)
}

func sameSource(a, b media.Source) bool {
	switch x := a.(type) {
	case media.LocalFileSource:
		y, ok := b.(media.LocalFileSource)
		return ok && x.URL == y.URL
	case media.WebcamSource:
		y, ok := b.(media.WebcamSource)
		return ok && x.Handle == y.Handle
	}
	return false
}

func kindName(src media.Source) string {
	if src == nil {
		return media.None.String()
	}
	return src.Kind().String()
}
