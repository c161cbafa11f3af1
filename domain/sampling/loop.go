// Package sampling runs the throttled, cancelable live detection loop.
//
// The loop is driven by the UI tick. Each tick drains finished detector
// calls, applies the ones that still belong to the current epoch and, when
// the source is eligible, submits at most one new frame per interval.
package sampling

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/soocke/vision-live-go/domain/detection"
)

// Gate tells the loop whether live sampling is allowed right now.
type Gate interface {
	LiveEligible() bool
}

// FrameSource exposes the most recent decoded frame and its sequence.
type FrameSource interface {
	Latest() (img image.Image, seq uint64, ok bool)
}

// Sink receives accepted results. Implementations must not call back into the loop.
type Sink interface {
	Apply(boxes []detection.Box, epoch, seq uint64)
}

// Encoder turns a frame into an uploadable image.
type Encoder func(image.Image) (detection.Image, error)

// Options configure a Loop.
type Options struct {
	Interval       time.Duration // minimum gap between two live submissions
	RequestTimeout time.Duration // 0 means no per-request timeout
	BackoffMax     time.Duration // 0 disables failure backoff
	BackoffJitter  float64
	Weight         func() string
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Epoch        uint64
	Submitted    uint64
	Returned     uint64
	Applied      uint64
	DroppedStale uint64
	Failures     uint64
	InFlight     bool
	Suspended    bool
	RetryAt      time.Time
}

type completion struct {
	epoch   uint64
	seq     uint64
	oneShot bool
	boxes   []detection.Box
	err     error
}

// Loop is the sampling loop. Tick, Cancel and DetectOnce may be called from
// any goroutine; results are only applied inside Tick.
type Loop struct {
	clk    clock.Clock
	det    detection.Detector
	frames FrameSource
	encode Encoder
	gate   Gate
	sink   Sink
	logger *slog.Logger
	opts   Options

	mu          sync.Mutex
	limiter     *rate.Limiter
	bo          *backoff.ExponentialBackOff
	epoch       uint64
	seq         uint64
	lastApplied uint64
	lastFrame   uint64
	inflight    bool
	retryAt     time.Time
	cancels     map[uint64]context.CancelFunc
	pending     []completion
	stats       Stats
}

// New builds a loop. clk may be nil to use the wall clock.
func New(clk clock.Clock, det detection.Detector, frames FrameSource, encode Encoder, gate Gate, sink Sink, opts Options, logger *slog.Logger) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Weight == nil {
		opts.Weight = func() string { return "" }
	}
	l := &Loop{
		clk: clk, det: det, frames: frames, encode: encode, gate: gate, sink: sink,
		logger:  logger,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
		cancels: make(map[uint64]context.CancelFunc),
		epoch:   1,
	}
	if opts.BackoffMax > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = opts.Interval
		bo.MaxInterval = opts.BackoffMax
		bo.MaxElapsedTime = 0
		bo.RandomizationFactor = opts.BackoffJitter
		bo.Clock = clk
		bo.Reset()
		l.bo = bo
	}
	return l
}

// ErrBusy is returned by DetectOnce while a submission is in flight or the
// current window already had one.
var ErrBusy = errors.New("sampling: detector busy")

// Tick drains completions and, if allowed, submits the latest frame.
func (l *Loop) Tick(now time.Time) {
	if l == nil {
		return
	}
	// The gate takes its own lock and may call Cancel, so ask it outside
	// l.mu. A transition in between bumps the epoch; skip submitting then.
	l.mu.Lock()
	epoch := l.epoch
	l.mu.Unlock()
	eligible := l.gate == nil || l.gate.LiveEligible()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch {
		eligible = false
	}
	l.drainLocked(now)
	l.stats.Suspended = !eligible
	if !eligible || l.inflight || l.frames == nil {
		return
	}
	if now.Before(l.retryAt) {
		return
	}
	if l.limiter.TokensAt(now) < 1 {
		return
	}
	img, frameSeq, ok := l.frames.Latest()
	if !ok || img == nil || frameSeq == l.lastFrame {
		return
	}
	if !l.limiter.AllowN(now, 1) {
		return
	}
	l.lastFrame = frameSeq
	l.startLocked(false, func() (detection.Image, error) {
		if l.encode == nil {
			return detection.Image{}, errors.New("no frame encoder")
		}
		return l.encode(img)
	})
}

// DetectOnce submits a single encoded image. It shares the in-flight slot
// and the interval with live sampling and returns ErrBusy when either is
// taken. Failures do not feed the live backoff.
func (l *Loop) DetectOnce(img detection.Image) (uint64, error) {
	if l == nil {
		return 0, ErrBusy
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight || !l.limiter.AllowN(l.clk.Now(), 1) {
		return 0, ErrBusy
	}
	return l.startLocked(true, func() (detection.Image, error) { return img, nil }), nil
}

// Cancel invalidates everything submitted so far. Results of calls still in
// flight are discarded when they return.
func (l *Loop) Cancel() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	for seq, cancel := range l.cancels {
		cancel()
		delete(l.cancels, seq)
	}
	l.stats.DroppedStale += uint64(len(l.pending))
	l.pending = nil
	l.inflight = false
	l.lastFrame = 0
	l.retryAt = time.Time{}
	if l.bo != nil {
		l.bo.Reset()
	}
	if l.logger != nil {
		l.logger.Debug("sampling cancelled", "epoch", l.epoch)
	}
}

// Stats returns a copy of the counters.
func (l *Loop) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Epoch = l.epoch
	s.InFlight = l.inflight
	s.RetryAt = l.retryAt
	return s
}

func (l *Loop) startLocked(oneShot bool, prepare func() (detection.Image, error)) uint64 {
	l.seq++
	seq, epoch := l.seq, l.epoch
	ctx, cancel := context.WithCancel(context.Background())
	if l.opts.RequestTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = l.clk.WithTimeout(ctx, l.opts.RequestTimeout)
		inner := cancel
		cancel = func() { tcancel(); inner() }
	}
	l.cancels[seq] = cancel
	l.inflight = true
	l.stats.Submitted++
	weight := l.opts.Weight()
	go l.run(ctx, epoch, seq, oneShot, weight, prepare)
	return seq
}

func (l *Loop) run(ctx context.Context, epoch, seq uint64, oneShot bool, weight string, prepare func() (detection.Image, error)) {
	c := completion{epoch: epoch, seq: seq, oneShot: oneShot}
	defer func() {
		if r := recover(); r != nil {
			if l.logger != nil {
				l.logger.Error("panic in detector call", "recover", r)
			}
			c.err = errors.Errorf("detector panic: %v", r)
			c.boxes = nil
		}
		l.complete(c)
	}()
	img, err := prepare()
	if err != nil {
		c.err = err
		return
	}
	c.boxes, c.err = l.det.Detect(ctx, img, weight)
}

func (l *Loop) complete(c completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Returned++
	if cancel, ok := l.cancels[c.seq]; ok {
		cancel()
		delete(l.cancels, c.seq)
	}
	if c.epoch != l.epoch {
		l.stats.DroppedStale++
		return
	}
	l.inflight = false
	l.pending = append(l.pending, c)
}

func (l *Loop) drainLocked(now time.Time) {
	for _, c := range l.pending {
		if c.epoch != l.epoch {
			l.stats.DroppedStale++
			continue
		}
		if c.err != nil {
			l.stats.Failures++
			if l.bo != nil && !c.oneShot {
				l.retryAt = now.Add(l.bo.NextBackOff())
			}
			if l.logger != nil {
				l.logger.Warn("detection failed", "seq", c.seq, "error", c.err, "retry_at", l.retryAt)
			}
			continue
		}
		if c.seq <= l.lastApplied {
			l.stats.DroppedStale++
			continue
		}
		l.lastApplied = c.seq
		l.stats.Applied++
		if !c.oneShot {
			if l.bo != nil {
				l.bo.Reset()
			}
			l.retryAt = time.Time{}
		}
		if l.sink != nil {
			l.sink.Apply(c.boxes, c.epoch, c.seq)
		}
	}
	l.pending = l.pending[:0]
}
