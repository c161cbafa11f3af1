package sampling

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/soocke/vision-live-go/domain/detection"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type call struct {
	ctx    context.Context
	img    detection.Image
	weight string
	done   chan result
}

type result struct {
	boxes []detection.Box
	err   error
}

type fakeDetector struct {
	auto  func() ([]detection.Box, error)
	calls chan *call
}

func newFakeDetector() *fakeDetector { return &fakeDetector{calls: make(chan *call, 8)} }

func (f *fakeDetector) Detect(ctx context.Context, img detection.Image, weight string) ([]detection.Box, error) {
	if f.auto != nil {
		return f.auto()
	}
	c := &call{ctx: ctx, img: img, weight: weight, done: make(chan result, 1)}
	f.calls <- c
	select {
	case r := <-c.done:
		return r.boxes, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeDetector) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for detector call")
		return nil
	}
}

type fakeFrames struct {
	seq atomic.Uint64
}

func (f *fakeFrames) Latest() (image.Image, uint64, bool) {
	s := f.seq.Load()
	if s == 0 {
		return nil, 0, false
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), s, true
}

type fakeGate struct{ on atomic.Bool }

func (g *fakeGate) LiveEligible() bool { return g.on.Load() }

type applied struct {
	boxes      []detection.Box
	epoch, seq uint64
}

type recordingSink struct {
	mu  sync.Mutex
	got []applied
}

func (s *recordingSink) Apply(boxes []detection.Box, epoch, seq uint64) {
	s.mu.Lock()
	s.got = append(s.got, applied{boxes, epoch, seq})
	s.mu.Unlock()
}

func (s *recordingSink) all() []applied {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]applied(nil), s.got...)
}

func encodeStub(image.Image) (detection.Image, error) {
	return detection.Image{Name: "frame.jpg", ContentType: "image/jpeg", Data: []byte{1}}, nil
}

type harness struct {
	clk    *clock.Mock
	det    *fakeDetector
	frames *fakeFrames
	gate   *fakeGate
	sink   *recordingSink
	loop   *Loop
}

func newHarness(opts Options) *harness {
	h := &harness{
		clk:    clock.NewMock(),
		det:    newFakeDetector(),
		frames: &fakeFrames{},
		gate:   &fakeGate{},
		sink:   &recordingSink{},
	}
	h.gate.on.Store(true)
	h.frames.seq.Store(1)
	if opts.Interval == 0 {
		opts.Interval = 500 * time.Millisecond
	}
	h.loop = New(h.clk, h.det, h.frames, encodeStub, h.gate, h.sink, opts, discardLogger())
	return h
}

func (h *harness) tick() { h.loop.Tick(h.clk.Now()) }

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

func TestTick_AtMostOneSubmissionPerWindow(t *testing.T) {
	h := newHarness(Options{})
	h.det.auto = func() ([]detection.Box, error) { return nil, nil }

	// 2s of 16ms display ticks with a fresh frame every tick.
	for i := 0; i < 125; i++ {
		h.frames.seq.Add(1)
		h.tick()
		sub := h.loop.Stats().Submitted
		waitFor(t, func() bool { return h.loop.Stats().Returned == sub })
		h.clk.Add(16 * time.Millisecond)
	}
	got := h.loop.Stats().Submitted
	if got < 4 || got > 5 {
		t.Fatalf("expected 4-5 submissions in 2s with W=500ms, got %d", got)
	}
}

func TestTick_OneInFlight(t *testing.T) {
	h := newHarness(Options{})
	h.tick()
	c := h.det.next(t)

	h.clk.Add(time.Second)
	h.frames.seq.Add(1)
	h.tick()
	if s := h.loop.Stats(); s.Submitted != 1 || !s.InFlight {
		t.Fatalf("second submission while one in flight: %+v", s)
	}
	c.done <- result{boxes: []detection.Box{{Label: "car", Confidence: 0.9, Box: [4]float64{0, 0, 1, 1}}}}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	if n := len(h.sink.all()); n != 1 {
		t.Fatalf("expected result applied, got %d", n)
	}
	if h.loop.Stats().Submitted != 2 {
		t.Fatalf("expected a new submission once the slot is free")
	}
}

func TestCancel_DropsLateResult(t *testing.T) {
	h := newHarness(Options{})
	h.tick()
	c := h.det.next(t)

	h.loop.Cancel()
	if c.ctx.Err() == nil {
		t.Fatal("in-flight context not cancelled")
	}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	h.tick()
	for _, a := range h.sink.all() {
		if a.epoch == 1 {
			t.Fatalf("result from cancelled epoch applied: %+v", a)
		}
	}
	if s := h.loop.Stats(); s.DroppedStale != 1 || s.Epoch != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestCancel_DropsPendingCompletion(t *testing.T) {
	h := newHarness(Options{})
	h.tick()
	c := h.det.next(t)
	c.done <- result{boxes: []detection.Box{{Label: "person", Confidence: 0.8, Box: [4]float64{0, 0, 2, 2}}}}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })

	// Completed but not yet drained: the cancel wins.
	h.loop.Cancel()
	h.tick()
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("pending completion applied after cancel")
	}
}

func TestDrain_OutOfOrderKeepsLaterSubmission(t *testing.T) {
	h := newHarness(Options{})
	h.gate.on.Store(false)

	// Completions arrive in reverse submission order.
	h.loop.mu.Lock()
	h.loop.pending = append(h.loop.pending,
		completion{epoch: 1, seq: 2, boxes: []detection.Box{{Label: "second", Confidence: 0.5, Box: [4]float64{0, 0, 1, 1}}}},
		completion{epoch: 1, seq: 1, boxes: []detection.Box{{Label: "first", Confidence: 0.5, Box: [4]float64{0, 0, 1, 1}}}},
	)
	h.loop.mu.Unlock()
	h.tick()

	got := h.sink.all()
	if len(got) != 1 || got[0].seq != 2 || got[0].boxes[0].Label != "second" {
		t.Fatalf("expected only the later submission, got %+v", got)
	}
	if h.loop.Stats().DroppedStale != 1 {
		t.Fatalf("expected earlier result dropped")
	}
}

func TestDetectOnce_SharesWindowWithTick(t *testing.T) {
	h := newHarness(Options{})
	h.tick()
	c := h.det.next(t)

	for i := 0; i < 3; i++ {
		if _, err := h.loop.DetectOnce(detection.Image{Name: "still.jpg"}); !errors.Is(err, ErrBusy) {
			t.Fatalf("one-shot %d accepted while live submission in flight: %v", i, err)
		}
	}
	c.done <- result{}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()

	// Slot is free but the window is spent.
	if _, err := h.loop.DetectOnce(detection.Image{Name: "still.jpg"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("one-shot accepted in the same window: %v", err)
	}
	if s := h.loop.Stats(); s.Submitted != 1 {
		t.Fatalf("submitted within one window: %d", s.Submitted)
	}

	h.gate.on.Store(false)
	h.clk.Add(500 * time.Millisecond)
	seq, err := h.loop.DetectOnce(detection.Image{Name: "still.jpg"})
	if err != nil || seq != 2 {
		t.Fatalf("one-shot refused in a fresh window: seq=%d err=%v", seq, err)
	}
	if !h.loop.Stats().InFlight {
		t.Fatal("one-shot should occupy the in-flight slot")
	}
}

func TestDetectOnce_RefusedWhileOneShotInFlight(t *testing.T) {
	h := newHarness(Options{})
	h.gate.on.Store(false)
	if _, err := h.loop.DetectOnce(detection.Image{Name: "a.jpg"}); err != nil {
		t.Fatalf("first one-shot: %v", err)
	}
	c := h.det.next(t)
	h.clk.Add(time.Second)
	if _, err := h.loop.DetectOnce(detection.Image{Name: "b.jpg"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second one-shot accepted while first in flight: %v", err)
	}
	c.done <- result{boxes: []detection.Box{{Label: "cup", Confidence: 0.7, Box: [4]float64{0, 0, 1, 1}}}}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	if got := h.sink.all(); len(got) != 1 || got[0].seq != 1 {
		t.Fatalf("one-shot result not applied: %+v", got)
	}
}

func TestDetectOnce_FailureLeavesLiveBackoffAlone(t *testing.T) {
	h := newHarness(Options{BackoffMax: 4 * time.Second})
	h.gate.on.Store(false)
	h.det.auto = func() ([]detection.Box, error) { return nil, errors.New("503") }
	if _, err := h.loop.DetectOnce(detection.Image{Name: "a.jpg"}); err != nil {
		t.Fatalf("one-shot: %v", err)
	}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	if s := h.loop.Stats(); s.Failures != 1 || !s.RetryAt.IsZero() {
		t.Fatalf("one-shot failure touched live backoff: %+v", s)
	}

	h.det.auto = func() ([]detection.Box, error) { return nil, nil }
	h.gate.on.Store(true)
	h.clk.Add(500 * time.Millisecond)
	h.frames.seq.Add(1)
	h.tick()
	if h.loop.Stats().Submitted != 2 {
		t.Fatal("live sampling held back by a one-shot failure")
	}
}

type cancellingGate struct {
	loop *Loop
}

// LiveEligible simulates a source switch landing while Tick consults the gate.
func (g *cancellingGate) LiveEligible() bool {
	g.loop.Cancel()
	return true
}

func TestTick_TransitionDuringGateSkipsSubmission(t *testing.T) {
	h := newHarness(Options{})
	gate := &cancellingGate{}
	h.loop = New(h.clk, h.det, h.frames, encodeStub, gate, h.sink, Options{Interval: 500 * time.Millisecond}, discardLogger())
	gate.loop = h.loop
	h.tick()
	if s := h.loop.Stats(); s.Submitted != 0 || !s.Suspended {
		t.Fatalf("submitted across an epoch change: %+v", s)
	}
}

func TestTick_FailureIsSwallowed(t *testing.T) {
	h := newHarness(Options{})
	h.det.auto = func() ([]detection.Box, error) { return nil, errors.New("503") }
	h.tick()
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	if s := h.loop.Stats(); s.Failures != 1 || s.InFlight {
		t.Fatalf("unexpected stats after failure %+v", s)
	}

	h.det.auto = func() ([]detection.Box, error) { return nil, nil }
	h.clk.Add(500 * time.Millisecond)
	h.frames.seq.Add(1)
	h.tick()
	if h.loop.Stats().Submitted != 2 {
		t.Fatalf("loop did not continue after failure")
	}
}

func TestTick_BackoffAfterConsecutiveFailures(t *testing.T) {
	h := newHarness(Options{BackoffMax: 4 * time.Second})
	h.det.auto = func() ([]detection.Box, error) { return nil, errors.New("timeout") }

	h.tick()
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.tick()
	start := h.clk.Now()
	if got := h.loop.Stats().RetryAt; !got.Equal(start.Add(500 * time.Millisecond)) {
		t.Fatalf("first retry at %v, want +500ms", got.Sub(start))
	}

	h.frames.seq.Add(1)
	h.clk.Add(499 * time.Millisecond)
	h.tick()
	if h.loop.Stats().Submitted != 1 {
		t.Fatal("submitted before backoff elapsed")
	}
	h.clk.Add(time.Millisecond)
	h.tick()
	if h.loop.Stats().Submitted != 2 {
		t.Fatal("no submission after backoff elapsed")
	}
	waitFor(t, func() bool { return h.loop.Stats().Returned == 2 })
	h.tick()
	now := h.clk.Now()
	if got := h.loop.Stats().RetryAt; !got.Equal(now.Add(750 * time.Millisecond)) {
		t.Fatalf("second retry at %v, want +750ms", got.Sub(now))
	}

	h.det.auto = func() ([]detection.Box, error) { return nil, nil }
	h.clk.Add(750 * time.Millisecond)
	h.frames.seq.Add(1)
	h.tick()
	waitFor(t, func() bool { return h.loop.Stats().Returned == 3 })
	h.tick()
	if s := h.loop.Stats(); !s.RetryAt.IsZero() || s.Applied != 1 {
		t.Fatalf("success should clear backoff: %+v", s)
	}
}

func TestTick_SuspendsWhileNotEligible(t *testing.T) {
	h := newHarness(Options{})
	h.gate.on.Store(false)
	h.tick()
	if s := h.loop.Stats(); s.Submitted != 0 || !s.Suspended {
		t.Fatalf("submitted while suspended: %+v", s)
	}
	h.gate.on.Store(true)
	h.tick()
	if h.loop.Stats().Submitted != 1 {
		t.Fatal("did not resume once eligible")
	}
}

func TestTick_SkipsUnchangedFrame(t *testing.T) {
	h := newHarness(Options{})
	h.det.auto = func() ([]detection.Box, error) { return nil, nil }
	h.tick()
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	h.clk.Add(time.Second)
	h.tick()
	if h.loop.Stats().Submitted != 1 {
		t.Fatal("resubmitted the same frame")
	}
}

func TestTick_RequestTimeout(t *testing.T) {
	h := newHarness(Options{RequestTimeout: time.Second})
	h.tick()
	c := h.det.next(t)
	h.clk.Add(time.Second)
	waitFor(t, func() bool { return h.loop.Stats().Returned == 1 })
	if !errors.Is(c.ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", c.ctx.Err())
	}
	h.tick()
	if h.loop.Stats().Failures != 1 {
		t.Fatal("timeout not counted as failure")
	}
}
