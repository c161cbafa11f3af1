package demo

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/soocke/vision-live-go/domain/detection"
)

type sample struct {
	box    [4]float64
	label  string
	base   float64
	spread float64
}

// Three fixed candidates; a detection returns a random non-empty prefix.
var samples = []sample{
	{box: [4]float64{120, 80, 220, 180}, label: "person", base: 0.85, spread: 0.10},
	{box: [4]float64{300, 100, 400, 200}, label: "car", base: 0.80, spread: 0.15},
	{box: [4]float64{50, 150, 150, 250}, label: "bicycle", base: 0.75, spread: 0.20},
}

// Backend combines the catalog with synthetic detection.
type Backend struct {
	*Catalog

	clk      clock.Clock
	minDelay time.Duration
	maxDelay time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// Options tune the synthetic detector.
type Options struct {
	Clock    clock.Clock
	MinDelay time.Duration
	MaxDelay time.Duration
	Seed     uint64
}

// NewBackend wraps catalog. A zero seed picks a time-based one.
func NewBackend(catalog *Catalog, opts Options) *Backend {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Backend{
		Catalog:  catalog,
		clk:      opts.Clock,
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		rnd:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Detect waits the artificial latency and returns synthetic boxes. The
// image content is ignored.
func (b *Backend) Detect(ctx context.Context, img detection.Image, weight string) ([]detection.Box, error) {
	b.mu.Lock()
	delay := b.minDelay
	if span := b.maxDelay - b.minDelay; span > 0 {
		delay += time.Duration(b.rnd.Int64N(int64(span) + 1))
	}
	n := 1 + b.rnd.IntN(len(samples))
	conf := make([]float64, n)
	for i := range conf {
		conf[i] = b.rnd.Float64()
	}
	b.mu.Unlock()

	if delay > 0 {
		t := b.clk.Timer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	out := make([]detection.Box, n)
	for i := 0; i < n; i++ {
		s := samples[i]
		out[i] = detection.Box{Box: s.box, Label: s.label, Confidence: s.base + conf[i]*s.spread}
	}
	return out, nil
}
