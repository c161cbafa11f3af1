package presenter

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/domain/sampling"
	"github.com/soocke/vision-live-go/domain/viewstate"
)

type fakeStream struct{ stopped atomic.Int32 }

func (s *fakeStream) Read() (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 640, 480)), nil }
func (s *fakeStream) Size() (int, int)           { return 640, 480 }
func (s *fakeStream) Close() error               { return nil }
func (s *fakeStream) Stop() error                { s.stopped.Add(1); return nil }

type grant struct {
	stream media.Stream
	err    error
}

type fakeCameras struct{ grants chan grant }

func newCameras() *fakeCameras { return &fakeCameras{grants: make(chan grant, 1)} }

func (c *fakeCameras) Open(ctx context.Context, device string) (media.Stream, error) {
	select {
	case g := <-c.grants:
		return g.stream, g.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type demoAssets map[string]media.DemoAsset

func (d demoAssets) Asset(id string) (media.DemoAsset, bool) {
	a, ok := d[id]
	return a, ok
}

var streetScene = media.DemoAsset{
	ID: "sample1", Name: "Street Scene", Width: 640, Height: 480,
	Detections: []detection.Box{
		{Box: [4]float64{100, 50, 200, 150}, Label: "car", Confidence: 0.92},
		{Box: [4]float64{250, 80, 300, 180}, Label: "person", Confidence: 0.87},
		{Box: [4]float64{350, 60, 450, 160}, Label: "car", Confidence: 0.89},
		{Box: [4]float64{500, 90, 550, 190}, Label: "person", Confidence: 0.82},
	},
}

func newMachine(t *testing.T, cams viewstate.CameraProvider) *viewstate.Machine {
	t.Helper()
	m := viewstate.New(viewstate.Deps{
		Cameras:      cams,
		Demo:         demoAssets{"sample1": streetScene},
		MaxFileBytes: 1 << 20,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// activateWebcam drives the machine into the webcam state.
func activateWebcam(t *testing.T, m *viewstate.Machine, cams *fakeCameras, s *fakeStream) {
	t.Helper()
	cams.grants <- grant{stream: s}
	if err := <-m.RequestWebcam(context.Background(), "0"); err != nil {
		t.Fatalf("webcam: %v", err)
	}
}

func writePNG(t *testing.T, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type mockSourceView struct {
	playing, live []bool
}

func (v *mockSourceView) SetPlaying(b bool)     { v.playing = append(v.playing, b) }
func (v *mockSourceView) SetLiveOverlay(b bool) { v.live = append(v.live, b) }

type mockStateView struct {
	labels, statuses []string
}

func (v *mockStateView) SetStateLabel(s string) { v.labels = append(v.labels, s) }
func (v *mockStateView) SetStatus(s string)     { v.statuses = append(v.statuses, s) }

type mockPreviewView struct {
	w, h    int
	updates []image.Image
	resets  int
	summary string
}

func (v *mockPreviewView) PreviewSize() (int, int)       { return v.w, v.h }
func (v *mockPreviewView) UpdatePreview(img image.Image) { v.updates = append(v.updates, img) }
func (v *mockPreviewView) ResetPreview()                 { v.resets++ }
func (v *mockPreviewView) SetSummary(s string)           { v.summary = s }

type fakeFrames struct {
	mu    sync.Mutex
	img   image.Image
	seq   uint64
	ended bool
}

func (f *fakeFrames) Latest() (image.Image, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img, f.seq, f.img != nil
}

func (f *fakeFrames) Ended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

func (f *fakeFrames) push(img image.Image) {
	f.mu.Lock()
	f.img = img
	f.seq++
	f.mu.Unlock()
}

type mockOneShot struct {
	mu   sync.Mutex
	busy bool
	imgs []detection.Image
}

func (o *mockOneShot) DetectOnce(img detection.Image) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return 0, sampling.ErrBusy
	}
	o.imgs = append(o.imgs, img)
	return uint64(len(o.imgs)), nil
}

func (o *mockOneShot) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.imgs)
}
