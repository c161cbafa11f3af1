package capture

import (
	"image"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/vova616/screenshot"
)

// ScreenDevice is the camera device name that captures the primary screen.
const ScreenDevice = "screen"

var errStreamStopped = errors.New("capture: stream stopped")

// ScreenStream treats the primary monitor as a camera.
type ScreenStream struct {
	rect    image.Rectangle
	stopped atomic.Bool
}

// OpenScreen probes the screen bounds and returns a stream.
func OpenScreen() (*ScreenStream, error) {
	rect, err := screenshot.ScreenRect()
	if err != nil {
		return nil, errors.Wrap(err, "screen bounds")
	}
	if rect.Empty() {
		return nil, errors.New("capture: empty screen")
	}
	return &ScreenStream{rect: rect}, nil
}

func (s *ScreenStream) Read() (image.Image, error) {
	if s.stopped.Load() {
		return nil, errStreamStopped
	}
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *ScreenStream) Size() (int, int) { return s.rect.Dx(), s.rect.Dy() }

func (s *ScreenStream) Close() error { return nil }

// Stop turns the stream off. Further reads fail.
func (s *ScreenStream) Stop() error {
	s.stopped.Store(true)
	return nil
}
