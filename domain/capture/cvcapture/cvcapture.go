// Package cvcapture decodes video files and camera devices with OpenCV.
package cvcapture

import (
	"context"
	"image"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/soocke/vision-live-go/domain/capture"
	"github.com/soocke/vision-live-go/domain/media"
)

// Reader wraps a gocv.VideoCapture.
type Reader struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	file   bool
	closed bool
	w, h   int
}

func newReader(vc *gocv.VideoCapture, file bool) *Reader {
	return &Reader{
		vc:   vc,
		mat:  gocv.NewMat(),
		file: file,
		w:    int(vc.Get(gocv.VideoCaptureFrameWidth)),
		h:    int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// OpenVideoFile opens a local video for frame-by-frame decoding.
func OpenVideoFile(path string) (media.FrameReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video %s", path)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("open video %s: not opened", path)
	}
	return newReader(vc, true), nil
}

// OpenDevice opens a camera by numeric id.
func OpenDevice(id int) (*Reader, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %d", id)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("open camera %d: device busy or missing", id)
	}
	return newReader(vc, false), nil
}

// Read decodes the next frame. Files return io.EOF at their end.
func (r *Reader) Read() (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, io.ErrClosedPipe
	}
	if ok := r.vc.Read(&r.mat); !ok || r.mat.Empty() {
		if r.file {
			return nil, io.EOF
		}
		return nil, errors.New("camera returned no frame")
	}
	img, err := r.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	b := img.Bounds()
	r.w, r.h = b.Dx(), b.Dy()
	return img, nil
}

func (r *Reader) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.mat.Close()
	return r.vc.Close()
}

// Stop releases the camera. It is the stream's externally visible "off".
func (r *Reader) Stop() error { return r.Close() }

// Cameras opens camera streams. The device "screen" captures the primary
// monitor instead of a camera.
type Cameras struct {
	Logger *slog.Logger
}

// Open acquires device. Opening a camera can take a few seconds, so the
// result is abandoned when ctx ends first.
func (c Cameras) Open(ctx context.Context, device string) (media.Stream, error) {
	device = strings.TrimSpace(device)
	if device == capture.ScreenDevice {
		s, err := capture.OpenScreen()
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	id, err := strconv.Atoi(device)
	if err != nil {
		return nil, errors.Errorf("camera device %q is neither a number nor %q", device, capture.ScreenDevice)
	}
	type result struct {
		r   *Reader
		err error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := OpenDevice(id)
		ch <- result{r, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if c.Logger != nil {
			w, h := res.r.Size()
			c.Logger.Info("camera opened", "device", id, "width", w, "height", h)
		}
		return res.r, nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.r != nil {
				_ = res.r.Stop()
			}
		}()
		return nil, ctx.Err()
	}
}
