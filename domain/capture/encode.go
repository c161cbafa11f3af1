package capture

import (
	"bytes"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/detection"
)

// Encoding buffers are reused across frames; a live loop encodes one frame
// per interval and the buffers quickly settle at the frame size.
var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// EncodeJPEG encodes img for upload. The returned data is owned by the caller.
func EncodeJPEG(img image.Image, quality int) (detection.Image, error) {
	if img == nil {
		return detection.Image{}, errors.New("encode: nil image")
	}
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return detection.Image{}, errors.Wrap(err, "encode jpeg")
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return detection.Image{Name: "frame.jpg", ContentType: "image/jpeg", Data: data}, nil
}

// JPEGEncoder adapts EncodeJPEG to the sampling loop encoder signature.
func JPEGEncoder(quality int) func(image.Image) (detection.Image, error) {
	return func(img image.Image) (detection.Image, error) { return EncodeJPEG(img, quality) }
}
