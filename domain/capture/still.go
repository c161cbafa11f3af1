package capture

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/lifecycle"
	"github.com/soocke/vision-live-go/domain/media"
)

// Still is a decoded still image together with its original bytes.
type Still struct {
	Image image.Image
	Raw   detection.Image
}

// LoadStill reads a local image file through its object URL. The URL is
// leased for the duration of the read.
func LoadStill(res *lifecycle.Manager, urls *lifecycle.URLRegistry, src media.LocalFileSource, maxBytes int64) (Still, error) {
	if !res.Retain(src.URL) {
		return Still{}, errors.Wrapf(lifecycle.ErrRevoked, "load %s", src.Name)
	}
	defer res.Return(src.URL)
	path, err := urls.Resolve(src.URL)
	if err != nil {
		return Still{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Still{}, errors.Wrapf(err, "open %s", src.Name)
	}
	defer f.Close()
	data, err := readLimited(f, maxBytes)
	if err != nil {
		return Still{}, errors.Wrapf(err, "read %s", src.Name)
	}
	ct := media.DetectMime(src.Name)
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return decodeStill(src.Name, ct, data)
}

// FetchSnapshot downloads a still image for display. The image is never
// played and never sampled live.
func FetchSnapshot(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (Still, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Still{}, errors.Wrap(err, "build snapshot request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return Still{}, errors.Wrap(err, "fetch snapshot")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Still{}, errors.Errorf("snapshot %s: status %d: %s", rawURL, resp.StatusCode, bytes.TrimSpace(excerpt))
	}
	data, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return Still{}, errors.Wrap(err, "read snapshot")
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return decodeStill("snapshot.jpg", ct, data)
}

func decodeStill(name, contentType string, data []byte) (Still, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Still{}, errors.Wrapf(err, "decode %s", name)
	}
	return Still{
		Image: img,
		Raw:   detection.Image{Name: name, ContentType: contentType, Data: data},
	}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, media.CheckSize(int64(len(data)), max)
	}
	return data, nil
}
