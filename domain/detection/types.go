// Package detection defines detection results and the detector boundary.
package detection

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedWeight = errors.New("unsupported weight file")
	ErrNoWeights         = errors.New("no weights available")
)

// Box is one detected object in native pixel coordinates. Boxes are never
// mutated after they are produced.
type Box struct {
	Box        [4]float64 `json:"box"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
}

// Valid reports whether the confidence is in [0,1] and the box is non-empty.
func (b Box) Valid() bool {
	if b.Confidence < 0 || b.Confidence > 1 {
		return false
	}
	return b.Box[2] != b.Box[0] && b.Box[3] != b.Box[1]
}

// Image is an encoded frame submitted for inference.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Detector submits an image and returns the detections.
type Detector interface {
	Detect(ctx context.Context, img Image, weight string) ([]Box, error)
}

// WeightCatalog lists and accepts model weights.
type WeightCatalog interface {
	Weights(ctx context.Context) ([]string, error)
	UploadWeight(ctx context.Context, name string, r io.Reader) error
}

// Backend is the full detector service.
type Backend interface {
	Detector
	WeightCatalog
	Close() error
}

var weightExts = map[string]bool{".pt": true, ".onnx": true, ".engine": true}

// ValidWeightName accepts .pt, .onnx and .engine files.
func ValidWeightName(name string) error {
	if weightExts[strings.ToLower(filepath.Ext(name))] {
		return nil
	}
	return errors.Wrap(ErrUnsupportedWeight, filepath.Base(name))
}
