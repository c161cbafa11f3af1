// Package media describes the media sources the viewer can show and the
// frame readers that feed the sampling loop.
package media

import (
	"image"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/lifecycle"
)

// Kind is the discriminant of the active source.
type Kind int

const (
	None Kind = iota
	LocalFile
	SnapshotURL
	Webcam
	Demo
)

func (k Kind) String() string {
	switch k {
	case LocalFile:
		return "local-file"
	case SnapshotURL:
		return "snapshot-url"
	case Webcam:
		return "webcam"
	case Demo:
		return "demo"
	default:
		return "none"
	}
}

// Class separates still images from video.
type Class int

const (
	Image Class = iota + 1
	Video
)

func (c Class) String() string {
	switch c {
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Source is one variant of the media source union.
type Source interface {
	Kind() Kind
	// VideoLike reports whether the source can play and be sampled live.
	VideoLike() bool
}

// LocalFileSource owns an object URL created for a user-selected file.
type LocalFileSource struct {
	URL   lifecycle.Handle
	Path  string
	Name  string
	Class Class
	Size  int64
}

func (LocalFileSource) Kind() Kind        { return LocalFile }
func (s LocalFileSource) VideoLike() bool { return s.Class == Video }

// SnapshotURLSource is a remote still image. It owns nothing.
type SnapshotURLSource struct {
	URL string
}

func (SnapshotURLSource) Kind() Kind      { return SnapshotURL }
func (SnapshotURLSource) VideoLike() bool { return false }

// WebcamSource owns a granted camera stream.
type WebcamSource struct {
	Handle lifecycle.Handle
	Stream Stream
	Device string
}

func (WebcamSource) Kind() Kind      { return Webcam }
func (WebcamSource) VideoLike() bool { return true }

// DemoSource refers to a pre-registered asset.
type DemoSource struct {
	AssetID string
}

func (DemoSource) Kind() Kind      { return Demo }
func (DemoSource) VideoLike() bool { return false }

// FrameReader yields decoded frames from a file or device.
type FrameReader interface {
	Read() (image.Image, error)
	// Size returns the native frame dimensions, zero until known.
	Size() (w, h int)
	Close() error
}

// Stream is a live device reader. Stop turns the device off.
type Stream interface {
	FrameReader
	Stop() error
}

// DemoAsset pairs canned artwork with its detections.
type DemoAsset struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Detections  []detection.Box `json:"detections"`
}
