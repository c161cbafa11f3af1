package presenter

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/geometry"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/domain/viewstate"
	"github.com/soocke/vision-live-go/ui/images"
	"github.com/soocke/vision-live-go/ui/overlay"
)

// PreviewMachine is what the preview needs from the source machine.
type PreviewMachine interface {
	Snapshot() viewstate.State
	SetPlaying(on bool) error
}

// PlaybackFrames is the player as seen by the preview.
type PlaybackFrames interface {
	Latest() (image.Image, uint64, bool)
	Ended() bool
}

// DetectionResults is the current detection result set.
type DetectionResults interface {
	Boxes() []detection.Box
	Version() uint64
}

// PreviewView displays the composed preview.
type PreviewView interface {
	PreviewSize() (w, h int)
	UpdatePreview(img image.Image)
	ResetPreview()
	SetSummary(string)
}

// PreviewPresenter redraws the media and its overlay when the frame, the
// results or the container size change.
type PreviewPresenter struct {
	machine PreviewMachine
	frames  PlaybackFrames
	stills  *StillCache
	results DetectionResults
	view    PreviewView
	mapper  geometry.Mapper
	logger  *slog.Logger

	key        string
	frameSeq   uint64
	resultsVer uint64
	drawn      bool
}

func NewPreviewPresenter(machine PreviewMachine, frames PlaybackFrames, stills *StillCache, results DetectionResults, view PreviewView, logger *slog.Logger) *PreviewPresenter {
	return &PreviewPresenter{machine: machine, frames: frames, stills: stills, results: results, view: view, logger: logger}
}

// Transform returns the transform used for the last frame.
func (p *PreviewPresenter) Transform() (geometry.Transform, bool) { return p.mapper.Current() }

// Tick redraws the preview if anything it depends on moved.
func (p *PreviewPresenter) Tick(now time.Time) {
	if p == nil || p.machine == nil || p.view == nil {
		return
	}
	st := p.machine.Snapshot()
	key := previewKey(st.Source)
	if key != p.key {
		p.key = key
		p.mapper.Replace()
		p.drawn = false
		p.frameSeq = 0
		if key == "" {
			p.stills.Drop()
			p.view.ResetPreview()
			p.view.SetSummary("")
			return
		}
	}
	if key == "" {
		return
	}

	if st.Playing && st.Source.VideoLike() && p.frames != nil && p.frames.Ended() {
		if err := p.machine.SetPlaying(false); err != nil && p.logger != nil {
			p.logger.Warn("pause at end of media", "error", err)
		}
	}

	img, seq, ok := p.currentImage(st.Source)
	if !ok {
		return
	}
	b := img.Bounds()
	resized := p.mapper.SetNative(b.Dx(), b.Dy())
	cw, ch := p.view.PreviewSize()
	if p.mapper.SetContainer(cw, ch) {
		resized = true
	}
	t, ok := p.mapper.Current()
	if !ok {
		return
	}

	rv := p.results.Version()
	if p.drawn && !resized && seq == p.frameSeq && rv == p.resultsVer {
		return
	}
	p.frameSeq, p.resultsVer, p.drawn = seq, rv, true

	o := overlay.Render(p.results.Boxes(), t)
	canvas := images.Compose(img, t)
	p.view.UpdatePreview(images.DrawOverlay(canvas, o))
	p.view.SetSummary(overlay.SummaryText(o.Summary))
}

func (p *PreviewPresenter) currentImage(src media.Source) (image.Image, uint64, bool) {
	if src.VideoLike() {
		if p.frames == nil {
			return nil, 0, false
		}
		img, seq, ok := p.frames.Latest()
		return img, seq, ok && img != nil
	}
	still, ready, _ := p.stills.Get(src)
	if !ready || still.Image == nil {
		return nil, 0, false
	}
	// Stills never change; the cache version stands in for a frame sequence.
	return still.Image, p.stills.Version(), true
}

// previewKey identifies a source instance so that a same-kind replacement
// still resets the transform.
func previewKey(src media.Source) string {
	switch s := src.(type) {
	case media.WebcamSource:
		return "webcam:" + string(s.Handle)
	case media.LocalFileSource:
		if s.Class == media.Video {
			return "video:" + string(s.URL)
		}
	}
	return stillKey(src)
}
