package presenter

import (
	"image"
	"log/slog"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/domain/viewstate"
	"github.com/soocke/vision-live-go/ui/model"
)

// StateSource exposes the machine snapshot.
type StateSource interface {
	Snapshot() viewstate.State
}

// OneShot submits a single detection outside the live throttle.
type OneShot interface {
	DetectOnce(img detection.Image) (uint64, error)
}

// LatestFrame returns the most recent decoded frame of the playing source.
type LatestFrame interface {
	Latest() (image.Image, uint64, bool)
}

// ResultSink receives detections that bypass the detector (demo scenes).
type ResultSink interface {
	Apply(boxes []detection.Box, epoch, seq uint64)
}

// DetectPresenter backs the "Start Object Detection" action.
type DetectPresenter struct {
	machine StateSource
	once    OneShot
	frames  LatestFrame
	encode  func(image.Image) (detection.Image, error)
	stills  *StillCache
	demo    DemoAssets
	results ResultSink
	weight  func() string
	status  *model.StatusModel
	logger  *slog.Logger
}

func NewDetectPresenter(machine StateSource, once OneShot, frames LatestFrame, encode func(image.Image) (detection.Image, error), stills *StillCache, demo DemoAssets, results ResultSink, weight func() string, status *model.StatusModel, logger *slog.Logger) *DetectPresenter {
	if weight == nil {
		weight = func() string { return "" }
	}
	return &DetectPresenter{
		machine: machine,
		once:    once,
		frames:  frames,
		encode:  encode,
		stills:  stills,
		demo:    demo,
		results: results,
		weight:  weight,
		status:  status,
		logger:  logger,
	}
}

// Detect runs one detection on whatever the active source shows right now.
// Demo scenes show their pre-registered detections.
func (p *DetectPresenter) Detect() {
	if p == nil || p.machine == nil {
		return
	}
	st := p.machine.Snapshot()
	switch src := st.Source.(type) {
	case nil:
		p.status.Set("Select a source first")
	case media.DemoSource:
		var a media.DemoAsset
		ok := false
		if p.demo != nil {
			a, ok = p.demo.Asset(src.AssetID)
		}
		if !ok || p.results == nil {
			p.status.Set("Unknown demo scene " + src.AssetID)
			return
		}
		p.results.Apply(a.Detections, 0, 0)
		p.status.Set("Demo detections: " + a.Name)
	default:
		if p.weight() == "" {
			p.status.Set("Select a model weight first")
			return
		}
		if src.VideoLike() {
			p.detectFrame()
			return
		}
		p.detectStill(src)
	}
}

func (p *DetectPresenter) detectFrame() {
	if p.frames == nil || p.encode == nil {
		return
	}
	img, _, ok := p.frames.Latest()
	if !ok || img == nil {
		p.status.Set("No frame yet")
		return
	}
	enc, err := p.encode(img)
	if err != nil {
		p.status.Set("Cannot encode frame")
		if p.logger != nil {
			p.logger.Error("encode frame", "error", err)
		}
		return
	}
	p.submit(enc, "frame")
}

func (p *DetectPresenter) detectStill(src media.Source) {
	still, ready, err := p.stills.Get(src)
	switch {
	case err != nil:
		p.status.Set("Image unavailable")
		return
	case !ready:
		p.status.Set("Image still loading")
		return
	case len(still.Raw.Data) == 0:
		return
	}
	p.submit(still.Raw, src.Kind().String())
}

func (p *DetectPresenter) submit(img detection.Image, from string) {
	seq, err := p.once.DetectOnce(img)
	if err != nil {
		p.status.Set("Detector busy, try again")
		if p.logger != nil {
			p.logger.Debug("one-shot detection refused", "source", from, "error", err)
		}
		return
	}
	p.status.Set("Detecting...")
	if p.logger != nil {
		p.logger.Debug("one-shot detection", "source", from, "seq", seq)
	}
}
