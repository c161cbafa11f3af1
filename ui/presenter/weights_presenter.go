package presenter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/ui/model"
)

// WeightsView lists the available model weights.
type WeightsView interface {
	SetWeights(names []string, selected string)
}

// WeightsPresenter owns the weight list: startup polling, uploads and the
// current selection. Network calls run in the background; the view is
// refreshed on Tick.
type WeightsPresenter struct {
	catalog  detection.WeightCatalog
	attempts int
	interval time.Duration
	status   *model.StatusModel
	view     WeightsView
	logger   *slog.Logger

	mu        sync.Mutex
	names     []string
	selected  string
	preferred string
	version   uint64
	shown     uint64
	wg        sync.WaitGroup
}

func NewWeightsPresenter(catalog detection.WeightCatalog, attempts int, interval time.Duration, preferred string, status *model.StatusModel, view WeightsView, logger *slog.Logger) *WeightsPresenter {
	return &WeightsPresenter{
		catalog:   catalog,
		attempts:  attempts,
		interval:  interval,
		preferred: preferred,
		status:    status,
		view:      view,
		logger:    logger,
	}
}

// Start polls the catalog until it lists at least one weight.
func (p *WeightsPresenter) Start(ctx context.Context) {
	if p == nil || p.catalog == nil {
		return
	}
	p.status.Set("Loading model weights...")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		names, err := detection.PollWeights(ctx, p.catalog, p.attempts, p.interval, p.logger)
		if err != nil {
			if ctx.Err() == nil {
				p.status.Set("No model weights available")
			}
			return
		}
		p.setNames(names, "")
		p.status.Set("")
	}()
}

// Upload sends a weight file to the catalog and selects it once listed.
func (p *WeightsPresenter) Upload(ctx context.Context, path string) {
	if p == nil || p.catalog == nil || path == "" {
		return
	}
	name := filepath.Base(path)
	if err := detection.ValidWeightName(name); err != nil {
		p.status.Set("Unsupported weight file: " + name)
		return
	}
	p.status.Set("Uploading " + name + "...")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.upload(ctx, path, name); err != nil {
			p.status.Set("Upload failed: " + name)
			if p.logger != nil {
				p.logger.Error("upload weight", "name", name, "error", err)
			}
			return
		}
		p.status.Set("Uploaded " + name)
	}()
}

func (p *WeightsPresenter) upload(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open weight file")
	}
	defer f.Close()
	if err := p.catalog.UploadWeight(ctx, name, f); err != nil {
		return err
	}
	names, err := p.catalog.Weights(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh weights")
	}
	p.setNames(names, name)
	return nil
}

// Select changes the weight used for detections. Unknown names are ignored.
func (p *WeightsPresenter) Select(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if name == p.selected || !slices.Contains(p.names, name) {
		return
	}
	p.selected = name
	p.version++
}

// Selected returns the current weight, "" when none is available.
func (p *WeightsPresenter) Selected() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Tick pushes list changes to the view.
func (p *WeightsPresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	if p.version == p.shown {
		p.mu.Unlock()
		return
	}
	p.shown = p.version
	names := slices.Clone(p.names)
	sel := p.selected
	p.mu.Unlock()
	p.view.SetWeights(names, sel)
}

// Wait blocks until background polling and uploads have finished.
func (p *WeightsPresenter) Wait() {
	if p != nil {
		p.wg.Wait()
	}
}

// setNames replaces the list. want wins, then the current selection, then
// the configured default, then the first entry.
func (p *WeightsPresenter) setNames(names []string, want string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = slices.Clone(names)
	sel := ""
	for _, c := range []string{want, p.selected, p.preferred} {
		if c != "" && slices.Contains(p.names, c) {
			sel = c
			break
		}
	}
	if sel == "" && len(p.names) > 0 {
		sel = p.names[0]
	}
	p.selected = sel
	p.version++
}
