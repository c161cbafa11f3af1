package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/soocke/vision-live-go/assets"
	"github.com/soocke/vision-live-go/config"
	"github.com/soocke/vision-live-go/detector/demo"
	"github.com/soocke/vision-live-go/detector/httpdetector"
	"github.com/soocke/vision-live-go/detector/wsdetector"
	"github.com/soocke/vision-live-go/domain/capture"
	"github.com/soocke/vision-live-go/domain/capture/cvcapture"
	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/lifecycle"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/domain/sampling"
	"github.com/soocke/vision-live-go/domain/viewstate"
	"github.com/soocke/vision-live-go/ui/model"
	"github.com/soocke/vision-live-go/ui/presenter"
	"github.com/soocke/vision-live-go/ui/view"
)

// AppContainer assembles models, services, presenters and the root view.
type AppContainer struct {
	Config *config.Config
	Logger *slog.Logger

	// Engine
	Resources *lifecycle.Manager
	URLs      *lifecycle.URLRegistry
	Player    *capture.Player
	Backend   detection.Backend
	Sampler   *sampling.Loop
	Machine   *viewstate.Machine
	Demo      *assets.Catalog

	// Models
	Detection *model.DetectionModel
	Status    *model.StatusModel
	Session   *model.SessionModel

	RootView *view.RootView

	// Presenters
	Source  *presenter.SourcePresenter
	Detect  *presenter.DetectPresenter
	Preview *presenter.PreviewPresenter
	Weights *presenter.WeightsPresenter
	Stats   *presenter.SessionPresenter
	State   *presenter.StatePresenter
	Stills  *presenter.StillCache
}

// liveGate defers to the machine, which is built after the sampling loop.
type liveGate struct{ m *viewstate.Machine }

func (g *liveGate) LiveEligible() bool { return g.m != nil && g.m.LiveEligible() }

// BuildContainer constructs all components. ctx bounds webcam requests and
// background loads. Nothing is started; the caller drives Tick and Start.
func BuildContainer(ctx context.Context, cfg *config.Config, cfgPath string, logger *slog.Logger) (*AppContainer, error) {
	c := &AppContainer{Config: cfg, Logger: logger}

	catalog, err := assets.LoadCatalog()
	if err != nil {
		return nil, errors.Wrap(err, "load demo assets")
	}
	c.Demo = catalog

	backend, err := openBackend(cfg, catalog, logger)
	if err != nil {
		return nil, err
	}
	c.Backend = backend

	c.Resources = lifecycle.NewManager(logger)
	c.URLs = lifecycle.NewURLRegistry(c.Resources)
	c.Player = capture.NewPlayer(logger, c.Resources, c.URLs, cvcapture.OpenVideoFile, cfg.PlaybackFPS)
	c.Detection = model.NewDetectionModel()
	c.Status = &model.StatusModel{}
	c.Session = model.NewSessionModel()

	encode := capture.JPEGEncoder(cfg.JPEGQuality)
	gate := &liveGate{}
	c.Sampler = sampling.New(nil, backend, c.Player, encode, gate, c.Detection, sampling.Options{
		Interval:       cfg.SampleInterval(),
		RequestTimeout: cfg.RequestTimeout(),
		BackoffMax:     cfg.BackoffMax(),
		BackoffJitter:  0.2,
		Weight:         func() string { return c.Weights.Selected() },
	}, logger)

	c.Machine = viewstate.New(viewstate.Deps{
		Resources:    c.Resources,
		URLs:         c.URLs,
		Cameras:      cvcapture.Cameras{Logger: logger},
		Demo:         catalog,
		Sampler:      c.Sampler,
		Results:      c.Detection,
		Player:       c.Player,
		MaxFileBytes: cfg.MaxUploadBytes,
		Logger:       logger,
	})
	gate.m = c.Machine

	fetchClient := &http.Client{Timeout: cfg.RequestTimeout()}
	c.Stills = &presenter.StillCache{
		LoadFile: func(src media.LocalFileSource) (capture.Still, error) {
			return capture.LoadStill(c.Resources, c.URLs, src, cfg.MaxUploadBytes)
		},
		Fetch: func(ctx context.Context, url string) (capture.Still, error) {
			return capture.FetchSnapshot(ctx, fetchClient, url, cfg.MaxUploadBytes)
		},
		Demo:   catalog,
		Logger: logger,
	}

	// View (built later by the app once the demo list is known)
	c.RootView = view.NewRootView(cfg, cfgPath, logger)

	device := func() string { return cfg.CameraDevice }
	c.Source = presenter.NewSourcePresenter(ctx, c.Machine, c.Status, c.RootView, device, logger)
	c.Weights = presenter.NewWeightsPresenter(backend, cfg.WeightsPollAttempts, cfg.WeightsPollInterval(), cfg.Weight, c.Status, c.RootView, logger)
	c.Detect = presenter.NewDetectPresenter(c.Machine, c.Sampler, c.Player, encode, c.Stills, catalog, c.Detection, c.Weights.Selected, c.Status, logger)
	c.Preview = presenter.NewPreviewPresenter(c.Machine, c.Player, c.Stills, c.Detection, c.RootView, logger)
	c.Stats = presenter.NewSessionPresenter(c.Session, c.Machine, c.Counters, c.RootView)
	c.State = presenter.NewStatePresenter(c.Status, c.RootView)
	c.Machine.AddListener(c.State.OnState)
	return c, nil
}

// Counters combines the sampling loop counters with the handle count.
func (c *AppContainer) Counters() model.Counters {
	st := c.Sampler.Stats()
	return model.Counters{
		Submitted:   st.Submitted,
		Applied:     st.Applied,
		Dropped:     st.DroppedStale,
		Failures:    st.Failures,
		Outstanding: c.Resources.Outstanding(),
	}
}

// Probe is the extra payload of the debug loggers.
func (c *AppContainer) Probe() []any {
	cnt := c.Counters()
	ps := c.Player.Stats()
	epoch, seq := c.Detection.Stamp()
	return []any{
		"outstanding", cnt.Outstanding,
		"released", c.Resources.Released(),
		"submitted", cnt.Submitted,
		"applied", cnt.Applied,
		"stale", cnt.Dropped,
		"failures", cnt.Failures,
		"frames", ps.Frames,
		"result_epoch", epoch,
		"result_seq", seq,
	}
}

// Close tears down the engine. Every tracked handle is released exactly once.
func (c *AppContainer) Close() error {
	var err error
	if c.Machine != nil {
		err = multierr.Append(err, c.Machine.Close())
	}
	c.Stills.Drop()
	c.Weights.Wait()
	if c.Backend != nil {
		err = multierr.Append(err, c.Backend.Close())
	}
	return err
}

// openBackend selects the detector implementation named by cfg.Backend.
func openBackend(cfg *config.Config, catalog *assets.Catalog, logger *slog.Logger) (detection.Backend, error) {
	switch cfg.Backend {
	case config.BackendWS:
		c, err := wsdetector.NewClient(cfg.DetectorURL, nil, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendDemo:
		cat, err := demo.OpenCatalog(cfg.DemoWeightsDB, catalog.Weights())
		if err != nil {
			return nil, err
		}
		minDelay, maxDelay := cfg.DemoDelay()
		return demo.NewBackend(cat, demo.Options{MinDelay: minDelay, MaxDelay: maxDelay}), nil
	default:
		c, err := httpdetector.NewClient(cfg.DetectorURL, &http.Client{})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// healthChecker is implemented by the HTTP-based detectors.
type healthChecker interface {
	Health(ctx context.Context) (httpdetector.HealthStatus, error)
}

// checkHealth logs the detector's /health answer once.
func checkHealth(ctx context.Context, b detection.Backend, timeout time.Duration, logger *slog.Logger) {
	hc, ok := b.(healthChecker)
	if !ok || logger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	h, err := hc.Health(ctx)
	if err != nil {
		logger.Warn("detector health check failed", "error", err)
		return
	}
	logger.Info("detector health", "status", h.Status)
}
