package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/vision-live-go/config"
	"github.com/soocke/vision-live-go/debug"
	"github.com/soocke/vision-live-go/ui/presenter"
	"github.com/soocke/vision-live-go/ui/theme"
	"github.com/soocke/vision-live-go/ui/view"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

type app struct {
	config  *config.Config
	cfgPath string
	logger  *slog.Logger
	width   int
	height  int
	afterID string

	ctx    context.Context
	cancel context.CancelFunc

	container *AppContainer
	loop      *presenter.Loop
	closed    bool
}

// NewApp creates the window and assembles the engine. Backend setup errors
// are returned before any widget is shown.
func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger) (*app, error) {
	a := &app{config: cfg, cfgPath: cfgPath, logger: logger, width: width, height: height}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	c, err := BuildContainer(a.ctx, cfg, cfgPath, logger)
	if err != nil {
		a.cancel()
		return nil, err
	}
	a.container = c

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a, nil
}

// Start builds the UI, starts background work and blocks in the Tk loop.
func (a *app) Start() {
	theme.InitStyles(a.config.DarkMode)
	c := a.container

	demos := make([]view.DemoChoice, 0)
	for _, d := range c.Demo.List() {
		demos = append(demos, view.DemoChoice{ID: d.ID, Name: d.Name})
	}
	c.RootView.Build(demos, view.Handlers{
		OnOpenFile:       c.Source.SelectFile,
		OnOpenURL:        c.Source.EnterURL,
		OnWebcam:         c.Source.RequestWebcam,
		OnDemo:           c.Source.SelectDemo,
		OnReset:          c.Source.Reset,
		OnTogglePlay:     c.Source.TogglePlay,
		OnToggleLive:     c.Source.ToggleLive,
		OnDetect:         c.Detect.Detect,
		OnWeightSelected: c.Weights.Select,
		OnUploadWeight:   func(path string) { c.Weights.Upload(a.ctx, path) },
		OnExit:           a.exitHandler,
	})

	c.Weights.Start(a.ctx)
	go checkHealth(a.ctx, c.Backend, a.config.RequestTimeout(), a.logger)

	if a.config.Debug {
		debug.StartGoroutineLogger(a.ctx, 5*time.Second, a.logger, c.Probe)
		debug.StartMemLogger(a.ctx, 5*time.Second, a.logger, c.Probe)
	}

	a.loop = presenter.NewLoop(c.Source, c.Sampler, c.Preview, c.Weights, c.Stats, c.State, a.scheduleUpdate)
	a.scheduleUpdate()

	App.Wait()
}

// scheduleUpdate runs the next loop tick on Tk's event loop thread.
func (a *app) scheduleUpdate() {
	if a.closed {
		return
	}
	a.afterID = TclAfter(a.config.TickInterval(), func() { a.loop.Tick() })
}

func (a *app) exitHandler() {
	if a.closed {
		return
	}
	a.closed = true
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	a.cancel()
	if err := a.container.Close(); err != nil && a.logger != nil {
		a.logger.Error("shutdown", "error", err)
	}
	if a.logger != nil {
		a.logger.Info("released handles", "outstanding", a.container.Resources.Outstanding(), "released", a.container.Resources.Released())
	}
	Destroy(App)
}
