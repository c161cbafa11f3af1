package view

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/vision-live-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the configuration form widgets and apply logic.
// It owns its widgets and writes back into *config.Config on ApplyChanges.
// Backend and sampling settings take effect on the next start.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	ApplyChanges()                   // parses widget text into underlying config and persists
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	applyBtn *ButtonWidget
	widgets  map[string]*TextWidget // keyed by internal field id
}

// NewConfigPanel creates the view bound to cfg.
func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	c := v.cfg
	row = startRow
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(28))
		Grid(w, Row(row), Column(1), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		row++
	}
	makeRow("backend", "Backend (http/ws/demo)", c.Backend)
	makeRow("detectorURL", "Detector URL", c.DetectorURL)
	makeRow("sampleIntervalMs", "Sample Interval ms", fmt.Sprintf("%d", c.SampleIntervalMs))
	makeRow("requestTimeoutMs", "Request Timeout ms", fmt.Sprintf("%d", c.RequestTimeoutMs))
	makeRow("backoffMaxMs", "Backoff Max ms (0 = off)", fmt.Sprintf("%d", c.BackoffMaxMs))
	makeRow("cameraDevice", "Camera Device (id or screen)", c.CameraDevice)
	makeRow("playbackFPS", "Playback FPS", fmt.Sprintf("%.0f", c.PlaybackFPS))
	makeRow("jpegQuality", "JPEG Quality", fmt.Sprintf("%d", c.JPEGQuality))
	makeRow("debug", "Debug (true/false)", fmt.Sprintf("%t", c.Debug))
	makeRow("darkMode", "Dark Mode (true/false)", fmt.Sprintf("%t", c.DarkMode))
	v.applyBtn = Button(Txt("Apply Changes"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) text(id string) (string, bool) {
	w := v.widgets[id]
	if w == nil {
		return "", false
	}
	s := strings.TrimSpace(strings.Join(w.Get("1.0", END), ""))
	return s, s != ""
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	cfg := *v.cfg // copy
	vals := map[string]string{}
	for id := range v.widgets {
		if s, ok := v.text(id); ok {
			vals[id] = s
		}
	}
	applyFields(&cfg, vals)
	if verr := cfg.Validate(); verr != nil {
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else {
		if v.logger != nil {
			v.logger.Info("config saved; restart to apply", "path", v.cfgPath)
		}
	}
}

// applyFields copies parsable form values into cfg. Unparsable values keep
// the previous setting.
func applyFields(cfg *config.Config, vals map[string]string) {
	assignInt := func(id string, dst *int) {
		if i, ok := parseIntField(vals[id]); ok {
			*dst = i
		}
	}
	assignString := func(id string, dst *string) {
		if s := strings.TrimSpace(vals[id]); s != "" {
			*dst = s
		}
	}
	assignString("backend", &cfg.Backend)
	cfg.Backend = strings.ToLower(cfg.Backend)
	assignString("detectorURL", &cfg.DetectorURL)
	assignInt("sampleIntervalMs", &cfg.SampleIntervalMs)
	assignInt("requestTimeoutMs", &cfg.RequestTimeoutMs)
	assignInt("backoffMaxMs", &cfg.BackoffMaxMs)
	assignString("cameraDevice", &cfg.CameraDevice)
	if f, ok := parseFloatField(vals["playbackFPS"]); ok {
		cfg.PlaybackFPS = f
	}
	assignInt("jpegQuality", &cfg.JPEGQuality)
	if b, ok := parseBoolLoose(vals["debug"]); ok {
		cfg.Debug = b
	}
	if b, ok := parseBoolLoose(vals["darkMode"]); ok {
		cfg.DarkMode = b
	}
}

// parsing helpers (unexported)
func parseFloatField(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
func parseIntField(s string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return i, true
}
func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
