package view

import (
	"image"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/soocke/vision-live-go/config"
	"github.com/soocke/vision-live-go/ui/model"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// DemoChoice is one entry of the demo scene dropdown.
type DemoChoice struct {
	ID   string
	Name string
}

// Handlers are invoked on user actions. Nil handlers are skipped.
type Handlers struct {
	OnOpenFile       func(path string)
	OnOpenURL        func(raw string)
	OnWebcam         func()
	OnDemo           func(id string)
	OnReset          func()
	OnTogglePlay     func()
	OnToggleLive     func()
	OnDetect         func()
	OnWeightSelected func(name string)
	OnUploadWeight   func(path string)
	OnExit           func()
}

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Session     SessionStats
	ConfigPanel ConfigPanel
	Preview     MediaPreview

	// Widgets
	StateLabel   *LabelWidget
	StatusLabel  *LabelWidget
	SummaryLabel *LabelWidget
	SourceEntry  *TextWidget
	DemoSelect   *TComboboxWidget
	WeightSelect *TComboboxWidget
	WeightEntry  *TextWidget
	playBtn      *ButtonWidget
	liveBtn      *ButtonWidget

	weights []string
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

const columns = 5

// Build constructs the layout. demos fills the demo scene dropdown.
func (rv *RootView) Build(demos []DemoChoice, h Handlers) {
	if rv == nil {
		return
	}
	call := func(fn func()) func() {
		return func() {
			if fn != nil {
				fn()
			}
		}
	}

	// Row 0: session stats, state label, exit
	rv.Session = NewSessionStats(nil, 0, 0)
	rv.StateLabel = Label(Txt("Source: none"), Borderwidth(1), Relief("ridge"))
	Grid(rv.StateLabel, Row(0), Column(3), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	exitBtn := Button(Txt("Exit"), Command(call(h.OnExit)))
	Grid(exitBtn, Row(0), Column(4), Sticky("e"), Padx("0.3m"), Pady("0.3m"))

	// Row 1: source panel
	src := Frame()
	Grid(src, Row(1), Column(0), Columnspan(columns), Sticky("we"), Padx("0.3m"), Pady("0.3m"))
	Grid(Label(Txt("1. Add Source"), Anchor("w")), In(src), Row(0), Column(0), Columnspan(6), Sticky("w"))
	rv.SourceEntry = Text(Height(1), Width(48))
	Grid(rv.SourceEntry, In(src), Row(1), Column(0), Columnspan(2), Sticky("we"), Padx("0.2m"))
	fileBtn := Button(Txt("Open File"), Command(func() {
		if p := rv.sourceText(); p != "" && h.OnOpenFile != nil {
			h.OnOpenFile(p)
		}
	}))
	Grid(fileBtn, In(src), Row(1), Column(2), Sticky("we"), Padx("0.2m"))
	urlBtn := Button(Txt("Open URL"), Command(func() {
		if h.OnOpenURL != nil {
			h.OnOpenURL(rv.sourceText())
		}
	}))
	Grid(urlBtn, In(src), Row(1), Column(3), Sticky("we"), Padx("0.2m"))
	camBtn := Button(Txt("Webcam"), Command(call(h.OnWebcam)))
	Grid(camBtn, In(src), Row(1), Column(4), Sticky("we"), Padx("0.2m"))
	resetBtn := Button(Txt("Reset"), Command(call(h.OnReset)))
	Grid(resetBtn, In(src), Row(1), Column(5), Sticky("we"), Padx("0.2m"))

	names := make([]string, 0, len(demos)+1)
	names = append(names, "<demo scene>")
	for _, d := range demos {
		names = append(names, d.Name)
	}
	rv.DemoSelect = TCombobox(Values(names), Width(20))
	Grid(rv.DemoSelect, In(src), Row(2), Column(0), Sticky("w"), Padx("0.2m"), Pady("0.2m"))
	rv.DemoSelect.Current(0)
	Bind(rv.DemoSelect, "<<ComboboxSelected>>", Command(func() {
		idx, err := strconv.Atoi(rv.DemoSelect.Current(nil))
		if err != nil {
			if rv.logger != nil {
				rv.logger.Error("demo selection parse error", "error", err)
			}
			return
		}
		if idx >= 1 && idx <= len(demos) && h.OnDemo != nil {
			h.OnDemo(demos[idx-1].ID)
		}
	}))

	// Row 2: weights and detection controls
	ctl := Frame()
	Grid(ctl, Row(2), Column(0), Columnspan(columns), Sticky("we"), Padx("0.3m"), Pady("0.3m"))
	Grid(Label(Txt("2. Model Weight"), Anchor("w")), In(ctl), Row(0), Column(0), Columnspan(3), Sticky("w"))
	rv.WeightSelect = TCombobox(Values([]string{"<loading>"}), Width(20))
	Grid(rv.WeightSelect, In(ctl), Row(1), Column(0), Sticky("we"), Padx("0.2m"))
	rv.WeightSelect.Current(0)
	Bind(rv.WeightSelect, "<<ComboboxSelected>>", Command(func() {
		idx, err := strconv.Atoi(rv.WeightSelect.Current(nil))
		if err == nil && idx >= 0 && idx < len(rv.weights) && h.OnWeightSelected != nil {
			h.OnWeightSelected(rv.weights[idx])
		}
	}))
	rv.WeightEntry = Text(Height(1), Width(28))
	Grid(rv.WeightEntry, In(ctl), Row(1), Column(1), Sticky("we"), Padx("0.2m"))
	uploadBtn := Button(Txt("Upload Weight"), Command(func() {
		if p := textOf(rv.WeightEntry); p != "" && h.OnUploadWeight != nil {
			h.OnUploadWeight(p)
		}
	}))
	Grid(uploadBtn, In(ctl), Row(1), Column(2), Sticky("we"), Padx("0.2m"))

	Grid(Label(Txt("3. Detect"), Anchor("w")), In(ctl), Row(0), Column(3), Columnspan(3), Sticky("w"))
	detectBtn := Button(Txt("Start Object Detection"), Command(call(h.OnDetect)))
	Grid(detectBtn, In(ctl), Row(1), Column(3), Sticky("we"), Padx("0.2m"))
	rv.playBtn = Button(Txt("Play"), Command(call(h.OnTogglePlay)))
	Grid(rv.playBtn, In(ctl), Row(1), Column(4), Sticky("we"), Padx("0.2m"))
	rv.liveBtn = Button(Txt("Live Overlay: off"), Command(call(h.OnToggleLive)))
	Grid(rv.liveBtn, In(ctl), Row(1), Column(5), Sticky("we"), Padx("0.2m"))

	// Row 3: preview, row 4: summary and status
	rv.Preview = NewMediaPreview(3, columns, rv.cfg.PreviewW, rv.cfg.PreviewH)
	rv.SummaryLabel = Label(Txt(""), Anchor("w"))
	Grid(rv.SummaryLabel, Row(4), Column(0), Columnspan(3), Sticky("we"), Padx("0.4m"))
	rv.StatusLabel = Label(Txt(""), Anchor("e"))
	Grid(rv.StatusLabel, Row(4), Column(3), Columnspan(2), Sticky("we"), Padx("0.4m"))

	// Config panel rows
	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	rv.ConfigPanel.Build(5)
}

func (rv *RootView) sourceText() string { return textOf(rv.SourceEntry) }

func textOf(w *TextWidget) string {
	if w == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join(w.Get("1.0", END), ""))
}

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// SetStatus updates the status line.
func (rv *RootView) SetStatus(text string) {
	if rv != nil && rv.StatusLabel != nil {
		rv.StatusLabel.Configure(Txt(text))
	}
}

// SetSummary shows the per-label detection counts.
func (rv *RootView) SetSummary(text string) {
	if rv != nil && rv.SummaryLabel != nil {
		rv.SummaryLabel.Configure(Txt(text))
	}
}

// SetPlaying flips the play button caption.
func (rv *RootView) SetPlaying(playing bool) {
	if rv == nil || rv.playBtn == nil {
		return
	}
	if playing {
		rv.playBtn.Configure(Txt("Pause"))
		return
	}
	rv.playBtn.Configure(Txt("Play"))
}

// SetLiveOverlay reflects whether live sampling is in effect.
func (rv *RootView) SetLiveOverlay(on bool) {
	if rv == nil || rv.liveBtn == nil {
		return
	}
	if on {
		rv.liveBtn.Configure(Txt("Live Overlay: on"))
		return
	}
	rv.liveBtn.Configure(Txt("Live Overlay: off"))
}

// SetWeights replaces the weight dropdown entries.
func (rv *RootView) SetWeights(names []string, selected string) {
	if rv == nil || rv.WeightSelect == nil {
		return
	}
	rv.weights = names
	if len(names) == 0 {
		rv.WeightSelect.Configure(Values([]string{"<none>"}))
		rv.WeightSelect.Current(0)
		return
	}
	rv.WeightSelect.Configure(Values(names))
	for i, n := range names {
		if n == selected {
			rv.WeightSelect.Current(i)
			return
		}
	}
	rv.WeightSelect.Current(0)
}

// PreviewSize returns the size of the preview container.
func (rv *RootView) PreviewSize() (int, int) {
	if rv == nil || rv.Preview == nil {
		return 0, 0
	}
	return rv.Preview.Size()
}

// UpdatePreview proxies to the media preview.
func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Update(img)
	}
}

// ResetPreview clears the media preview.
func (rv *RootView) ResetPreview() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}

// SetSession updates both live session and total durations.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(session)
	rv.Session.SetTotal(total)
}

// SetCounters updates the counters line.
func (rv *RootView) SetCounters(c model.Counters) {
	if rv != nil && rv.Session != nil {
		rv.Session.SetCounters(c)
	}
}
