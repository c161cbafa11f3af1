// Package theme activates the ttk theme and the window palette.
package theme

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Colors of the main window.
const (
	ColorBg       = "#f7f9fb"
	ColorText     = "#1e293b"
	ColorBgDark   = "#0f172a"
	ColorTextDark = "#f1f5f9"
)

// PaletteSnapshot is the resolved set of colors for one mode.
type PaletteSnapshot struct {
	Bg   string
	Text string
}

// PaletteFor returns the light or dark palette.
func PaletteFor(dark bool) PaletteSnapshot {
	if dark {
		return PaletteSnapshot{Bg: ColorBgDark, Text: ColorTextDark}
	}
	return PaletteSnapshot{Bg: ColorBg, Text: ColorText}
}

// InitStyles activates the base theme and styles the ttk widgets in use
// (the demo and weight comboboxes).
func InitStyles(dark bool) {
	p := PaletteFor(dark)
	if dark {
		_ = ActivateTheme("azure dark")
	} else {
		_ = ActivateTheme("azure light")
	}
	App.Configure(Background(p.Bg))
	StyleConfigure("TCombobox",
		Foreground(p.Text),
		Padding("3p 2p"),
	)
}
