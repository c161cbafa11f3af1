// Package overlay projects detections onto the displayed media rectangle.
package overlay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/soocke/vision-live-go/domain/detection"
	"github.com/soocke/vision-live-go/domain/geometry"
)

// Rect is one box in container coordinates.
type Rect struct {
	geometry.Rect
	Label      string
	Confidence float64
}

// Caption is the text drawn above the rectangle.
func (r Rect) Caption() string {
	return fmt.Sprintf("%s %.0f%%", r.Label, r.Confidence*100)
}

// LabelCount is one entry of the summary.
type LabelCount struct {
	Label string
	Count int
}

// Overlay is everything drawn over the media.
type Overlay struct {
	Rects   []Rect
	Summary []LabelCount
}

// Empty reports whether nothing would be drawn.
func (o Overlay) Empty() bool { return len(o.Rects) == 0 }

// Render projects boxes with t. It does not modify its inputs.
func Render(boxes []detection.Box, t geometry.Transform) Overlay {
	if len(boxes) == 0 {
		return Overlay{}
	}
	rects := lo.Map(boxes, func(b detection.Box, _ int) Rect {
		return Rect{Rect: t.ToDisplay(b.Box), Label: b.Label, Confidence: b.Confidence}
	})
	counts := lo.CountValuesBy(boxes, func(b detection.Box) string { return b.Label })
	summary := lo.MapToSlice(counts, func(label string, n int) LabelCount {
		return LabelCount{Label: label, Count: n}
	})
	sort.Slice(summary, func(i, j int) bool { return summary[i].Label < summary[j].Label })
	return Overlay{Rects: rects, Summary: summary}
}

// SummaryText formats the summary as "car ×2, person ×1".
func SummaryText(summary []LabelCount) string {
	parts := lo.Map(summary, func(lc LabelCount, _ int) string {
		return fmt.Sprintf("%s ×%d", lc.Label, lc.Count)
	})
	return strings.Join(parts, ", ")
}
