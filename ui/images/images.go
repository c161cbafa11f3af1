// Package images prepares preview bitmaps: letterboxed media, detection
// overlays and the procedurally drawn demo scenes.
package images

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/soocke/vision-live-go/domain/geometry"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/ui/overlay"
)

// Background fills the letterbox bars.
var Background = color.NRGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff}

var palette = []color.NRGBA{
	{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
	{R: 0x21, G: 0x96, B: 0xf3, A: 0xff},
	{R: 0xff, G: 0x98, B: 0x00, A: 0xff},
	{R: 0xe9, G: 0x1e, B: 0x63, A: 0xff},
	{R: 0x9c, G: 0x27, B: 0xb0, A: 0xff},
	{R: 0x00, G: 0xbc, B: 0xd4, A: 0xff},
}

// ColorFor returns a stable color per label.
func ColorFor(label string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return palette[h.Sum32()%uint32(len(palette))]
}

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed))
	return buf.Bytes()
}

// FitToTransform resizes img to the media rectangle of t.
func FitToTransform(img image.Image, t geometry.Transform) image.Image {
	if img == nil {
		return nil
	}
	r := t.MediaRect()
	w, h := int(math.Round(r.W)), int(math.Round(r.H))
	if w < 1 || h < 1 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// Compose letterboxes img into a container-sized canvas according to t.
func Compose(img image.Image, t geometry.Transform) *image.NRGBA {
	canvas := imaging.New(t.ContainerWidth, t.ContainerHeight, Background)
	if img == nil {
		return canvas
	}
	fitted := FitToTransform(img, t)
	r := t.MediaRect()
	return imaging.Paste(canvas, fitted, image.Pt(int(math.Round(r.X)), int(math.Round(r.Y))))
}

// DrawOverlay strokes the overlay rectangles and captions onto a copy of canvas.
func DrawOverlay(canvas image.Image, o overlay.Overlay) image.Image {
	if canvas == nil || o.Empty() {
		return canvas
	}
	dc := gg.NewContextForImage(canvas)
	dc.SetLineWidth(2)
	for _, r := range o.Rects {
		c := ColorFor(r.Label)
		dc.SetColor(c)
		dc.DrawRectangle(r.X, r.Y, r.W, r.H)
		dc.Stroke()

		caption := r.Caption()
		tw, th := dc.MeasureString(caption)
		ty := r.Y - th - 4
		if ty < 0 {
			ty = r.Y
		}
		dc.SetColor(c)
		dc.DrawRectangle(r.X, ty, tw+6, th+4)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawStringAnchored(caption, r.X+3, ty+2, 0, 1)
	}
	return dc.Image()
}

// RenderDemoAsset paints the artwork of a demo scene at its native size:
// a gradient backdrop with one shaded block per pre-registered detection.
func RenderDemoAsset(a media.DemoAsset) image.Image {
	w, h := a.Width, a.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	dc := gg.NewContext(w, h)
	grad := gg.NewLinearGradient(0, 0, 0, float64(h))
	grad.AddColorStop(0, color.NRGBA{R: 0x37, G: 0x47, B: 0x4f, A: 0xff})
	grad.AddColorStop(1, color.NRGBA{R: 0x26, G: 0x32, B: 0x38, A: 0xff})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	for _, d := range a.Detections {
		c := ColorFor(d.Label)
		c.A = 0x90
		x1, y1 := math.Min(d.Box[0], d.Box[2]), math.Min(d.Box[1], d.Box[3])
		bw, bh := math.Abs(d.Box[2]-d.Box[0]), math.Abs(d.Box[3]-d.Box[1])
		dc.SetColor(c)
		dc.DrawRoundedRectangle(x1, y1, bw, bh, math.Min(bw, bh)/8)
		dc.Fill()
		dc.SetColor(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xc0})
		dc.DrawStringAnchored(d.Label, x1+bw/2, y1+bh/2, 0.5, 0.5)
	}

	dc.SetColor(color.NRGBA{R: 0xec, G: 0xef, B: 0xf1, A: 0xff})
	dc.DrawStringAnchored(a.Name, 10, float64(h)-10, 0, 0)
	return dc.Image()
}
