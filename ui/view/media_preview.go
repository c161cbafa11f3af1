package view

import (
	"image"

	"github.com/soocke/vision-live-go/domain/geometry"
	"github.com/soocke/vision-live-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// MediaPreview shows the composed media frame with its detection overlay.
// Images pushed here are already letterboxed to Size.
type MediaPreview interface {
	Update(img image.Image)
	Reset()
	Size() (w, h int)
}

type mediaPreview struct {
	label     *LabelWidget
	w, h      int
	prevPhoto *Img // last Tk photo image instance
}

// NewMediaPreview creates the preview label at row, spanning cols columns.
func NewMediaPreview(row, cols, w, h int) MediaPreview {
	if w < 160 {
		w = 160
	}
	if h < 90 {
		h = 90
	}
	v := &mediaPreview{w: w, h: h}
	v.prevPhoto = NewPhoto(Data(v.placeholder()))
	v.label = Label(Image(v.prevPhoto), Borderwidth(1), Relief("sunken"))
	Grid(v.label, Row(row), Column(0), Columnspan(cols), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return v
}

func (v *mediaPreview) Size() (int, int) { return v.w, v.h }

func (v *mediaPreview) Update(img image.Image) {
	if v.label == nil || img == nil {
		return
	}
	v.replace(images.EncodePNG(img))
}

func (v *mediaPreview) Reset() {
	if v.label == nil {
		return
	}
	v.replace(v.placeholder())
}

// replace swaps the photo and disposes the previous one so old pixel
// buffers are not retained by Tk.
func (v *mediaPreview) replace(png []byte) {
	if v.prevPhoto != nil {
		v.prevPhoto.Delete()
	}
	v.prevPhoto = NewPhoto(Data(png))
	v.label.Configure(Image(v.prevPhoto))
}

func (v *mediaPreview) placeholder() []byte {
	return images.EncodePNG(images.Compose(nil, geometry.Transform{ContainerWidth: v.w, ContainerHeight: v.h}))
}
