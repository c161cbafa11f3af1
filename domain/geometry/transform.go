// Package geometry maps native media pixels onto the letterboxed rectangle a
// preview container actually shows.
package geometry

import "math"

// Transform maps native media coordinates to container coordinates.
// The media is scaled uniformly and centered on both axes.
type Transform struct {
	Scale           float64
	OffsetX         float64
	OffsetY         float64
	NativeWidth     int
	NativeHeight    int
	ContainerWidth  int
	ContainerHeight int
}

// Rect is an axis-aligned rectangle in container coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Compute returns the letterbox transform for the given native and container
// sizes. It reports false when any dimension is not positive.
func Compute(nativeW, nativeH, containerW, containerH int) (Transform, bool) {
	if nativeW <= 0 || nativeH <= 0 || containerW <= 0 || containerH <= 0 {
		return Transform{}, false
	}
	scale := math.Min(float64(containerW)/float64(nativeW), float64(containerH)/float64(nativeH))
	return Transform{
		Scale:           scale,
		OffsetX:         (float64(containerW) - float64(nativeW)*scale) / 2,
		OffsetY:         (float64(containerH) - float64(nativeH)*scale) / 2,
		NativeWidth:     nativeW,
		NativeHeight:    nativeH,
		ContainerWidth:  containerW,
		ContainerHeight: containerH,
	}, true
}

// ToDisplay projects a native [x1, y1, x2, y2] box into container space.
// Inverted corners are normalized.
func (t Transform) ToDisplay(box [4]float64) Rect {
	x1, y1, x2, y2 := box[0], box[1], box[2], box[3]
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{
		X: t.OffsetX + x1*t.Scale,
		Y: t.OffsetY + y1*t.Scale,
		W: (x2 - x1) * t.Scale,
		H: (y2 - y1) * t.Scale,
	}
}

// MediaRect is the rectangle occupied by the scaled media inside the container.
func (t Transform) MediaRect() Rect {
	return Rect{
		X: t.OffsetX,
		Y: t.OffsetY,
		W: float64(t.NativeWidth) * t.Scale,
		H: float64(t.NativeHeight) * t.Scale,
	}
}

// Contains reports whether r lies inside o, allowing a small epsilon for float error.
func (r Rect) Contains(o Rect) bool {
	const eps = 1e-9
	return o.X >= r.X-eps && o.Y >= r.Y-eps &&
		o.X+o.W <= r.X+r.W+eps && o.Y+o.H <= r.Y+r.H+eps
}
