package geometry

// Mapper keeps the transform of the media instance currently on screen.
// It is recomputed on metadata load (SetNative), container resize
// (SetContainer) and source replacement (Replace). Degenerate updates keep
// the prior transform. The zero value is usable.
type Mapper struct {
	nativeW, nativeH       int
	containerW, containerH int
	current                Transform
	valid                  bool
}

// SetNative records the intrinsic size of the media. It reports whether a
// new transform was produced.
func (m *Mapper) SetNative(w, h int) bool {
	if m == nil || w <= 0 || h <= 0 {
		return false
	}
	m.nativeW, m.nativeH = w, h
	return m.recompute()
}

// SetContainer records the size of the preview container.
func (m *Mapper) SetContainer(w, h int) bool {
	if m == nil || w <= 0 || h <= 0 {
		return false
	}
	m.containerW, m.containerH = w, h
	return m.recompute()
}

// Replace forgets everything known about the previous media instance.
// The container size is kept.
func (m *Mapper) Replace() {
	if m == nil {
		return
	}
	m.nativeW, m.nativeH = 0, 0
	m.current = Transform{}
	m.valid = false
}

// Current returns the latest transform and whether one exists.
func (m *Mapper) Current() (Transform, bool) {
	if m == nil {
		return Transform{}, false
	}
	return m.current, m.valid
}

func (m *Mapper) recompute() bool {
	t, ok := Compute(m.nativeW, m.nativeH, m.containerW, m.containerH)
	if !ok {
		return false
	}
	changed := !m.valid || t != m.current
	m.current, m.valid = t, true
	return changed
}
