package model

import (
	"sync"

	"github.com/soocke/vision-live-go/domain/detection"
)

// DetectionModel holds the detections currently shown over the media. The
// sampling loop is its only writer besides Clear on source transitions.
type DetectionModel struct {
	mu      sync.RWMutex
	boxes   []detection.Box
	epoch   uint64
	seq     uint64
	version uint64
}

func NewDetectionModel() *DetectionModel { return &DetectionModel{} }

// Apply replaces the current detections.
func (m *DetectionModel) Apply(boxes []detection.Box, epoch, seq uint64) {
	if m == nil {
		return
	}
	cp := make([]detection.Box, len(boxes))
	copy(cp, boxes)
	m.mu.Lock()
	m.boxes, m.epoch, m.seq = cp, epoch, seq
	m.version++
	m.mu.Unlock()
}

// Clear drops all detections.
func (m *DetectionModel) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.boxes != nil || m.seq != 0 {
		m.version++
	}
	m.boxes, m.epoch, m.seq = nil, 0, 0
	m.mu.Unlock()
}

// Boxes returns a copy of the current detections.
func (m *DetectionModel) Boxes() []detection.Box {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.boxes) == 0 {
		return nil
	}
	cp := make([]detection.Box, len(m.boxes))
	copy(cp, m.boxes)
	return cp
}

// Stamp returns the epoch and sequence of the applied result (zero after Clear).
func (m *DetectionModel) Stamp() (epoch, seq uint64) {
	if m == nil {
		return 0, 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch, m.seq
}

// Version increments on every change; views redraw when it moves.
func (m *DetectionModel) Version() uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
