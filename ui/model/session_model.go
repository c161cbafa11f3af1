package model

import (
	"time"
)

// Counters mirrors the engine counters shown next to the session timer.
type Counters struct {
	Submitted   uint64
	Applied     uint64
	Dropped     uint64
	Failures    uint64
	Outstanding int
}

// SessionModel tracks how long live detection has been running, both for
// the current run and in total, plus the last counters snapshot.
// Updated on the UI tick only. The zero value is ready to use.
type SessionModel struct {
	live     bool
	start    time.Time
	current  time.Duration
	finished time.Duration
	counters Counters
}

func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick advances the timers. live is whether the sampling loop is eligible.
func (m *SessionModel) OnTick(live bool, now time.Time) {
	if m == nil {
		return
	}
	switch {
	case live && !m.live:
		m.live = true
		m.start = now
		m.current = 0
	case live:
		m.current = now.Sub(m.start)
	case m.live:
		m.current = now.Sub(m.start)
		m.finished += m.current
		m.live = false
	}
}

// SetCounters stores the latest counters.
func (m *SessionModel) SetCounters(c Counters) {
	if m == nil {
		return
	}
	m.counters = c
}

// Values returns the current run and the total including it.
func (m *SessionModel) Values() (run, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	run = m.current
	total = m.finished
	if m.live {
		total += run
	}
	return
}

// Counters returns the last stored counters.
func (m *SessionModel) Counters() Counters {
	if m == nil {
		return Counters{}
	}
	return m.counters
}
