package presenter

import "time"

// Ticker is advanced once per display frame.
type Ticker interface {
	Tick(now time.Time)
}

// Loop aggregates feature presenters and drives periodic updates.
//
// Order matters: pending webcam answers land first so the sampling loop and
// the preview see the new source in the same frame. The zero value is
// usable (methods are nil-safe).
type Loop struct {
	Source   *SourcePresenter
	Sampler  Ticker
	Preview  *PreviewPresenter
	Weights  *WeightsPresenter
	Session  *SessionPresenter
	State    *StatePresenter
	Schedule func()
	Now      func() time.Time
}

func NewLoop(source *SourcePresenter, sampler Ticker, preview *PreviewPresenter, weights *WeightsPresenter, sess *SessionPresenter, state *StatePresenter, schedule func()) *Loop {
	return &Loop{
		Source:   source,
		Sampler:  sampler,
		Preview:  preview,
		Weights:  weights,
		Session:  sess,
		State:    state,
		Schedule: schedule,
	}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Source != nil {
		l.Source.Tick(now)
	}
	if l.Sampler != nil {
		l.Sampler.Tick(now)
	}
	if l.Preview != nil {
		l.Preview.Tick(now)
	}
	if l.Weights != nil {
		l.Weights.Tick(now)
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.State != nil {
		l.State.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
