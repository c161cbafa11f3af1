package presenter

import (
	"time"

	"github.com/soocke/vision-live-go/ui/model"
)

// LiveGate reports whether live sampling is in effect.
type LiveGate interface{ LiveEligible() bool }

// SessionView displays formatted session durations and engine counters.
type SessionView interface {
	SetSession(session, total time.Duration)
	SetCounters(model.Counters)
}

// SessionPresenter formats live session durations and counters from the model to the view.
type SessionPresenter struct {
	sess     *model.SessionModel
	live     LiveGate
	counters func() model.Counters
	view     SessionView
	last     model.Counters
	pushed   bool
}

// NewSessionPresenter returns a new SessionPresenter. counters may be nil.
func NewSessionPresenter(sess *model.SessionModel, live LiveGate, counters func() model.Counters, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, live: live, counters: counters, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.live == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.live.LiveEligible(), now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	if p.counters == nil {
		return
	}
	c := p.counters()
	p.sess.SetCounters(c)
	if !p.pushed || c != p.last {
		p.last, p.pushed = c, true
		p.view.SetCounters(c)
	}
}
