package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/vision-live-go/ui/model"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats shows live session durations and the engine counters.
type SessionStats interface {
	SetSession(d time.Duration)
	SetTotal(d time.Duration)
	SetCounters(c model.Counters)
}

type sessionStats struct {
	sessionLbl  *LabelWidget
	totalLbl    *LabelWidget
	countersLbl *LabelWidget
}

// NewSessionStats places the session, total and counter labels at
// (row, startCol), (row, startCol+1) and (row, startCol+2).
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{sessionLbl: Label(Width(14)), totalLbl: Label(Width(14)), countersLbl: Label(Anchor("w"))}
	for i, l := range []*LabelWidget{s.sessionLbl, s.totalLbl, s.countersLbl} {
		if parent != nil {
			Grid(l, In(parent), Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		} else {
			Grid(l, Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		}
	}
	s.sessionLbl.Configure(Txt("Live: 00:00"))
	s.totalLbl.Configure(Txt("Total: 00:00"))
	s.SetCounters(model.Counters{})
	return s
}

// SetSession updates the live session duration display.
func (s *sessionStats) SetSession(d time.Duration) {
	if s == nil || s.sessionLbl == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Live: " + clock(d)))
}

// SetTotal updates the total duration display.
func (s *sessionStats) SetTotal(d time.Duration) {
	if s == nil || s.totalLbl == nil {
		return
	}
	s.totalLbl.Configure(Txt("Total: " + clock(d)))
}

func (s *sessionStats) SetCounters(c model.Counters) {
	if s == nil || s.countersLbl == nil {
		return
	}
	s.countersLbl.Configure(Txt(FormatCounters(c)))
}

// FormatCounters renders the counters line.
func FormatCounters(c model.Counters) string {
	return fmt.Sprintf("sent %s | shown %s | stale %s | failed %s | handles %d",
		humanize.Comma(int64(c.Submitted)),
		humanize.Comma(int64(c.Applied)),
		humanize.Comma(int64(c.Dropped)),
		humanize.Comma(int64(c.Failures)),
		c.Outstanding)
}

func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	min, sec := seconds/60, seconds%60
	return fmt.Sprintf("%02d:%02d", min, sec)
}
