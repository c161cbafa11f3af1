package presenter

import (
	"sync"
	"time"

	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/ui/model"
)

// StateView shows the active source kind and the status line.
type StateView interface {
	SetStateLabel(string)
	SetStatus(string)
}

// StatePresenter receives source kind changes from the machine listener and
// status messages from the status model, and reflects them on the next Tick.
// Listeners may fire from background goroutines (webcam grants), so the
// pending queue is locked.
type StatePresenter struct {
	status *model.StatusModel
	view   StateView

	mu      sync.Mutex
	pending []media.Kind

	latest    media.Kind
	shown     bool
	statusVer uint64
}

func NewStatePresenter(status *model.StatusModel, view StateView) *StatePresenter {
	return &StatePresenter{status: status, view: view}
}

// OnState queues a transition. Only the last queued kind is shown.
func (p *StatePresenter) OnState(prev, next media.Kind) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, next)
	p.mu.Unlock()
}

// Tick flushes the pending kind and the status line to the view.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	var last media.Kind
	have := len(p.pending) > 0
	if have {
		last = p.pending[len(p.pending)-1]
		p.pending = p.pending[:0]
	}
	p.mu.Unlock()

	if !p.shown || (have && last != p.latest) {
		if have {
			p.latest = last
		}
		p.shown = true
		p.view.SetStateLabel("Source: " + p.latest.String())
	}
	if msg, v := p.status.Get(); v != p.statusVer {
		p.statusVer = v
		p.view.SetStatus(msg)
	}
}
