package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

// EventStatusChanged tells observers to re-fetch the repository status
const EventStatusChanged = "git-status-changed"

// Event is a notification delivered to observers
type Event struct {
	Type string    `json:"type" yaml:"type"`
	Root string    `json:"root" yaml:"root"`
	At   time.Time `json:"at" yaml:"at"`
}

// observers is the registry behind Service.Subscribe. Delivery happens on
// the emitting goroutine; a panicking observer is logged and skipped.
type observers struct {
	mu     sync.RWMutex
	subs   map[string]func(Event)
	logger *slog.Logger
}

func newObservers(logger *slog.Logger) *observers {
	return &observers{subs: make(map[string]func(Event)), logger: logger}
}

func (o *observers) add(fn func(Event)) string {
	id := uuid.NewString()
	o.mu.Lock()
	o.subs[id] = fn
	o.mu.Unlock()
	return id
}

func (o *observers) remove(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.subs[id]; !ok {
		return false
	}
	delete(o.subs, id)
	return true
}

func (o *observers) len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

func (o *observers) notify(ev Event) {
	o.mu.RLock()
	fns := make(map[string]func(Event), len(o.subs))
	for id, fn := range o.subs {
		fns[id] = fn
	}
	o.mu.RUnlock()

	for id, fn := range fns {
		var pc panics.Catcher
		pc.Try(func() { fn(ev) })
		if r := pc.Recovered(); r != nil {
			o.logger.Error("observer panicked", "observer", id, "panic", r.Value)
		}
	}
}
