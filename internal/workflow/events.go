package workflow

import (
	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/rs/zerolog/log"
)

// EventType tells subscribers what an Event carries.
type EventType string

const (
	// EventState follows every state transition.
	EventState EventType = "state"
	// EventError carries the message of a failed request.
	EventError EventType = "error"
)

// Event is published to subscribers of a workflow.
type Event struct {
	Type     EventType        `json:"type" msgpack:"type"`
	Stage    models.StageName `json:"stage,omitempty" msgpack:"stage,omitempty"`
	Message  string           `json:"message,omitempty" msgpack:"message,omitempty"`
	Snapshot Snapshot         `json:"snapshot" msgpack:"snapshot"`
}

const subscriberBuffer = 16

// Subscribe registers for events. The returned cancel function must be
// called when the subscriber goes away.
func (w *Workflow) Subscribe() (<-chan Event, func()) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if w.closed {
		close(ch)
		return ch, func() {}
	}

	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch

	return ch, func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		if c, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(c)
		}
	}
}

func (w *Workflow) publish(events ...Event) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	for _, ev := range events {
		for id, ch := range w.subs {
			select {
			case ch <- ev:
			default:
				log.Warn().Str("session", w.id).Int("subscriber", id).Str("event", string(ev.Type)).Msg("subscriber lagging, event dropped")
			}
		}
	}
}

// Close drops all subscribers. Requests already in flight still finish
// but nobody is told.
func (w *Workflow) Close() {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}
