// Package notify carries sync progress and transient user notices from the
// engine to whatever front end is listening.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Kind names an event stream. Subscribers attach per kind.
type Kind string

const (
	KindProgress Kind = "progress"
	KindNotice   Kind = "notice"
	KindError    Kind = "error"
)

// Event is a single published signal.
type Event struct {
	Kind     Kind
	Resource string // progress: collection being fetched
	Count    int    // progress: records fetched so far
	Total    int    // progress: server-reported total, -1 while unknown
	Message  string // notice/error
}

// Progress builds a progress event. Pass total < 0 for the indeterminate
// signal emitted before the first page of a collection arrives.
func Progress(resource string, count, total int) Event {
	return Event{Kind: KindProgress, Resource: resource, Count: count, Total: total}
}

// Notice builds a transient user-facing message event.
func Notice(message string) Event {
	return Event{Kind: KindNotice, Message: message}
}

// Error builds a transient error message event.
func Error(message string) Event {
	return Event{Kind: KindError, Message: message}
}

// Handler receives published events.
type Handler func(Event)

// Notifier is a synchronous fire-and-forget pub/sub hub. Delivery happens on
// the publishing goroutine, there is no buffering and late subscribers see
// nothing from before they attached.
type Notifier struct {
	mu   sync.RWMutex
	subs map[Kind]map[string]Handler
}

func New() *Notifier {
	return &Notifier{subs: map[Kind]map[string]Handler{}}
}

// Publish delivers ev to every current subscriber of its kind.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	handlers := make([]Handler, 0, len(n.subs[ev.Kind]))
	for _, h := range n.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribe attaches handler to a kind and returns its detach function.
// Unsubscribing twice is harmless.
func (n *Notifier) Subscribe(kind Kind, handler Handler) (unsubscribe func()) {
	token := uuid.NewString()

	n.mu.Lock()
	if n.subs[kind] == nil {
		n.subs[kind] = map[string]Handler{}
	}
	n.subs[kind][token] = handler
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs[kind], token)
		n.mu.Unlock()
	}
}
