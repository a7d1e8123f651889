package watcher

import (
	"slices"

	"github.com/obsidianstack/calloutstack/pkg/types"
)

// EventKind identifies a watcher event.
type EventKind int

const (
	EventAdd EventKind = iota
	EventChange
	EventRemove
	EventCheckStarted
	EventCheckComplete
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventRemove:
		return "remove"
	case EventCheckStarted:
		return "checkStarted"
	case EventCheckComplete:
		return "checkComplete"
	default:
		return "unknown"
	}
}

// Stylesheet is the payload of add, change and remove events.
type Stylesheet struct {
	Kind types.SourceKind
	// Name is the theme ID or snippet name. Empty for the builtin sheet.
	Name string
	Text string
}

// Source returns the registry source the stylesheet belongs to.
func (s Stylesheet) Source() types.Source {
	return types.Source{Kind: s.Kind, Name: s.Name}
}

// Event is delivered to listeners.
type Event struct {
	Kind EventKind

	// Sheet is set for EventAdd, EventChange and EventRemove. For removals
	// it carries the last text seen.
	Sheet Stylesheet

	// AnyChanged is set for EventCheckComplete.
	AnyChanged bool
}

// Listener receives watcher events.
type Listener func(Event)

// Subscription is returned by On.
type Subscription struct {
	id   uint64
	kind EventKind
	w    *Watcher
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s.w != nil {
		s.w.unsubscribe(s.kind, s.id)
	}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// On registers fn for events of the given kind. Listeners of one kind are
// called in registration order.
func (w *Watcher) On(kind EventKind, fn Listener) *Subscription {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[kind] = append(w.listeners[kind], listenerEntry{id: id, fn: fn})
	return &Subscription{id: id, kind: kind, w: w}
}

func (w *Watcher) unsubscribe(kind EventKind, id uint64) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	w.listeners[kind] = slices.DeleteFunc(w.listeners[kind], func(e listenerEntry) bool {
		return e.id == id
	})
}

func (w *Watcher) emit(ev Event) {
	w.subsMu.Lock()
	entries := slices.Clone(w.listeners[ev.Kind])
	w.subsMu.Unlock()
	for _, e := range entries {
		e.fn(ev)
	}
}

func (w *Watcher) emitSheet(kind EventKind, sheet Stylesheet) {
	w.emit(Event{Kind: kind, Sheet: sheet})
}
