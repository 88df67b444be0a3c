package store

import (
	"fmt"
	"slices"

	"github.com/aretw0/stm/pkg/core"
)

// Listener receives change notifications. It runs synchronously on the
// goroutine that mutated the store.
type Listener func(core.Event)

type listener struct {
	id int
	fn Listener
}

// Subscribe registers fn for changes to key and returns a func that removes it.
func (s *Store) Subscribe(key string, fn Listener) (unsubscribe func()) {
	id := s.nextListener
	s.nextListener++
	s.keyListeners[key] = append(s.keyListeners[key], listener{id: id, fn: fn})
	return func() {
		s.keyListeners[key] = slices.DeleteFunc(s.keyListeners[key], func(l listener) bool { return l.id == id })
		if len(s.keyListeners[key]) == 0 {
			delete(s.keyListeners, key)
		}
	}
}

// SubscribeAll registers fn for every logical mutation. Batched operations
// (Update, Clear, UndoAll, imports) notify it once.
func (s *Store) SubscribeAll(fn Listener) (unsubscribe func()) {
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

func (s *Store) emit(ev core.Event) {
	if s.batching > 0 {
		s.pending = append(s.pending, ev)
		return
	}
	s.notifyKey(ev)
	s.notifyAll(ev)
}

// batch defers global notification until fn returns. Key listeners still see
// one event per key. A batch of one plain change is reported as that change;
// Clear is always reported as a CLEAR event.
func (s *Store) batch(typ core.EventType, fn func()) {
	s.batching++
	defer func() {
		s.batching--
		if s.batching > 0 {
			return
		}
		events := s.pending
		s.pending = nil
		s.flush(typ, events)
	}()
	fn()
}

func (s *Store) flush(typ core.EventType, events []core.Event) {
	if len(events) == 0 && typ != core.EventClear {
		return
	}
	for _, ev := range events {
		s.notifyKey(ev)
	}
	if len(events) == 1 && typ != core.EventClear {
		s.notifyAll(events[0])
		return
	}

	summary := core.Event{Type: typ, Origin: core.OriginLocal}
	for _, ev := range events {
		summary.Keys = append(summary.Keys, ev.Key)
		summary.Origin = ev.Origin
	}
	s.notifyAll(summary)
}

func (s *Store) notifyKey(ev core.Event) {
	if ev.Key == "" {
		return
	}
	for _, l := range slices.Clone(s.keyListeners[ev.Key]) {
		s.call(l, ev)
	}
}

func (s *Store) notifyAll(ev core.Event) {
	for _, l := range slices.Clone(s.listeners) {
		s.call(l, ev)
	}
}

// call isolates listener panics so the remaining listeners still run.
func (s *Store) call(l listener, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panicked", "key", ev.Key, "event", ev.String(), "error", fmt.Sprint(r))
		}
	}()
	l.fn(ev)
}
