package store

import (
	"github.com/aretw0/stm/pkg/core"
)

// EnableHistory turns undo/redo on or off. Persistence and sync bindings turn
// it on once a durable backing is attached; turning it off drops all history.
func (s *Store) EnableHistory(on bool) { s.history.Enable(on) }

// HistoryEnabled reports whether changes are recorded.
func (s *Store) HistoryEnabled() bool { return s.history.Enabled() }

// StopCapturing closes the current undo step so the next edit starts a new one.
func (s *Store) StopCapturing() { s.history.StopCapturing() }

// CanUndo reports whether key has an undo step.
func (s *Store) CanUndo(key string) bool { return s.history.CanUndo(key) }

// CanRedo reports whether key has a redo step.
func (s *Store) CanRedo(key string) bool { return s.history.CanRedo(key) }

// CanUndoAll reports whether the global timeline has an undo step.
func (s *Store) CanUndoAll() bool { return s.history.CanUndoAll() }

// CanRedoAll reports whether the global timeline has a redo step.
func (s *Store) CanRedoAll() bool { return s.history.CanRedoAll() }

// Undo reverts the latest step of key.
func (s *Store) Undo(key string) bool {
	if _, ok := s.visible(key); !ok && s.entries[key] != nil {
		return false
	}
	var ok bool
	s.batch(core.EventBatch, func() { ok = s.history.Undo(key, s.restore) })
	return ok
}

// Redo re-applies the latest undone step of key.
func (s *Store) Redo(key string) bool {
	if _, ok := s.visible(key); !ok && s.entries[key] != nil {
		return false
	}
	var ok bool
	s.batch(core.EventBatch, func() { ok = s.history.Redo(key, s.restore) })
	return ok
}

// UndoAll reverts the latest global step, restoring every key it touched.
func (s *Store) UndoAll() bool {
	var ok bool
	s.batch(core.EventBatch, func() { ok = s.history.UndoAll(s.restore) })
	return ok
}

// RedoAll re-applies the latest undone global step.
func (s *Store) RedoAll() bool {
	var ok bool
	s.batch(core.EventBatch, func() { ok = s.history.RedoAll(s.restore) })
	return ok
}

func (s *Store) restore(key string, e *core.Entry) {
	s.apply(key, e, core.OriginHistory)
}

// apply installs e as the state of key without access checks; nil deletes.
// Document handles are kept and edited in place when both sides are documents.
func (s *Store) apply(key string, e *core.Entry, origin core.Origin) {
	rec, exists := s.entries[key]
	if e == nil {
		if !exists {
			return
		}
		s.drop(key, rec)
		s.emit(core.Event{Type: core.EventDelete, Key: key, Origin: origin})
		return
	}

	if !exists {
		rec = &record{seq: s.nextSeq()}
		s.entries[key] = rec
	}
	attrs := e.Attributes.Clone()
	switch {
	case attrs.Type == core.TypeDocument && rec.text != nil:
		s.mute(func() {
			if _, err := s.editor.SetText(rec.text, e.Value); err != nil {
				s.logger.Error("restore document", "key", key, "origin", origin, "error", err)
			}
		})
		rec.last = rec.text.String()
	case attrs.Type == core.TypeDocument:
		s.bindText(key, rec, e.Value)
	default:
		if rec.stop != nil {
			rec.stop()
		}
		rec.text, rec.stop, rec.last = nil, nil, ""
		rec.value = e.Value
	}
	rec.attrs = attrs
	s.emit(core.Event{Type: core.EventSet, Key: key, Origin: origin})
}
