package store

import (
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/history"
)

// Document returns the collaborative text handle of a document entry for UI
// binding. Edits made on the handle are recorded and notified like any other
// write.
func (s *Store) Document(key string) (core.Text, bool) {
	rec, ok := s.visible(key)
	if !ok || rec.text == nil {
		return nil, false
	}
	return rec.text, true
}

// InsertText inserts str at rune offset pos of a document.
func (s *Store) InsertText(key string, pos int, str string) error {
	return s.editText("insert", key, func(t core.Text) error { return s.editor.Insert(t, pos, str) })
}

// DeleteText removes n runes at rune offset pos of a document.
func (s *Store) DeleteText(key string, pos, n int) error {
	return s.editText("delete_text", key, func(t core.Text) error { return s.editor.Delete(t, pos, n) })
}

// AppendText adds str at the end of a document.
func (s *Store) AppendText(key string, str string) error {
	return s.editText("append", key, func(t core.Text) error { return s.editor.Append(t, str) })
}

// ReplaceText replaces the first occurrence of find in a document.
func (s *Store) ReplaceText(key string, find, replacement string) error {
	return s.editText("replace", key, func(t core.Text) error { return s.editor.Replace(t, find, replacement) })
}

func (s *Store) editText(op, key string, edit func(core.Text) error) error {
	if err := checkKey(op, key); err != nil {
		return err
	}
	rec, ok := s.entries[key]
	if !ok {
		return core.E(op, key, core.ErrNotFound)
	}
	if !s.rules.Match(rec.attrs.ContentTags) {
		return core.E(op, key, core.ErrContextMismatch)
	}
	if rec.text == nil {
		return core.E(op, key, core.ErrInvalidType)
	}

	var err error
	s.mute(func() { err = edit(rec.text) })
	if err != nil {
		return core.E(op, key, err)
	}
	s.textChanged(key, rec, core.OriginLocal)
	return nil
}

// bindText attaches a new text handle to rec and starts observing it.
func (s *Store) bindText(key string, rec *record, initial string) {
	if rec.stop != nil {
		rec.stop()
	}
	t := s.newText(initial)
	rec.text, rec.value, rec.last = t, "", initial
	rec.stop = t.Observe(func(core.TextDelta) {
		if s.muted > 0 || s.entries[key] != rec {
			return
		}
		s.textChanged(key, rec, core.OriginLocal)
	})
}

// textChanged records and notifies an edit that already reached the handle.
func (s *Store) textChanged(key string, rec *record, origin core.Origin) {
	now := rec.text.String()
	if now == rec.last {
		return
	}
	before := core.Entry{Value: rec.last, Attributes: rec.attrs.Clone()}
	rec.last = now
	after := rec.entry()
	s.history.Record(history.Change{Key: key, Before: &before, After: &after})
	s.emit(core.Event{Type: core.EventSet, Key: key, Origin: origin})
}

// mute runs fn with handle observation suppressed; the store records its own
// edits itself.
func (s *Store) mute(fn func()) {
	s.muted++
	defer func() { s.muted-- }()
	fn()
}
