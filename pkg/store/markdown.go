package store

import (
	"fmt"
	"unicode/utf8"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/history"
	"github.com/aretw0/stm/pkg/markdown"
)

// ToMarkdown exports the visible entries. Protected entries are never
// exported.
func (s *Store) ToMarkdown() ([]byte, error) {
	var items []markdown.Item
	for _, k := range s.Keys() {
		rec := s.entries[k]
		if rec.attrs.Protected() {
			continue
		}
		items = append(items, markdown.Item{Key: k, Entry: rec.entry()})
	}
	enc := markdown.NewEncoder(markdown.WithClock(s.now), markdown.WithVersion(s.version))
	return enc.Encode(items)
}

// FromMarkdown imports an export. Unless merge is set, every entry that is
// not protected is removed first. Invalid entries are skipped and logged; an
// input with no entry structure is imported as a single text entry. The
// import is one undo step and one global notification.
func (s *Store) FromMarkdown(data []byte, merge bool) error {
	if !utf8.Valid(data) {
		return core.E("import", "", fmt.Errorf("%w: markdown is not UTF-8", core.ErrInvalidValue))
	}
	doc := markdown.Decode(data)
	for _, w := range doc.Warnings {
		s.logger.Warn("markdown import", "warning", w)
	}
	if doc.Opaque {
		s.logger.Info("markdown import found no entries, importing as text", "key", markdown.ImportedKey)
	}

	items := make([]markdown.Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		if err := checkKey("import", it.Key); err != nil {
			s.logger.Warn("markdown import skipped entry", "key", it.Key, "error", err)
			continue
		}
		if err := validateEntry(it.Entry); err != nil {
			s.logger.Warn("markdown import skipped entry", "key", it.Key, "error", err)
			continue
		}
		if cur, ok := s.entries[it.Key]; ok && cur.attrs.Protected() {
			s.logger.Warn("markdown import skipped entry", "key", it.Key, "error", core.ErrProtected)
			continue
		}
		items = append(items, it)
	}

	s.batch(core.EventBatch, func() {
		s.history.Group(func() {
			if !merge {
				for _, k := range s.allKeys() {
					rec := s.entries[k]
					if rec.attrs.Protected() {
						continue
					}
					before := rec.entry()
					s.apply(k, nil, core.OriginLocal)
					s.history.Record(history.Change{Key: k, Before: &before})
				}
			}
			for _, it := range items {
				var before *core.Entry
				if rec, ok := s.entries[it.Key]; ok {
					b := rec.entry()
					before = &b
				}
				e := it.Entry
				s.apply(it.Key, &e, core.OriginLocal)
				after := s.entries[it.Key].entry()
				s.history.Record(history.Change{Key: it.Key, Before: before, After: &after})
			}
		})
	})
	return nil
}
