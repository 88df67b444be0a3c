package store

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/stm/pkg/core"
)

// Serialize returns a full copy of the state for persistence and transport
// collaborators. The context does not apply.
func (s *Store) Serialize() core.Snapshot {
	snap := make(core.Snapshot, len(s.entries))
	for k, rec := range s.entries {
		snap[k] = rec.entry()
	}
	return snap
}

// SerializedEntry returns a copy of one entry the way Serialize would: the
// context does not apply.
func (s *Store) SerializedEntry(key string) (core.Entry, bool) {
	rec, ok := s.entries[key]
	if !ok {
		return core.Entry{}, false
	}
	return rec.entry(), true
}

// SerializeJSON encodes Serialize as indented JSON.
func (s *Store) SerializeJSON() ([]byte, error) {
	return json.MarshalIndent(s.Serialize(), "", "  ")
}

// Deserialize replaces the whole state with snap. Every entry is validated
// first; on error the store is left untouched. History is reset.
func (s *Store) Deserialize(snap core.Snapshot) error {
	keys := slices.Collect(maps.Keys(snap))
	for _, k := range keys {
		if core.IsReserved(k) {
			continue
		}
		if err := checkKey("deserialize", k); err != nil {
			s.logger.Warn("snapshot rejected", "key", k, "error", err)
			return err
		}
		if err := validateEntry(snap[k]); err != nil {
			s.logger.Warn("snapshot rejected", "key", k, "error", err)
			return core.E("deserialize", k, err)
		}
	}
	keys = slices.DeleteFunc(keys, core.IsReserved)
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(snap[a].Attributes.ZIndex, snap[b].Attributes.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	s.batch(core.EventBatch, func() {
		for _, k := range s.allKeys() {
			if _, keep := snap[k]; !keep {
				s.apply(k, nil, core.OriginRestore)
			}
		}
		for _, k := range keys {
			e := snap[k]
			if cur, ok := s.entries[k]; ok && cur.entry().Equal(e) {
				continue
			}
			s.apply(k, &e, core.OriginRestore)
		}
	})
	s.history.Reset()
	return nil
}

// DeserializeJSON decodes a JSON snapshot, upgrading legacy attribute
// layouts, and applies it with Deserialize.
func (s *Store) DeserializeJSON(data []byte) error {
	snap, err := core.UpgradeSnapshot(data)
	if err != nil {
		s.logger.Warn("snapshot decode failed", "error", err)
		return fmt.Errorf("deserialize: %w", err)
	}
	return s.Deserialize(snap)
}
