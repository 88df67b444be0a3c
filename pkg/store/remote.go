package store

import (
	"github.com/aretw0/stm/pkg/core"
)

// ApplyRemoteSet installs an entry received from a transport. It bypasses
// access and context checks, is not recorded in history, and is notified with
// OriginRemote so bindings do not broadcast it again.
func (s *Store) ApplyRemoteSet(key string, e core.Entry) error {
	if err := checkKey("apply_remote", key); err != nil {
		return err
	}
	if err := validateEntry(e); err != nil {
		return core.E("apply_remote", key, err)
	}
	s.apply(key, &e, core.OriginRemote)
	return nil
}

// ApplyRemoteDelete removes key on behalf of a transport. Protected entries
// are kept.
func (s *Store) ApplyRemoteDelete(key string) bool {
	rec, ok := s.entries[key]
	if !ok || rec.attrs.Protected() {
		return false
	}
	s.apply(key, nil, core.OriginRemote)
	return true
}

// ApplyRemoteClear mirrors Clear for a transport.
func (s *Store) ApplyRemoteClear() {
	s.batch(core.EventClear, func() {
		for _, k := range s.allKeys() {
			if !s.entries[k].attrs.Protected() {
				s.apply(k, nil, core.OriginRemote)
			}
		}
	})
}

func validateEntry(e core.Entry) error {
	if err := e.Attributes.Validate(); err != nil {
		return err
	}
	return validateValue(e.Attributes.Type, e.Value)
}
