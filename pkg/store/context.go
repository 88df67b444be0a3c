package store

import "github.com/aretw0/stm/pkg/core"

// SetContext activates rules. Nil or an empty tag list reveals every entry.
// The context only changes what this store reveals, never what is persisted.
func (s *Store) SetContext(rules *core.ContextRules) {
	s.rules = rules.Clone()
}

// ClearContext removes the active context.
func (s *Store) ClearContext() {
	s.rules = nil
}

// Context returns a copy of the active rules, or nil.
func (s *Store) Context() *core.ContextRules {
	return s.rules.Clone()
}
