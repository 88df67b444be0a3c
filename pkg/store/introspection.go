package store

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/stm/pkg/core"
)

// State is the observable state of a Store.
type State struct {
	Entries        int                `json:"entries"`
	Visible        int                `json:"visible"`
	Documents      int                `json:"documents"`
	Protected      int                `json:"protected"`
	AccessLevel    core.AccessLevel   `json:"access_level"`
	Context        *core.ContextRules `json:"context,omitempty"`
	HistoryEnabled bool               `json:"history_enabled"`
	UndoDepth      int                `json:"undo_depth"`
	RedoDepth      int                `json:"redo_depth"`
	Listeners      int                `json:"listeners"`
	Version        string             `json:"version"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	st := State{
		Entries:        len(s.entries),
		Visible:        s.Len(),
		AccessLevel:    s.access,
		Context:        s.rules.Clone(),
		HistoryEnabled: s.history.Enabled(),
		Listeners:      len(s.listeners),
		Version:        s.version,
	}
	for _, rec := range s.entries {
		if rec.text != nil {
			st.Documents++
		}
		if rec.attrs.Protected() {
			st.Protected++
		}
	}
	for _, ls := range s.keyListeners {
		st.Listeners += len(ls)
	}
	st.UndoDepth, st.RedoDepth = s.history.Depth()
	return st
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
