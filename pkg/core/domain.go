// Package core holds the data model of the attributed store and the ports
// through which external collaborators (persistence, transport, collaborative
// text engines) are attached.
package core

import (
	"fmt"
	"slices"
)

// Type determines how an entry's value is serialized and edited.
type Type string

const (
	TypeText     Type = "text"
	TypeJSON     Type = "json"
	TypeImage    Type = "image"
	TypeFile     Type = "file"
	TypeDocument Type = "document"
)

// Valid reports whether t belongs to the closed type vocabulary.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeJSON, TypeImage, TypeFile, TypeDocument:
		return true
	}
	return false
}

// Binary reports whether values of this type are base64 payloads.
func (t Type) Binary() bool {
	return t == TypeImage || t == TypeFile
}

// ParseType converts a string into a Type, rejecting unknown names.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// SystemTag is an access-gated tag from a closed vocabulary.
type SystemTag string

const (
	TagSystemPrompt  SystemTag = "SystemPrompt"
	TagLLMRead       SystemTag = "LLMRead"
	TagLLMWrite      SystemTag = "LLMWrite"
	TagProtected     SystemTag = "protected"
	TagApplyTemplate SystemTag = "ApplyTemplate"
)

// SystemTags lists the vocabulary in canonical order.
var SystemTags = []SystemTag{TagSystemPrompt, TagLLMRead, TagLLMWrite, TagProtected, TagApplyTemplate}

// Valid reports whether t is part of the vocabulary.
func (t SystemTag) Valid() bool {
	return slices.Contains(SystemTags, t)
}

// ParseSystemTag converts a string into a SystemTag.
func ParseSystemTag(s string) (SystemTag, error) {
	t := SystemTag(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown system tag %q", ErrInvalidValue, s)
	}
	return t, nil
}

// AccessLevel is the privilege the store operates with.
type AccessLevel string

const (
	AccessUser   AccessLevel = "user"
	AccessSystem AccessLevel = "system"
	AccessAdmin  AccessLevel = "admin"
)

// Elevated reports whether the level may mutate system tags.
func (l AccessLevel) Elevated() bool {
	return l == AccessSystem || l == AccessAdmin
}

// ParseAccessLevel converts a string into an AccessLevel. Empty means user.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case "", AccessUser:
		return AccessUser, nil
	case AccessSystem, AccessAdmin:
		return AccessLevel(s), nil
	}
	return "", fmt.Errorf("%w: unknown access level %q", ErrInvalidValue, s)
}

// Reserved volatile identifiers. They only resolve inside templates.
const (
	ReservedDate    = "$date"
	ReservedTime    = "$time"
	ReservedVersion = "$version"
)

// IsReserved reports whether key is a volatile identifier that can never be
// a real entry.
func IsReserved(key string) bool {
	switch key {
	case ReservedDate, ReservedTime, ReservedVersion:
		return true
	}
	return false
}

// Entry is a key's value together with its attributes.
// Document values are carried as their flattened text.
type Entry struct {
	Value      string     `json:"value" yaml:"value"`
	Attributes Attributes `json:"attributes" yaml:"attributes"`
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return Entry{Value: e.Value, Attributes: e.Attributes.Clone()}
}

// Equal reports whether two entries are observationally identical.
func (e Entry) Equal(o Entry) bool {
	return e.Value == o.Value && e.Attributes.Equal(o.Attributes)
}

// Snapshot is a full-state copy of the store, keyed by entry key.
type Snapshot map[string]Entry

// ContextRules narrow the keys a store reveals to entries whose content tags
// contain every tag in Tags.
type ContextRules struct {
	Tags               []string    `json:"tags" yaml:"tags"`
	DefaultContentTags []string    `json:"defaultContentTags,omitempty" yaml:"defaultContentTags,omitempty"`
	DefaultSystemTags  []SystemTag `json:"defaultSystemTags,omitempty" yaml:"defaultSystemTags,omitempty"`
}

// Match reports whether the given content tags satisfy the rules.
// Nil rules or an empty tag list match everything.
func (r *ContextRules) Match(contentTags []string) bool {
	if r == nil {
		return true
	}
	for _, t := range r.Tags {
		if !slices.Contains(contentTags, t) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the rules.
func (r *ContextRules) Clone() *ContextRules {
	if r == nil {
		return nil
	}
	return &ContextRules{
		Tags:               slices.Clone(r.Tags),
		DefaultContentTags: slices.Clone(r.DefaultContentTags),
		DefaultSystemTags:  slices.Clone(r.DefaultSystemTags),
	}
}

// EventType represents the kind of change a listener is told about.
type EventType string

const (
	EventSet    EventType = "SET"
	EventDelete EventType = "DELETE"
	EventClear  EventType = "CLEAR"
	EventBatch  EventType = "BATCH"
)

// Origin tells listeners where a change came from.
type Origin string

const (
	OriginLocal   Origin = "local"
	OriginRemote  Origin = "remote"
	OriginHistory Origin = "history"
	OriginRestore Origin = "restore"
)

// Event describes one logical mutation.
type Event struct {
	Type   EventType
	Key    string
	Keys   []string
	Origin Origin
}

// Remote reports whether the change is an echo of a remote mutation and must
// not be broadcast again.
func (e Event) Remote() bool {
	return e.Origin == OriginRemote
}

// String implements fmt.Stringer (and lifecycle.Event).
func (e Event) String() string {
	if e.Key == "" {
		return fmt.Sprintf("%s (%s)", e.Type, e.Origin)
	}
	return fmt.Sprintf("%s %s (%s)", e.Type, e.Key, e.Origin)
}
