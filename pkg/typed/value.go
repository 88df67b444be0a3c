package typed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/stm/pkg/core"
)

// Accessor is the subset of the store a typed view needs.
type Accessor interface {
	GetRaw(key string) (string, bool)
	GetAttributes(key string) (core.Attributes, bool)
	Set(key, value string, patch *core.AttributesPatch) error
	Match(pattern string) ([]string, error)
}

// Model is a decoded json entry. It acts as an active record: Save writes
// Data back under Key through the accessor it was loaded from.
type Model[T any] struct {
	Key  string
	Data T

	acc Accessor
}

// Save persists the model.
func (m *Model[T]) Save() error {
	if m.acc == nil {
		return fmt.Errorf("model %q is detached (missing accessor)", m.Key)
	}
	return New[T](m.acc, m.Key).Set(m.Data)
}

// Value is a typed view over one json entry.
type Value[T any] struct {
	acc Accessor
	key string
}

// New creates a typed view of key.
func New[T any](acc Accessor, key string) *Value[T] {
	return &Value[T]{acc: acc, key: key}
}

// Key returns the viewed key.
func (v *Value[T]) Key() string { return v.key }

// Get decodes the entry. Entries that are not json fail with ErrInvalidType.
func (v *Value[T]) Get() (T, error) {
	var out T
	raw, err := v.raw()
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, core.E("typed_get", v.key, fmt.Errorf("%w: %v", core.ErrInvalidValue, err))
	}
	return out, nil
}

// Load decodes the entry into a Model bound to the same accessor.
func (v *Value[T]) Load() (*Model[T], error) {
	data, err := v.Get()
	if err != nil {
		return nil, err
	}
	return &Model[T]{Key: v.key, Data: data, acc: v.acc}, nil
}

// Set encodes val and writes it. A missing key is created as a json entry.
func (v *Value[T]) Set(val T) error {
	data, err := json.Marshal(val)
	if err != nil {
		return core.E("typed_set", v.key, fmt.Errorf("%w: %v", core.ErrInvalidValue, err))
	}
	var patch *core.AttributesPatch
	attrs, ok := v.acc.GetAttributes(v.key)
	switch {
	case !ok:
		patch = core.Patch().WithType(core.TypeJSON)
	case attrs.Type != core.TypeJSON:
		return core.E("typed_set", v.key, core.ErrInvalidType)
	}
	return v.acc.Set(v.key, string(data), patch)
}

// Update reads, mutates and writes the entry back. A missing key starts
// from the zero value.
func (v *Value[T]) Update(fn func(*T) error) error {
	cur, err := v.Get()
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if err := fn(&cur); err != nil {
		return err
	}
	return v.Set(cur)
}

func (v *Value[T]) raw() (string, error) {
	attrs, ok := v.acc.GetAttributes(v.key)
	if !ok {
		return "", core.E("typed_get", v.key, core.ErrNotFound)
	}
	if attrs.Type != core.TypeJSON {
		return "", core.E("typed_get", v.key, core.ErrInvalidType)
	}
	raw, _ := v.acc.GetRaw(v.key)
	return raw, nil
}

// List decodes every json entry whose key matches the doublestar pattern.
// Entries of other types are skipped.
func List[T any](acc Accessor, pattern string) ([]*Model[T], error) {
	keys, err := acc.Match(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]*Model[T], 0, len(keys))
	for _, k := range keys {
		attrs, ok := acc.GetAttributes(k)
		if !ok || attrs.Type != core.TypeJSON {
			continue
		}
		m, err := New[T](acc, k).Load()
		if err != nil {
			return nil, fmt.Errorf("failed to process entry %s: %w", k, err)
		}
		out = append(out, m)
	}
	return out, nil
}
