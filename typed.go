package stm

import "github.com/aretw0/stm/pkg/typed"

// Value is a typed view over one json entry.
type Value[T any] = typed.Value[T]

// Model pairs a decoded value with its key.
type Model[T any] = typed.Model[T]

// NewValue creates a typed accessor for key.
func NewValue[T any](st *Store, key string) *Value[T] {
	return typed.New[T](st, key)
}

// ListValues decodes every json entry matching pattern.
func ListValues[T any](st *Store, pattern string) ([]*Model[T], error) {
	return typed.List[T](st, pattern)
}
