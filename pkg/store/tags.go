package store

import (
	"slices"

	"github.com/aretw0/stm/pkg/core"
)

// AddTag adds a content tag. Content tags need no elevated access.
func (s *Store) AddTag(key, tag string) bool {
	rec, ok := s.visible(key)
	if !ok || tag == "" {
		return false
	}
	if slices.Contains(rec.attrs.ContentTags, tag) {
		return true
	}
	return s.SetAttributes(key, core.Patch().WithContentTags(append(slices.Clone(rec.attrs.ContentTags), tag)...))
}

// RemoveTag removes a content tag. Removing a tag of the active context
// takes the key out of view.
func (s *Store) RemoveTag(key, tag string) bool {
	rec, ok := s.visible(key)
	if !ok || !slices.Contains(rec.attrs.ContentTags, tag) {
		return false
	}
	tags := slices.DeleteFunc(slices.Clone(rec.attrs.ContentTags), func(t string) bool { return t == tag })
	return s.SetAttributes(key, core.Patch().WithContentTags(tags...))
}

// HasTag reports whether key carries the content tag.
func (s *Store) HasTag(key, tag string) bool {
	rec, ok := s.visible(key)
	return ok && slices.Contains(rec.attrs.ContentTags, tag)
}

// GetTags returns the content tags of key.
func (s *Store) GetTags(key string) []string {
	rec, ok := s.visible(key)
	if !ok {
		return nil
	}
	return slices.Clone(rec.attrs.ContentTags)
}

// GetAllTags returns every content tag in use by visible keys, in first-seen
// order over Keys.
func (s *Store) GetAllTags() []string {
	var out []string
	for _, k := range s.Keys() {
		for _, t := range s.entries[k].attrs.ContentTags {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// GetKeysByTag returns the visible keys carrying the content tag.
func (s *Store) GetKeysByTag(tag string) []string {
	var out []string
	for _, k := range s.Keys() {
		if slices.Contains(s.entries[k].attrs.ContentTags, tag) {
			out = append(out, k)
		}
	}
	return out
}

// SystemAddTag adds a system tag. It reports false without elevated access.
func (s *Store) SystemAddTag(key string, tag core.SystemTag) bool {
	rec, ok := s.visible(key)
	if !ok || !s.access.Elevated() || !tag.Valid() {
		return false
	}
	if rec.attrs.HasSystemTag(tag) {
		return true
	}
	return s.SetAttributes(key, core.Patch().WithSystemTags(append(slices.Clone(rec.attrs.SystemTags), tag)...))
}

// SystemRemoveTag removes a system tag. Removing protected always fails.
func (s *Store) SystemRemoveTag(key string, tag core.SystemTag) bool {
	rec, ok := s.visible(key)
	if !ok || !s.access.Elevated() || tag == core.TagProtected || !rec.attrs.HasSystemTag(tag) {
		return false
	}
	tags := slices.DeleteFunc(slices.Clone(rec.attrs.SystemTags), func(t core.SystemTag) bool { return t == tag })
	return s.SetAttributes(key, core.Patch().WithSystemTags(tags...))
}

// SystemSetTags replaces the system tags. A protected key keeps protected.
func (s *Store) SystemSetTags(key string, tags []core.SystemTag) bool {
	if _, ok := s.visible(key); !ok || !s.access.Elevated() {
		return false
	}
	return s.SetAttributes(key, core.Patch().WithSystemTags(tags...))
}

// SystemGetTags returns the system tags of key, or nil without elevated access.
func (s *Store) SystemGetTags(key string) []core.SystemTag {
	rec, ok := s.visible(key)
	if !ok || !s.access.Elevated() {
		return nil
	}
	return slices.Clone(rec.attrs.SystemTags)
}

// SystemHasTag reports whether key carries tag. It reports false without
// elevated access.
func (s *Store) SystemHasTag(key string, tag core.SystemTag) bool {
	rec, ok := s.visible(key)
	return ok && s.access.Elevated() && rec.attrs.HasSystemTag(tag)
}

// SystemGetKeysByTag returns the visible keys carrying the system tag, or nil
// without elevated access.
func (s *Store) SystemGetKeysByTag(tag core.SystemTag) []string {
	if !s.access.Elevated() {
		return nil
	}
	var out []string
	for _, k := range s.Keys() {
		if s.entries[k].attrs.HasSystemTag(tag) {
			out = append(out, k)
		}
	}
	return out
}
