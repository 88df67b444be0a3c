package core

import (
	"fmt"
	"mime"
	"slices"
	"strings"
)

// Attributes is the per-key access-control and typing metadata.
type Attributes struct {
	Type        Type        `json:"type" yaml:"type"`
	ContentType string      `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	ContentTags []string    `json:"contentTags" yaml:"contentTags"`
	SystemTags  []SystemTag `json:"systemTags" yaml:"systemTags"`
	ZIndex      int         `json:"zIndex" yaml:"zIndex"`
}

// DefaultAttributes returns the attributes a new entry starts from.
func DefaultAttributes() Attributes {
	return Attributes{
		Type:        TypeText,
		ContentTags: []string{},
		SystemTags:  []SystemTag{},
	}
}

// HasSystemTag reports whether the tag is present.
func (a Attributes) HasSystemTag(t SystemTag) bool {
	return slices.Contains(a.SystemTags, t)
}

// VisibleToLLM reports whether the entry may be shown to an LLM.
func (a Attributes) VisibleToLLM() bool {
	return a.HasSystemTag(TagSystemPrompt) || a.HasSystemTag(TagLLMRead)
}

// WritableByLLM reports whether an LLM may rewrite the entry.
func (a Attributes) WritableByLLM() bool {
	return a.HasSystemTag(TagLLMWrite)
}

// Protected reports whether the entry is undeletable.
func (a Attributes) Protected() bool {
	return a.HasSystemTag(TagProtected)
}

// TemplateEnabled reports whether reads substitute {{key}} placeholders.
func (a Attributes) TemplateEnabled() bool {
	return a.HasSystemTag(TagApplyTemplate)
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	c := a
	c.ContentTags = slices.Clone(a.ContentTags)
	if c.ContentTags == nil {
		c.ContentTags = []string{}
	}
	c.SystemTags = slices.Clone(a.SystemTags)
	if c.SystemTags == nil {
		c.SystemTags = []SystemTag{}
	}
	return c
}

// Equal compares attributes field by field; nil and empty tag sets are equal.
func (a Attributes) Equal(o Attributes) bool {
	return a.Type == o.Type &&
		a.ContentType == o.ContentType &&
		a.ZIndex == o.ZIndex &&
		slices.Equal(a.ContentTags, o.ContentTags) &&
		slices.Equal(a.SystemTags, o.SystemTags)
}

// Validate checks the type/content-type combination and the tag vocabulary.
func (a Attributes) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
	for _, t := range a.SystemTags {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown system tag %q", ErrInvalidValue, t)
		}
	}
	if a.Type.Binary() {
		if a.ContentType == "" {
			return fmt.Errorf("%w: %s entries need a content type", ErrInvalidContentType, a.Type)
		}
		mediaType, _, err := mime.ParseMediaType(a.ContentType)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidContentType, a.ContentType, err)
		}
		if a.Type == TypeImage && !strings.HasPrefix(mediaType, "image/") {
			return fmt.Errorf("%w: %q is not an image type", ErrInvalidContentType, a.ContentType)
		}
	}
	return nil
}

// AttributesPatch is a partial update. Nil fields are left untouched.
type AttributesPatch struct {
	Type        *Type
	ContentType *string
	ContentTags []string
	SystemTags  []SystemTag
	ZIndex      *int

	// setContentTags/setSystemTags distinguish "replace with empty" from "unchanged".
	setContentTags bool
	setSystemTags  bool
}

// Patch starts an empty patch.
func Patch() *AttributesPatch { return &AttributesPatch{} }

// WithType sets the type.
func (p *AttributesPatch) WithType(t Type) *AttributesPatch {
	p.Type = &t
	return p
}

// WithContentType sets the MIME content type.
func (p *AttributesPatch) WithContentType(ct string) *AttributesPatch {
	p.ContentType = &ct
	return p
}

// WithContentTags replaces the content tags.
func (p *AttributesPatch) WithContentTags(tags ...string) *AttributesPatch {
	p.ContentTags = tags
	p.setContentTags = true
	return p
}

// WithSystemTags replaces the system tags.
func (p *AttributesPatch) WithSystemTags(tags ...SystemTag) *AttributesPatch {
	p.SystemTags = tags
	p.setSystemTags = true
	return p
}

// WithZIndex sets the ordering hint.
func (p *AttributesPatch) WithZIndex(z int) *AttributesPatch {
	p.ZIndex = &z
	return p
}

// TouchesContentTags reports whether the patch replaces content tags.
func (p *AttributesPatch) TouchesContentTags() bool {
	return p != nil && (p.setContentTags || p.ContentTags != nil)
}

// TouchesSystemTags reports whether the patch replaces system tags.
func (p *AttributesPatch) TouchesSystemTags() bool {
	return p != nil && (p.setSystemTags || p.SystemTags != nil)
}

// Apply merges the patch onto base and returns the result. base is not modified.
func (p *AttributesPatch) Apply(base Attributes) Attributes {
	out := base.Clone()
	if p == nil {
		return out
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.ContentType != nil {
		out.ContentType = *p.ContentType
	}
	if p.TouchesContentTags() {
		out.ContentTags = UniqueStrings(p.ContentTags)
	}
	if p.TouchesSystemTags() {
		out.SystemTags = UniqueSystemTags(p.SystemTags)
	}
	if p.ZIndex != nil {
		out.ZIndex = *p.ZIndex
	}
	return out
}

// PatchFrom builds a patch that sets every field of a.
func PatchFrom(a Attributes) *AttributesPatch {
	p := Patch().WithType(a.Type).WithZIndex(a.ZIndex).
		WithContentTags(a.ContentTags...).WithSystemTags(a.SystemTags...)
	if a.ContentType != "" {
		p.WithContentType(a.ContentType)
	}
	return p
}

// UniqueStrings returns tags with duplicates and empty strings removed,
// preserving first-seen order.
func UniqueStrings(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// UniqueSystemTags is UniqueStrings for system tags.
func UniqueSystemTags(tags []SystemTag) []SystemTag {
	out := make([]SystemTag, 0, len(tags))
	for _, t := range tags {
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
