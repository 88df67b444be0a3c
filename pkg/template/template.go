// Package template substitutes {{key}} placeholders with store values.
//
// A top-level (external) render only reads entries the source reports as
// visible; nested renders triggered by a referenced template-enabled entry
// may read any key. Cycles terminate by returning the raw value of the entry
// that is already being resolved.
package template

import (
	"regexp"
	"time"

	"github.com/aretw0/stm/pkg/core"
)

// Formats used for the reserved $date and $time identifiers.
const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04:05"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Source gives the engine read access to entries.
type Source interface {
	// Lookup returns the entry for key with document values flattened,
	// ignoring visibility.
	Lookup(key string) (core.Entry, bool)
	// Visible reports whether an external render may read the entry.
	Visible(key string, e core.Entry) bool
}

// Engine renders templates. The zero value is not usable; call New.
type Engine struct {
	now     func() time.Time
	version string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source for $date and $time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVersion sets the value of $version.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, version: "dev"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPlaceholders reports whether s contains at least one placeholder.
func HasPlaceholders(s string) bool {
	return placeholder.MatchString(s)
}

// References lists the identifiers referenced by s, in order of appearance.
func References(s string) []string {
	var refs []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// Render substitutes the placeholders of s as an external call.
func (e *Engine) Render(src Source, s string) string {
	r := e.newRun(src)
	return r.render(s, false)
}

// Resolve returns the value of key, rendered if the entry is
// template-enabled. The key itself is treated as already resolving, so a
// self-reference yields the raw value.
func (e *Engine) Resolve(src Source, key string) (string, bool) {
	ent, ok := src.Lookup(key)
	if !ok {
		return "", false
	}
	if !ent.Attributes.TemplateEnabled() {
		return ent.Value, true
	}
	r := e.newRun(src)
	r.resolving[key] = true
	return r.render(ent.Value, false), true
}

type run struct {
	e         *Engine
	src       Source
	resolving map[string]bool
	done      map[string]string
	now       time.Time
}

func (e *Engine) newRun(src Source) *run {
	return &run{
		e:         e,
		src:       src,
		resolving: make(map[string]bool),
		done:      make(map[string]string),
		now:       e.now(),
	}
}

func (r *run) render(s string, internal bool) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := r.reserved(name); ok {
			return v
		}

		ent, ok := r.src.Lookup(name)
		if !ok {
			return ""
		}
		if ent.Attributes.Type.Binary() {
			return match
		}
		if !internal && !r.src.Visible(name, ent) {
			return ""
		}
		return r.value(name, ent)
	})
}

func (r *run) value(name string, ent core.Entry) string {
	if !ent.Attributes.TemplateEnabled() {
		return ent.Value
	}
	if r.resolving[name] {
		return ent.Value
	}
	if v, ok := r.done[name]; ok {
		return v
	}
	r.resolving[name] = true
	v := r.render(ent.Value, true)
	delete(r.resolving, name)
	r.done[name] = v
	return v
}

func (r *run) reserved(name string) (string, bool) {
	switch name {
	case core.ReservedDate:
		return r.now.Format(DateFormat), true
	case core.ReservedTime:
		return r.now.Format(TimeFormat), true
	case core.ReservedVersion:
		return r.e.version, true
	}
	return "", false
}
