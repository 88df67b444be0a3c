// Package store implements the attributed key-value store.
//
// A Store owns the key to entry map and enforces the access model on every
// call: system tags are gated by the access level, protected entries can not
// be deleted, and an active context narrows every read and write to the
// entries carrying its tags. Document entries are backed by a collaborative
// text handle and receive whole-value writes as minimal edits.
//
// A Store is not safe for concurrent use. Collaborators that run on other
// goroutines (transports, persistence) hand their work back to the goroutine
// that owns the store.
package store

import (
	"cmp"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/docedit"
	"github.com/aretw0/stm/pkg/history"
	"github.com/aretw0/stm/pkg/template"
	"github.com/aretw0/stm/pkg/text"
)

// DefaultVersion is reported by {{$version}} unless WithVersion is used.
const DefaultVersion = "dev"

type record struct {
	value string
	attrs core.Attributes
	seq   uint64

	// document entries only
	text core.Text
	stop func()
	last string
}

func (r *record) current() string {
	if r.text != nil {
		return r.text.String()
	}
	return r.value
}

func (r *record) entry() core.Entry {
	return core.Entry{Value: r.current(), Attributes: r.attrs.Clone()}
}

// Store is the attributed key-value store.
type Store struct {
	entries map[string]*record
	seq     uint64

	access core.AccessLevel
	rules  *core.ContextRules

	logger  *slog.Logger
	now     func() time.Time
	version string
	newText core.TextFactory

	editor  *docedit.Editor
	history *history.Manager
	engine  *template.Engine

	keyListeners map[string][]listener
	listeners    []listener
	nextListener int
	batching     int
	pending      []core.Event
	muted        int
}

// New creates an empty store.
func New(opts ...Option) *Store {
	cfg := config{
		access:      core.AccessUser,
		now:         time.Now,
		textFactory: text.Factory,
		version:     DefaultVersion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hopts := []history.Option{history.WithClock(cfg.now)}
	if cfg.captureWindow > 0 {
		hopts = append(hopts, history.WithCaptureWindow(cfg.captureWindow))
	}
	if cfg.historyLimit > 0 {
		hopts = append(hopts, history.WithLimit(cfg.historyLimit))
	}

	s := &Store{
		entries:      make(map[string]*record),
		access:       cfg.access,
		rules:        cfg.rules,
		logger:       cfg.logger,
		now:          cfg.now,
		version:      cfg.version,
		newText:      cfg.textFactory,
		editor:       docedit.New(cfg.threshold),
		history:      history.New(hopts...),
		engine:       template.New(template.WithClock(cfg.now), template.WithVersion(cfg.version)),
		keyListeners: make(map[string][]listener),
	}
	s.history.Enable(cfg.history)
	return s
}

// Version returns the version reported by {{$version}}.
func (s *Store) Version() string { return s.version }

// AccessLevel returns the current access level.
func (s *Store) AccessLevel() core.AccessLevel { return s.access }

// SetAccessLevel changes the access level.
func (s *Store) SetAccessLevel(level core.AccessLevel) { s.access = level }

func checkKey(op, key string) error {
	if key == "" {
		return core.E(op, key, core.ErrInvalidKey)
	}
	if core.IsReserved(key) {
		return core.E(op, key, core.ErrReservedKey)
	}
	return nil
}

// visible returns the record if key exists and passes the context.
func (s *Store) visible(key string) (*record, bool) {
	rec, ok := s.entries[key]
	if !ok || !s.rules.Match(rec.attrs.ContentTags) {
		return nil, false
	}
	return rec, true
}

// Exists reports whether key is a real entry visible through the context.
func (s *Store) Exists(key string) bool {
	_, ok := s.visible(key)
	return ok
}

// Get returns the value of key. Template-enabled entries are rendered.
// Reserved identifiers are not entries and are never found.
func (s *Store) Get(key string) (string, bool) {
	rec, ok := s.visible(key)
	if !ok {
		return "", false
	}
	if !rec.attrs.TemplateEnabled() {
		return rec.current(), true
	}
	return s.engine.Resolve(source{s}, key)
}

// GetRaw returns the stored value without template substitution.
func (s *Store) GetRaw(key string) (string, bool) {
	rec, ok := s.visible(key)
	if !ok {
		return "", false
	}
	return rec.current(), true
}

// Entry returns a copy of the entry for key.
func (s *Store) Entry(key string) (core.Entry, bool) {
	rec, ok := s.visible(key)
	if !ok {
		return core.Entry{}, false
	}
	return rec.entry(), true
}

// GetAttributes returns a copy of the attributes of key.
func (s *Store) GetAttributes(key string) (core.Attributes, bool) {
	rec, ok := s.visible(key)
	if !ok {
		return core.Attributes{}, false
	}
	return rec.attrs.Clone(), true
}

// Keys lists the visible keys ordered by zIndex, then creation order.
func (s *Store) Keys() []string {
	type kv struct {
		key string
		rec *record
	}
	list := make([]kv, 0, len(s.entries))
	for k, rec := range s.entries {
		if s.rules.Match(rec.attrs.ContentTags) {
			list = append(list, kv{k, rec})
		}
	}
	slices.SortFunc(list, func(a, b kv) int {
		return cmp.Or(cmp.Compare(a.rec.attrs.ZIndex, b.rec.attrs.ZIndex), cmp.Compare(a.rec.seq, b.rec.seq))
	})
	keys := make([]string, len(list))
	for i, e := range list {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of visible entries.
func (s *Store) Len() int {
	n := 0
	for _, rec := range s.entries {
		if s.rules.Match(rec.attrs.ContentTags) {
			n++
		}
	}
	return n
}

// Match returns the visible keys matching a doublestar glob pattern.
func (s *Store) Match(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, core.E("match", pattern, doublestar.ErrBadPattern)
	}
	var out []string
	for _, k := range s.Keys() {
		if ok, _ := doublestar.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// GetAll returns every visible value, rendered like Get.
func (s *Store) GetAll() map[string]string {
	out := make(map[string]string)
	for _, k := range s.Keys() {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Set writes value to key, creating it if needed. patch may be nil.
//
// On an existing key the patch is merged onto the current attributes; a new
// key starts from defaults, then the context defaults, then the patch.
// Document entries receive the value as a minimal edit.
func (s *Store) Set(key, value string, patch *core.AttributesPatch) error {
	p, err := s.prepare("set", key, &value, patch, false)
	if err != nil {
		return err
	}
	return s.commit(p)
}

// Create writes a new key and fails with ErrAlreadyExists if it exists.
func (s *Store) Create(key, value string, patch *core.AttributesPatch) error {
	p, err := s.prepare("create", key, &value, patch, true)
	if err != nil {
		return err
	}
	return s.commit(p)
}

// SetBinary stores data base64-encoded as an image or file entry.
func (s *Store) SetBinary(key string, data []byte, typ core.Type, contentType string) error {
	if !typ.Binary() {
		return core.E("set", key, fmt.Errorf("%w: %s is not a binary type", core.ErrInvalidType, typ))
	}
	return s.Set(key, base64.StdEncoding.EncodeToString(data), core.Patch().WithType(typ).WithContentType(contentType))
}

// GetBinary decodes a binary entry and returns its content type.
func (s *Store) GetBinary(key string) ([]byte, string, bool) {
	rec, ok := s.visible(key)
	if !ok || !rec.attrs.Type.Binary() {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(rec.value)
	if err != nil {
		return nil, "", false
	}
	return data, rec.attrs.ContentType, true
}

// Update writes several keys as one change: one undo step and one global
// notification. Nothing is written if any key fails validation.
func (s *Store) Update(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	plans := make([]*plan, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		p, err := s.prepare("update", k, &v, nil, false)
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}

	var err error
	s.batch(core.EventBatch, func() {
		s.history.Group(func() {
			for _, p := range plans {
				if err = s.commit(p); err != nil {
					return
				}
			}
		})
	})
	return err
}

// Delete removes key. It reports false for missing, reserved, out of
// context and protected keys.
func (s *Store) Delete(key string) bool {
	rec, ok := s.visible(key)
	if !ok || rec.attrs.Protected() {
		return false
	}
	before := rec.entry()
	s.drop(key, rec)
	s.history.Record(history.Change{Key: key, Before: &before})
	s.emit(core.Event{Type: core.EventDelete, Key: key, Origin: core.OriginLocal})
	return true
}

// Clear removes every entry that is not protected.
func (s *Store) Clear() {
	s.batch(core.EventClear, func() {
		s.history.Group(func() {
			for _, k := range s.allKeys() {
				rec := s.entries[k]
				if rec.attrs.Protected() {
					continue
				}
				before := rec.entry()
				s.drop(k, rec)
				s.history.Record(history.Change{Key: k, Before: &before})
				s.emit(core.Event{Type: core.EventDelete, Key: k, Origin: core.OriginLocal})
			}
		})
	})
}

// SetAttributes merges patch onto the attributes of key. It reports false
// when the key is missing or out of context, when system tags change without
// elevated access, when protected would be removed, or when the result is
// invalid for the current value. Changing the type is the explicit way to
// re-type a document.
func (s *Store) SetAttributes(key string, patch *core.AttributesPatch) bool {
	if err := s.setAttributes("set_attributes", key, patch); err != nil {
		s.logger.Debug("attributes rejected", "key", key, "error", err)
		return false
	}
	return true
}

// SetType re-types key, flattening or creating the document handle as needed.
func (s *Store) SetType(key string, typ core.Type) error {
	return s.setAttributes("set_type", key, core.Patch().WithType(typ))
}

func (s *Store) setAttributes(op, key string, patch *core.AttributesPatch) error {
	rec, ok := s.visible(key)
	if !ok {
		return core.E(op, key, core.ErrNotFound)
	}
	next := patch.Apply(rec.attrs)
	if err := s.checkSystemTags(op, key, rec.attrs, next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return core.E(op, key, err)
	}
	value := rec.current()
	if err := validateValue(next.Type, value); err != nil {
		return core.E(op, key, err)
	}

	before := rec.entry()
	switch {
	case rec.text != nil && next.Type != core.TypeDocument:
		rec.stop()
		rec.value, rec.text, rec.stop, rec.last = value, nil, nil, ""
	case rec.text == nil && next.Type == core.TypeDocument:
		s.bindText(key, rec, value)
	}
	rec.attrs = next
	after := rec.entry()
	s.history.Record(history.Change{Key: key, Before: &before, After: &after})
	s.emit(core.Event{Type: core.EventSet, Key: key, Origin: core.OriginLocal})
	return nil
}

// checkSystemTags enforces the access rules for a system tag transition.
func (s *Store) checkSystemTags(op, key string, cur, next core.Attributes) error {
	if slices.Equal(cur.SystemTags, next.SystemTags) {
		return nil
	}
	if cur.Protected() && !next.Protected() {
		return core.E(op, key, core.ErrProtected)
	}
	if !s.access.Elevated() {
		return core.E(op, key, core.ErrPermissionDenied)
	}
	return nil
}

type plan struct {
	key    string
	rec    *record
	attrs  core.Attributes
	value  string
	create bool
}

// prepare validates a write without mutating anything.
func (s *Store) prepare(op, key string, value *string, patch *core.AttributesPatch, createOnly bool) (*plan, error) {
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	rec, exists := s.entries[key]
	if exists && !s.rules.Match(rec.attrs.ContentTags) {
		return nil, core.E(op, key, core.ErrContextMismatch)
	}
	if exists && createOnly {
		return nil, core.E(op, key, core.ErrAlreadyExists)
	}

	p := &plan{key: key, rec: rec, create: !exists}
	if exists {
		p.attrs = patch.Apply(rec.attrs)
		if !s.rules.Match(p.attrs.ContentTags) {
			return nil, core.E(op, key, core.ErrContextMismatch)
		}
		if err := s.checkSystemTags(op, key, rec.attrs, p.attrs); err != nil {
			return nil, err
		}
		if rec.attrs.Type == core.TypeDocument && p.attrs.Type != core.TypeDocument {
			return nil, core.E(op, key, core.ErrRetypeRequired)
		}
	} else {
		// Context defaults are granted; anything beyond them needs elevated access.
		p.attrs = s.newAttributes(patch)
		if err := s.checkSystemTags(op, key, s.newAttributes(nil), p.attrs); err != nil {
			return nil, err
		}
	}

	if err := p.attrs.Validate(); err != nil {
		return nil, core.E(op, key, err)
	}
	if value != nil {
		p.value = *value
	} else if exists {
		p.value = rec.current()
	}
	if err := validateValue(p.attrs.Type, p.value); err != nil {
		return nil, core.E(op, key, err)
	}
	return p, nil
}

// newAttributes merges defaults, context defaults and the caller's patch.
func (s *Store) newAttributes(patch *core.AttributesPatch) core.Attributes {
	a := patch.Apply(core.DefaultAttributes())
	if s.rules == nil {
		return a
	}
	tags := slices.Concat(s.rules.Tags, s.rules.DefaultContentTags, a.ContentTags)
	a.ContentTags = core.UniqueStrings(tags)
	a.SystemTags = core.UniqueSystemTags(slices.Concat(s.rules.DefaultSystemTags, a.SystemTags))
	return a
}

func (s *Store) commit(p *plan) error {
	rec := p.rec
	var before *core.Entry
	if p.create {
		rec = &record{seq: s.nextSeq()}
		s.entries[p.key] = rec
	} else {
		b := rec.entry()
		before = &b
	}

	switch {
	case p.attrs.Type == core.TypeDocument && rec.text != nil:
		var err error
		s.mute(func() { _, err = s.editor.SetText(rec.text, p.value) })
		if err != nil {
			return core.E("set", p.key, err)
		}
		rec.last = rec.text.String()
	case p.attrs.Type == core.TypeDocument:
		s.bindText(p.key, rec, p.value)
	default:
		rec.value = p.value
	}
	rec.attrs = p.attrs

	after := rec.entry()
	s.history.Record(history.Change{Key: p.key, Before: before, After: &after})
	s.emit(core.Event{Type: core.EventSet, Key: p.key, Origin: core.OriginLocal})
	return nil
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) drop(key string, rec *record) {
	if rec.stop != nil {
		rec.stop()
	}
	delete(s.entries, key)
}

// allKeys lists every key regardless of context, in Keys order.
func (s *Store) allKeys() []string {
	rules := s.rules
	s.rules = nil
	defer func() { s.rules = rules }()
	return s.Keys()
}

func validateValue(t core.Type, v string) error {
	switch {
	case t == core.TypeJSON && !json.Valid([]byte(v)):
		return fmt.Errorf("%w: not valid JSON", core.ErrInvalidValue)
	case t.Binary():
		if _, err := base64.StdEncoding.DecodeString(v); err != nil {
			return fmt.Errorf("%w: not valid base64: %v", core.ErrInvalidValue, err)
		}
	}
	return nil
}

// source exposes the store to the template engine.
type source struct{ s *Store }

func (src source) Lookup(key string) (core.Entry, bool) {
	rec, ok := src.s.entries[key]
	if !ok {
		return core.Entry{}, false
	}
	return core.Entry{Value: rec.current(), Attributes: rec.attrs}, true
}

func (src source) Visible(_ string, e core.Entry) bool {
	return e.Attributes.VisibleToLLM() && src.s.rules.Match(e.Attributes.ContentTags)
}
