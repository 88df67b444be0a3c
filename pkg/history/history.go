// Package history keeps undo/redo timelines for store mutations.
//
// Two domains are tracked independently: one timeline per key and one global
// timeline across all keys. Consecutive changes that arrive within the capture
// window are coalesced into a single batch, so a burst of keystrokes undoes in
// one step. Undoing a batch restores every key it touched.
package history

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stm/pkg/core"
)

// DefaultCaptureWindow is the idle period after which a new batch starts.
const DefaultCaptureWindow = 500 * time.Millisecond

// Change is the before/after state of one key. A nil side means the key did
// not exist.
type Change struct {
	Key    string
	Before *core.Entry
	After  *core.Entry
}

// Batch is one undoable step.
type Batch struct {
	ID      string
	Changes []Change
	At      time.Time
}

// Keys lists the keys the batch touched in first-touch order.
func (b *Batch) Keys() []string {
	keys := make([]string, len(b.Changes))
	for i, c := range b.Changes {
		keys[i] = c.Key
	}
	return keys
}

func (b *Batch) merge(c Change) {
	for i := range b.Changes {
		if b.Changes[i].Key == c.Key {
			b.Changes[i].After = c.After
			return
		}
	}
	b.Changes = append(b.Changes, c)
}

// Restorer writes an entry state back into the store; nil deletes the key.
type Restorer func(key string, e *core.Entry)

type timeline struct {
	undo   []*Batch
	redo   []*Batch
	lastAt time.Time
	sealed bool
}

func (tl *timeline) record(c Change, now time.Time, window time.Duration, grouped bool) {
	tl.redo = nil
	if n := len(tl.undo); n > 0 && !tl.sealed && (grouped || now.Sub(tl.lastAt) < window) {
		tl.undo[n-1].merge(c)
		tl.lastAt = now
		return
	}
	tl.undo = append(tl.undo, &Batch{ID: uuid.NewString(), Changes: []Change{c}, At: now})
	tl.lastAt = now
	tl.sealed = false
}

// Manager records changes and replays them backwards or forwards.
// It is not safe for concurrent use.
type Manager struct {
	window    time.Duration
	now       func() time.Time
	enabled   bool
	restoring bool
	group     int
	grouped   bool
	limit     int

	global *timeline
	keys   map[string]*timeline
}

// Option configures a Manager.
type Option func(*Manager)

// WithCaptureWindow sets the coalescing window.
func WithCaptureWindow(d time.Duration) Option {
	return func(m *Manager) { m.window = d }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLimit caps the number of undo batches kept per timeline. Zero is unlimited.
func WithLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// New creates a disabled manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		window: DefaultCaptureWindow,
		now:    time.Now,
		global: &timeline{},
		keys:   make(map[string]*timeline),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enable turns recording on or off. Disabling drops all timelines.
func (m *Manager) Enable(on bool) {
	m.enabled = on
	if !on {
		m.Reset()
	}
}

// Enabled reports whether changes are recorded.
func (m *Manager) Enabled() bool { return m.enabled }

// Reset drops every timeline.
func (m *Manager) Reset() {
	m.global = &timeline{}
	m.keys = make(map[string]*timeline)
}

// Record adds a change. It is ignored while disabled, while a batch is being
// restored, and when before and after are identical.
func (m *Manager) Record(c Change) {
	if !m.enabled || m.restoring || sameState(c.Before, c.After) {
		return
	}
	now := m.now()
	c = Change{Key: c.Key, Before: cloneEntry(c.Before), After: cloneEntry(c.After)}

	grouped := m.group > 0 && m.grouped
	m.global.record(c, now, m.window, grouped)
	m.trim(m.global)

	tl, ok := m.keys[c.Key]
	if !ok {
		tl = &timeline{}
		m.keys[c.Key] = tl
	}
	tl.record(c, now, m.window, grouped)
	m.trim(tl)

	if m.group > 0 {
		m.grouped = true
	}
}

// Group records every change made by fn as one global batch, regardless of
// the capture window.
func (m *Manager) Group(fn func()) {
	if m.group == 0 {
		m.StopCapturing()
		m.grouped = false
	}
	m.group++
	defer func() {
		m.group--
		if m.group == 0 {
			m.grouped = false
			m.StopCapturing()
		}
	}()
	fn()
}

// StopCapturing seals the open batches so the next change starts a new one.
func (m *Manager) StopCapturing() {
	m.global.sealed = true
	for _, tl := range m.keys {
		tl.sealed = true
	}
}

// Forget drops the per-key timeline of key.
func (m *Manager) Forget(key string) {
	delete(m.keys, key)
}

// CanUndo reports whether key has an undoable batch.
func (m *Manager) CanUndo(key string) bool {
	tl, ok := m.keys[key]
	return m.enabled && ok && len(tl.undo) > 0
}

// CanRedo reports whether key has a redoable batch.
func (m *Manager) CanRedo(key string) bool {
	tl, ok := m.keys[key]
	return m.enabled && ok && len(tl.redo) > 0
}

// CanUndoAll reports whether the global timeline has an undoable batch.
func (m *Manager) CanUndoAll() bool { return m.enabled && len(m.global.undo) > 0 }

// CanRedoAll reports whether the global timeline has a redoable batch.
func (m *Manager) CanRedoAll() bool { return m.enabled && len(m.global.redo) > 0 }

// Undo reverts the latest batch of key.
func (m *Manager) Undo(key string, restore Restorer) bool {
	tl, ok := m.keys[key]
	if !m.enabled || !ok {
		return false
	}
	return m.step(tl, restore, true)
}

// Redo re-applies the latest undone batch of key.
func (m *Manager) Redo(key string, restore Restorer) bool {
	tl, ok := m.keys[key]
	if !m.enabled || !ok {
		return false
	}
	return m.step(tl, restore, false)
}

// UndoAll reverts the latest global batch, restoring every key it touched.
func (m *Manager) UndoAll(restore Restorer) bool {
	if !m.enabled {
		return false
	}
	return m.step(m.global, restore, true)
}

// RedoAll re-applies the latest undone global batch.
func (m *Manager) RedoAll(restore Restorer) bool {
	if !m.enabled {
		return false
	}
	return m.step(m.global, restore, false)
}

// Depth returns the undo and redo batch counts of the global timeline.
func (m *Manager) Depth() (undo, redo int) {
	return len(m.global.undo), len(m.global.redo)
}

func (m *Manager) step(tl *timeline, restore Restorer, backwards bool) bool {
	from, to := &tl.undo, &tl.redo
	if !backwards {
		from, to = &tl.redo, &tl.undo
	}
	n := len(*from)
	if n == 0 {
		return false
	}
	b := (*from)[n-1]
	*from = (*from)[:n-1]

	m.restoring = true
	if backwards {
		for i := len(b.Changes) - 1; i >= 0; i-- {
			c := b.Changes[i]
			restore(c.Key, cloneEntry(c.Before))
		}
	} else {
		for _, c := range b.Changes {
			restore(c.Key, cloneEntry(c.After))
		}
	}
	m.restoring = false

	*to = append(*to, b)
	tl.sealed = true
	return true
}

func (m *Manager) trim(tl *timeline) {
	if m.limit > 0 && len(tl.undo) > m.limit {
		tl.undo = slices.Delete(tl.undo, 0, len(tl.undo)-m.limit)
	}
}

func cloneEntry(e *core.Entry) *core.Entry {
	if e == nil {
		return nil
	}
	c := e.Clone()
	return &c
}

func sameState(a, b *core.Entry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
