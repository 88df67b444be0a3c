package store

import (
	"log/slog"
	"time"

	"github.com/aretw0/stm/pkg/core"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	access        core.AccessLevel
	rules         *core.ContextRules
	history       bool
	captureWindow time.Duration
	historyLimit  int
	now           func() time.Time
	textFactory   core.TextFactory
	logger        *slog.Logger
	version       string
	threshold     float64
}

// WithAccessLevel sets the privilege the store operates with. Default is user.
func WithAccessLevel(level core.AccessLevel) Option {
	return func(c *config) { c.access = level }
}

// WithContext activates context rules from the start.
func WithContext(rules *core.ContextRules) Option {
	return func(c *config) { c.rules = rules.Clone() }
}

// WithHistory enables undo/redo. It is off by default because a store with
// no durable backing has nothing to time-travel across.
func WithHistory(enabled bool) Option {
	return func(c *config) { c.history = enabled }
}

// WithCaptureWindow sets how long consecutive edits keep coalescing into one
// undo step.
func WithCaptureWindow(d time.Duration) Option {
	return func(c *config) { c.captureWindow = d }
}

// WithHistoryLimit caps the number of undo steps per timeline.
func WithHistoryLimit(n int) Option {
	return func(c *config) { c.historyLimit = n }
}

// WithClock injects the time source used by history and templates.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithTextFactory sets the collaborative text implementation backing
// document entries.
func WithTextFactory(f core.TextFactory) Option {
	return func(c *config) { c.textFactory = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithVersion sets the value reported by {{$version}} and exports.
func WithVersion(v string) Option {
	return func(c *config) { c.version = v }
}

// WithDiffThreshold overrides the share of a document a write may touch and
// still be applied as a minimal diff.
func WithDiffThreshold(ratio float64) Option {
	return func(c *config) { c.threshold = ratio }
}
