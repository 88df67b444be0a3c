package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
	AdapterRedis  = "redis"
	AdapterMemory = "memory"
)

// options holds the internal configuration for a session.
type options struct {
	repository core.Repository
	transport  core.Transport
	logger     *slog.Logger
	adapter    string
	access     core.AccessLevel
	context    *core.ContextRules
	version    string
	versioning bool
	readOnly   bool
	mustExist  bool
	devSafety  bool
	forceTemp  bool
	watch      bool
	replicate  bool
	namespace  string
	debounce   time.Duration
	storeOpts  []store.Option
}

// Option defines a functional option for configuring a session.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		access:    core.AccessUser,
		version:   store.DefaultVersion,
		devSafety: true,
	}
}

// WithAdapter selects the storage adapter by name ("fs", "sqlite", "redis"
// or "memory"). Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithLogger sets the logger shared by the store and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAccessLevel sets the store's access level.
func WithAccessLevel(level core.AccessLevel) Option {
	return func(o *options) {
		o.access = level
	}
}

// WithContext installs context rules on the store.
func WithContext(rules *core.ContextRules) Option {
	return func(o *options) {
		o.context = rules
	}
}

// WithVersion sets the version reported by {{$version}} and written into
// markdown exports.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithVersioning commits every save of the fs adapter to git.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.versioning = enabled
	}
}

// WithReadOnly loads the snapshot but never writes it back.
// Dev safety is bypassed since nothing is written.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist fails Open when the snapshot file does not exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default (true) file paths outside the temp directory are re-rooted
// into it.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithForceTemp re-roots file paths into the temp directory regardless of
// how the process was started.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithWatch reloads the store when the snapshot changes outside the
// session. Only adapters implementing core.Watchable support it.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithReplication publishes local changes and applies remote ones over the
// redis adapter's pub/sub channel.
func WithReplication(enabled bool) Option {
	return func(o *options) {
		o.replicate = enabled
	}
}

// WithNamespace sets the redis key prefix.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithDebounce sets how long the persister waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithRepository injects a custom repository. The adapter is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithTransport injects a transport used to replicate the store.
func WithTransport(t core.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithStoreOptions passes extra options to store.New.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}
