package stm

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/stm/internal/platform"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// --- Types ---

// Store is the attributed key-value store.
type Store = store.Store

// Session owns a store and its persistence and replication collaborators.
type Session = platform.Session

// Entry is one stored value with its attributes.
type Entry = core.Entry

// Snapshot is the serialized state of a store.
type Snapshot = core.Snapshot

// Attributes describes how an entry may be used.
type Attributes = core.Attributes

// AttributesPatch is a partial attribute update.
type AttributesPatch = core.AttributesPatch

// ContextRules restricts the store to entries carrying the given tags.
type ContextRules = core.ContextRules

// System tags.
const (
	TagSystemPrompt  = core.TagSystemPrompt
	TagLLMRead       = core.TagLLMRead
	TagLLMWrite      = core.TagLLMWrite
	TagProtected     = core.TagProtected
	TagApplyTemplate = core.TagApplyTemplate
)

// Access levels.
const (
	AccessUser   = core.AccessUser
	AccessSystem = core.AccessSystem
	AccessAdmin  = core.AccessAdmin
)

// Patch starts an empty attribute patch.
func Patch() *AttributesPatch { return core.Patch() }

// --- Configuration ---

// Option defines a functional option for configuring a session.
type Option = platform.Option

// WithAdapter selects the storage adapter ("fs", "sqlite", "redis", "memory").
func WithAdapter(name string) Option { return platform.WithAdapter(name) }

// WithLogger sets the logger shared by the store and its adapters.
func WithLogger(logger *slog.Logger) Option { return platform.WithLogger(logger) }

// WithAccessLevel sets the store's access level.
func WithAccessLevel(level core.AccessLevel) Option { return platform.WithAccessLevel(level) }

// WithContext installs context rules on the store.
func WithContext(rules *ContextRules) Option { return platform.WithContext(rules) }

// WithVersioning commits every save of the fs adapter to git.
func WithVersioning(enabled bool) Option { return platform.WithVersioning(enabled) }

// WithReadOnly loads the snapshot but never writes it back.
func WithReadOnly(enabled bool) Option { return platform.WithReadOnly(enabled) }

// WithDebounce sets how long the persister waits for changes to settle.
func WithDebounce(d time.Duration) Option { return platform.WithDebounce(d) }

// WithDevSafety controls the temp-dir sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option { return platform.WithDevSafety(enabled) }

// WithWatch reloads the store when its snapshot file changes externally.
func WithWatch(enabled bool) Option { return platform.WithWatch(enabled) }

// WithRepository injects a custom storage adapter.
func WithRepository(repo core.Repository) Option { return platform.WithRepository(repo) }

// WithTransport injects a transport used to replicate the store.
func WithTransport(t core.Transport) Option { return platform.WithTransport(t) }

// --- Factories ---

// New creates a detached in-memory store stamped with the library version.
func New(opts ...store.Option) *Store {
	return store.New(append([]store.Option{store.WithVersion(Version)}, opts...)...)
}

// Open builds a store backed by the adapter selected in opts and starts its
// collaborators. See platform.Open for the meaning of uri.
func Open(ctx context.Context, uri string, opts ...Option) (*Session, error) {
	return platform.Open(ctx, uri, append([]Option{platform.WithVersion(Version)}, opts...)...)
}

// OpenConfig opens a session described by a YAML config file. A non-empty
// uri overrides the file's.
func OpenConfig(ctx context.Context, path, uri string, opts ...Option) (*Session, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	fileOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	if uri == "" {
		uri = cfg.URI
	}
	return Open(ctx, uri, append(fileOpts, opts...)...)
}

// --- Safety & Utils ---

// IsDevRun reports whether the process was started by `go run` or `go test`.
func IsDevRun() bool { return platform.IsDevRun() }

// FindConfig looks upwards from startDir for an stm.yaml file.
func FindConfig(startDir string) (string, error) { return platform.FindConfig(startDir) }
