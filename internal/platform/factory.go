package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/stm/pkg/adapters/fs"
	"github.com/aretw0/stm/pkg/adapters/redis"
	"github.com/aretw0/stm/pkg/adapters/sqlite"
	"github.com/aretw0/stm/pkg/binding"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// Session owns a store and the collaborators keeping it persisted,
// replicated and in sync with its backing file. Every access to the store
// must go through Do once the session is open.
type Session struct {
	store      *store.Store
	repository core.Repository
	persister  *binding.Persister
	replicator *binding.Replicator
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
	closers []io.Closer
	closed  bool
}

// Open builds a store, restores it from the configured adapter and starts
// the background collaborators. The uri is adapter-specific: a file path for
// fs and sqlite, a connection URL for redis, ignored for memory.
func Open(ctx context.Context, uri string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sopts := []store.Option{
		store.WithLogger(o.logger),
		store.WithAccessLevel(o.access),
		store.WithVersion(o.version),
	}
	if o.context != nil {
		sopts = append(sopts, store.WithContext(o.context))
	}
	s := &Session{
		store:  store.New(append(sopts, o.storeOpts...)...),
		logger: o.logger,
	}

	if err := s.wire(uri, o); err != nil {
		s.closeResources()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.repository != nil {
		popts := []binding.PersisterOption{binding.WithPersisterLogger(o.logger)}
		if o.debounce > 0 {
			popts = append(popts, binding.WithDebounce(o.debounce))
		}
		s.persister = binding.NewPersister(s.store, s.repository, popts...)
		if err := s.persister.Load(ctx); err != nil {
			cancel()
			s.closeResources()
			return nil, err
		}
		if !o.readOnly {
			if err := s.persister.Start(runCtx); err != nil {
				cancel()
				s.closeResources()
				return nil, err
			}
		}
	} else if o.transport != nil {
		// A synced store with no repository still has a backing worth undoing against.
		s.store.EnableHistory(true)
	}

	if o.watch {
		if err := s.startWatch(runCtx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	if o.transport != nil {
		s.startReplicator(runCtx, o.transport)
	}
	return s, nil
}

// wire resolves the repository and transport for the selected adapter.
func (s *Session) wire(uri string, o *options) error {
	if o.repository != nil {
		s.repository = o.repository
		return nil
	}

	switch o.adapter {
	case AdapterMemory:
		return nil
	case AdapterFS:
		if uri == "" {
			return fmt.Errorf("%w: fs adapter needs a file path", core.ErrInvalidValue)
		}
		path := s.resolvePath(uri, o)
		s.repository = fs.NewRepository(fs.Config{
			Path:      path,
			Logger:    o.logger,
			ReadOnly:  o.readOnly,
			MustExist: o.mustExist,
			Versioned: o.versioning,
			Version:   o.version,
			ErrorHandler: func(err error) {
				o.logger.Error("watcher failed", "error", err)
			},
		})
	case AdapterSQLite:
		if uri == "" {
			return fmt.Errorf("%w: sqlite adapter needs a database path", core.ErrInvalidValue)
		}
		path := uri
		if uri != sqlite.MemoryPath {
			path = s.resolvePath(uri, o)
		}
		repo, err := sqlite.Open(path, o.logger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, repo)
		s.repository = repo
	case AdapterRedis:
		client, err := redis.Connect(redis.Options{URL: uri})
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client)
		s.repository = redis.NewRepository(client, o.namespace, o.logger)
		if o.replicate && o.transport == nil {
			o.transport = redis.NewTransport(client, o.namespace, o.logger)
		}
	default:
		return fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	return nil
}

func (s *Session) resolvePath(uri string, o *options) string {
	dev := IsDevRun()
	bypass := o.readOnly || !o.devSafety
	sandbox := o.forceTemp || (dev && !bypass)
	path := ResolvePath(uri, sandbox)
	switch {
	case sandbox && path != uri:
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", uri, "resolved_path", path)
	case dev && bypass && !o.readOnly:
		o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", path)
	}
	return path
}

// startWatch reloads the store whenever the repository reports an
// external change.
func (s *Session) startWatch(ctx context.Context) error {
	w, ok := s.repository.(core.Watchable)
	if !ok {
		return fmt.Errorf("adapter does not support watching")
	}
	events, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch repository: %w", err)
	}
	s.workers.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer s.workers.Done()
		for ev := range events {
			s.logger.Debug("external change", "event", ev.String())
			if err := s.reload(ctx); err != nil {
				s.logger.Warn("reload failed", "error", err)
			}
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("watch loop panic", "error", err)
	}))
	return nil
}

func (s *Session) reload(ctx context.Context) error {
	snap, err := s.repository.Load(ctx)
	if err != nil {
		return err
	}
	return s.Do(func(st *store.Store) error {
		return st.Deserialize(snap)
	})
}

func (s *Session) startReplicator(ctx context.Context, t core.Transport) {
	s.replicator = binding.NewReplicator(s.store, t,
		binding.WithDispatcher(s.dispatch),
		binding.WithReplicatorLogger(s.logger),
	)
	s.workers.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer s.workers.Done()
		return s.replicator.Run(ctx)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("replicator stopped", "error", err)
	}))
}

func (s *Session) dispatch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Do runs fn with exclusive access to the store.
func (s *Session) Do(fn func(st *store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	return fn(s.store)
}

// Repository returns the backing repository, or nil for the memory adapter.
func (s *Session) Repository() core.Repository { return s.repository }

// ClientID returns the replication client id, or "" when not replicating.
func (s *Session) ClientID() string {
	if s.replicator == nil {
		return ""
	}
	return s.replicator.ClientID()
}

// Flush writes pending changes immediately.
func (s *Session) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush(ctx)
}

// Close stops the background workers, flushes pending changes and releases
// adapter resources. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.workers.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	if s.persister != nil {
		errs = append(errs, s.persister.Close(ctx))
	}
	errs = append(errs, s.closeResources())
	return errors.Join(errs...)
}

func (s *Session) closeResources() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
