package binding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// DefaultDebounce is how long the Persister waits for changes to settle.
const DefaultDebounce = 200 * time.Millisecond

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithDebounce sets the delay between the last change and the write.
func WithDebounce(d time.Duration) PersisterOption {
	return func(p *Persister) { p.debounce = d }
}

// WithPersisterLogger sets the logger.
func WithPersisterLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) { p.logger = logger }
}

// Persister keeps a repository in sync with a store.
type Persister struct {
	store    *store.Store
	repo     core.Repository
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending core.Snapshot
	saves   int

	saveMu      sync.Mutex
	kick        chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
}

// NewPersister creates a Persister for st backed by repo.
func NewPersister(st *store.Store, repo core.Repository, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:    st,
		repo:     repo,
		debounce: DefaultDebounce,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Load initializes the repository, restores its snapshot into the store and
// enables history. It must run on the store goroutine.
func (p *Persister) Load(ctx context.Context) error {
	if err := p.repo.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	snap, err := p.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := p.store.Deserialize(snap); err != nil {
		p.logger.Warn("snapshot rejected", "error", err)
		return fmt.Errorf("restore snapshot: %w", err)
	}
	p.store.EnableHistory(true)
	p.logger.Debug("snapshot loaded", "count", len(snap))
	return nil
}

// Start subscribes to the store and launches the background writer. It must
// run on the store goroutine. The writer stops when ctx is done or Close is
// called.
func (p *Persister) Start(ctx context.Context) error {
	if p.done != nil {
		return fmt.Errorf("persister already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.unsubscribe = p.store.SubscribeAll(p.onChange)

	lifecycle.Go(runCtx, p.run, lifecycle.WithErrorHandler(func(err error) {
		p.logger.Error("persister panic", "error", err)
	}))
	return nil
}

// onChange snapshots the store on its own goroutine so the writer never
// reads it concurrently.
func (p *Persister) onChange(ev core.Event) {
	if ev.Origin == core.OriginRestore {
		return
	}
	snap := p.store.Serialize()
	p.mu.Lock()
	p.pending = snap
	p.mu.Unlock()
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Persister) run(ctx context.Context) error {
	defer close(p.done)
	timer := time.NewTimer(p.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.kick:
			timer.Reset(p.debounce)
		case <-timer.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Error("snapshot save failed", "error", err)
			}
		}
	}
}

// Flush writes the latest unsaved snapshot, if any. A failed write is kept
// for the next attempt unless a newer snapshot replaced it.
func (p *Persister) Flush(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	p.mu.Unlock()
	if snap == nil {
		return nil
	}

	if err := p.repo.Save(ctx, snap); err != nil {
		p.mu.Lock()
		if p.pending == nil {
			p.pending = snap
		}
		p.mu.Unlock()
		return fmt.Errorf("save snapshot: %w", err)
	}
	p.mu.Lock()
	p.saves++
	p.mu.Unlock()
	p.logger.Debug("snapshot saved", "count", len(snap))
	return nil
}

// Saves reports how many snapshots were written.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// Close unsubscribes, stops the writer and flushes what is left. It must run
// on the store goroutine.
func (p *Persister) Close(ctx context.Context) error {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.cancel != nil {
		p.cancel()
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.Flush(ctx)
}
