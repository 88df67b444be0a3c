package binding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// ReplicatorOption configures a Replicator.
type ReplicatorOption func(*Replicator)

// WithClientID overrides the generated client id.
func WithClientID(id string) ReplicatorOption {
	return func(r *Replicator) { r.id = id }
}

// WithDispatcher sets how incoming ops reach the store goroutine.
func WithDispatcher(d Dispatcher) ReplicatorOption {
	return func(r *Replicator) { r.dispatch = d }
}

// WithReplicatorLogger sets the logger.
func WithReplicatorLogger(logger *slog.Logger) ReplicatorOption {
	return func(r *Replicator) { r.logger = logger }
}

// Replicator mirrors a store over a transport. Local changes are published
// tagged with the client id; remote ops are applied with remote origin so
// they are never published again.
type Replicator struct {
	store     *store.Store
	transport core.Transport
	id        string
	dispatch  Dispatcher
	logger    *slog.Logger

	mu     sync.Mutex
	queue  []core.Op
	notify chan struct{}
}

// NewReplicator creates a Replicator with a random client id.
func NewReplicator(st *store.Store, transport core.Transport, opts ...ReplicatorOption) *Replicator {
	r := &Replicator{
		store:     st,
		transport: transport,
		id:        uuid.NewString(),
		dispatch:  Direct,
		notify:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// ClientID returns the id stamped on published ops.
func (r *Replicator) ClientID() string { return r.id }

// Run subscribes to the store and the transport and relays ops both ways
// until ctx is done.
func (r *Replicator) Run(ctx context.Context) error {
	incoming, err := r.transport.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe transport: %w", err)
	}

	var unsubscribe func()
	r.dispatch(func() { unsubscribe = r.store.SubscribeAll(r.onChange) })
	defer r.dispatch(func() { unsubscribe() })

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.notify:
			r.publish(ctx)
		case op, ok := <-incoming:
			if !ok {
				return nil
			}
			if op.Origin == r.id {
				continue
			}
			r.dispatch(func() {
				if err := r.Apply(op); err != nil {
					r.logger.Warn("remote op rejected", "key", op.Key, "op", op.Kind, "error", err)
				}
			})
		}
	}
}

// Apply installs a remote op through the store's echo-safe entry points.
// It must run on the store goroutine.
func (r *Replicator) Apply(op core.Op) error {
	switch op.Kind {
	case core.OpSet:
		if op.Entry == nil {
			return fmt.Errorf("%w: set op without entry", core.ErrInvalidValue)
		}
		return r.store.ApplyRemoteSet(op.Key, *op.Entry)
	case core.OpDelete:
		r.store.ApplyRemoteDelete(op.Key)
		return nil
	case core.OpClear:
		r.store.ApplyRemoteClear()
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", core.ErrInvalidValue, op.Kind)
}

// onChange runs on the store goroutine and turns an event into ops.
func (r *Replicator) onChange(ev core.Event) {
	if ev.Remote() || ev.Origin == core.OriginRestore {
		return
	}

	var ops []core.Op
	switch ev.Type {
	case core.EventSet:
		if e, ok := r.store.SerializedEntry(ev.Key); ok {
			ops = append(ops, r.setOp(ev.Key, e))
		}
	case core.EventDelete:
		ops = append(ops, core.Op{Kind: core.OpDelete, Key: ev.Key, Origin: r.id})
	case core.EventClear:
		ops = append(ops, core.Op{Kind: core.OpClear, Origin: r.id})
	case core.EventBatch:
		snap := r.store.Serialize()
		for _, k := range ev.Keys {
			if e, ok := snap[k]; ok {
				ops = append(ops, r.setOp(k, e))
			} else {
				ops = append(ops, core.Op{Kind: core.OpDelete, Key: k, Origin: r.id})
			}
		}
	}
	if len(ops) == 0 {
		return
	}

	r.mu.Lock()
	r.queue = append(r.queue, ops...)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Replicator) setOp(key string, e core.Entry) core.Op {
	e = e.Clone()
	return core.Op{Kind: core.OpSet, Key: key, Entry: &e, Origin: r.id}
}

func (r *Replicator) publish(ctx context.Context) {
	r.mu.Lock()
	ops := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, op := range ops {
		if err := r.transport.Publish(ctx, op); err != nil {
			r.logger.Error("publish failed", "key", op.Key, "op", op.Kind, "error", err)
		}
	}
}
