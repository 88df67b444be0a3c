// Package lifecycle exposes store change events as a lifecycle.Source.
package lifecycle

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/stm/pkg/binding"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

// DefaultBuffer is the number of events held while the consumer is busy.
const DefaultBuffer = 64

// Option configures a Source.
type Option func(*Source)

// WithDispatcher sets how the source reaches the store goroutine to
// subscribe and unsubscribe.
func WithDispatcher(d binding.Dispatcher) Option {
	return func(s *Source) { s.dispatch = d }
}

// WithBuffer sets the event buffer size.
func WithBuffer(n int) Option {
	return func(s *Source) { s.buffer = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// Source bridges store listeners to the generic lifecycle Event interface.
type Source struct {
	store    *store.Store
	dispatch binding.Dispatcher
	buffer   int
	logger   *slog.Logger
	out      chan lifecycle.Event
}

// NewSource creates a lifecycle.Source emitting the store's global events.
func NewSource(st *store.Store, opts ...Option) *Source {
	s := &Source{
		store:    st,
		dispatch: binding.Direct,
		buffer:   DefaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.out = make(chan lifecycle.Event)
	return s
}

var _ lifecycle.Source = (*Source)(nil)

// Events returns the output channel. It closes once the source stops.
func (s *Source) Events() <-chan lifecycle.Event {
	return s.out
}

// Start subscribes to the store and forwards events until ctx is done.
// Events arriving while the buffer is full are dropped and logged.
func (s *Source) Start(ctx context.Context) error {
	in := make(chan core.Event, s.buffer)
	var unsubscribe func()
	s.dispatch(func() {
		unsubscribe = s.store.SubscribeAll(func(ev core.Event) {
			select {
			case in <- ev:
			default:
				s.logger.Warn("event dropped", "event", ev.String())
			}
		})
	})

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer s.dispatch(unsubscribe)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e := <-in:
				// core.Event implements lifecycle.Event (has String())
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
