package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/aretw0/stm/pkg/core"
)

// Transport publishes ops as JSON on a namespaced channel.
type Transport struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewTransport creates a transport on an open client.
func NewTransport(client *redis.Client, namespace string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{client: client, channel: namespaced(namespace, "ops"), logger: logger}
}

var _ core.Transport = (*Transport)(nil)

// Channel returns the pub/sub channel name.
func (t *Transport) Channel() string { return t.channel }

// Publish sends op to every subscriber, including this process.
func (t *Transport) Publish(ctx context.Context, op core.Op) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal op: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", t.channel, err)
	}
	return nil
}

// Subscribe delivers ops until ctx is done. Malformed payloads are logged
// and skipped.
func (t *Transport) Subscribe(ctx context.Context) (<-chan core.Op, error) {
	pubsub := t.client.Subscribe(ctx, t.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", t.channel, err)
	}

	out := make(chan core.Op)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var op core.Op
				if err := json.Unmarshal([]byte(msg.Payload), &op); err != nil {
					t.logger.Warn("malformed op", "channel", t.channel, "error", err)
					continue
				}
				select {
				case out <- op:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
