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

// Repository keeps one hash per namespace: field = entry key, value = the
// entry as JSON.
type Repository struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRepository creates a repository on an open client.
func NewRepository(client *redis.Client, namespace string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{client: client, key: namespaced(namespace, "entries"), logger: logger}
}

var _ core.Repository = (*Repository)(nil)

// Key returns the hash key.
func (r *Repository) Key() string { return r.key }

// Initialize checks the connection.
func (r *Repository) Initialize(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach Redis: %w", err)
	}
	return nil
}

// Load reads every field of the hash. Entries are upgraded like file
// snapshots so legacy layouts written by other clients still load.
func (r *Repository) Load(ctx context.Context) (core.Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.key, err)
	}
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw[k] = json.RawMessage(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidValue, err)
	}
	snap, err := core.UpgradeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.key, err)
	}
	r.logger.Debug("snapshot loaded", "key", r.key, "count", len(snap))
	return snap, nil
}

// Save replaces the hash atomically in a MULTI/EXEC block.
func (r *Repository) Save(ctx context.Context, snap core.Snapshot) error {
	args := make([]any, 0, len(snap)*2)
	for k, e := range snap {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", k, err)
		}
		args = append(args, k, string(data))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(args) > 0 {
			pipe.HSet(ctx, r.key, args...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", r.key, err)
	}
	r.logger.Debug("snapshot saved", "key", r.key, "count", len(snap))
	return nil
}
