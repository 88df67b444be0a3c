package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aretw0/stm/pkg/adapters/fs"
	"github.com/aretw0/stm/pkg/core"
)

func next(t *testing.T, events <-chan core.Event) core.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return core.Event{}
	}
}

func quiet(t *testing.T, events <-chan core.Event, d time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev)
	case <-time.After(d):
	}
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	path := filepath.Join(t.TempDir(), "stm.json")
	repo := newRepo(t, fs.Config{Path: path})
	require.NoError(t, repo.Save(ctx, core.Snapshot{"a": entry("1")}))

	events, err := repo.Watch(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return repo.State().(fs.RepositoryState).WatcherActive
	}, 2*time.Second, 10*time.Millisecond)

	// Writes through the repository are not reported back.
	require.NoError(t, repo.Save(ctx, core.Snapshot{"a": entry("2")}))
	quiet(t, events, 200*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"value": "external", "attributes": {"type": "text"}}}`), 0644))
	ev := next(t, events)
	require.Equal(t, core.EventBatch, ev.Type)
	require.True(t, ev.Remote())

	require.NoError(t, os.Remove(path))
	ev = next(t, events)
	require.Equal(t, core.EventClear, ev.Type)

	cancel()
	for range events {
	}
	require.Eventually(t, func() bool {
		return !repo.State().(fs.RepositoryState).WatcherActive
	}, 2*time.Second, 10*time.Millisecond)
}
