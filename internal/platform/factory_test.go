package platform_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/internal/platform"
	"github.com/aretw0/stm/pkg/adapters/fs"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

func set(t *testing.T, s *platform.Session, key, value string) {
	t.Helper()
	require.NoError(t, s.Do(func(st *store.Store) error {
		return st.Set(key, value, nil)
	}))
}

func get(s *platform.Session, key string) (value string, ok bool) {
	_ = s.Do(func(st *store.Store) error {
		value, ok = st.GetRaw(key)
		return nil
	})
	return value, ok
}

func TestOpen_FilePersistence(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"state.json", "state.yaml", "state.md"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			s, err := platform.Open(ctx, path)
			require.NoError(t, err)
			set(t, s, "mood", "calm")
			require.NoError(t, s.Close(ctx))
			require.NoError(t, s.Close(ctx), "second close is a no-op")

			s, err = platform.Open(ctx, path)
			require.NoError(t, err)
			defer s.Close(ctx)
			v, ok := get(s, "mood")
			require.True(t, ok)
			assert.Equal(t, "calm", v)
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := platform.Open(ctx, path, platform.WithAdapter(platform.AdapterSQLite))
	require.NoError(t, err)
	set(t, s, "mood", "calm")
	require.NoError(t, s.Close(ctx))

	s, err = platform.Open(ctx, path, platform.WithAdapter(platform.AdapterSQLite))
	require.NoError(t, err)
	defer s.Close(ctx)
	v, _ := get(s, "mood")
	assert.Equal(t, "calm", v)
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := platform.Open(ctx, "", platform.WithAdapter(platform.AdapterMemory),
		platform.WithAccessLevel(core.AccessSystem))
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.Nil(t, s.Repository())

	set(t, s, "a", "1")
	set(t, s, "a", "2")
	require.NoError(t, s.Do(func(st *store.Store) error {
		assert.Equal(t, core.AccessSystem, st.AccessLevel())
		assert.False(t, st.HistoryEnabled(), "nothing backs a bare memory session")
		assert.False(t, st.Undo("a"))
		return nil
	}))
	v, _ := get(s, "a")
	assert.Equal(t, "2", v)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := platform.Open(ctx, "x", platform.WithAdapter("s3"))
	assert.ErrorContains(t, err, "unknown adapter")

	_, err = platform.Open(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	_, err = platform.Open(ctx, filepath.Join(t.TempDir(), "missing.json"), platform.WithMustExist(true))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = platform.Open(ctx, "", platform.WithAdapter(platform.AdapterMemory), platform.WithWatch(true))
	assert.Error(t, err)
}

func TestOpen_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := platform.Open(ctx, path, platform.WithReadOnly(true))
	require.NoError(t, err)
	set(t, s, "mood", "calm")
	require.NoError(t, s.Close(ctx))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "read-only sessions never write")
}

func TestOpen_WatchReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := platform.Open(ctx, path, platform.WithWatch(true), platform.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer s.Close(ctx)

	other := store.New()
	require.NoError(t, other.Set("mood", "external", nil))
	data, err := fs.JSONSerializer{}.Encode(other.Serialize())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return false
		}
		v, _ := get(s, "mood")
		return v == "external"
	}, 3*time.Second, 100*time.Millisecond)
}

func TestOpen_RedisReplication(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	uri := "redis://" + mr.Addr()
	opts := []platform.Option{
		platform.WithAdapter(platform.AdapterRedis),
		platform.WithReplication(true),
		platform.WithNamespace("test"),
		platform.WithDebounce(10 * time.Millisecond),
	}

	a, err := platform.Open(ctx, uri, opts...)
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := platform.Open(ctx, uri, opts...)
	require.NoError(t, err)
	defer b.Close(ctx)
	assert.NotEqual(t, a.ClientID(), b.ClientID())

	// Replicators subscribe in the background; keep writing until one lands.
	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = a.Do(func(st *store.Store) error {
			return st.Set("mood", fmt.Sprintf("shared-%d", n), nil)
		})
		v, _ := get(b, "mood")
		return strings.HasPrefix(v, "shared-")
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Flush(ctx))
	assert.True(t, mr.Exists("test:entries"))
	require.NoError(t, b.Do(func(st *store.Store) error {
		assert.True(t, st.HistoryEnabled(), "a backed session records history")
		return nil
	}))
}
