package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/adapters/sqlite"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

func open(t *testing.T, path string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Initialize(context.Background()))
	return repo
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "stm.db")

	cfg := core.DefaultAttributes()
	cfg.Type = core.TypeJSON
	cfg.ZIndex = -1
	cfg.ContentTags = []string{"settings"}
	want := core.Snapshot{
		"cfg":   {Value: `{"a":1}`, Attributes: cfg},
		"notes": {Value: "multi\nline", Attributes: core.DefaultAttributes()},
	}
	require.NoError(t, open(t, path).Save(ctx, want))

	// A fresh handle on the same file sees the rows.
	got, err := open(t, path).Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b core.Entry) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_Replaces(t *testing.T) {
	ctx := context.Background()
	repo := open(t, ":memory:")

	require.NoError(t, repo.Save(ctx, core.Snapshot{"a": {Value: "1", Attributes: core.DefaultAttributes()}}))
	require.NoError(t, repo.Save(ctx, core.Snapshot{"b": {Value: "2", Attributes: core.DefaultAttributes()}}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got["b"].Value)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := open(t, ":memory:")

	src := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, src.Set("greeting", "Hello {{name}}", core.Patch().WithSystemTags(core.TagApplyTemplate)))
	require.NoError(t, src.Set("name", "Ada", core.Patch().WithSystemTags(core.TagLLMRead)))
	require.NoError(t, repo.Save(ctx, src.Serialize()))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	dst := store.New()
	require.NoError(t, dst.Deserialize(snap))

	v, ok := dst.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "Hello Ada", v)
}
