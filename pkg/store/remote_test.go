package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

func TestApplyRemote_IsEchoSafe(t *testing.T) {
	s := store.New(store.WithHistory(true), store.WithContext(&core.ContextRules{Tags: []string{"mine"}}))

	var events []core.Event
	s.SubscribeAll(func(ev core.Event) { events = append(events, ev) })

	e := core.Entry{Value: "from afar", Attributes: core.DefaultAttributes()}
	e.Attributes.SystemTags = []core.SystemTag{core.TagLLMWrite}
	require.NoError(t, s.ApplyRemoteSet("remote", e))

	require.Len(t, events, 1)
	assert.True(t, events[0].Remote())
	assert.False(t, s.CanUndoAll(), "remote changes are not local history")
	assert.Contains(t, s.Serialize(), "remote", "remote writes bypass the context")

	assert.True(t, s.ApplyRemoteDelete("remote"))
	assert.False(t, s.ApplyRemoteDelete("remote"))
	assert.True(t, events[1].Remote())
}

func TestApplyRemote_Validates(t *testing.T) {
	s := store.New()
	err := s.ApplyRemoteSet("j", core.Entry{Value: "{", Attributes: core.Attributes{Type: core.TypeJSON}})
	assert.ErrorIs(t, err, core.ErrInvalidValue)
	assert.ErrorIs(t, s.ApplyRemoteSet(core.ReservedVersion, core.Entry{}), core.ErrReservedKey)
}

func TestApplyRemote_DocumentKeepsHandle(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("doc", "Hello World", core.Patch().WithType(core.TypeDocument)))
	h, _ := s.Document("doc")

	e, _ := s.Entry("doc")
	e.Value = "Hello Remote World"
	require.NoError(t, s.ApplyRemoteSet("doc", e))
	assert.Equal(t, "Hello Remote World", h.String())
}

func TestApplyRemoteClear(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("a", "1", nil))
	require.NoError(t, s.Set("p", "1", sys(core.TagProtected)))

	var events []core.Event
	s.SubscribeAll(func(ev core.Event) { events = append(events, ev) })
	s.ApplyRemoteClear()

	assert.Equal(t, []string{"p"}, s.Keys())
	require.Len(t, events, 1)
	assert.Equal(t, core.EventClear, events[0].Type)
	assert.True(t, events[0].Remote())
}
