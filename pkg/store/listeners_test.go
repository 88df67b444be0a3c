package store_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

func TestListeners_KeyAndGlobal(t *testing.T) {
	s := store.New()
	var order []string
	s.Subscribe("a", func(ev core.Event) { order = append(order, "key:"+string(ev.Type)) })
	s.SubscribeAll(func(ev core.Event) { order = append(order, "all1:"+ev.Key) })
	s.SubscribeAll(func(ev core.Event) { order = append(order, "all2:"+ev.Key) })

	require.NoError(t, s.Set("a", "1", nil))
	require.NoError(t, s.Set("b", "1", nil))
	assert.Equal(t, []string{"key:SET", "all1:a", "all2:a", "all1:b", "all2:b"}, order)
}

func TestListeners_Unsubscribe(t *testing.T) {
	s := store.New()
	n := 0
	off := s.Subscribe("a", func(core.Event) { n++ })
	offAll := s.SubscribeAll(func(core.Event) { n++ })

	require.NoError(t, s.Set("a", "1", nil))
	off()
	offAll()
	require.NoError(t, s.Set("a", "2", nil))
	assert.Equal(t, 2, n)
}

func TestListeners_PanicIsIsolated(t *testing.T) {
	var logs bytes.Buffer
	s := store.New(store.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	called := false
	s.SubscribeAll(func(core.Event) { panic("boom") })
	s.SubscribeAll(func(core.Event) { called = true })

	require.NoError(t, s.Set("k", "v", nil))
	assert.True(t, called)
	assert.Contains(t, logs.String(), "listener panicked")
	assert.Contains(t, logs.String(), "boom")
}

func TestListeners_UpdateNotifiesGlobalOnce(t *testing.T) {
	s := store.New()
	var global []core.Event
	perKey := map[string]int{}
	s.SubscribeAll(func(ev core.Event) { global = append(global, ev) })
	s.Subscribe("a", func(core.Event) { perKey["a"]++ })
	s.Subscribe("b", func(core.Event) { perKey["b"]++ })

	require.NoError(t, s.Update(map[string]string{"a": "1", "b": "2", "c": "3"}))
	require.Len(t, global, 1)
	assert.Equal(t, core.EventBatch, global[0].Type)
	assert.Equal(t, []string{"a", "b", "c"}, global[0].Keys)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, perKey)
}

func TestListeners_ClearNotifiesOnce(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Update(map[string]string{"a": "1", "b": "2"}))

	var global []core.Event
	deleted := 0
	s.SubscribeAll(func(ev core.Event) { global = append(global, ev) })
	s.Subscribe("a", func(ev core.Event) {
		if ev.Type == core.EventDelete {
			deleted++
		}
	})

	s.Clear()
	require.Len(t, global, 1)
	assert.Equal(t, core.EventClear, global[0].Type)
	assert.Equal(t, 1, deleted)
}

func TestListeners_DeleteEvent(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("k", "v", nil))
	var got core.Event
	s.Subscribe("k", func(ev core.Event) { got = ev })
	require.True(t, s.Delete("k"))
	assert.Equal(t, core.Event{Type: core.EventDelete, Key: "k", Origin: core.OriginLocal}, got)
	assert.False(t, s.Delete("k"))
}
