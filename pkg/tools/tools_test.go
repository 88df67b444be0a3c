package tools_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
	"github.com/aretw0/stm/pkg/tools"
)

func writable() *core.AttributesPatch {
	return core.Patch().WithSystemTags(core.TagLLMRead, core.TagLLMWrite)
}

func names(ds []tools.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestDescriptors(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("mood", "calm", writable()))
	require.NoError(t, s.Set("readonly", "x", core.Patch().WithSystemTags(core.TagLLMRead)))
	require.NoError(t, s.Set("notes", "", writable().WithType(core.TypeDocument)))
	require.NoError(t, s.SetBinary("logo", []byte("x"), core.TypeImage, "image/png"))
	require.True(t, s.SystemAddTag("logo", core.TagLLMWrite))

	ds := tools.New().Descriptors(s)
	assert.Equal(t, []string{"write_mood", "write_notes", "append_notes", "insert_notes", "edit_notes"}, names(ds))
	for _, d := range ds {
		assert.NotEmpty(t, d.Description)
		require.NotNil(t, d.InputSchema)
	}
}

func TestDescriptors_RespectContextAndPattern(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("work/a", "", writable().WithContentTags("work")))
	require.NoError(t, s.Set("home/b", "", writable()))
	require.NoError(t, s.Set("work/c", "", writable().WithContentTags("work")))

	s.SetContext(&core.ContextRules{Tags: []string{"work"}})
	assert.Equal(t, []string{"write_work_a", "write_work_c"}, names(tools.New().Descriptors(s)))

	s.ClearContext()
	assert.Equal(t, []string{"write_home_b"}, names(tools.New(tools.WithKeyPattern("home/*")).Descriptors(s)))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Cafe_notes_", tools.Sanitize("Café notes!"))
	assert.Equal(t, "a-b_c", tools.Sanitize("a-b_c"))
	assert.Equal(t, "_", tools.Sanitize(""))
	assert.Equal(t, "____", tools.Sanitize("日本語!"))

	long := tools.Name(tools.OpAppend, strings.Repeat("k", 200))
	assert.Len(t, long, tools.MaxNameLength)
}

func TestCollision_FirstKeyWins(t *testing.T) {
	var logs bytes.Buffer
	surface := tools.New(tools.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("a.b", "first", writable()))
	require.NoError(t, s.Set("a b", "second", writable()))

	ds := surface.Descriptors(s)
	require.Len(t, ds, 1)
	assert.Equal(t, "a.b", ds[0].Key)
	assert.Contains(t, logs.String(), "tool name collision")

	_, err := surface.Execute(s, "write_a_b", json.RawMessage(`{"value":"changed"}`))
	require.NoError(t, err)
	v, _ := s.Get("a.b")
	assert.Equal(t, "changed", v)
	v, _ = s.Get("a b")
	assert.Equal(t, "second", v)
}

func TestExecute_PermissionClosure(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("mood", "calm", writable()))
	surface := tools.New()
	require.Len(t, surface.Descriptors(s), 1)

	require.True(t, s.SystemRemoveTag("mood", core.TagLLMWrite))

	_, err := surface.Execute(s, "write_mood", json.RawMessage(`{"value":"angry"}`))
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	v, _ := s.Get("mood")
	assert.Equal(t, "calm", v)
}

func TestExecute_ContextRevocation(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("k", "v", writable().WithContentTags("work")))
	surface := tools.New()
	require.Len(t, surface.Descriptors(s), 1)

	s.SetContext(&core.ContextRules{Tags: []string{"home"}})
	_, err := surface.Execute(s, "write_k", json.RawMessage(`{"value":"x"}`))
	assert.ErrorIs(t, err, core.ErrUnknownTool, "the key is no longer visible")

	s.ClearContext()
	v, _ := s.Get("k")
	assert.Equal(t, "v", v)
}

func TestExecute_DocumentOperations(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("notes", "Hello World", writable().WithType(core.TypeDocument)))
	h, _ := s.Document("notes")
	surface := tools.New()

	res, err := surface.Execute(s, "write_notes", json.RawMessage(`{"value":"Hello Brave World"}`))
	require.NoError(t, err)
	assert.Equal(t, tools.Result{Key: "notes", Operation: tools.OpWrite, Message: `Updated "notes".`}, res)
	same, _ := s.Document("notes")
	assert.Same(t, h, same, "writes go through the diff policy, never a handle replace")

	_, err = surface.Execute(s, "append_notes", json.RawMessage(`{"text":"!"}`))
	require.NoError(t, err)
	_, err = surface.Execute(s, "insert_notes", json.RawMessage(`{"position":0,"text":"> "}`))
	require.NoError(t, err)
	_, err = surface.Execute(s, "edit_notes", json.RawMessage(`{"find":"Brave","replace":"Bold"}`))
	require.NoError(t, err)
	assert.Equal(t, "> Hello Bold World!", h.String())

	_, err = surface.Execute(s, "edit_notes", json.RawMessage(`{"find":"nope","replace":"x"}`))
	assert.ErrorIs(t, err, core.ErrTextNotFound)
	_, err = surface.Execute(s, "insert_notes", json.RawMessage(`{"position":999,"text":"x"}`))
	assert.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestExecute_Errors(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("cfg", `{}`, writable().WithType(core.TypeJSON)))
	require.NoError(t, s.Set("plain", "", writable()))
	surface := tools.New()

	_, err := surface.Execute(s, "write_cfg", json.RawMessage(`{"value":"not json"}`))
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	_, err = surface.Execute(s, "write_cfg", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	_, err = surface.Execute(s, "write_plain", json.RawMessage(`{"value":"x","extra":1}`))
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	_, err = surface.Execute(s, "append_plain", json.RawMessage(`{"text":"x"}`))
	assert.ErrorIs(t, err, core.ErrUnknownTool)

	_, err = surface.Execute(s, "delete_cfg", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTool)

	_, err = surface.Execute(s, "write_missing", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestInputSchemas(t *testing.T) {
	raw, err := json.Marshal(tools.InsertInputSchema)
	require.NoError(t, err)

	var schema struct {
		Type                 string                    `json:"type"`
		Properties           map[string]map[string]any `json:"properties"`
		Required             []string                  `json:"required"`
		AdditionalProperties *bool                     `json:"additionalProperties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "position")
	assert.Contains(t, schema.Properties, "text")
	assert.Equal(t, "integer", schema.Properties["position"]["type"])
	assert.ElementsMatch(t, []string{"position", "text"}, schema.Required)
	require.NotNil(t, schema.AdditionalProperties)
	assert.False(t, *schema.AdditionalProperties)
}
