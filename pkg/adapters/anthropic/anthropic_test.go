package anthropic_test

import (
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/adapters/anthropic"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
	"github.com/aretw0/stm/pkg/tools"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	rw := core.Patch().WithSystemTags(core.TagLLMRead, core.TagLLMWrite)
	require.NoError(t, s.Set("mood", "calm", rw))
	require.NoError(t, s.Set("notes", "Hello", rw.WithType(core.TypeDocument)))
	return s
}

type toolJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	} `json:"input_schema"`
}

func TestToolParams(t *testing.T) {
	s := newStore(t)
	params := anthropic.ToolParams(tools.New().Descriptors(s))
	require.Len(t, params, 5)

	data, err := json.Marshal(params[0])
	require.NoError(t, err)
	var got toolJSON
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "write_mood", got.Name)
	assert.Contains(t, got.Description, "mood")
	assert.Equal(t, "object", got.InputSchema.Type)
	assert.Contains(t, got.InputSchema.Properties, "value")
	assert.Equal(t, []string{"value"}, got.InputSchema.Required)
}

func toolUse(t *testing.T, id, name, input string) sdk.ToolUseBlock {
	t.Helper()
	var block sdk.ToolUseBlock
	raw := `{"type": "tool_use", "id": "` + id + `", "name": "` + name + `", "input": ` + input + `}`
	require.NoError(t, json.Unmarshal([]byte(raw), &block))
	return block
}

type resultJSON struct {
	ToolUseID string `json:"tool_use_id"`
	IsError   bool   `json:"is_error"`
	Content   []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func decodeResult(t *testing.T, b sdk.ContentBlockParamUnion) resultJSON {
	t.Helper()
	require.NotNil(t, b.OfToolResult)
	data, err := json.Marshal(b)
	require.NoError(t, err)
	var r resultJSON
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestHandleToolUse(t *testing.T) {
	s := newStore(t)
	surface := tools.New()

	res := decodeResult(t, anthropic.HandleToolUse(surface, s, toolUse(t, "t1", "append_notes", `{"text": " world"}`)))
	assert.Equal(t, "t1", res.ToolUseID)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].Text, `"operation":"append"`)

	v, _ := s.Get("notes")
	assert.Equal(t, "Hello world", v)

	res = decodeResult(t, anthropic.HandleToolUse(surface, s, toolUse(t, "t2", "write_nothing", `{}`)))
	assert.True(t, res.IsError)
	assert.Equal(t, "tool not found", res.Content[0].Text)
}

func TestHandleToolUse_RevokedPermission(t *testing.T) {
	s := newStore(t)
	require.True(t, s.SystemRemoveTag("mood", core.TagLLMWrite))

	res := decodeResult(t, anthropic.HandleToolUse(tools.New(), s, toolUse(t, "t1", "write_mood", `{"value": "x"}`)))
	assert.True(t, res.IsError)
	v, _ := s.Get("mood")
	assert.Equal(t, "calm", v)
}

func TestHandleMessage(t *testing.T) {
	s := newStore(t)
	var msg sdk.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Updating."},
			{"type": "tool_use", "id": "a", "name": "write_mood", "input": {"value": "happy"}},
			{"type": "tool_use", "id": "b", "name": "edit_notes", "input": {"find": "Hello", "replace": "Hi"}}
		]
	}`), &msg))

	results := anthropic.HandleMessage(tools.New(), s, &msg)
	require.Len(t, results, 2)
	assert.Equal(t, "a", decodeResult(t, results[0]).ToolUseID)
	assert.Equal(t, "b", decodeResult(t, results[1]).ToolUseID)

	mood, _ := s.Get("mood")
	notes, _ := s.Get("notes")
	assert.Equal(t, "happy", mood)
	assert.Equal(t, "Hi", notes)
}
