// Package anthropic exposes the store's tool surface to the Anthropic
// Messages API.
package anthropic

import (
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/tools"
)

// ToolParams converts descriptors into request tool definitions.
func ToolParams(descs []tools.Descriptor) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		schema := sdk.ToolInputSchemaParam{}
		if d.InputSchema != nil {
			schema.Properties = d.InputSchema.Properties
			schema.Required = d.InputSchema.Required
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &sdk.ToolParam{
			Name:        d.Name,
			Description: sdk.String(d.Description),
			InputSchema: schema,
		}})
	}
	return out
}

// HandleToolUse executes one tool_use block and returns its tool_result.
// Failures are reported to the model as error results.
func HandleToolUse(surface *tools.Surface, st tools.Store, block sdk.ToolUseBlock) sdk.ContentBlockParamUnion {
	input := json.RawMessage(block.JSON.Input.Raw())
	res, err := surface.Execute(st, block.Name, input)
	if err != nil {
		return sdk.NewToolResultBlock(block.ID, errorMessage(err), true)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return sdk.NewToolResultBlock(block.ID, err.Error(), true)
	}
	return sdk.NewToolResultBlock(block.ID, string(data), false)
}

// HandleMessage executes every tool_use block of an assistant message, in
// order, and returns the results to send back in the next user turn.
func HandleMessage(surface *tools.Surface, st tools.Store, msg *sdk.Message) []sdk.ContentBlockParamUnion {
	var results []sdk.ContentBlockParamUnion
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdk.ToolUseBlock); ok {
			results = append(results, HandleToolUse(surface, st, v))
		}
	}
	return results
}

// errorMessage keeps results short and stable for the model.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownTool):
		return "tool not found"
	case errors.Is(err, core.ErrPermissionDenied):
		return "permission denied: the key is not writable"
	}
	return err.Error()
}
