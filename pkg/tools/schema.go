package tools

import (
	"github.com/invopop/jsonschema"
)

// WriteInput is the input of write_<key>.
type WriteInput struct {
	Value string `json:"value" jsonschema_description:"The complete new value."`
}

// AppendInput is the input of append_<key>.
type AppendInput struct {
	Text string `json:"text" jsonschema_description:"Text appended to the end of the document."`
}

// InsertInput is the input of insert_<key>.
type InsertInput struct {
	Position int    `json:"position" jsonschema:"minimum=0" jsonschema_description:"Character offset (Unicode code points, 0-based) to insert at."`
	Text     string `json:"text" jsonschema_description:"Text to insert."`
}

// EditInput is the input of edit_<key>.
type EditInput struct {
	Find    string `json:"find" jsonschema_description:"Exact text to find; the first occurrence is replaced."`
	Replace string `json:"replace" jsonschema_description:"Replacement text."`
}

var (
	WriteInputSchema  = GenerateSchema[WriteInput]()
	AppendInputSchema = GenerateSchema[AppendInput]()
	InsertInputSchema = GenerateSchema[InsertInput]()
	EditInputSchema   = GenerateSchema[EditInput]()
)

// GenerateSchema derives an inline JSON Schema from a Go struct.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
