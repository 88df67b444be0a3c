package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/invopop/jsonschema"

	"github.com/aretw0/stm/pkg/core"
)

// Operation is what a tool does to its key.
type Operation string

const (
	OpWrite  Operation = "write"
	OpAppend Operation = "append"
	OpInsert Operation = "insert"
	OpEdit   Operation = "edit"
)

var operations = []Operation{OpWrite, OpAppend, OpInsert, OpEdit}

// Descriptor is one generated tool.
type Descriptor struct {
	Name        string
	Description string
	Key         string
	Operation   Operation
	InputSchema *jsonschema.Schema
}

// Result reports an executed tool call.
type Result struct {
	Key       string    `json:"key"`
	Operation Operation `json:"operation"`
	Message   string    `json:"message"`
}

// Store is the subset of the store the tool surface needs.
type Store interface {
	Keys() []string
	GetAttributes(key string) (core.Attributes, bool)
	Set(key, value string, patch *core.AttributesPatch) error
	AppendText(key, text string) error
	InsertText(key string, pos int, text string) error
	ReplaceText(key, find, replacement string) error
}

// Surface generates and executes tools.
type Surface struct {
	logger  *slog.Logger
	pattern string
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) { s.logger = logger }
}

// WithKeyPattern restricts tools to keys matching a doublestar glob.
func WithKeyPattern(pattern string) Option {
	return func(s *Surface) { s.pattern = pattern }
}

// New creates a Surface.
func New(opts ...Option) *Surface {
	s := &Surface{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Name builds the tool name for op on key.
func Name(op Operation, key string) string {
	return string(op) + "_" + Sanitize(key)
}

func (s *Surface) allowed(key string) bool {
	if s.pattern == "" {
		return true
	}
	ok, err := doublestar.Match(s.pattern, key)
	return err == nil && ok
}

func writable(a core.Attributes) bool {
	return a.WritableByLLM() && !a.Type.Binary()
}

// Descriptors lists the tools for every writable key visible through the
// store's context, in store order.
func (s *Surface) Descriptors(st Store) []Descriptor {
	var out []Descriptor
	seen := make(map[string]string)
	for _, key := range st.Keys() {
		attrs, ok := st.GetAttributes(key)
		if !ok || !writable(attrs) || !s.allowed(key) {
			continue
		}
		for _, d := range describe(key, attrs) {
			if first, dup := seen[d.Name]; dup {
				s.logger.Warn("tool name collision, first key wins", "tool", d.Name, "key", key, "winner", first)
				continue
			}
			seen[d.Name] = key
			out = append(out, d)
		}
	}
	return out
}

func describe(key string, attrs core.Attributes) []Descriptor {
	write := Descriptor{
		Name:        Name(OpWrite, key),
		Key:         key,
		Operation:   OpWrite,
		InputSchema: WriteInputSchema,
	}
	switch attrs.Type {
	case core.TypeJSON:
		write.Description = fmt.Sprintf("Replace the value of %q. The value must be valid JSON.", key)
	case core.TypeDocument:
		write.Description = fmt.Sprintf("Rewrite the document %q with its complete new text.", key)
	default:
		write.Description = fmt.Sprintf("Replace the value of %q.", key)
	}
	if attrs.Type != core.TypeDocument {
		return []Descriptor{write}
	}
	return []Descriptor{
		write,
		{
			Name:        Name(OpAppend, key),
			Description: fmt.Sprintf("Append text to the end of the document %q.", key),
			Key:         key,
			Operation:   OpAppend,
			InputSchema: AppendInputSchema,
		},
		{
			Name:        Name(OpInsert, key),
			Description: fmt.Sprintf("Insert text at a character position in the document %q.", key),
			Key:         key,
			Operation:   OpInsert,
			InputSchema: InsertInputSchema,
		},
		{
			Name:        Name(OpEdit, key),
			Description: fmt.Sprintf("Find and replace the first occurrence of a text in the document %q.", key),
			Key:         key,
			Operation:   OpEdit,
			InputSchema: EditInputSchema,
		},
	}
}

// Resolve maps a tool name back to its operation and key. Writable keys are
// searched first so a collision resolves the way Descriptors reported it;
// otherwise any visible key with that name is returned so the caller can
// report the denied permission.
func (s *Surface) Resolve(st Store, name string) (Operation, string, bool) {
	var op Operation
	var suffix string
	for _, o := range operations {
		if rest, ok := strings.CutPrefix(name, string(o)+"_"); ok {
			op, suffix = o, rest
			break
		}
	}
	if op == "" {
		return "", "", false
	}

	fallback := ""
	for _, key := range st.Keys() {
		if Sanitize(key) != suffix || !s.allowed(key) {
			continue
		}
		attrs, _ := st.GetAttributes(key)
		if writable(attrs) {
			return op, key, true
		}
		if fallback == "" {
			fallback = key
		}
	}
	if fallback != "" {
		return op, fallback, true
	}
	return "", "", false
}

// Execute runs a tool call. Permission is checked again against the current
// state; a key that lost LLMWrite or left the context is not modified.
func (s *Surface) Execute(st Store, name string, input json.RawMessage) (Result, error) {
	op, key, ok := s.Resolve(st, name)
	if !ok {
		return Result{}, core.E("tool", name, core.ErrUnknownTool)
	}
	attrs, ok := st.GetAttributes(key)
	if !ok || !writable(attrs) {
		s.logger.Warn("tool call denied", "tool", name, "key", key)
		return Result{}, core.E("tool", key, core.ErrPermissionDenied)
	}
	if op != OpWrite && attrs.Type != core.TypeDocument {
		return Result{}, core.E("tool", name, core.ErrUnknownTool)
	}

	res := Result{Key: key, Operation: op}
	var err error
	switch op {
	case OpWrite:
		var in WriteInput
		if err = decode(input, &in); err == nil {
			err = st.Set(key, in.Value, nil)
			res.Message = fmt.Sprintf("Updated %q.", key)
		}
	case OpAppend:
		var in AppendInput
		if err = decode(input, &in); err == nil {
			err = st.AppendText(key, in.Text)
			res.Message = fmt.Sprintf("Appended %d characters to %q.", len([]rune(in.Text)), key)
		}
	case OpInsert:
		var in InsertInput
		if err = decode(input, &in); err == nil {
			err = st.InsertText(key, in.Position, in.Text)
			res.Message = fmt.Sprintf("Inserted text at position %d of %q.", in.Position, key)
		}
	case OpEdit:
		var in EditInput
		if err = decode(input, &in); err == nil {
			err = st.ReplaceText(key, in.Find, in.Replace)
			res.Message = fmt.Sprintf("Replaced text in %q.", key)
		}
	}
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("tool executed", "tool", name, "key", key, "op", op)
	return res, nil
}

func decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: tool input: %v", core.ErrInvalidValue, err)
	}
	return nil
}
