package fs

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/markdown"
)

// Serializer defines how a snapshot is read from and written to a file format.
type Serializer interface {
	// Decode parses a whole file. Empty input is an empty snapshot.
	Decode(data []byte) (core.Snapshot, error)
	// Encode renders the snapshot.
	Encode(snap core.Snapshot) ([]byte, error)
}

// DefaultSerializers returns the standard set of serializers by extension.
func DefaultSerializers(version string) map[string]Serializer {
	return map[string]Serializer{
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
		".md":   MarkdownSerializer{Version: version},
	}
}

// ForPath picks the serializer for path's extension.
func ForPath(serializers map[string]Serializer, path string) (Serializer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	s, ok := serializers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported snapshot format %q", ext)
	}
	return s, nil
}

// --- JSON Serializer ---

// JSONSerializer reads and writes the canonical snapshot shape. Legacy
// attribute layouts are upgraded on read.
type JSONSerializer struct{}

func (JSONSerializer) Decode(data []byte) (core.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return core.Snapshot{}, nil
	}
	return core.UpgradeSnapshot(data)
}

func (JSONSerializer) Encode(snap core.Snapshot) ([]byte, error) {
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// --- YAML Serializer ---

// YAMLSerializer stores the snapshot as a YAML mapping with the same shape as
// the JSON one.
type YAMLSerializer struct{}

func (YAMLSerializer) Decode(data []byte) (core.Snapshot, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: yaml snapshot: %v", core.ErrInvalidValue, err)
	}
	if len(raw) == 0 {
		return core.Snapshot{}, nil
	}
	// Route through JSON so legacy layouts get the same upgrade.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: yaml snapshot: %v", core.ErrInvalidValue, err)
	}
	return core.UpgradeSnapshot(asJSON)
}

func (YAMLSerializer) Encode(snap core.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- Markdown Serializer ---

// MarkdownSerializer stores the snapshot as a markdown export. Input without
// entry structure is read as a single imported entry.
type MarkdownSerializer struct {
	Version string
}

func (s MarkdownSerializer) Decode(data []byte) (core.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return core.Snapshot{}, nil
	}
	doc := markdown.Decode(data)
	snap := make(core.Snapshot, len(doc.Items))
	for _, it := range doc.Items {
		snap[it.Key] = it.Entry
	}
	return snap, nil
}

func (s MarkdownSerializer) Encode(snap core.Snapshot) ([]byte, error) {
	items := make([]markdown.Item, 0, len(snap))
	for k, e := range snap {
		items = append(items, markdown.Item{Key: k, Entry: e})
	}
	slices.SortFunc(items, func(a, b markdown.Item) int {
		if c := cmp.Compare(a.Entry.Attributes.ZIndex, b.Entry.Attributes.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	var opts []markdown.Option
	if s.Version != "" {
		opts = append(opts, markdown.WithVersion(s.Version))
	}
	return markdown.NewEncoder(opts...).Encode(items)
}
