// Package markdown encodes a store snapshot as a human-readable, Git-diffable
// markdown document and decodes it back.
//
// Layout:
//
//	---            YAML front matter (title, exported, version, entries)
//	# STM Export
//	Export Date: ...
//	## STM Entries
//	### <key>      one section per entry: attribute bullets + fenced value
//	## Appendix: Binary Data
//	### Appendix A: <key>   base64 payloads referenced from the entries
package markdown

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stm/pkg/core"
)

const (
	// DefaultTitle is the document title written by the encoder.
	DefaultTitle = "STM Export"
	// DefaultMaxInline is the largest value, in bytes, written inline.
	// Longer values move to the appendix.
	DefaultMaxInline = 64 * 1024
	// ImportedKey holds the whole input when no entry structure is found.
	ImportedKey = "imported"

	entriesHeading  = "## STM Entries"
	appendixHeading = "## Appendix: Binary Data"
	appendixPrefix  = "### Appendix "
	wrapColumn      = 76
	textContentType = "text/plain; charset=utf-8"
)

// Item is one entry in document order.
type Item struct {
	Key   string
	Entry core.Entry
}

// Header is the front matter of an export.
type Header struct {
	Title    string `yaml:"title"`
	Exported string `yaml:"exported"`
	Version  string `yaml:"version,omitempty"`
	Entries  int    `yaml:"entries"`
}

// Document is a decoded export.
type Document struct {
	Header Header
	Items  []Item
	// Opaque is set when the input had no entry structure and was imported
	// as a single text entry.
	Opaque bool
	// Warnings lists recoverable problems found while decoding.
	Warnings []string
}

// Encoder writes exports.
type Encoder struct {
	now       func() time.Time
	version   string
	title     string
	maxInline int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithClock injects the time source for the export date.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) { e.now = now }
}

// WithVersion records the producing version in the front matter.
func WithVersion(v string) Option {
	return func(e *Encoder) { e.version = v }
}

// WithTitle overrides the document title.
func WithTitle(title string) Option {
	return func(e *Encoder) { e.title = title }
}

// WithMaxInline sets the size above which text values go to the appendix.
func WithMaxInline(n int) Option {
	return func(e *Encoder) { e.maxInline = n }
}

// NewEncoder creates an encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{now: time.Now, title: DefaultTitle, maxInline: DefaultMaxInline}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type appendixEntry struct {
	label       string
	key         string
	contentType string
	payload     string
}

// Encode renders items in order. Callers exclude protected and reserved
// entries before encoding.
func (e *Encoder) Encode(items []Item) ([]byte, error) {
	exported := e.now().UTC().Format(time.RFC3339)

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Header{Title: e.title, Exported: exported, Version: e.version, Entries: len(items)}); err != nil {
		return nil, err
	}
	enc.Close()
	buf.WriteString("---\n")

	fmt.Fprintf(&buf, "# %s\n\nExport Date: %s\n\n%s\n", e.title, exported, entriesHeading)

	var appendix []appendixEntry
	for _, it := range items {
		a := it.Entry.Attributes
		fmt.Fprintf(&buf, "\n### %s\n\n", headingKey(it.Key))
		fmt.Fprintf(&buf, "- **Type**: `%s`\n", a.Type)
		if len(a.SystemTags) > 0 {
			tags := make([]string, len(a.SystemTags))
			for i, t := range a.SystemTags {
				tags[i] = string(t)
			}
			fmt.Fprintf(&buf, "- **System Tags**: %s\n", tagList(tags))
		}
		if len(a.ContentTags) > 0 {
			fmt.Fprintf(&buf, "- **Tags**: %s\n", tagList(a.ContentTags))
		}
		fmt.Fprintf(&buf, "- **Z-Index**: %d\n", a.ZIndex)
		if a.ContentType != "" {
			fmt.Fprintf(&buf, "- **Content Type**: `%s`\n", a.ContentType)
		}

		if a.Type.Binary() || len(it.Entry.Value) > e.maxInline {
			ap := appendixEntry{label: Label(len(appendix)), key: it.Key, contentType: a.ContentType, payload: it.Entry.Value}
			if !a.Type.Binary() {
				ap.contentType = textContentType
				ap.payload = base64.StdEncoding.EncodeToString([]byte(it.Entry.Value))
			}
			appendix = append(appendix, ap)
			fmt.Fprintf(&buf, "- **Value**: [See Appendix %s]\n", ap.label)
			continue
		}

		fence := fenceFor(it.Entry.Value)
		fmt.Fprintf(&buf, "- **Value**:\n\n%s%s\n%s\n%s\n", fence, a.Type, it.Entry.Value, fence)
	}

	if len(appendix) > 0 {
		fmt.Fprintf(&buf, "\n%s\n", appendixHeading)
		for _, ap := range appendix {
			fmt.Fprintf(&buf, "\n%s%s: %s\n\n", appendixPrefix, ap.label, headingKey(ap.key))
			fmt.Fprintf(&buf, "- **Content Type**: `%s`\n\n", ap.contentType)
			buf.WriteString("```base64\n")
			for _, line := range wrap(ap.payload, wrapColumn) {
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
			buf.WriteString("```\n")
		}
	}
	return buf.Bytes(), nil
}

// Label returns the appendix label for index i: A..Z, AA, AB, ...
func Label(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}

func fenceFor(value string) string {
	longest, run := 0, 0
	for _, r := range value {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

func headingKey(key string) string {
	if safeHeading(key) {
		return key
	}
	return strconv.Quote(key)
}

func safeHeading(key string) bool {
	if key == "" || strings.HasPrefix(key, `"`) || strings.HasPrefix(key, "Appendix ") {
		return false
	}
	if strings.TrimSpace(key) != key {
		return false
	}
	for _, r := range key {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func tagList(tags []string) string {
	for _, t := range tags {
		if t == "" || strings.ContainsAny(t, "`\n\r") {
			b, _ := json.Marshal(tags)
			return string(b)
		}
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "`" + t + "`"
	}
	return strings.Join(parts, ", ")
}

func wrap(s string, width int) []string {
	if s == "" {
		return nil
	}
	lines := make([]string, 0, len(s)/width+1)
	for len(s) > width {
		lines = append(lines, s[:width])
		s = s[width:]
	}
	return append(lines, s)
}
