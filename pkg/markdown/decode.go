package markdown

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stm/pkg/core"
)

var (
	codeSpan    = regexp.MustCompile("`([^`]*)`")
	appendixRef = regexp.MustCompile(`^\[See Appendix ([A-Z]+)\]`)
	appendixHdr = regexp.MustCompile(`^### Appendix ([A-Z]+): (.*)$`)
	bullet      = regexp.MustCompile(`^- \*\*([^*]+)\*\*:\s?(.*)$`)
)

// fence info strings that never carry content on the opening line
var infoStrings = map[string]bool{"": true, "text": true, "json": true, "document": true, "base64": true}

// Decode parses an export. Malformed sections degrade to warnings; input
// without any entry structure becomes a single text entry under ImportedKey.
func Decode(data []byte) *Document {
	text := string(data)
	if first, _, _ := strings.Cut(text, "\n"); strings.HasSuffix(first, "\r") {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	doc := &Document{}

	body := text
	if fm, rest, ok := splitFrontMatter(text); ok {
		if err := yaml.Unmarshal([]byte(fm), &doc.Header); err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("front matter: %v", err))
		}
		body = rest
	}

	lines := strings.Split(body, "\n")
	if !hasStructure(lines) {
		return opaque(string(data))
	}

	p := &parser{lines: lines, doc: doc, refs: make(map[string]int), payloads: make(map[string]string)}
	p.run()
	p.resolve()
	return doc
}

func opaque(data string) *Document {
	a := core.DefaultAttributes()
	return &Document{
		Header: Header{Title: DefaultTitle, Entries: 1},
		Items:  []Item{{Key: ImportedKey, Entry: core.Entry{Value: data, Attributes: a}}},
		Opaque: true,
	}
}

func splitFrontMatter(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "---\n") {
		return "", "", false
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n---") {
			return rest[:len(rest)-4], "", true
		}
		return "", "", false
	}
	return rest[:end], rest[end+len("\n---\n"):], true
}

// hasStructure reports whether lines look like an export: either the entries
// heading is present or some "### " section carries a Type or Value bullet.
// Headed prose alone is not enough.
func hasStructure(lines []string) bool {
	inSection := false
	for _, l := range lines {
		switch {
		case l == entriesHeading:
			return true
		case strings.HasPrefix(l, "#"):
			inSection = strings.HasPrefix(l, "### ") && !strings.HasPrefix(l, appendixPrefix)
		case inSection:
			if m := bullet.FindStringSubmatch(l); m != nil && (m[1] == "Type" || m[1] == "Value") {
				return true
			}
		}
	}
	return false
}

type parser struct {
	lines    []string
	i        int
	doc      *Document
	refs     map[string]int // appendix label -> item index
	payloads map[string]string
}

func (p *parser) warn(format string, args ...any) {
	p.doc.Warnings = append(p.doc.Warnings, fmt.Sprintf("line %d: ", p.i+1)+fmt.Sprintf(format, args...))
}

func (p *parser) run() {
	inAppendix := false
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		switch {
		case line == appendixHeading:
			inAppendix = true
			p.i++
		case strings.HasPrefix(line, "## "):
			inAppendix = false
			p.i++
		case inAppendix && appendixHdr.MatchString(line):
			p.appendixSection()
		case strings.HasPrefix(line, "### ") && !inAppendix:
			p.entrySection()
		default:
			p.i++
		}
	}
}

func (p *parser) entrySection() {
	key, err := parseHeadingKey(strings.TrimPrefix(p.lines[p.i], "### "))
	if err != nil {
		p.warn("bad key heading: %v", err)
	}
	p.i++

	it := Item{Key: key, Entry: core.Entry{Attributes: core.DefaultAttributes()}}
	a := &it.Entry.Attributes
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		if strings.HasPrefix(line, "#") {
			break
		}
		m := bullet.FindStringSubmatch(line)
		if m == nil {
			p.i++
			continue
		}
		field, rest := m[1], strings.TrimSpace(m[2])
		p.i++
		switch field {
		case "Type":
			t, err := core.ParseType(unquote(rest))
			if err != nil {
				p.warn("%v", err)
				continue
			}
			a.Type = t
		case "System Tags":
			for _, s := range parseTags(rest) {
				t, err := core.ParseSystemTag(s)
				if err != nil {
					p.warn("%v", err)
					continue
				}
				a.SystemTags = append(a.SystemTags, t)
			}
		case "Tags":
			a.ContentTags = parseTags(rest)
		case "Z-Index":
			z, err := strconv.Atoi(unquote(rest))
			if err != nil {
				p.warn("z-index %q: %v", rest, err)
				continue
			}
			a.ZIndex = z
		case "Content Type":
			a.ContentType = unquote(rest)
		case "Value":
			if m := appendixRef.FindStringSubmatch(rest); m != nil {
				p.refs[m[1]] = len(p.doc.Items)
			} else {
				it.Entry.Value = p.value(rest)
			}
			p.doc.Items = append(p.doc.Items, it)
			return
		}
	}
	p.warn("entry %q has no value", key)
	p.doc.Items = append(p.doc.Items, it)
}

// value reads the value following a "- **Value**:" bullet.
func (p *parser) value(inline string) string {
	if inline != "" {
		return p.legacy(inline)
	}
	for p.i < len(p.lines) && strings.TrimSpace(p.lines[p.i]) == "" {
		p.i++
	}
	if p.i >= len(p.lines) {
		return ""
	}
	line := p.lines[p.i]
	if fence, _, ok := openFence(line); ok {
		return p.fenced(fence)
	}
	if strings.HasPrefix(line, "#") || bullet.MatchString(line) {
		return ""
	}
	p.i++
	return p.legacy(line)
}

// legacy collects an unfenced value until a blank line or heading.
func (p *parser) legacy(first string) string {
	out := []string{first}
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			break
		}
		out = append(out, line)
		p.i++
	}
	return strings.Join(out, "\n")
}

// fenced reads a fenced block starting at the current line.
func (p *parser) fenced(fence string) string {
	_, first, _ := openFence(p.lines[p.i])
	p.i++

	var out []string
	if first != "" {
		if v, ok := strings.CutSuffix(first, fence); ok {
			return v
		}
		out = append(out, first)
	}
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		p.i++
		if line == fence {
			return strings.Join(out, "\n")
		}
		if v, ok := strings.CutSuffix(line, fence); ok {
			return strings.Join(append(out, v), "\n")
		}
		out = append(out, line)
	}
	p.warn("unterminated code block")
	return strings.Join(out, "\n")
}

// openFence recognizes an opening fence and returns the fence marker and any
// content that shares its line.
func openFence(line string) (fence, content string, ok bool) {
	n := 0
	for n < len(line) && line[n] == '`' {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	fence, rest := line[:n], line[n:]
	if infoStrings[strings.TrimSpace(rest)] {
		return fence, "", true
	}
	return fence, rest, true
}

func (p *parser) appendixSection() {
	m := appendixHdr.FindStringSubmatch(p.lines[p.i])
	label := m[1]
	p.i++
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		if strings.HasPrefix(line, "#") {
			break
		}
		if fence, _, ok := openFence(line); ok {
			raw := p.fenced(fence)
			p.payloads[label] = strings.Join(strings.Fields(raw), "")
			return
		}
		p.i++
	}
	p.warn("appendix %s has no payload", label)
}

func (p *parser) resolve() {
	for label, idx := range p.refs {
		it := &p.doc.Items[idx]
		payload, ok := p.payloads[label]
		if !ok {
			p.doc.Warnings = append(p.doc.Warnings, fmt.Sprintf("entry %q references missing appendix %s", it.Key, label))
			continue
		}
		if it.Entry.Attributes.Type.Binary() {
			it.Entry.Value = payload
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			p.doc.Warnings = append(p.doc.Warnings, fmt.Sprintf("appendix %s: %v", label, err))
			continue
		}
		it.Entry.Value = string(raw)
	}
}

func parseHeadingKey(s string) (string, error) {
	if strings.HasPrefix(s, `"`) {
		return strconv.Unquote(s)
	}
	return s, nil
}

func parseTags(s string) []string {
	if strings.HasPrefix(s, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(s), &tags); err == nil {
			return tags
		}
	}
	if m := codeSpan.FindAllStringSubmatch(s, -1); m != nil {
		tags := make([]string, len(m))
		for i, sm := range m {
			tags[i] = sm[1]
		}
		return tags
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`")
}
