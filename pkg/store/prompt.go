package store

import (
	"fmt"
	"strings"
)

// SystemPrompt renders the entries visible to an LLM as a prompt section.
// Template-enabled values are rendered; binary entries are described rather
// than inlined. Writable entries mention the tool that updates them.
func (s *Store) SystemPrompt() string {
	var b strings.Builder
	for _, k := range s.Keys() {
		rec := s.entries[k]
		if !rec.attrs.VisibleToLLM() {
			continue
		}
		var value string
		if rec.attrs.Type.Binary() {
			value = fmt.Sprintf("[%s attachment, %s]", rec.attrs.Type, rec.attrs.ContentType)
		} else {
			value, _ = s.Get(k)
		}

		fmt.Fprintf(&b, "<%s>\n%s\n</%s>\n", k, value, k)
		if rec.attrs.WritableByLLM() && !rec.attrs.Type.Binary() {
			fmt.Fprintf(&b, "(%q is writable", k)
			if rec.text != nil {
				b.WriteString("; it also supports append, insert and find-and-replace edits")
			}
			b.WriteString(")\n")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
