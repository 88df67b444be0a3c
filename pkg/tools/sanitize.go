package tools

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest tool name accepted by LLM providers.
const MaxNameLength = 64

// maxKeyLength leaves room for the longest operation prefix.
const maxKeyLength = MaxNameLength - len("append_")

// Sanitize maps a key to an identifier-safe string: diacritics are stripped,
// runes outside [A-Za-z0-9_-] become '_', and the result is truncated.
func Sanitize(key string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}

	var b strings.Builder
	n := 0
	for _, r := range folded {
		if n == maxKeyLength {
			break
		}
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		n++
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
