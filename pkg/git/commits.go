package git

import (
	"fmt"
	"strings"
)

// Conventional commit types.
const (
	CommitTypeFeat     = "feat"
	CommitTypeFix      = "fix"
	CommitTypeDocs     = "docs"
	CommitTypeRefactor = "refactor"
	CommitTypeChore    = "chore"
)

// Footer marks commits written by the store.
const Footer = "Powered-by: STM"

// FormatCommitMessage builds a Conventional Commit message:
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Powered-by: STM
func FormatCommitMessage(ctype, scope, subject, body string) string {
	var sb strings.Builder

	if ctype == "" {
		ctype = CommitTypeChore
	}
	sb.WriteString(ctype)
	if scope != "" {
		sb.WriteString("(")
		sb.WriteString(scope)
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(subject)

	if body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(body))
	}

	sb.WriteString("\n\n")
	sb.WriteString(Footer)
	return sb.String()
}

// AppendFooter appends the footer to a free-form message if not present.
func AppendFooter(msg string) string {
	if strings.Contains(msg, Footer) {
		return msg
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if !strings.HasSuffix(msg, "\n\n") {
		msg += "\n"
	}
	return msg + Footer
}

// maxListedKeys bounds the keys named in a snapshot commit subject.
const maxListedKeys = 3

// SnapshotMessage describes a snapshot save that changed and removed the
// given keys.
func SnapshotMessage(changed, removed []string) string {
	var parts []string
	if len(changed) > 0 {
		parts = append(parts, "update "+listKeys(changed))
	}
	if len(removed) > 0 {
		parts = append(parts, "remove "+listKeys(removed))
	}
	if len(parts) == 0 {
		return FormatCommitMessage(CommitTypeChore, "snapshot", "save", "")
	}

	var body string
	if len(changed)+len(removed) > maxListedKeys {
		var b strings.Builder
		for _, k := range changed {
			fmt.Fprintf(&b, "M %s\n", k)
		}
		for _, k := range removed {
			fmt.Fprintf(&b, "D %s\n", k)
		}
		body = b.String()
	}
	return FormatCommitMessage(CommitTypeChore, "snapshot", strings.Join(parts, ", "), body)
}

func listKeys(keys []string) string {
	if len(keys) > maxListedKeys {
		return fmt.Sprintf("%d entries", len(keys))
	}
	return strings.Join(keys, ", ")
}
