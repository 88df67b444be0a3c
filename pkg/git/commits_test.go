package git

import "testing"

func TestFormatCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "simple",
			ctype:   "feat",
			subject: "add feature",
			want:    "feat: add feature\n\nPowered-by: STM",
		},
		{
			name:    "with scope",
			ctype:   "fix",
			scope:   "api",
			subject: "fix bug",
			want:    "fix(api): fix bug\n\nPowered-by: STM",
		},
		{
			name:    "with body",
			ctype:   "docs",
			subject: "update readme",
			body:    "Added new examples.\n",
			want:    "docs: update readme\n\nAdded new examples.\n\nPowered-by: STM",
		},
		{
			name:    "default type",
			subject: "tidy",
			want:    "chore: tidy\n\nPowered-by: STM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCommitMessage(tt.ctype, tt.scope, tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("FormatCommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendFooter(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "plain", msg: "simple message", want: "simple message\n\nPowered-by: STM"},
		{name: "trailing newline", msg: "line\n", want: "line\n\nPowered-by: STM"},
		{name: "already present", msg: "x\n\nPowered-by: STM", want: "x\n\nPowered-by: STM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendFooter(tt.msg); got != tt.want {
				t.Errorf("AppendFooter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshotMessage(t *testing.T) {
	tests := []struct {
		name    string
		changed []string
		removed []string
		want    string
	}{
		{name: "nothing", want: "chore(snapshot): save\n\nPowered-by: STM"},
		{name: "few", changed: []string{"a", "b"}, removed: []string{"c"},
			want: "chore(snapshot): update a, b, remove c\n\nPowered-by: STM"},
		{name: "many", changed: []string{"a", "b", "c", "d"},
			want: "chore(snapshot): update 4 entries\n\nM a\nM b\nM c\nM d\n\nPowered-by: STM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapshotMessage(tt.changed, tt.removed); got != tt.want {
				t.Errorf("SnapshotMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
