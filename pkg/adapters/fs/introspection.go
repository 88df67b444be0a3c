package fs

import (
	"slices"
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path          string     `json:"path"`
	Format        string     `json:"format"`
	ReadOnly      bool       `json:"read_only"`
	Versioned     bool       `json:"versioned"`
	Serializers   []string   `json:"serializers"`
	Entries       int        `json:"entries"`
	Saves         int        `json:"saves"`
	Commits       int        `json:"commits"`
	WatcherActive bool       `json:"watcher_active"`
	LastSave      *time.Time `json:"last_save,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serializers := make([]string, 0, len(r.serializers))
	for ext := range r.serializers {
		serializers = append(serializers, ext)
	}
	slices.Sort(serializers)

	format := ""
	if r.serializer != nil {
		format = formatName(r.serializer)
	}

	return RepositoryState{
		Path:          r.Path,
		Format:        format,
		ReadOnly:      r.config.ReadOnly,
		Versioned:     r.config.Versioned,
		Serializers:   serializers,
		Entries:       len(r.last),
		Saves:         r.saves,
		Commits:       r.commits,
		WatcherActive: r.watcherActive,
		LastSave:      r.lastSave,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}

func formatName(s Serializer) string {
	switch s.(type) {
	case JSONSerializer:
		return "json"
	case YAMLSerializer:
		return "yaml"
	case MarkdownSerializer:
		return "markdown"
	}
	return "custom"
}
