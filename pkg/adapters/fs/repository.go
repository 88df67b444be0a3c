package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/git"
)

// savePrefix names the scratch files Save renames over the snapshot.
const savePrefix = ".stm-save-"

// Repository implements core.Repository as a single snapshot file. The
// format follows the file extension.
type Repository struct {
	Path   string
	git    *git.Client
	config Config

	serializers map[string]Serializer
	serializer  Serializer

	mu            sync.RWMutex
	last          core.Snapshot
	lastWritten   []byte
	lastSave      *time.Time
	saves         int
	commits       int
	watcherActive bool
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	Logger    *slog.Logger
	ReadOnly  bool
	MustExist bool
	// Versioned commits every save to a git repository rooted at the
	// snapshot's directory.
	Versioned bool
	// Version is written into markdown front matter.
	Version string
	// Serializers overrides DefaultSerializers.
	Serializers map[string]Serializer
	// ErrorHandler receives errors from background workers.
	ErrorHandler func(error)
}

// NewRepository creates a filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	serializers := config.Serializers
	if serializers == nil {
		serializers = DefaultSerializers(config.Version)
	}
	return &Repository{
		Path:        config.Path,
		git:         git.NewClient(filepath.Dir(config.Path), "", config.Logger),
		config:      config,
		serializers: serializers,
	}
}

var (
	_ core.Repository = (*Repository)(nil)
	_ core.Watchable  = (*Repository)(nil)
)

// Initialize resolves the serializer, creates the parent directory and, when
// versioned, the git repository.
func (r *Repository) Initialize(ctx context.Context) error {
	s, err := ForPath(r.serializers, r.Path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.serializer = s
	r.mu.Unlock()

	if _, err := os.Stat(r.Path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat snapshot: %w", err)
		}
		if r.config.MustExist {
			return fmt.Errorf("snapshot %s does not exist: %w", r.Path, core.ErrNotFound)
		}
	}
	if r.config.ReadOnly {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.Path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if r.config.Versioned && !r.git.IsRepo() {
		if err := r.git.Init(ctx); err != nil {
			return fmt.Errorf("failed to init git: %w", err)
		}
		r.config.Logger.Info("initialized git repository", "dir", r.git.WorkDir)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty snapshot.
func (r *Repository) Load(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.serializer == nil {
		return nil, fmt.Errorf("repository not initialized")
	}

	data, err := os.ReadFile(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return core.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap, err := r.serializer.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Path, err)
	}

	r.mu.Lock()
	r.last = snap
	r.lastWritten = data
	r.mu.Unlock()
	r.config.Logger.Debug("snapshot loaded", "path", r.Path, "count", len(snap))
	return snap, nil
}

// Save writes the snapshot atomically. Unchanged snapshots are skipped.
func (r *Repository) Save(ctx context.Context, snap core.Snapshot) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.serializer == nil {
		return fmt.Errorf("repository not initialized")
	}

	r.mu.RLock()
	prev := r.last
	r.mu.RUnlock()
	changed, removed := diff(prev, snap)
	if prev != nil && len(changed) == 0 && len(removed) == 0 {
		return nil
	}

	data, err := r.serializer.Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := r.replaceFile(data); err != nil {
		return err
	}

	now := time.Now()
	r.mu.Lock()
	r.last = maps.Clone(snap)
	r.lastWritten = data
	r.lastSave = &now
	r.saves++
	r.mu.Unlock()
	r.config.Logger.Debug("snapshot saved", "path", r.Path, "count", len(snap))

	if r.config.Versioned {
		msg := git.SnapshotMessage(changed, removed)
		committed, err := r.git.CommitFiles(ctx, msg, filepath.Base(r.Path))
		if err != nil {
			return fmt.Errorf("failed to commit snapshot: %w", err)
		}
		if committed {
			r.mu.Lock()
			r.commits++
			r.mu.Unlock()
		}
	}
	return nil
}

// diff lists the keys whose entries differ between two snapshots.
func diff(prev, next core.Snapshot) (changed, removed []string) {
	for k, e := range next {
		if old, ok := prev[k]; !ok || !old.Equal(e) {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			removed = append(removed, k)
		}
	}
	slices.Sort(changed)
	slices.Sort(removed)
	return changed, removed
}

// ownWrite reports whether data is exactly what this repository last wrote
// or read, so watchers can ignore it.
// replaceFile swaps the snapshot file for data in one rename. The bytes go
// to a scratch file beside the target first so the watcher and other readers
// never see half a snapshot. An existing file keeps its permissions.
func (r *Repository) replaceFile(data []byte) (err error) {
	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(r.Path); statErr == nil {
		mode = fi.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(r.Path), savePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	scratch := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(scratch)
			err = fmt.Errorf("failed to save snapshot %s: %w", r.Path, err)
		}
	}()

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err = os.Chmod(scratch, mode); err != nil {
		return err
	}
	return os.Rename(scratch, r.Path)
}

func (r *Repository) ownWrite(data []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastWritten != nil && string(r.lastWritten) == string(data)
}

// Watch reports external modifications of the snapshot file until ctx is
// done. Writes made through Save are not reported.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Event, error) {
	events := make(chan core.Event)
	w := newWatchWorker(r, events)
	w.onExit = func() { close(events) }
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return events, nil
}
