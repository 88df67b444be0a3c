package core

import "context"

// Repository defines the contract for persisting whole-store snapshots.
// Adhering to this interface keeps the store independent of the underlying
// storage mechanism (file, Redis, SQL, browser database, ...).
type Repository interface {
	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error

	// Load returns the persisted snapshot. A missing snapshot is an empty one.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, snap Snapshot) error
}

// Watchable is implemented by repositories that can report external changes.
type Watchable interface {
	// Watch emits an event whenever the persisted snapshot changed outside
	// this process. The channel closes when ctx is done.
	Watch(ctx context.Context) (<-chan Event, error)
}

// OpKind enumerates replicated mutations.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpDelete OpKind = "delete"
	OpClear  OpKind = "clear"
)

// Op is one replicated mutation exchanged with a transport collaborator.
type Op struct {
	Kind   OpKind `json:"kind"`
	Key    string `json:"key,omitempty"`
	Entry  *Entry `json:"entry,omitempty"`
	Origin string `json:"origin"`
}

// Transport pushes local mutations to, and pulls remote mutations from, a
// remote service. Framing, reconnection and authentication are its own concern.
type Transport interface {
	Publish(ctx context.Context, op Op) error
	Subscribe(ctx context.Context) (<-chan Op, error)
}

// TextOp is one primitive edit of a collaborative text, in rune offsets.
type TextOp struct {
	Pos    int    `json:"pos"`
	Insert string `json:"insert,omitempty"`
	Delete int    `json:"delete,omitempty"`
}

// TextDelta is the set of edits applied by one transaction.
type TextDelta struct {
	Ops []TextOp
}

// Text is the collaborative text sequence backing document entries. It is a
// port: the store only relies on these primitives, never on the merge algorithm.
type Text interface {
	// String returns the flattened plain text.
	String() string
	// Len returns the length in Unicode scalar values.
	Len() int
	// Insert adds s at rune offset pos.
	Insert(pos int, s string) error
	// Delete removes n runes starting at rune offset pos.
	Delete(pos, n int) error
	// Transact groups the edits made by fn so observers see one delta.
	Transact(fn func() error) error
	// Observe registers fn for every committed delta and returns a cancel func.
	Observe(fn func(TextDelta)) (cancel func())
}

// TextFactory creates a new text handle holding initial.
type TextFactory func(initial string) Text
