// Package binding attaches a store to its external collaborators.
//
// A Persister restores the store from a core.Repository and writes it back,
// debounced, whenever it changes. A Replicator mirrors local mutations onto a
// core.Transport and applies remote ones through the store's echo-safe entry
// points.
//
// The store is single-threaded. Both bindings touch it only from listener
// callbacks (which run on the mutating goroutine) or through a Dispatcher
// supplied by the caller.
package binding

// Dispatcher runs fn on the goroutine that owns the store.
type Dispatcher func(fn func())

// Direct runs fn immediately. It is only safe when the caller already
// serializes access to the store.
func Direct(fn func()) { fn() }
