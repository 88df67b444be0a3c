// Package tools turns store state into LLM-callable operations.
//
// Includes:
//   - Descriptor: name, description, JSON input schema and the key it is bound to.
//   - One write_<key> tool per writable key; documents add append_, insert_ and edit_.
//   - Execute: resolves a tool name back to its key and re-checks LLMWrite and the
//     context at call time, failing closed.
//   - Sanitize: identifier-safe names (diacritics stripped, other runes replaced).
//
// Two keys may sanitize to the same name. Generation logs the collision and
// execution resolves to the first key in store order.
package tools
