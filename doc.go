// Package stm is the composition root of the attributed short-term memory
// store.
//
// It wires the in-memory store (pkg/store) to its persistence and
// replication adapters using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// An STM is a small key-value store that an LLM and its host application
// share. Every entry carries attributes deciding whether the model may read
// it, write it, or see it rendered in its system prompt. The store itself is
// synchronous and single-threaded; collaborators (persisters, transports,
// tool adapters) observe it through listeners.
//
// Features:
//
//   - **Attributed Entries**: System tags gate LLM visibility, writes, templating and deletion.
//   - **Context Filter**: Tag-based views over the same store.
//   - **Collaborative Documents**: Document entries are text sequences edited with minimal diffs.
//   - **Undo/Redo**: Per-key and global history with capture-window batching.
//   - **Tool Surface**: Generated LLM tools with JSON Schema inputs, re-checked at call time.
//   - **Adapters**: File (JSON, YAML, Markdown, optional Git), SQLite and Redis snapshots; Redis pub/sub replication.
//
// Usage:
//
//	s, err := stm.Open(ctx, "memory.json", stm.WithLogger(logger), stm.WithAccessLevel(stm.AccessSystem))
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//
//	err = s.Do(func(st *stm.Store) error {
//		return st.Set("mood", "calm", stm.Patch().WithSystemTags(stm.TagLLMRead))
//	})
package stm
