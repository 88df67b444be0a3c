package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/stm"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

func main() {
	count := flag.Int("count", 1000, "Number of entries to generate")
	docSize := flag.Int("doc", 10000, "Size in characters of the benchmark document")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "stm_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rw := core.Patch().WithSystemTags(core.TagLLMRead, core.TagLLMWrite, core.TagSystemPrompt)

	// 1. Set throughput
	st := stm.New(store.WithAccessLevel(core.AccessSystem))
	start := time.Now()
	for i := 0; i < *count; i++ {
		if err := st.Set(fmt.Sprintf("key_%d", i), fmt.Sprintf("value %d", i), rw); err != nil {
			panic(err)
		}
	}
	setDur := time.Since(start)

	// 2. Document diff edits
	doc := strings.Repeat("The quick brown fox jumps over the lazy dog. ", *docSize/45+1)
	if err := st.Set("doc", doc, rw.WithType(core.TypeDocument)); err != nil {
		panic(err)
	}
	start = time.Now()
	for i := 0; i < 100; i++ {
		doc = strings.Replace(doc, "lazy", fmt.Sprintf("sleepy%d", i), 1)
		if err := st.Set("doc", doc, nil); err != nil {
			panic(err)
		}
	}
	diffDur := time.Since(start)

	// 3. Export
	start = time.Now()
	md, err := st.ToMarkdown()
	if err != nil {
		panic(err)
	}
	exportDur := time.Since(start)

	// 4. Persisted round trip through each file format
	snap := st.Serialize()
	saveDur := map[string]time.Duration{}
	for _, ext := range []string{".json", ".yaml", ".md"} {
		path := filepath.Join(benchDir, "state"+ext)
		s, err := stm.Open(ctx, path, stm.WithLogger(logger))
		if err != nil {
			panic(err)
		}
		start = time.Now()
		if err := s.Do(func(st *store.Store) error { return st.Deserialize(snap) }); err != nil {
			panic(err)
		}
		// Restores are not persisted; touch one key to schedule a save.
		if err := s.Do(func(st *store.Store) error { return st.Set("key_0", "touched", nil) }); err != nil {
			panic(err)
		}
		if err := s.Close(ctx); err != nil {
			panic(err)
		}
		saveDur[ext] = time.Since(start)
	}

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d entries, %d char document):\n", *count, len([]rune(doc)))
	fmt.Printf("  Set:          %v (%v/op)\n", setDur, setDur/time.Duration(max(*count, 1)))
	fmt.Printf("  Diff edits:   %v (%v/op)\n", diffDur, diffDur/100)
	fmt.Printf("  Export:       %v (%d bytes)\n", exportDur, len(md))
	for _, ext := range []string{".json", ".yaml", ".md"} {
		fmt.Printf("  Save %-5s    %v\n", ext+":", saveDur[ext])
	}
	fmt.Printf("--------------------------------------------------\n")
}
