package stm_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aretw0/stm"
)

// Example_basic shows templated reads over LLM-visible entries.
func Example_basic() {
	st := stm.New()
	st.SetAccessLevel(stm.AccessSystem)
	if err := st.Set("name", "Ada", stm.Patch().WithSystemTags(stm.TagLLMRead)); err != nil {
		log.Fatal(err)
	}
	if err := st.Set("greeting", "Hello {{name}}!", stm.Patch().WithSystemTags(stm.TagApplyTemplate)); err != nil {
		log.Fatal(err)
	}

	v, _ := st.Get("greeting")
	raw, _ := st.GetRaw("greeting")
	fmt.Println(v)
	fmt.Println(raw)
	// Output:
	// Hello Ada!
	// Hello {{name}}!
}

// ExampleOpen persists a store to a JSON file and reads it back.
func ExampleOpen() {
	tmpDir, err := os.MkdirTemp("", "stm-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	path := filepath.Join(tmpDir, "memory.json")

	s, err := stm.Open(ctx, path, stm.WithAccessLevel(stm.AccessSystem))
	if err != nil {
		log.Fatal(err)
	}
	err = s.Do(func(st *stm.Store) error {
		return st.Set("mood", "calm", stm.Patch().WithSystemTags(stm.TagLLMRead, stm.TagLLMWrite))
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		log.Fatal(err)
	}

	s, err = stm.Open(ctx, path)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close(ctx)
	_ = s.Do(func(st *stm.Store) error {
		v, _ := st.Get("mood")
		fmt.Println("mood:", v)
		return nil
	})
	// Output:
	// mood: calm
}

// ExampleNewValue shows typed access to a json entry.
func ExampleNewValue() {
	type Profile struct {
		Name  string `json:"name"`
		Level int    `json:"level"`
	}

	st := stm.New()
	profile := stm.NewValue[Profile](st, "profile")
	if err := profile.Set(Profile{Name: "Ada", Level: 1}); err != nil {
		log.Fatal(err)
	}
	err := profile.Update(func(p *Profile) error {
		p.Level++
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	p, _ := profile.Get()
	fmt.Printf("%s is level %d\n", p.Name, p.Level)
	// Output:
	// Ada is level 2
}
