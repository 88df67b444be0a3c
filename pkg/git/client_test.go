package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, "", nil)

	unlock, err := client.Lock(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(tmpDir, DefaultLockName)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("Lock file not created")
	}

	// A second acquisition must wait until the context gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Lock(ctx); err == nil {
		t.Error("expected contended lock to time out")
	}

	unlock()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file not removed after unlock")
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if !IsInstalled() {
		t.Skip("git not installed")
	}
}

func TestClient_Init(t *testing.T) {
	requireGit(t)
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, "", nil)

	if client.IsRepo() {
		t.Fatal("empty dir reported as repo")
	}
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	if !client.IsRepo() {
		t.Error(".git directory not created")
	}
}

func TestClient_CommitFiles(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, "", nil)
	client.AuthorName = "stm test"
	client.AuthorEmail = "stm@example.com"

	if err := client.Init(ctx); err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	file := filepath.Join(tmpDir, "stm.json")
	if err := os.WriteFile(file, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	committed, err := client.CommitFiles(ctx, "first", "stm.json")
	if err != nil {
		t.Fatalf("CommitFiles failed: %v", err)
	}
	if !committed {
		t.Fatal("expected a commit")
	}

	committed, err = client.CommitFiles(ctx, "again", "stm.json")
	if err != nil {
		t.Fatalf("CommitFiles failed: %v", err)
	}
	if committed {
		t.Error("unchanged file must not be committed")
	}

	log, err := client.Run(ctx, "log", "--format=%s")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(log) != "first" {
		t.Errorf("log = %q", log)
	}
}
