package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cnft-drop/go-backend/internal/testutil/fsperm"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	fsperm.PrivateDir(t, dir)

	if _, err := s.Load("keypair.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save("keypair.json", []byte("[1,2,3]")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("keypair.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "[1,2,3]" {
		t.Fatalf("unexpected blob: %q", got)
	}
	fsperm.PrivateFile(t, s.Path("keypair.json"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the blob file, found %d entries", len(entries))
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Save("merkle-tree.json", []byte("a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("merkle-tree.json", []byte("b")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.Load("merkle-tree.json")
	if string(got) != "b" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, name := range []string{"", "..", "../x", `a\b`} {
		if err := s.Save(name, nil); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("save %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestMemoryStoreCountsSaves(t *testing.T) {
	m := NewMemoryStore()
	m.Put("seeded", []byte("x"))
	if m.Saves() != 0 {
		t.Fatal("Put must not count as a save")
	}
	if err := m.Save("a", []byte("1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if m.Saves() != 1 || !m.Has("a") {
		t.Fatal("expected one recorded save")
	}
	m.SaveErr = errors.New("disk full")
	if err := m.Save("b", []byte("2")); err == nil {
		t.Fatal("expected injected error")
	}
	if m.Has("b") {
		t.Fatal("failed save must not store the blob")
	}
}

func TestLockDirIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := LockDir(dir)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := LockDir(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	second, err := LockDir(dir)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	_ = second.Unlock()
}
