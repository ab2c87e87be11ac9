// Package fsperm asserts that persisted drop state is readable by its owner
// only.
package fsperm

import (
	"os"
	"runtime"
	"testing"
)

// PrivateDir fails t unless dir is a directory with mode 0700.
func PrivateDir(t testing.TB, dir string) {
	t.Helper()
	assertMode(t, dir, true, 0o700)
}

// PrivateFile fails t unless path is a regular file with mode 0600. Key
// material and tree handles are written this way.
func PrivateFile(t testing.TB, path string) {
	t.Helper()
	assertMode(t, path, false, 0o600)
}

func assertMode(t testing.TB, path string, dir bool, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.IsDir() != dir {
		t.Fatalf("%s: expected dir=%t", path, dir)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != want {
		t.Fatalf("expected perm %04o, got %04o for %s", want, perm, path)
	}
}
