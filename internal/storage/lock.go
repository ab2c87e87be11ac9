package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

var ErrLocked = errors.New("state directory is locked by another run")

// DirLock is an exclusive advisory lock on a state directory.
type DirLock struct {
	lock *flock.Flock
}

// LockDir takes the lock without blocking; a held lock yields ErrLocked.
func LockDir(dir string) (*DirLock, error) {
	l := flock.New(filepath.Join(dir, lockFileName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &DirLock{lock: l}, nil
}

func (d *DirLock) Unlock() error {
	if d == nil || d.lock == nil {
		return nil
	}
	return d.lock.Unlock()
}
