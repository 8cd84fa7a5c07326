package os

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = "p2pcall.lock"

// Flock keeps one client per lock file.
type Flock struct {
	f *flock.Flock
}

func NewFileLock(path string) (*Flock, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), lockName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	return &Flock{f: flock.New(path)}, nil
}

// TryLock takes the lock if nobody holds it.
func (f *Flock) TryLock() (bool, error) { return f.f.TryLock() }
func (f *Flock) Unlock() error          { return f.f.Unlock() }
func (f *Flock) Path() string           { return f.f.Path() }
