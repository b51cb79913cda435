// Package joblock serializes render jobs per output directory.
//
// Two engine processes writing the same frame range corrupt each other
// silently, so every directory a run may write is locked for the run's whole
// lifetime. The lock file lives inside the directory it protects; its name
// never matches the frame pattern, so the verifier does not count it.
package joblock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"virtucast/internal/services"
)

// LockFileName is created inside each locked output directory.
const LockFileName = ".virtucast.lock"

// Lock is a held render lock.
type Lock struct {
	dir  string
	path string
	fl   *flock.Flock
}

// Acquire takes the exclusive render lock for dir, creating the directory
// first. A held lock means another run is writing there; the caller gets
// ErrConcurrentJob immediately rather than queueing behind the owner.
func Acquire(dir string) (*Lock, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrRenderVerification, "lock", "acquire", "empty output directory", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrRenderVerification, "lock", "acquire",
			fmt.Sprintf("create output directory %s", dir), err)
	}

	path := filepath.Join(dir, LockFileName)
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrRenderVerification, "lock", "acquire", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConcurrentJob, "lock", "acquire",
			fmt.Sprintf("another render is writing to %s", dir), nil)
	}
	return &Lock{dir: dir, path: path, fl: fl}, nil
}

// Release drops the lock. Safe on nil and after a previous release.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Dir is the directory this lock protects.
func (l *Lock) Dir() string {
	if l == nil {
		return ""
	}
	return l.dir
}

// Path is the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
