package atomicio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLockGuard holds a blocking exclusive advisory lock on a sidecar
// `<target>.rtk-lock` file, never on the target itself: an atomic rename of
// the target would otherwise silently drop the flock held on the old inode.
// The lock is released when Close is called (or the guard is garbage
// collected without one, though callers should always defer Close).
type FileLockGuard struct {
	lock     *flock.Flock
	lockPath string
}

// AcquireFileLock blocks until it obtains an exclusive lock on target's
// sidecar lock file, creating the sidecar and its parent directory as
// needed.
func AcquireFileLock(target string) (*FileLockGuard, error) {
	lockPath := LockPathFor(target)

	if parent := filepath.Dir(lockPath); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("atomicio: create lock dir %s: %w", parent, err)
		}
	}

	l := flock.New(lockPath)
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("atomicio: acquire flock on %s: %w", lockPath, err)
	}

	return &FileLockGuard{lock: l, lockPath: lockPath}, nil
}

// LockPath returns the path of the sidecar lock file this guard holds.
func (g *FileLockGuard) LockPath() string {
	return g.lockPath
}

// Close releases the lock. The sidecar file is intentionally left on disk;
// removing it would race a concurrent acquirer between unlock and unlink.
func (g *FileLockGuard) Close() error {
	return g.lock.Unlock()
}

// LockPathFor computes the sidecar lock path for a target file:
// "<target>.rtk-lock".
func LockPathFor(target string) string {
	return target + ".rtk-lock"
}
