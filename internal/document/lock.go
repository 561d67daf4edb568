package document

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// WithLock runs fn while holding an exclusive advisory lock on path+".lock".
// It waits at most timeout for a competing run to finish.
func WithLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	fl := flock.New(path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: held by another process after %s", path, timeout)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}
