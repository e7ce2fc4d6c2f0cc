// Package lock serializes builds of one project with a lock file in the
// project root. The lock is an OS file lock, so it is released when the
// holding process exits, even if it crashes.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/danjacques/gofslock/fslock"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/logger"
)

// InfoSuffix is appended to the lock path to name the holder info file.
const InfoSuffix = ".info"

// pollInterval is how often Acquire retries a held lock.
var pollInterval = time.Second

// Lock is an acquired build lock.
type Lock struct {
	Path string
	Info *LockInfo

	handle fslock.Handle
}

// Options configures Acquire.
type Options struct {
	// Timeout is how long to wait for a held lock. Zero fails immediately.
	Timeout time.Duration

	// Command is recorded in the holder info.
	Command string

	Logger logger.Logger
}

// TryAcquire takes the lock at path without waiting. It returns ErrLocked if
// another build holds it.
func TryAcquire(path, command string) (*Lock, error) {
	h, err := fslock.Lock(path)
	if err == fslock.ErrLockHeld {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Couldn't create lock file %s", path),
			"Check permissions on the project folder")
	}

	l := &Lock{Path: path, Info: NewLockInfo(command), handle: h}
	if err := l.writeInfo(); err != nil {
		_ = h.Unlock()
		return nil, err
	}
	return l, nil
}

// Acquire takes the lock at path, retrying until opts.Timeout has passed or
// ctx is done.
func Acquire(ctx context.Context, path string, opts Options) (*Lock, error) {
	log := logger.OrDefault(opts.Logger)
	deadline := time.Now().Add(opts.Timeout)
	waiting := false

	for {
		l, err := TryAcquire(path, opts.Command)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		if !time.Now().Before(deadline) {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				fmt.Sprintf("Timed out waiting for the build lock after %s", opts.Timeout),
				fmt.Sprintf("Lock held by: %s. Wait for that build to finish and try again.", Holder(path)))
		}
		if !waiting {
			log.Info("Another build is running (%s), waiting...", Holder(path))
			waiting = true
		}

		select {
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrLock,
				"Cancelled while waiting for the build lock", "")
		case <-time.After(pollInterval):
		}
	}
}

// Release unlocks and removes the holder info. It is safe to call on a nil
// Lock and more than once.
func (l *Lock) Release() error {
	if l == nil || l.handle == nil {
		return nil
	}
	// The info file goes first; once unlocked, another build may write its own.
	_ = os.Remove(l.Path + InfoSuffix)
	err := l.handle.Unlock()
	l.handle = nil
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to release lock %s", l.Path), "")
	}
	return nil
}

// Holder describes who holds the lock at path, or "unknown".
func Holder(path string) string {
	data, err := os.ReadFile(path + InfoSuffix)
	if err != nil {
		return "unknown"
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return "unknown"
	}
	return info.String()
}

func (l *Lock) writeInfo() error {
	data, err := l.Info.Marshal()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to serialize lock info", "")
	}
	if err := os.WriteFile(l.Path+InfoSuffix, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to write lock info %s", l.Path+InfoSuffix),
			"Check permissions on the project folder")
	}
	return nil
}
