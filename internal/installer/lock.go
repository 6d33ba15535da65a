package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const lockPollInterval = 100 * time.Millisecond

// acquireLock takes the global install lock: an exclusive flock on the lock
// file, shared with every other ipkg process on the machine. Gives up after
// the configured timeout or when ctx is cancelled, whichever comes first.
func (ins *Installer) acquireLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(ins.lockPath), 0755); err != nil {
		return nil, &StagingError{Action: "acquire install lock", Err: err}
	}

	f, err := os.OpenFile(ins.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, &StagingError{Action: "acquire install lock", Err: err}
	}

	deadline := time.Now().Add(ins.lockTimeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			f.Close()
			return nil, &StagingError{Action: "acquire install lock", Err: err}
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, &StagingError{
				Action: "acquire install lock",
				Err:    fmt.Errorf("another install holds %s after %s", ins.lockPath, ins.lockTimeout),
			}
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, &StagingError{Action: "acquire install lock", Err: ctx.Err()}
		case <-time.After(lockPollInterval):
		}
	}

	ins.log.Debug().Str("lock", ins.lockPath).Msg("Install lock acquired")
	return func() {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			ins.log.Warn().Err(err).Msg("Failed to release install lock")
		}
		f.Close()
	}, nil
}
