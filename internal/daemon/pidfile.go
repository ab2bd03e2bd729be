package daemon

import (
	"os"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// AcquirePIDFile takes an exclusive lock on path and writes our pid into
// it. Ports 21 and 22 can only be bound once; the lock turns a confusing
// bind error from a second copy into a clear one. The returned release
// func unlocks and removes the file.
func AcquirePIDFile(path string) (func(), error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock pid file %s", path)
	}
	if !locked {
		return nil, errors.Errorf("pid file %s is held by another process", path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		lock.Unlock()
		return nil, errors.Wrapf(err, "write pid file %s", path)
	}

	release := func() {
		if err := lock.Unlock(); err != nil {
			log.WithError(err).Warn("pid file unlock failed")
		}
		os.Remove(path)
	}
	return release, nil
}
