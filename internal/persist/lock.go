package persist

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hpungsan/tempo/internal/errors"
)

// LockFile is the name of the lock held inside a base directory.
const LockFile = "lock"

var errLocked = stderrors.New("locked")

// Lock is an exclusive hold on a base directory. Only one process may own the
// state stored under a directory at a time.
type Lock struct {
	f    *os.File
	path string
}

// AcquireLock takes the lock for dir without waiting. If another process holds
// it, AcquireLock returns a CONFLICT error naming the holder's pid when known.
func AcquireLock(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("open lock file: %w", err))
	}
	if err := lockFile(f); err != nil {
		f.Close()
		if stderrors.Is(err, errLocked) {
			msg := fmt.Sprintf("%s is in use by another tempo process", dir)
			if pid := readPID(path); pid > 0 {
				msg = fmt.Sprintf("%s is in use by another tempo process (pid %d)", dir, pid)
			}
			return nil, errors.NewConflict(msg)
		}
		return nil, errors.NewInternal(fmt.Errorf("lock %s: %w", path, err))
	}

	// The pid is informational; a failed write does not release the lock.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{f: f, path: path}, nil
}

// Release gives the lock up. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	uerr := unlockFile(f)
	cerr := f.Close()
	return stderrors.Join(uerr, cerr)
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	for i, b := range data {
		if b < '0' || b > '9' {
			data = data[:i]
			break
		}
	}
	pid, _ := strconv.Atoi(string(data))
	return pid
}
