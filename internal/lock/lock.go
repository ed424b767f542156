// Package lock provides the process-level build lock that keeps two
// shimbuild processes from sharing scripts and response files.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
)

// FileName is the lock file created in the scratch directory.
const FileName = "shimbuild.lock"

// FileLock is an exclusive advisory lock on a file.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates an unlocked FileLock for path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// TryLock acquires the lock without blocking and records the current PID
// in the file. A held lock is reported as an environment error.
func (fl *FileLock) TryLock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errors.WrapKind(errors.KindEnvironment, err, "failed to open lock file "+fl.path)
	}

	if err := lockFile(f); err != nil {
		holder := readPID(fl.path)
		f.Close()
		msg := "another shimbuild build is running"
		if holder > 0 {
			msg = fmt.Sprintf("%s (pid %d)", msg, holder)
		}
		return errors.WrapKind(errors.KindEnvironment, err, msg+"; lock: "+fl.path)
	}

	if err := writePID(f); err != nil {
		_ = unlockFile(f)
		f.Close()
		return errors.Wrap(err, "failed to write PID to lock file")
	}

	fl.file = f
	return nil
}

// Unlock releases the lock and removes the lock file. Unlocking an
// unlocked FileLock is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := unlockFile(fl.file); err != nil {
		fl.file.Close()
		fl.file = nil
		return fmt.Errorf("release lock: %w", err)
	}

	if err := fl.file.Close(); err != nil {
		fl.file = nil
		return fmt.Errorf("close lock file: %w", err)
	}

	os.Remove(fl.path)
	fl.file = nil
	return nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return err
	}
	return f.Sync()
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
