// Package sink writes output files so that a file only appears under its
// final name once it has been completely written.
package sink

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrOutputWrite = errors.New("output write failed")

const filePerm = 0o644

// File is a pending output. Writes go to a temporary file in the target
// directory which Commit renames into place. Abort discards it and is safe
// to call after Commit, so callers can simply defer it.
type File struct {
	path string
	tmp  *os.File
	lock *flock.Flock
	done bool
}

// LockDir holds the advisory lock files, one per output path. They live
// outside the output directory and are never removed, so every writer of a
// path always contends on the same inode.
var LockDir = filepath.Join(os.TempDir(), "ncm-unlock-locks")

func lockFor(path string) (*flock.Flock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(LockDir, 0o700)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(abs))

	return flock.New(filepath.Join(LockDir, hex.EncodeToString(sum[:16])+".lock")), nil
}

// Create locks path against concurrent writers in this and other processes
// and opens a temporary file next to it.
func Create(path string) (*File, error) {
	lock, err := lockFor(path)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrOutputWrite, path, err)
	}

	err = lock.Lock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrOutputWrite, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		unlock(lock)

		return nil, fmt.Errorf("%w: create temp file: %w", ErrOutputWrite, err)
	}

	return &File{path: path, tmp: tmp, lock: lock}, nil
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.tmp.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	return n, nil
}

func (f *File) Path() string {
	return f.path
}

// Commit flushes and closes the temporary file, runs finalize on it when
// given, then renames it over the final path.
func (f *File) Commit(finalize func(tmpPath string) error) error {
	if f.done {
		return fmt.Errorf("%w: %s already finished", ErrOutputWrite, f.path)
	}

	err := f.tmp.Sync()
	if err != nil {
		f.abort()

		return fmt.Errorf("%w: sync: %w", ErrOutputWrite, err)
	}

	// CreateTemp opens with 0600
	err = f.tmp.Chmod(filePerm)
	if err != nil {
		f.abort()

		return fmt.Errorf("%w: chmod: %w", ErrOutputWrite, err)
	}

	err = f.tmp.Close()
	if err != nil {
		f.abort()

		return fmt.Errorf("%w: close: %w", ErrOutputWrite, err)
	}

	if finalize != nil {
		err = finalize(f.tmp.Name())
		if err != nil {
			f.abort()

			return fmt.Errorf("%w: finalize: %w", ErrOutputWrite, err)
		}
	}

	err = os.Rename(f.tmp.Name(), f.path)
	if err != nil {
		f.abort()

		return fmt.Errorf("%w: rename: %w", ErrOutputWrite, err)
	}

	f.done = true
	unlock(f.lock)

	return nil
}

// Abort removes the temporary file. It is a no-op once the file is
// committed or aborted.
func (f *File) Abort() {
	if f.done {
		return
	}

	f.abort()
}

func (f *File) abort() {
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
	f.done = true
	unlock(f.lock)
}

func unlock(lock *flock.Flock) {
	_ = lock.Unlock()
}

// WriteFile atomically writes data to path.
func WriteFile(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	_, err = f.Write(data)
	if err != nil {
		return err
	}

	return f.Commit(nil)
}
