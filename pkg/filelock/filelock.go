// Package filelock implements the advisory file-suffix lock protocol used
// to hand out chunks of work across repeated invocations.
//
// A file moves through three states encoded purely in its name:
//
//	chunk          available
//	chunk.lock     claimed by an invocation
//	chunk.done     fully processed
//
// All operations are no-ops when their precondition does not hold, since
// losing a race for a chunk is expected, not exceptional.
package filelock

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	lockSuffix = ".lock"
	doneSuffix = ".done"
)

// Acquire claims path by renaming it to path+".lock". It reports whether
// the claim succeeded. Paths already carrying a marker suffix are never
// claimed.
func Acquire(path string) bool {
	if strings.HasSuffix(path, lockSuffix) || strings.HasSuffix(path, doneSuffix) {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return os.Rename(path, path+lockSuffix) == nil
}

// Complete marks a previously acquired path as done by renaming
// path+".lock" to path+".done". It reports whether the marker was moved.
func Complete(path string) bool {
	if _, err := os.Stat(path + lockSuffix); err != nil {
		return false
	}
	return os.Rename(path+lockSuffix, path+doneSuffix) == nil
}

// Reset strips .lock and .done markers from every file under dir,
// recursively. Used to recover from a crashed run or to prepare a
// directory for a fresh pass.
func Reset(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, lockSuffix) || strings.HasSuffix(path, doneSuffix) {
			return os.Rename(path, path[:len(path)-5])
		}
		return nil
	})
}

// Locked reports whether path carries a marker suffix.
func Locked(path string) bool {
	return strings.HasSuffix(path, lockSuffix) || strings.HasSuffix(path, doneSuffix)
}

// Available returns the files under dir that carry no marker suffix, in
// directory enumeration order.
func Available(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := filepath.Join(dir, e.Name())
		if !Locked(name) {
			files = append(files, name)
		}
	}
	return files, nil
}
