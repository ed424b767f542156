// Package artifact inspects build outputs on the host filesystem: it counts
// object files per link stage, removes orphaned objects and checks that the
// final artifacts exist.
package artifact

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FindObjects returns every file under root whose base name matches pattern,
// sorted. A missing root yields no objects and no error.
func FindObjects(root, pattern string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && stderrors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// NewestModTime returns the latest modification time among files under the
// given roots whose names match pattern, and the file that has it.
func NewestModTime(roots []string, pattern string) (time.Time, string, error) {
	var newest time.Time
	var newestPath string
	for _, root := range roots {
		objs, err := FindObjects(root, pattern)
		if err != nil {
			return time.Time{}, "", err
		}
		for _, p := range objs {
			info, err := os.Stat(p)
			if err != nil {
				return time.Time{}, "", err
			}
			if info.ModTime().After(newest) {
				newest = info.ModTime()
				newestPath = p
			}
		}
	}
	return newest, newestPath, nil
}

// CleanOrphans removes every file ending in suffix under roots that is not
// in expected (cleaned host paths). It returns the removed paths, sorted.
func CleanOrphans(roots []string, suffix string, expected map[string]bool) ([]string, error) {
	var removed []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && stderrors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !hasSuffixFold(d.Name(), suffix) {
				return nil
			}
			if expected[filepath.Clean(path)] {
				return nil
			}
			if err := os.Remove(path); err != nil {
				return err
			}
			removed = append(removed, path)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
