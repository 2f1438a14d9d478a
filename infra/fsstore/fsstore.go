// Package fsstore provides the durable-storage view of the pipeline tree:
// every path the registry renders is resolved relative to one data root on
// the local filesystem.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store answers existence and modification-time queries for
// pipeline-relative paths under a single data root.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data root must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving data root %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root %q: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute data root.
func (s *Store) Root() string { return s.root }

// Abs resolves a pipeline-relative path under the root. Paths escaping the
// root resolve to "" so that callers treat them as absent.
func (s *Store) Abs(rel string) string {
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return ""
	}
	return p
}

// Stat reports whether the path exists as a regular file and when it was
// last written. Directories do not count: a produced output is always a
// file.
func (s *Store) Stat(rel string) (time.Time, bool) {
	p := s.Abs(rel)
	if p == "" {
		return time.Time{}, false
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
