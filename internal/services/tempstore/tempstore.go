package tempstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store hands out scoped working directories under a base directory. The
// directory for a key is derived from the key, so distinct keys never share
// a location.
type Store struct {
	base string
}

// NewStore creates base if needed. An empty base uses the system temp dir.
func NewStore(base string) (*Store, error) {
	if base == "" {
		base = filepath.Join(os.TempDir(), "mediagrab")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Store{base: abs}, nil
}

func (s *Store) Base() string {
	return s.base
}

// Acquire returns an empty directory for key, wiping anything a previous
// holder of the same key left behind.
func (s *Store) Acquire(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("temp key must not be empty")
	}

	dir := s.dirFor(key)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to reset temp location: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp location: %w", err)
	}
	return dir, nil
}

// Release removes dir and its contents. Paths outside the base are refused.
func (s *Store) Release(dir string) error {
	if !s.owns(dir) {
		return fmt.Errorf("refusing to remove %s outside of %s", dir, s.base)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove temp location: %w", err)
	}
	return nil
}

// Sweep removes locations older than maxAge, left over by interrupted runs.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return 0, fmt.Errorf("failed to list temp directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.base, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) dirFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.base, hex.EncodeToString(sum[:12]))
}

func (s *Store) owns(dir string) bool {
	rel, err := filepath.Rel(s.base, filepath.Clean(dir))
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
