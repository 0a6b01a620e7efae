// Package statefile persists the between-run sync state as small files in a
// local state directory, so a fresh CI job can pick up where the previous one
// left off once the directory is restored.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*Store)(nil)

const (
	commitFileName   = "last-commit.txt"
	syncTimeFileName = "last-sync.txt"
)

// Store reads and writes the sync state files under one directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first write, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// LastCommit returns the commit id of the last successful sync, or the empty
// string when no sync ran yet.
func (s *Store) LastCommit() (string, error) {
	return s.readValue(commitFileName)
}

// SetLastCommit stores the commit id of a completed sync.
func (s *Store) SetLastCommit(id string) error {
	return s.writeValue(commitFileName, id)
}

// LastSyncTime returns when the last sync finished, or the zero time when no
// sync ran yet.
func (s *Store) LastSyncTime() (time.Time, error) {
	value, err := s.readValue(syncTimeFileName)
	if err != nil || value == "" {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last sync time: %w", err)
	}
	return t, nil
}

// SetLastSyncTime stores the finish time of a completed sync.
func (s *Store) SetLastSyncTime(t time.Time) error {
	return s.writeValue(syncTimeFileName, t.UTC().Format(time.RFC3339))
}

func (s *Store) readValue(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) writeValue(name, value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
