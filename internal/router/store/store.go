// Package store persists the router's durable state: the active source's
// id and the last accepted media snapshot. It follows the same
// write-to-temp-then-rename pattern the rest of this module uses for
// on-disk persistence, kept to a single flat JSON document since the
// router has no library-sized state to version.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// State is the full persisted snapshot.
type State struct {
	ActiveSourceID string                    `json:"active_source_id,omitempty"`
	LastMedia      *eventtypes.MediaSnapshot `json:"last_media,omitempty"`
}

// Store reads and writes one State document to a single path.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store writing to path, creating the parent directory if
// needed.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %q: %w", dir, err)
	}
	return &Store{path: path}, nil
}

// Load reads the persisted state. A missing file returns a zero State, not
// an error — a fresh install has nothing to restore.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("store: read %q: %w", s.path, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("store: parse %q: %w", s.path, err)
	}
	return st, nil
}

// Save writes state atomically: marshal, write to a sibling temp file,
// fsync, then rename over the target path.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "router-state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename temp file to %q: %w", s.path, err)
	}
	return nil
}
