package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// FileStore keeps the state in a JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the document at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state document.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state. A missing file yields an empty state; an unreadable
// or corrupt file is an error wrapping model.ErrState.
func (s *FileStore) Load(_ context.Context) (*model.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrState, s.path, err)
	}

	st := model.NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", model.ErrState, s.path, err)
	}
	return st, nil
}

// Save writes the state to a temporary file in the same directory and
// renames it over the document.
func (s *FileStore) Save(_ context.Context, state *model.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %w", model.ErrState, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: create state directory: %w", model.ErrState, err)
		}
	}
	if err := renameio.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrState, s.path, err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *FileStore) Close() error {
	return nil
}
