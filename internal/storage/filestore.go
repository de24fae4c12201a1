package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ether-stories/internal/models"
)

// FileStore persists run state as one JSON document per story under a base
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written document; a missing, empty, or corrupt document
// reads as an empty run state.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the base directory and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the persisted run state for a story.
func (s *FileStore) Load(_ context.Context, storyID string) (*models.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(storyID), nil
}

// Append adds a chapter result and persists immediately. Chapter numbers
// already present are kept untouched.
func (s *FileStore) Append(_ context.Context, storyID string, result models.ChapterResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.loadLocked(storyID)
	if state.Has(result.ChapterNumber) {
		return nil
	}
	state.Append(result)
	return s.persistLocked(storyID, state)
}

func (s *FileStore) loadLocked(storyID string) *models.RunState {
	state := &models.RunState{StoryID: storyID}

	data, err := os.ReadFile(s.path(storyID))
	if err != nil || len(data) == 0 {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		// Corrupt document: start over rather than fail the run.
		return &models.RunState{StoryID: storyID}
	}
	state.StoryID = storyID
	return state
}

func (s *FileStore) persistLocked(storyID string, state *models.RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	path := s.path(storyID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit run state: %w", err)
	}
	return nil
}

func (s *FileStore) path(storyID string) string {
	return filepath.Join(s.dir, storyID+".json")
}
