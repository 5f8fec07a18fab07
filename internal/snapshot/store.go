// Package snapshot persists resumable run state: the sync cursor and the
// last exported pair snapshots.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"yieldswap/internal/model"
	"yieldswap/internal/storage/postgres"
)

// Store loads and saves run state.
type Store interface {
	Load(ctx context.Context) (model.RunState, bool, error)
	Save(ctx context.Context, state model.RunState) error
}

// FileStore keeps state in a local JSON file. An empty path disables it.
type FileStore struct {
	Path string
}

func (s *FileStore) Load(ctx context.Context) (model.RunState, bool, error) {
	if s == nil || s.Path == "" {
		return model.RunState{}, false, nil
	}
	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunState{}, false, nil
		}
		return model.RunState{}, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return model.RunState{}, false, fmt.Errorf("state path %s is a directory", s.Path)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.RunState{}, false, fmt.Errorf("read state: %w", err)
	}
	var state model.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.RunState{}, false, fmt.Errorf("parse state: %w", err)
	}
	return state, true, nil
}

// Save writes through a temporary file so a crash never leaves a torn state file.
func (s *FileStore) Save(ctx context.Context, state model.RunState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	if state.UpdatedAt == "" {
		state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// DBStore keeps state in the run_state table under Name and mirrors
// pair snapshots into pairs and pair_snapshots.
type DBStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStore) Load(ctx context.Context) (model.RunState, bool, error) {
	if s == nil || s.Store == nil {
		return model.RunState{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStore) Save(ctx context.Context, state model.RunState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.UpsertPairs(ctx, state.Pairs); err != nil {
		return fmt.Errorf("upsert pairs: %w", err)
	}
	if err := s.Store.InsertSnapshots(ctx, state.Pairs); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}
	return s.Store.SaveState(ctx, s.Name, state)
}
