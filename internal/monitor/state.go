package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rangeKeeper/internal/model"
)

// StateStore persists the last observed snapshot per position so
// restarts do not replay alerts.
type StateStore interface {
	Load(ctx context.Context) (map[string]model.PositionSnapshot, error)
	Save(ctx context.Context, snapshots map[string]model.PositionSnapshot) error
}

// FileStateStore stores snapshots in a local JSON file.
type FileStateStore struct {
	Path string
}

// Load returns the persisted snapshot map. A missing file is an empty
// map, not an error: first run starts from nothing.
func (s *FileStateStore) Load(ctx context.Context) (map[string]model.PositionSnapshot, error) {
	if s == nil || s.Path == "" {
		return map[string]model.PositionSnapshot{}, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.PositionSnapshot{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	snapshots := map[string]model.PositionSnapshot{}
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return snapshots, nil
}

// Save writes the snapshot map atomically via a tmp file and rename, so
// a crash mid-write never leaves a truncated state file.
func (s *FileStateStore) Save(ctx context.Context, snapshots map[string]model.PositionSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(snapshots)
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

// MemoryStateStore keeps snapshots in memory. Used in tests and for
// one-shot runs where persistence does not matter.
type MemoryStateStore struct {
	snapshots map[string]model.PositionSnapshot
}

func (s *MemoryStateStore) Load(ctx context.Context) (map[string]model.PositionSnapshot, error) {
	out := map[string]model.PositionSnapshot{}
	for k, v := range s.snapshots {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, snapshots map[string]model.PositionSnapshot) error {
	s.snapshots = map[string]model.PositionSnapshot{}
	for k, v := range snapshots {
		s.snapshots[k] = v
	}
	return nil
}
