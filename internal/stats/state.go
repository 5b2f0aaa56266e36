package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"EstateSentinel/internal/model"
)

// LoadState reads run statistics from a JSON file. A missing file yields a zero state.
func LoadState(filePath string) (*model.RunStats, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.RunStats{}, nil
		}
		return nil, fmt.Errorf("read run stats: %w", err)
	}
	var state model.RunStats
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode run stats %s: %w", filePath, err)
	}
	return &state, nil
}

// SaveState replaces the state file atomically: the JSON goes to a temp file
// in the same directory which is then renamed over the old one.
func SaveState(filePath string, state *model.RunStats) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run stats: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write run stats: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync run stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close run stats: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod run stats: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("replace run stats: %w", err)
	}
	return nil
}
