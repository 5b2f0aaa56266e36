package stats

import (
	"os"
	"path/filepath"
	"testing"

	"EstateSentinel/internal/model"
)

func TestSaveState_ReplacesFileWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_stats.json")

	for i := 1; i <= 3; i++ {
		st := &model.RunStats{TotalRuns: i, PerSourceCounts: map[string]int{"chotot": i * 10}}
		if err := SaveState(path, st); err != nil {
			t.Fatalf("SaveState #%d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "run_stats.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the state file, got %v", names)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.TotalRuns != 3 || got.PerSourceCounts["chotot"] != 30 {
		t.Errorf("expected last saved state, got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadState(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if missing.TotalRuns != 0 {
		t.Errorf("expected zero state, got %+v", missing)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(corrupt); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
