package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TempPrefix marks in-flight writes. Readers that walk output directories
// must ignore files carrying it.
const TempPrefix = ".mediabatch-tmp-"

// BatchMeta is the per-run snapshot written next to the journal.
type BatchMeta struct {
	RunID       string    `json:"run_id"`
	Pipeline    string    `json:"pipeline"`
	InputPath   string    `json:"input_path"`
	OutputDir   string    `json:"output_dir"`
	JournalPath string    `json:"journal_path"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Queued      int       `json:"queued"`
	Completed   int       `json:"completed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Remaining   int       `json:"remaining"`
	Interrupted bool      `json:"interrupted,omitempty"`
	Finished    bool      `json:"finished"`
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically: data lands in a temp file in the same
// directory and is renamed over the target only after a successful close.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

func BatchMetaPath(stateDir, runID string) string {
	return filepath.Join(stateDir, "runs", runID+".json")
}

func LoadBatchMeta(stateDir, runID string) (BatchMeta, error) {
	var meta BatchMeta
	if err := ReadJSON(BatchMetaPath(stateDir, runID), &meta); err != nil {
		return BatchMeta{}, err
	}
	return meta, nil
}

func SaveBatchMeta(stateDir string, meta BatchMeta) error {
	if meta.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	meta.UpdatedAt = time.Now().UTC()
	return WriteJSON(BatchMetaPath(stateDir, meta.RunID), meta)
}
