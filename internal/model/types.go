package model

import (
	"fmt"
	"strings"
	"time"
)

// MediaItem is one unit of batch work. ID is stable across runs and names the
// item's output artifact.
type MediaItem struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
}

// CheckID rejects ids that cannot name a single file directly inside an
// output directory: empty, hidden, or carrying a path separator.
func CheckID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("item id is empty")
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("item id %q starts with a dot", id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("item id %q contains a path separator", id)
	}
	return nil
}

// AudioChunk is a fixed-duration slice of an item's decoded audio. Payload is
// a self-contained WAV file.
type AudioChunk struct {
	ItemID     string
	Index      int
	Payload    []byte
	DurationMS int64
}

type ChunkStatus string

const (
	ChunkOK            ChunkStatus = "ok"
	ChunkUnrecognized  ChunkStatus = "unrecognized"
	ChunkProviderError ChunkStatus = "provider_error"
)

type ChunkResult struct {
	ItemID string
	Index  int
	Text   string
	Status ChunkStatus
	Err    error
}

type Transcript struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
}

// RunSummary is derived from a run journal and is never authoritative state.
type RunSummary struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	TotalItems  int    `json:"total_items"`
	TotalTime   string `json:"total_time"`
	AverageTime string `json:"average_time"`
	MinTime     string `json:"min_time"`
	MaxTime     string `json:"max_time"`
	MedianTime  string `json:"median_time"`
	Errors      int    `json:"errors"`
	SuccessRate string `json:"success_rate"`
}

// BatchResult tallies one orchestrated run.
type BatchResult struct {
	RunID          string         `json:"run_id"`
	Pipeline       string         `json:"pipeline"`
	Queued         int            `json:"queued"`
	Processed      int            `json:"processed"`
	Completed      int            `json:"completed"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	FailedByReason map[Reason]int `json:"failed_by_reason,omitempty"`
	Remaining      int            `json:"remaining"`
	Interrupted    bool           `json:"interrupted"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Outcomes       []ItemOutcome  `json:"outcomes,omitempty"`
}

func (r BatchResult) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r BatchResult) FailedOutcomes() []ItemOutcome {
	out := make([]ItemOutcome, 0, r.Failed)
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed {
			out = append(out, o)
		}
	}
	return out
}
