package journal

import (
	"strings"
	"testing"
)

const sampleJournal = `2024-06-02 10:00:00,000 - INFO - Download started: a
2024-06-02 10:00:04,000 - INFO - Download completed: a
2024-06-02 10:00:01,000 - INFO - Download started: b
2024-06-02 10:00:03,000 - INFO - Download completed: b
2024-06-02 10:00:02,000 - INFO - Download started: c
2024-06-02 10:00:12,000 - INFO - Download completed: c
2024-06-02 10:00:05,000 - INFO - Download started: d
2024-06-02 10:00:06,500 - ERROR - Download error: d - HTTP Error 500
this line is noise and must be ignored
2024-06-02 10:00:07,000 - WARNING - Chunk 2 could not be understood: c
`

func TestAnalyzeArithmetic(t *testing.T) {
	s, err := Analyze(strings.NewReader(sampleJournal))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if s.TotalItems != 3 {
		t.Fatalf("total_items = %d, want 3", s.TotalItems)
	}
	if s.Errors != 1 {
		t.Fatalf("errors = %d, want 1", s.Errors)
	}
	if s.SuccessRate != "75.0%" {
		t.Fatalf("success_rate = %q, want 75.0%%", s.SuccessRate)
	}
	if s.StartTime != "2024-06-02 10:00:00,000" || s.EndTime != "2024-06-02 10:00:12,000" {
		t.Fatalf("unexpected window %s .. %s", s.StartTime, s.EndTime)
	}
	// per-item elapsed: a=4s b=2s c=10s
	if s.TotalTime != "12s" || s.MinTime != "2s" || s.MaxTime != "10s" || s.MedianTime != "4s" {
		t.Fatalf("unexpected timing: %+v", s)
	}
	if s.AverageTime != "5.333s" {
		t.Fatalf("average_time = %q, want 5.333s", s.AverageTime)
	}
}

func TestAnalyzeCountsTranscriptShapeAndDuplicates(t *testing.T) {
	journal := `2024-06-02 10:00:00,000 - INFO - Transcript started: x
2024-06-02 10:00:02,000 - INFO - Transcript Completed: x
2024-06-02 10:00:02,000 - INFO - Transcript Completed: x
2024-06-02 10:00:03,000 - INFO - Transcript started: y
2024-06-02 10:00:04,000 - INFO - Transcript Completed: y
`
	s, err := Analyze(strings.NewReader(journal))
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalItems != 2 || s.MedianTime != "1.5s" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.SuccessRate != "100.0%" {
		t.Fatalf("success_rate = %q", s.SuccessRate)
	}
}

func TestAnalyzeTimesOnlyTheLatestAttempt(t *testing.T) {
	journal := `2024-06-02 10:00:00,000 - INFO - Transcript started: x
2024-06-02 10:00:05,000 - ERROR - An unexpected error occurred: x - interrupted: context canceled
2024-06-02 11:00:00,000 - INFO - Transcript started: x
2024-06-02 11:00:00,000 - INFO - Transcript started: y
2024-06-02 11:00:01,000 - INFO - Transcript Completed: y
2024-06-02 11:00:03,000 - INFO - Transcript Completed: x
`
	s, err := Analyze(strings.NewReader(journal))
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalItems != 2 || s.Errors != 1 || s.SuccessRate != "66.7%" {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.StartTime != "2024-06-02 11:00:00,000" || s.MaxTime != "3s" || s.MinTime != "1s" || s.TotalTime != "3s" {
		t.Fatalf("earlier attempt leaked into timing: %+v", s)
	}
}

func TestAnalyzeEmptyJournal(t *testing.T) {
	s, err := Analyze(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalItems != 0 || s.SuccessRate != "0.0%" || s.TotalTime != "0s" {
		t.Fatalf("unexpected empty summary: %+v", s)
	}
}

func TestFormatSuccessRate(t *testing.T) {
	cases := []struct {
		c, e int
		want string
	}{
		{2, 1, "66.7%"},
		{1, 0, "100.0%"},
		{0, 4, "0.0%"},
		{999, 1, "99.9%"},
	}
	for _, tc := range cases {
		if got := FormatSuccessRate(tc.c, tc.e); got != tc.want {
			t.Fatalf("FormatSuccessRate(%d, %d) = %q, want %q", tc.c, tc.e, got, tc.want)
		}
	}
}
