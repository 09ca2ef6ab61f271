package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"time"

	"mediabatch/internal/model"
)

// Message shapes the analyzer understands. Anything else at ERROR level is
// only counted.
const (
	MsgDownloadStarted     = "Download started"
	MsgDownloadCompleted   = "Download completed"
	MsgTranscriptStarted   = "Transcript started"
	MsgTranscriptCompleted = "Transcript Completed"
	MsgSkipped             = "Skipped"
)

var (
	linePattern      = regexp.MustCompile(`^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}),(?P<millis>\d{3}) - (?P<level>\w+) - (?P<message>.*)$`)
	completedPattern = regexp.MustCompile(`^(?:` + MsgDownloadCompleted + `|` + MsgTranscriptCompleted + `): (\S+)`)
	startedPattern   = regexp.MustCompile(`^(?:` + MsgDownloadStarted + `|` + MsgTranscriptStarted + `): (\S+)`)
)

type Entry struct {
	Time    time.Time
	Level   string
	Message string
}

// ParseLine matches one journal line against the fixed grammar.
func ParseLine(line string) (Entry, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[1]+","+m[2], time.Local)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Time: ts, Level: m[3], Message: m[4]}, true
}

func AnalyzeFile(path string) (model.RunSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()
	return Analyze(f)
}

// Analyze scans a journal and derives completion and timing statistics.
// Per-item elapsed time runs from the item's latest started line to its
// completed line, so earlier failed or interrupted attempts do not count.
func Analyze(r io.Reader) (model.RunSummary, error) {
	type span struct {
		first, last time.Time
	}
	spans := make(map[string]*span)
	started := make(map[string]time.Time)
	completed := make([]string, 0)
	seen := make(map[string]bool)
	errCount := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if e.Level == "ERROR" {
			errCount++
			continue
		}
		if m := startedPattern.FindStringSubmatch(e.Message); m != nil {
			// A journal appended across runs restarts the clock at each attempt.
			started[m[1]] = e.Time
			continue
		}
		if m := completedPattern.FindStringSubmatch(e.Message); m != nil {
			id := m[1]
			first, ok := started[id]
			if !ok {
				first = e.Time
			}
			spans[id] = &span{first: first, last: e.Time}
			if !seen[id] {
				seen[id] = true
				completed = append(completed, id)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return model.RunSummary{}, fmt.Errorf("scan journal: %w", err)
	}

	summary := model.RunSummary{
		TotalItems:  len(completed),
		Errors:      errCount,
		SuccessRate: FormatSuccessRate(len(completed), errCount),
	}
	if len(completed) == 0 {
		zero := formatElapsed(0)
		summary.TotalTime, summary.AverageTime, summary.MinTime, summary.MaxTime, summary.MedianTime = zero, zero, zero, zero, zero
		return summary, nil
	}

	durations := make([]time.Duration, 0, len(completed))
	var start, end time.Time
	var sum time.Duration
	for i, id := range completed {
		s := spans[id]
		d := s.last.Sub(s.first)
		durations = append(durations, d)
		sum += d
		if i == 0 || s.first.Before(start) {
			start = s.first
		}
		if i == 0 || s.last.After(end) {
			end = s.last
		}
	}
	slices.Sort(durations)

	summary.StartTime = start.Format(TimestampLayout)
	summary.EndTime = end.Format(TimestampLayout)
	summary.TotalTime = formatElapsed(end.Sub(start))
	summary.AverageTime = formatElapsed(sum / time.Duration(len(durations)))
	summary.MinTime = formatElapsed(durations[0])
	summary.MaxTime = formatElapsed(durations[len(durations)-1])
	summary.MedianTime = formatElapsed(median(durations))
	return summary, nil
}

// FormatSuccessRate returns completed/(completed+errors) as a percentage with
// one decimal place. An empty journal reports 0.0%.
func FormatSuccessRate(completed, errors int) string {
	if completed+errors == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(completed)/float64(completed+errors))
}

// median expects sorted input.
func median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
