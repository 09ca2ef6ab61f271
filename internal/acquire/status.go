package acquire

import (
	"regexp"
	"strconv"
	"strings"

	"mediabatch/internal/ytdlp"
)

var (
	rePct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`) // yt-dlp [download] ... at X
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reFF    = regexp.MustCompile(`\bspeed=\s*([^\s]+)`) // ffmpeg speed=x
)

// Status is the live state of one download, parsed from yt-dlp output.
type Status struct {
	Phase   string
	Percent float64
	Speed   string
	ETA     string
}

type statusTracker struct {
	cur Status
}

// handle folds one output line into the tracker and reports whether anything
// visible changed.
func (s *statusTracker) handle(stream ytdlp.OutputStream, line string) bool {
	l := strings.TrimSpace(line)
	if l == "" {
		return false
	}
	before := s.cur
	switch {
	case strings.HasPrefix(l, "[info]"):
		if strings.Contains(strings.ToLower(l), "subtitles") {
			s.cur.Phase = "subtitles"
		} else {
			s.cur.Phase = "preparing"
		}
	case strings.HasPrefix(l, "[download]"):
		s.cur.Phase = "downloading"
		if m := rePct.FindStringSubmatch(l); len(m) > 1 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				s.cur.Percent = v
			}
		}
		if m := reSpeed.FindStringSubmatch(l); len(m) > 1 {
			s.cur.Speed = m[1]
		}
		if m := reETA.FindStringSubmatch(l); len(m) > 1 {
			s.cur.ETA = m[1]
		}
	case strings.HasPrefix(l, "[Merger]"), strings.HasPrefix(l, "[VideoRemuxer]"), strings.HasPrefix(l, "[SubtitlesConvertor]"):
		s.cur.Phase = "post-processing"
	case strings.HasPrefix(l, "["):
		if s.cur.Phase == "" {
			s.cur.Phase = "metadata"
		}
	}
	if stream == ytdlp.StreamStderr {
		if m := reFF.FindStringSubmatch(l); len(m) > 1 {
			s.cur.Speed = m[1]
		}
	}
	return s.cur != before
}
