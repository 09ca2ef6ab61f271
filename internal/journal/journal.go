package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampLayout is the journal timestamp: local time with milliseconds
// after a comma.
const TimestampLayout = "2006-01-02 15:04:05,000"

// LineFormatter renders one entry per line as
// "YYYY-MM-DD HH:MM:SS,mmm - LEVEL - message". Fields are ignored.
type LineFormatter struct{}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	msg := strings.NewReplacer("\r\n", " | ", "\n", " | ", "\r", " ").Replace(strings.TrimSpace(e.Message))
	line := fmt.Sprintf("%s - %s - %s\n", e.Time.Format(TimestampLayout), strings.ToUpper(e.Level.String()), msg)
	return []byte(line), nil
}

// Journal is the append-only run log. logrus holds its logger mutex across
// format and write, so concurrent workers never interleave partial lines.
// A nil *Journal discards everything.
type Journal struct {
	log  *logrus.Logger
	file *os.File
	path string
}

func New(w io.Writer) *Journal {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&LineFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &Journal{log: l}
}

func Discard() *Journal {
	return New(io.Discard)
}

// Open appends to the journal at path, creating parent directories as needed.
// When mirror is non-nil every line is copied to it as well.
func Open(path string, mirror io.Writer) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}
	j := New(w)
	j.file = f
	j.path = path
	return j, nil
}

func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

func (j *Journal) Infof(format string, args ...any) {
	if j == nil {
		return
	}
	j.log.Infof(format, args...)
}

func (j *Journal) Warnf(format string, args ...any) {
	if j == nil {
		return
	}
	j.log.Warnf(format, args...)
}

func (j *Journal) Errorf(format string, args ...any) {
	if j == nil {
		return
	}
	j.log.Errorf(format, args...)
}

func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}
