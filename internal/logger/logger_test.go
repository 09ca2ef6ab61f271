package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONOutsideLocalEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := NewWithWriter(&buf).WithRun("r1", "acquire")
	log.WithError(errors.New("boom")).Info("item failed")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["run_id"] != "r1" || entry["pipeline"] != "acquire" || entry["error"] != "boom" {
		t.Fatalf("missing fields in %v", entry)
	}
}

func TestTextLocallyAndLevelFilter(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.Info("hidden")
	log.WithItem("v1", 2).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "item_id=v1") {
		t.Fatalf("unexpected output %q", out)
	}
}
