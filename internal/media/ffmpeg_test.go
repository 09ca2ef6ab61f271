package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type fakeRunner struct {
	stdout []byte
	stderr string
	err    error
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, stdout, stderr io.Writer) error {
	f.args = args
	_, _ = stdout.Write(f.stdout)
	_, _ = io.WriteString(stderr, f.stderr)
	return f.err
}

func mustWriteFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("container"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFFmpegDecoderReturnsMonoPCM(t *testing.T) {
	input := filepath.Join(t.TempDir(), "a1.mp4")
	mustWriteFile(t, input)
	runner := &fakeRunner{stdout: make([]byte, 32000)}
	d := &FFmpegDecoder{SampleRate: DefaultSampleRate, runner: runner}

	s, err := d.Decode(context.Background(), input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.DurationMS() != 1000 {
		t.Fatalf("duration = %d, want 1000", s.DurationMS())
	}
	if !slices.Contains(runner.args, "pipe:1") || !slices.Contains(runner.args, input) {
		t.Fatalf("unexpected args: %v", runner.args)
	}
}

func TestFFmpegDecoderFailures(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a1.mp4")
	mustWriteFile(t, input)

	_, err := (&FFmpegDecoder{runner: &fakeRunner{}}).Decode(context.Background(), filepath.Join(dir, "missing.mp4"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError for missing file, got %v", err)
	}

	_, err = (&FFmpegDecoder{runner: &fakeRunner{err: errors.New("exit status 1"), stderr: "Stream map '0:a:0' matches no streams"}}).Decode(context.Background(), input)
	if !errors.As(err, &de) || !strings.Contains(err.Error(), "matches no streams") {
		t.Fatalf("expected decoder output in error, got %v", err)
	}

	_, err = (&FFmpegDecoder{runner: &fakeRunner{}}).Decode(context.Background(), input)
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio for empty output, got %v", err)
	}
}
