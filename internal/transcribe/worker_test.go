package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mediabatch/internal/batch"
	"mediabatch/internal/journal"
	"mediabatch/internal/media"
	"mediabatch/internal/model"
	"mediabatch/internal/resume"
)

// fakeDecoder yields silent 1 kHz mono audio, one frame per millisecond.
type fakeDecoder struct {
	ms  int64
	err error
}

func (d fakeDecoder) Decode(_ context.Context, path string) (media.AudioStream, error) {
	if d.err != nil {
		return media.AudioStream{}, &media.DecodeError{Path: path, Err: d.err}
	}
	return media.AudioStream{SampleRate: 1000, Channels: 1, PCM: make([]byte, d.ms*2)}, nil
}

type fakeSTT struct {
	unrecognized map[int]bool
	failing      map[int]bool
	panicking    map[int]bool
	jitter       bool
	calls        atomic.Int64
	onCall       func(index int)
}

func (f *fakeSTT) Transcribe(_ context.Context, chunk model.AudioChunk) model.ChunkResult {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall(chunk.Index)
	}
	if f.jitter {
		time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	}
	switch {
	case f.panicking[chunk.Index]:
		panic("provider exploded")
	case f.unrecognized[chunk.Index]:
		return model.ChunkResult{Status: model.ChunkUnrecognized}
	case f.failing[chunk.Index]:
		return model.ChunkResult{Status: model.ChunkProviderError, Err: errors.New("boom")}
	}
	return model.ChunkResult{Status: model.ChunkOK, Text: fmt.Sprintf("c%d", chunk.Index)}
}

func newTestWorker(t *testing.T, dec media.Decoder, tr ChunkTranscriber, j *journal.Journal, chunkWorkers int) (*Worker, string) {
	t.Helper()
	out := t.TempDir()
	w, err := NewWorker(dec, tr, j, Options{OutputDir: out, ChunkLength: 60 * time.Second, ChunkWorkers: chunkWorkers}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return w, out
}

func readTranscript(t *testing.T, dir, id string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, id+OutputExt))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestProcessSequentialMatchesParallel(t *testing.T) {
	item := model.MediaItem{ID: "v1", LocalPath: "/media/v1.mp4"}
	dec := fakeDecoder{ms: 150_000}

	var got []string
	for _, n := range []int{1, 3} {
		w, out := newTestWorker(t, dec, &fakeSTT{jitter: true}, journal.Discard(), n)
		outcome := w.Process(context.Background(), item)
		if outcome.Kind != model.OutcomeCompleted {
			t.Fatalf("chunk workers=%d: expected completion, got %+v", n, outcome)
		}
		got = append(got, readTranscript(t, out, "v1"))
	}
	if got[0] != "c0 c1 c2" || got[1] != got[0] {
		t.Fatalf("transcripts differ or are wrong: %q", got)
	}
}

func TestProcessDegradesOnChunkProblems(t *testing.T) {
	var buf bytes.Buffer
	tr := &fakeSTT{
		unrecognized: map[int]bool{1: true},
		failing:      map[int]bool{2: true},
		panicking:    map[int]bool{3: true},
	}
	w, out := newTestWorker(t, fakeDecoder{ms: 240_000}, tr, journal.New(&buf), 2)

	outcome := w.Process(context.Background(), model.MediaItem{ID: "v1", LocalPath: "/media/v1.mp4"})
	if outcome.Kind != model.OutcomeCompleted {
		t.Fatalf("chunk problems must not fail the item, got %+v", outcome)
	}
	if got := readTranscript(t, out, "v1"); got != "c0   " {
		t.Fatalf("unexpected transcript %q", got)
	}
	text := buf.String()
	for _, line := range []string{
		"WARNING - Chunk 1 could not be understood: v1",
		"WARNING - Could not request results for chunk 2: v1 - boom",
		"WARNING - Could not request results for chunk 3: v1 - panic: provider exploded",
		"INFO - Transcript saved to: " + filepath.Join(out, "v1.txt"),
	} {
		if !strings.Contains(text, line) {
			t.Fatalf("journal missing %q:\n%s", line, text)
		}
	}
	if strings.Contains(text, "ERROR") {
		t.Fatalf("chunk problems must not be journaled as errors:\n%s", text)
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	var buf bytes.Buffer
	j := journal.New(&buf)
	tr := &fakeSTT{}
	w, out := newTestWorker(t, fakeDecoder{err: media.ErrNoAudio}, tr, j, 1)

	items := []model.MediaItem{
		{ID: "bad", LocalPath: "/media/bad.mp4"},
		{ID: "nopath"},
	}
	res, err := batch.Run(context.Background(), items, w, batch.Options{
		Workers:  1,
		Resume:   &resume.Check{OutputDir: out, Ext: w.Ext()},
		Journal:  j,
		Messages: Messages(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.FailedByReason[model.ReasonExtraction] != 2 {
		t.Fatalf("expected 2 extraction failures, got %+v", res)
	}
	if tr.calls.Load() != 0 {
		t.Fatalf("provider must not be called when extraction fails")
	}
	if !strings.Contains(buf.String(), "ERROR - Could not extract audio from video: bad - ") {
		t.Fatalf("unexpected journal:\n%s", buf.String())
	}
	if _, err := os.Stat(filepath.Join(out, "bad.txt")); !os.IsNotExist(err) {
		t.Fatalf("failed item must not leave a transcript")
	}
}

func TestProcessInterruptedLeavesNoTranscript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &fakeSTT{onCall: func(index int) {
		if index == 0 {
			cancel()
		}
	}}
	w, out := newTestWorker(t, fakeDecoder{ms: 180_000}, tr, journal.Discard(), 1)

	outcome := w.Process(ctx, model.MediaItem{ID: "v1", LocalPath: "/media/v1.mp4"})
	if outcome.Kind != model.OutcomeFailed || outcome.Reason != model.ReasonUnexpected {
		t.Fatalf("expected unexpected failure, got %+v", outcome)
	}
	if _, err := os.Stat(filepath.Join(out, "v1.txt")); !os.IsNotExist(err) {
		t.Fatalf("interrupted item must not leave a transcript")
	}
}

func TestProcessLeavesNoTempFiles(t *testing.T) {
	w, out := newTestWorker(t, fakeDecoder{ms: 61_000}, &fakeSTT{}, journal.Discard(), 4)
	for _, id := range []string{"a", "b"} {
		if o := w.Process(context.Background(), model.MediaItem{ID: id, LocalPath: "/media/" + id + ".mp4"}); o.Kind != model.OutcomeCompleted {
			t.Fatalf("item %s: %+v", id, o)
		}
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "a.txt,b.txt" {
		t.Fatalf("unexpected output dir contents %v", names)
	}
}

func TestNewWorkerRejectsSubMillisecondChunks(t *testing.T) {
	_, err := NewWorker(fakeDecoder{}, &fakeSTT{}, nil, Options{OutputDir: t.TempDir(), ChunkLength: time.Microsecond}, nil)
	if err == nil {
		t.Fatal("expected error for sub-millisecond chunk length")
	}
}

func TestSilentItemIsDoneOnRerun(t *testing.T) {
	var buf bytes.Buffer
	j := journal.New(&buf)
	tr := &fakeSTT{unrecognized: map[int]bool{0: true}}
	w, out := newTestWorker(t, fakeDecoder{ms: 30_000}, tr, j, 1)
	items := []model.MediaItem{{ID: "quiet", LocalPath: "/media/quiet.mp4"}}
	opts := batch.Options{
		Workers:  1,
		Resume:   &resume.Check{OutputDir: out, Ext: w.Ext(), Valid: Done},
		Journal:  j,
		Messages: Messages(),
	}

	first, err := batch.Run(context.Background(), items, w, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Completed != 1 {
		t.Fatalf("an unrecognized clip still completes, got %+v", first)
	}
	if got := readTranscript(t, out, "quiet"); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}

	second, err := batch.Run(context.Background(), items, w, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Completed != 0 || second.Skipped != 1 {
		t.Fatalf("second run must skip the finished item, got %+v", second)
	}
	if tr.calls.Load() != 1 {
		t.Fatalf("provider called %d times across both runs, want 1", tr.calls.Load())
	}
	if n := strings.Count(buf.String(), journal.MsgTranscriptCompleted+": quiet"); n != 1 {
		t.Fatalf("expected one completion line, got %d:\n%s", n, buf.String())
	}
}

func TestProcessWithoutAudioFramesFails(t *testing.T) {
	tr := &fakeSTT{}
	w, out := newTestWorker(t, fakeDecoder{ms: 0}, tr, journal.Discard(), 1)

	outcome := w.Process(context.Background(), model.MediaItem{ID: "blank", LocalPath: "/media/blank.mp4"})
	if outcome.Kind != model.OutcomeFailed || outcome.Reason != model.ReasonExtraction {
		t.Fatalf("expected extraction failure, got %+v", outcome)
	}
	if tr.calls.Load() != 0 {
		t.Fatal("provider must not be called without audio")
	}
	if _, err := os.Stat(filepath.Join(out, "blank.txt")); !os.IsNotExist(err) {
		t.Fatal("failed item must not leave a transcript")
	}
}
