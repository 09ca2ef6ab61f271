package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestFormatRateLimitMBps(t *testing.T) {
	if got := formatRateLimitMBps(10); got != "10M" {
		t.Fatalf("unexpected rate format: got %q want %q", got, "10M")
	}
	if got := formatRateLimitMBps(2.5); got != "2.5M" {
		t.Fatalf("unexpected rate format: got %q want %q", got, "2.5M")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		output string
		want   ErrorKind
	}{
		{"ERROR: Postprocessing: Conversion failed!", KindPostProcessing},
		{"ERROR: unable to download video data: HTTP Error 403: Forbidden", KindTransfer},
		{"ERROR: [youtube] abc: Unable to download API page: HTTP Error 429: Too Many Requests", KindTransfer},
		{"ERROR: [youtube] abc: Video unavailable", KindExtraction},
		{"ERROR: Unsupported URL: https://example.com/x", KindExtraction},
		{"ERROR: [facebook] 123: Cannot parse data", KindExtraction},
		{"Traceback (most recent call last): KeyError", KindUnexpected},
	}
	for _, tc := range cases {
		if got := Classify(tc.output); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.output, got, tc.want)
		}
	}
}

func TestBuildArgsPinsOutputName(t *testing.T) {
	args, err := buildArgs(FetchRequest{ID: "v%1", URL: "https://example.com/v", OutputDir: "/out", Mode: ModeVideo, Quality: "small"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(args, "v%%1.%(ext)s") {
		t.Fatalf("expected escaped output template, got %v", args)
	}
	if !slices.Contains(args, "b[filesize<2M]/w") {
		t.Fatalf("expected small format preset, got %v", args)
	}

	args, err = buildArgs(FetchRequest{ID: "v1", URL: "https://example.com/v", OutputDir: "/out", Mode: ModeCaptions})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(args, "--skip-download") || !slices.Contains(args, "srt") {
		t.Fatalf("expected caption args, got %v", args)
	}
}

func TestPromoteCaptionFilePrefersEnglish(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"v1.de.srt", "v1.en.srt", "v1.en-GB.srt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	target := filepath.Join(dir, "v1.srt")
	if err := promoteCaptionFile(dir, "v1", target); err != nil {
		t.Fatalf("promote: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1.en.srt" {
		t.Fatalf("promoted %q, want v1.en.srt", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "v1.de.srt")); !os.IsNotExist(err) {
		t.Fatalf("expected leftover caption files removed")
	}
}

func TestPromoteCaptionFileWithoutTrack(t *testing.T) {
	err := promoteCaptionFile(t.TempDir(), "v1", "unused")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindExtraction {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestFetchRequiresURL(t *testing.T) {
	_, err := NewClient().Fetch(context.Background(), FetchRequest{ID: "x", OutputDir: t.TempDir()})
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindExtraction {
		t.Fatalf("expected extraction error for empty URL, got %v", err)
	}
}
