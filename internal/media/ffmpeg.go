package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const (
	DefaultSampleRate = 16000
	bytesPerSample    = 2
)

var ErrNoAudio = errors.New("no audio stream")

// AudioStream is decoded signed 16-bit little-endian PCM.
type AudioStream struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

func (s AudioStream) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.PCM) / (bytesPerSample * s.Channels)
}

func (s AudioStream) DurationMS() int64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return int64(s.Frames()) * 1000 / int64(s.SampleRate)
}

// Decoder extracts the audio track of a local media file.
type Decoder interface {
	Decode(ctx context.Context, path string) (AudioStream, error)
}

// DecodeError reports a failed extraction together with the decoder's output.
type DecodeError struct {
	Path   string
	Output string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s: %v: %s", e.Path, e.Err, e.Output)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// FFmpegDecoder pipes the first audio track through ffmpeg as mono PCM.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
	runner     commandRunner
}

func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{Binary: "ffmpeg", SampleRate: DefaultSampleRate, runner: execRunner{}}
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (AudioStream, error) {
	if strings.TrimSpace(path) == "" {
		return AudioStream{}, &DecodeError{Path: path, Err: errors.New("local media path is empty")}
	}
	info, err := os.Stat(path)
	if err != nil {
		return AudioStream{}, &DecodeError{Path: path, Err: err}
	}
	if info.IsDir() {
		return AudioStream{}, &DecodeError{Path: path, Err: errors.New("path is a directory")}
	}

	rate := d.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	var stdout, stderr bytes.Buffer
	if err := d.runner.Run(ctx, d.binary(), buildFFmpegArgs(path, rate), &stdout, &stderr); err != nil {
		return AudioStream{}, &DecodeError{Path: path, Err: err, Output: lastLines(stderr.String(), 5)}
	}
	stream := AudioStream{SampleRate: rate, Channels: 1, PCM: stdout.Bytes()}
	if stream.Frames() == 0 {
		return AudioStream{}, &DecodeError{Path: path, Err: ErrNoAudio, Output: lastLines(stderr.String(), 5)}
	}
	return stream, nil
}

func (d *FFmpegDecoder) binary() string {
	if strings.TrimSpace(d.Binary) == "" {
		return "ffmpeg"
	}
	return d.Binary
}

func buildFFmpegArgs(input string, sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", input,
		"-map", "0:a:0",
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"pipe:1",
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CheckFFmpeg reports whether ffmpeg is on PATH.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("missing dependency: ffmpeg is required to extract audio and was not found on PATH")
	}
	return nil
}
