package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

type Mode string

const (
	ModeVideo    Mode = "video"
	ModeCaptions Mode = "captions"
)

// Ext is the canonical artifact extension for a mode.
func (m Mode) Ext() string {
	if m == ModeCaptions {
		return ".srt"
	}
	return ".mp4"
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "video":
		return ModeVideo, nil
	case "captions", "subtitles", "subs":
		return ModeCaptions, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected video or captions)", raw)
	}
}

type FetchRequest struct {
	ID                 string
	URL                string
	OutputDir          string
	Mode               Mode
	Quality            string
	Format             string
	SubLangs           string
	Fragments          int
	CookiesPath        string
	CookiesFromBrowser string
	DownloadLimitMBps  float64
	ProxyURL           string
	LogWriter          io.Writer
	Progress           func(stream OutputStream, line string)
}

type FetchResult struct {
	Path    string
	Command []string
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies() error {
	report := DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required to merge and remux downloads and was not found on PATH")
	}
	return nil
}

// Client drives the yt-dlp binary. The zero value uses "yt-dlp" from PATH.
type Client struct {
	Binary string
}

func NewClient() *Client {
	return &Client{Binary: "yt-dlp"}
}

// Fetch downloads one artifact to OutputDir/{ID}{Mode.Ext()}. Failures are
// returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return FetchResult{}, &FetchError{Kind: KindExtraction, Err: errors.New("source URL is required")}
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.OutputDir) == "" {
		return FetchResult{}, &FetchError{Kind: KindUnexpected, Err: errors.New("item id and output directory are required")}
	}
	args, err := buildArgs(req)
	if err != nil {
		return FetchResult{}, &FetchError{Kind: KindUnexpected, Err: err}
	}
	cmdline := append([]string{c.binary()}, args...)
	if err := c.runCommand(ctx, args, req); err != nil {
		return FetchResult{Command: cmdline}, err
	}

	target := filepath.Join(req.OutputDir, req.ID+req.Mode.Ext())
	if req.Mode == ModeCaptions {
		if err := promoteCaptionFile(req.OutputDir, req.ID, target); err != nil {
			return FetchResult{Command: cmdline}, err
		}
	}
	info, err := os.Stat(target)
	if err != nil {
		return FetchResult{Command: cmdline}, &FetchError{Kind: KindPostProcessing, Err: fmt.Errorf("expected output %s: %w", target, err)}
	}
	if info.Size() == 0 {
		_ = os.Remove(target)
		return FetchResult{Command: cmdline}, &FetchError{Kind: KindTransfer, Err: fmt.Errorf("downloaded artifact %s is empty", target)}
	}
	return FetchResult{Path: target, Command: cmdline}, nil
}

func buildArgs(req FetchRequest) ([]string, error) {
	args := []string{
		"--no-playlist",
		"--newline",
		"--no-overwrites",
		"-P", req.OutputDir,
		"-o", outputTemplate(req.ID),
	}
	switch req.Mode {
	case ModeCaptions:
		args = append(args,
			"--skip-download",
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", normalizeSubLangs(req.SubLangs),
			"--convert-subs", "srt",
		)
	default:
		fragments := req.Fragments
		if fragments <= 0 {
			fragments = 4
		}
		format := strings.TrimSpace(req.Format)
		if format == "" {
			format = selectFormat(req.Quality)
		}
		args = append(args,
			"-N", fmt.Sprintf("%d", fragments),
			"-f", format,
			"--merge-output-format", "mp4",
			"--remux-video", "mp4",
		)
	}
	if strings.TrimSpace(req.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(req.CookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	if strings.TrimSpace(req.CookiesFromBrowser) != "" {
		args = append(args, "--cookies-from-browser", req.CookiesFromBrowser)
	}
	if req.DownloadLimitMBps > 0 {
		args = append(args, "--limit-rate", formatRateLimitMBps(req.DownloadLimitMBps))
	}
	if strings.TrimSpace(req.ProxyURL) != "" {
		args = append(args, "--proxy", strings.TrimSpace(req.ProxyURL))
	}
	return append(args, req.URL), nil
}

// outputTemplate pins the file name to the item id; "%" would otherwise be
// read as a template field.
func outputTemplate(id string) string {
	return strings.ReplaceAll(id, "%", "%%") + ".%(ext)s"
}

func selectFormat(rawQuality string) string {
	switch strings.ToLower(strings.TrimSpace(rawQuality)) {
	case "1080p", "1080", "hd":
		return "bv*[height<=1080]+ba/b[height<=1080]"
	case "720p", "720", "sd":
		return "bv*[height<=720]+ba/b[height<=720]"
	case "small":
		return "b[filesize<2M]/w"
	default:
		return "bv*+ba/b"
	}
}

func normalizeSubLangs(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "english", "en":
		return "en"
	case "all":
		return "all,-live_chat"
	default:
		return strings.TrimSpace(raw)
	}
}

// promoteCaptionFile renames the language-tagged subtitle yt-dlp writes
// ({id}.{lang}.srt) to the canonical {id}.srt. Plain "en" wins when several
// languages were written.
func promoteCaptionFile(dir, id, target string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &FetchError{Kind: KindUnexpected, Err: err}
	}
	candidates := make([]string, 0, 2)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == filepath.Base(target) {
			continue
		}
		if strings.HasPrefix(name, id+".") && strings.HasSuffix(strings.ToLower(name), ".srt") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		if _, err := os.Stat(target); err == nil {
			return nil
		}
		return &FetchError{Kind: KindExtraction, Err: fmt.Errorf("no caption track available for %s", id)}
	}
	slices.SortFunc(candidates, func(a, b string) int {
		return captionRank(id, a) - captionRank(id, b)
	})
	if err := os.Rename(filepath.Join(dir, candidates[0]), target); err != nil {
		return &FetchError{Kind: KindPostProcessing, Err: fmt.Errorf("rename captions for %s: %w", id, err)}
	}
	for _, extra := range candidates[1:] {
		_ = os.Remove(filepath.Join(dir, extra))
	}
	return nil
}

func captionRank(id, name string) int {
	switch strings.TrimSuffix(strings.TrimPrefix(name, id+"."), ".srt") {
	case "en":
		return 0
	case "en-orig":
		return 1
	default:
		if strings.HasPrefix(strings.TrimPrefix(name, id+"."), "en") {
			return 2
		}
		return 3
	}
}

func (c *Client) binary() string {
	if strings.TrimSpace(c.Binary) == "" {
		return "yt-dlp"
	}
	return c.Binary
}

func (c *Client) runCommand(ctx context.Context, args []string, req FetchRequest) error {
	cmd := exec.CommandContext(ctx, c.binary(), args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return &FetchError{Kind: KindUnexpected, Err: fmt.Errorf("setup stdout pipe: %w", err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return &FetchError{Kind: KindUnexpected, Err: fmt.Errorf("setup stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &FetchError{Kind: KindUnexpected, Err: fmt.Errorf("start yt-dlp: %w", err)}
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if req.LogWriter != nil {
				_, _ = io.WriteString(req.LogWriter, line+"\n")
			}
			mu.Unlock()
			if req.Progress != nil {
				req.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		stderr := strings.TrimSpace(errBuf.String())
		kind := Classify(stderr + "\n" + outBuf.String())
		if ctx.Err() != nil {
			kind = KindUnexpected
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return &FetchError{Kind: kind, Err: fmt.Errorf("yt-dlp failed: %w\n%s", err, stderr)}
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func formatRateLimitMBps(v float64) string {
	return fmt.Sprintf("%gM", v)
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
