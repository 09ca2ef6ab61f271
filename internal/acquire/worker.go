package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediabatch/internal/batch"
	"mediabatch/internal/journal"
	"mediabatch/internal/logger"
	"mediabatch/internal/model"
	"mediabatch/internal/runstore"
	"mediabatch/internal/ytdlp"
)

// Fetcher is the hosting-platform client. *ytdlp.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req ytdlp.FetchRequest) (ytdlp.FetchResult, error)
}

type Options struct {
	OutputDir          string
	Mode               ytdlp.Mode
	Quality            string
	Format             string
	SubLangs           string
	Fragments          int
	CookiesPath        string
	CookiesFromBrowser string
	DownloadLimitMBps  float64
	ProxyMode          string
	Proxies            []string
	// LogsDir receives one raw yt-dlp log per item when set.
	LogsDir string
	// OnStatus is called from worker goroutines as download output arrives.
	OnStatus func(workerID int, itemID string, s Status)
}

type Worker struct {
	fetcher Fetcher
	opts    Options
	log     *logger.Logger
}

func NewWorker(f Fetcher, opts Options, log *logger.Logger) (*Worker, error) {
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.Mode == "" {
		opts.Mode = ytdlp.ModeVideo
	}
	mode, err := NormalizeProxyMode(opts.ProxyMode)
	if err != nil {
		return nil, err
	}
	proxies, err := NormalizeProxyList(opts.Proxies)
	if err != nil {
		return nil, err
	}
	if mode == ProxyModePerWorker && len(proxies) == 0 {
		return nil, errors.New("proxy mode per_worker requires at least one proxy")
	}
	opts.ProxyMode = mode
	opts.Proxies = proxies
	if err := runstore.Mkdir(opts.OutputDir); err != nil {
		return nil, err
	}
	if opts.LogsDir != "" {
		if err := runstore.Mkdir(opts.LogsDir); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Worker{fetcher: f, opts: opts, log: log}, nil
}

// Ext is the artifact extension the resumability check looks for.
func (w *Worker) Ext() string {
	return w.opts.Mode.Ext()
}

// Messages returns the journal shapes for acquisition.
func Messages() batch.Messages {
	return batch.Messages{
		Started:   journal.MsgDownloadStarted,
		Completed: journal.MsgDownloadCompleted,
	}
}

// Process downloads one item. It never retries; a failed item is picked up
// again by the next run because no artifact was left behind.
func (w *Worker) Process(ctx context.Context, item model.MediaItem) model.ItemOutcome {
	start := time.Now()
	workerID := batch.WorkerID(ctx)
	entry := w.log.WithItem(item.ID, workerID)

	var logFile io.WriteCloser
	if w.opts.LogsDir != "" {
		f, err := os.Create(filepath.Join(w.opts.LogsDir, safeFileName(item.ID)+".log"))
		if err != nil {
			return model.Failed(item.ID, model.ReasonUnexpected, fmt.Errorf("create item log: %w", err), time.Since(start))
		}
		logFile = f
		defer logFile.Close()
	}

	tracker := &statusTracker{}
	req := ytdlp.FetchRequest{
		ID:                 item.ID,
		URL:                item.SourceURL,
		OutputDir:          w.opts.OutputDir,
		Mode:               w.opts.Mode,
		Quality:            w.opts.Quality,
		Format:             w.opts.Format,
		SubLangs:           w.opts.SubLangs,
		Fragments:          w.opts.Fragments,
		CookiesPath:        w.opts.CookiesPath,
		CookiesFromBrowser: w.opts.CookiesFromBrowser,
		DownloadLimitMBps:  w.opts.DownloadLimitMBps,
		ProxyURL:           proxyForWorker(workerID, w.opts.ProxyMode, w.opts.Proxies),
		Progress: func(stream ytdlp.OutputStream, line string) {
			if w.opts.OnStatus != nil && tracker.handle(stream, line) {
				w.opts.OnStatus(workerID, item.ID, tracker.cur)
			}
		},
	}
	if logFile != nil {
		req.LogWriter = logFile
	}

	res, err := w.fetcher.Fetch(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		reason := reasonFor(err)
		entry.WithField("reason", reason).Debug("download failed")
		return model.Failed(item.ID, reason, firstLine(err), elapsed)
	}
	entry.WithField("path", res.Path).Debug("download finished")
	return model.Completed(item.ID, elapsed)
}

func reasonFor(err error) model.Reason {
	var fe *ytdlp.FetchError
	if !errors.As(err, &fe) {
		return model.ReasonUnexpected
	}
	switch fe.Kind {
	case ytdlp.KindTransfer:
		return model.ReasonTransfer
	case ytdlp.KindExtraction:
		return model.ReasonExtraction
	case ytdlp.KindPostProcessing:
		return model.ReasonPostProcessing
	default:
		return model.ReasonUnexpected
	}
}

// firstLine keeps journal lines short; the full output is in the item log.
func firstLine(err error) error {
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		rest := strings.TrimSpace(msg[i+1:])
		msg = strings.TrimSpace(msg[:i])
		if last := lastNonEmptyLine(rest); last != "" {
			msg += ": " + last
		}
	}
	return errors.New(msg)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func safeFileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}
