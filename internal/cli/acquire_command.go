package cli

import (
	"errors"
	"flag"
	"path/filepath"
	"strings"

	"mediabatch/internal/acquire"
	"mediabatch/internal/batch"
	"mediabatch/internal/config"
	"mediabatch/internal/journal"
	"mediabatch/internal/logger"
	"mediabatch/internal/metadata"
	"mediabatch/internal/progress"
	"mediabatch/internal/ytdlp"
)

func runAcquire(args []string) error {
	fs := flag.NewFlagSet("acquire", flag.ContinueOnError)
	input := fs.String("input", "", "metadata table with id and url columns (csv, tsv or xlsx)")
	output := fs.String("output", "", "output directory for downloaded media")
	configPath := fs.String("config", "", "settings file (default mediabatch.json)")
	mode := fs.String("mode", "", "what to fetch: video|captions")
	workers := fs.Int("workers", 0, "parallel downloads (0 = settings)")
	delay := fs.String("delay", "", "pause between dispatches, e.g. 1s")
	order := fs.String("order", "", "processing order: manifest|reverse")
	maxItems := fs.Int("max-items", 0, "max items to attempt this invocation (0 = no limit)")
	quality := fs.String("quality", "", "quality preset: best|1080p|720p|small")
	format := fs.String("format", "", "raw yt-dlp format selector (overrides --quality)")
	subLangs := fs.String("sub-langs", "", "caption languages for captions mode")
	fragments := fs.Int("fragments", 0, "concurrent fragment downloads per item")
	cookies := fs.String("cookies", "", "path to cookies.txt")
	browserCookies := fs.String("browser-cookies", "", "load cookies from a browser profile, e.g. chrome")
	limit := fs.Float64("limit-rate", -1, "download limit per worker in MB/s (0 = unlimited)")
	proxyMode := fs.String("proxy-mode", "", "proxy mode: off|per_worker")
	var proxies stringList
	fs.Var(&proxies, "proxy", "proxy URL, repeat for per_worker mode")
	journalPath := fs.String("journal", "", "run journal path (default <output>/.mediabatch/journal-acquire.log)")
	keepLogs := fs.Bool("item-logs", false, "keep raw yt-dlp output per item under <output>/.mediabatch/logs")
	showProgress := fs.Bool("progress", false, "show a live view on a terminal")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*input) == "" || strings.TrimSpace(*output) == "" {
		fs.Usage()
		return errors.New("--input and --output are required")
	}

	settings, err := config.Load(config.Path(*configPath))
	if err != nil {
		return err
	}
	if *workers > 0 {
		settings.Workers = *workers
	}
	if *limit >= 0 {
		settings.DownloadLimitMBps = *limit
	}
	if strings.TrimSpace(*proxyMode) != "" {
		settings.ProxyMode = strings.TrimSpace(*proxyMode)
	}
	if len(proxies) > 0 {
		settings.Proxies = proxies
	}
	settings.Delay = firstNonEmpty(*delay, settings.Delay)
	if err := settings.Validate(); err != nil {
		return err
	}
	pause, err := settings.DelayDuration()
	if err != nil {
		return err
	}
	fetchMode, err := ytdlp.ParseMode(firstNonEmpty(*mode, settings.Mode))
	if err != nil {
		return err
	}

	items, err := metadata.LoadItems(*input)
	if err != nil {
		return err
	}

	outDir := strings.TrimSpace(*output)
	logsDir := ""
	if *keepLogs {
		logsDir = filepath.Join(stateDir(outDir), "logs")
	}
	log := logger.New()
	jPath := firstNonEmpty(*journalPath, defaultJournalPath(outDir, "acquire"))

	res, err := executePipeline(pipelineRun{
		name:        "acquire",
		inputPath:   *input,
		outputDir:   outDir,
		journalPath: jPath,
		items:       items,
		ext:         fetchMode.Ext(),
		progress:    *showProgress,
		log:         log,
		batch: batch.Options{
			Workers:  firstPositive(settings.Workers, config.DefaultWorkers),
			Delay:    pause,
			Order:    firstNonEmpty(*order, settings.Order),
			MaxItems: *maxItems,
			Messages: acquire.Messages(),
		},
		build: func(_ *journal.Journal, dash *progress.Dashboard) (batch.Processor, error) {
			opts := acquire.Options{
				OutputDir:          outDir,
				Mode:               fetchMode,
				Quality:            firstNonEmpty(*quality, settings.Quality),
				Format:             strings.TrimSpace(*format),
				SubLangs:           firstNonEmpty(*subLangs, settings.SubLangs),
				Fragments:          firstPositive(*fragments, settings.Fragments),
				CookiesPath:        firstNonEmpty(*cookies, settings.CookiesPath),
				CookiesFromBrowser: firstNonEmpty(*browserCookies, settings.CookiesFromBrowser),
				DownloadLimitMBps:  settings.DownloadLimitMBps,
				ProxyMode:          settings.ProxyMode,
				Proxies:            settings.Proxies,
				LogsDir:            logsDir,
			}
			if dash != nil {
				opts.OnStatus = func(workerID int, itemID string, s acquire.Status) {
					dash.ItemStatus(workerID, itemID, s.Phase, s.Percent)
				}
			}
			return acquire.NewWorker(ytdlp.NewClient(), opts, log)
		},
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(batchReport{BatchResult: res, Journal: jPath})
	}
	printBatchResult(res, jPath)
	return nil
}
