package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"mediabatch/internal/batch"
	"mediabatch/internal/config"
	"mediabatch/internal/journal"
	"mediabatch/internal/logger"
	"mediabatch/internal/media"
	"mediabatch/internal/metadata"
	"mediabatch/internal/progress"
	"mediabatch/internal/resume"
	"mediabatch/internal/stt"
	"mediabatch/internal/transcribe"
)

func runTranscribe(args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	input := fs.String("input", "", "media directory, list file, or metadata table")
	output := fs.String("output", "", "output directory for transcripts")
	mediaDir := fs.String("media-dir", "", "directory holding <id>.<ext> media for table input")
	configPath := fs.String("config", "", "settings file (default mediabatch.json)")
	workers := fs.Int("workers", 0, "items transcribed in parallel (0 = settings)")
	chunkWorkers := fs.Int("chunk-workers", 0, "provider calls in parallel per item (0 = settings)")
	chunkMS := fs.Int64("chunk-ms", 0, "chunk length in milliseconds (0 = settings)")
	provider := fs.String("provider", "", "speech provider: openai|deepgram")
	language := fs.String("language", "", "spoken language hint, e.g. en")
	callTimeout := fs.String("call-timeout", "", "timeout per chunk, e.g. 2m")
	retryBudget := fs.Duration("retry-budget", 0, "time spent retrying transient provider errors per chunk (negative disables)")
	minWords := fs.Int("min-words", 0, "treat existing transcripts with fewer words as not done")
	order := fs.String("order", "", "processing order: manifest|reverse")
	maxItems := fs.Int("max-items", 0, "max items to attempt this invocation (0 = no limit)")
	journalPath := fs.String("journal", "", "run journal path (default <output>/.mediabatch/journal-transcribe.log)")
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
	if *chunkMS < 0 {
		return errors.New("--chunk-ms must be >= 0")
	}
	if *chunkMS > 0 {
		settings.ChunkMS = *chunkMS
	}
	settings.Provider = firstNonEmpty(*provider, settings.Provider)
	settings.Language = firstNonEmpty(*language, settings.Language)
	settings.CallTimeout = firstNonEmpty(*callTimeout, settings.CallTimeout)
	if err := settings.Validate(); err != nil {
		return err
	}
	timeout, err := settings.CallTimeoutDuration()
	if err != nil {
		return err
	}

	items, err := metadata.LoadTranscriptionItems(*input, strings.TrimSpace(*mediaDir))
	if err != nil {
		return err
	}
	p, err := buildProvider(settings)
	if err != nil {
		return err
	}
	chunker := stt.NewTranscriber(p, stt.Options{CallTimeout: timeout, RetryBudget: *retryBudget})

	valid := resume.Predicate(transcribe.Done)
	if *minWords > 0 {
		valid = resume.MinWords(*minWords)
	}

	outDir := strings.TrimSpace(*output)
	log := logger.New()
	jPath := firstNonEmpty(*journalPath, defaultJournalPath(outDir, "transcribe"))

	res, err := executePipeline(pipelineRun{
		name:        "transcribe",
		inputPath:   *input,
		outputDir:   outDir,
		journalPath: jPath,
		items:       items,
		ext:         transcribe.OutputExt,
		valid:       valid,
		progress:    *showProgress,
		log:         log,
		batch: batch.Options{
			Workers:  firstPositive(*workers, settings.Workers, config.DefaultWorkers),
			Order:    firstNonEmpty(*order, settings.Order),
			MaxItems: *maxItems,
			Messages: transcribe.Messages(),
		},
		build: func(j *journal.Journal, _ *progress.Dashboard) (batch.Processor, error) {
			return transcribe.NewWorker(media.NewFFmpegDecoder(), chunker, j, transcribe.Options{
				OutputDir:    outDir,
				ChunkLength:  time.Duration(firstPositive64(settings.ChunkMS, config.DefaultChunkMS)) * time.Millisecond,
				ChunkWorkers: firstPositive(*chunkWorkers, settings.ChunkWorkers, config.DefaultChunkWorkers),
			}, log)
		},
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(batchReport{BatchResult: res, Journal: jPath})
	}
	kv("provider", chunker.ProviderName())
	printBatchResult(res, jPath)
	return nil
}

func buildProvider(s config.Settings) (stt.Provider, error) {
	switch s.Provider {
	case "deepgram":
		return stt.NewDeepgramProvider(stt.DeepgramConfig{
			APIKey:   s.DeepgramAPIKey,
			Endpoint: s.DeepgramURL,
			Model:    s.DeepgramModel,
			Language: s.Language,
		})
	case "", "openai":
		return stt.NewOpenAIProvider(stt.OpenAIConfig{
			APIKey:   s.OpenAIAPIKey,
			BaseURL:  s.OpenAIBaseURL,
			Model:    s.OpenAIModel,
			Language: s.Language,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}

func firstPositive64(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
