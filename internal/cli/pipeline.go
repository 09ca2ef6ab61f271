package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mediabatch/internal/batch"
	"mediabatch/internal/journal"
	"mediabatch/internal/logger"
	"mediabatch/internal/model"
	"mediabatch/internal/progress"
	"mediabatch/internal/resume"
	"mediabatch/internal/runstore"
)

const stateDirName = ".mediabatch"

// pipelineRun is the plumbing shared by acquire and transcribe: state dir,
// lock, journal, run snapshot, signal handling and the optional live view.
type pipelineRun struct {
	name        string
	inputPath   string
	outputDir   string
	journalPath string
	items       []model.MediaItem
	batch       batch.Options
	ext         string
	valid       resume.Predicate
	progress    bool
	log         *logger.Logger
	// build constructs the processor once the journal and view exist.
	build func(j *journal.Journal, dash *progress.Dashboard) (batch.Processor, error)
}

func newRunID() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

func stateDir(outputDir string) string {
	return filepath.Join(outputDir, stateDirName)
}

func defaultJournalPath(outputDir, pipeline string) string {
	return filepath.Join(stateDir(outputDir), "journal-"+pipeline+".log")
}

func executePipeline(p pipelineRun) (model.BatchResult, error) {
	if strings.TrimSpace(p.outputDir) == "" {
		return model.BatchResult{}, errors.New("--output is required")
	}
	if err := runstore.Mkdir(p.outputDir); err != nil {
		return model.BatchResult{}, err
	}
	state := stateDir(p.outputDir)
	runID := newRunID()
	log := p.log.WithRun(runID, p.name)

	lock, err := runstore.AcquireDirLock(state, runID, p.name)
	if err != nil {
		return model.BatchResult{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.WithError(err).Warn("release output lock")
		}
	}()

	journalPath := firstNonEmpty(p.journalPath, defaultJournalPath(p.outputDir, p.name))
	j, err := journal.Open(journalPath, nil)
	if err != nil {
		return model.BatchResult{}, err
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dash *progress.Dashboard
	if p.progress && stdoutIsTTY() {
		var in *os.File
		if stdinIsTTY() {
			in = os.Stdin
		}
		dash = progress.New(p.name, p.batch.Workers, readerOrNil(in), os.Stdout, stop)
	}

	proc, err := p.build(j, dash)
	if err != nil {
		return model.BatchResult{}, err
	}

	meta := runstore.BatchMeta{
		RunID:       runID,
		Pipeline:    p.name,
		InputPath:   p.inputPath,
		OutputDir:   p.outputDir,
		JournalPath: journalPath,
		StartedAt:   time.Now().UTC(),
	}
	if err := runstore.SaveBatchMeta(state, meta); err != nil {
		return model.BatchResult{}, err
	}

	opts := p.batch
	opts.RunID = runID
	opts.Pipeline = p.name
	opts.Journal = j
	opts.Resume = &resume.Check{OutputDir: p.outputDir, Ext: p.ext, Valid: p.valid}
	if dash != nil {
		opts.Observer = dash
		dash.Start()
	}
	log.WithField("items", len(p.items)).Info("batch started")

	res, runErr := batch.Run(ctx, p.items, proc, opts)
	if dash != nil {
		if err := dash.Stop(); err != nil {
			log.WithError(err).Warn("live view stopped with error")
		}
	}
	if runErr != nil {
		return res, runErr
	}

	meta.Queued = res.Queued
	meta.Completed = res.Completed
	meta.Skipped = res.Skipped
	meta.Failed = res.Failed
	meta.Remaining = res.Remaining
	meta.Interrupted = res.Interrupted
	meta.Finished = !res.Interrupted
	if err := runstore.SaveBatchMeta(state, meta); err != nil {
		return res, err
	}
	log.WithField("completed", res.Completed).
		WithField("failed", res.Failed).
		WithField("skipped", res.Skipped).
		Info("batch finished")
	return res, nil
}

// readerOrNil avoids handing bubbletea a typed nil *os.File.
func readerOrNil(f *os.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}

type batchReport struct {
	model.BatchResult
	Journal string `json:"journal"`
}

func printBatchResult(res model.BatchResult, journalPath string) {
	kv("run_id", res.RunID)
	kv("pipeline", res.Pipeline)
	kv("journal", journalPath)
	kv("queued", res.Queued)
	kv("processed", res.Processed)
	kv("completed", res.Completed)
	kv("skipped", res.Skipped)
	kv("failed", res.Failed)
	reasons := make([]string, 0, len(res.FailedByReason))
	for r := range res.FailedByReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		kv("failed_"+strings.TrimSuffix(r, "_error"), res.FailedByReason[model.Reason(r)])
	}
	kv("remaining", res.Remaining)
	kv("duration", res.Duration().Round(time.Millisecond))
	if res.Interrupted {
		fmt.Println("interrupted: rerun the same command to resume")
	}
}
