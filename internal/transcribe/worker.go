package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"mediabatch/internal/batch"
	"mediabatch/internal/journal"
	"mediabatch/internal/logger"
	"mediabatch/internal/media"
	"mediabatch/internal/model"
	"mediabatch/internal/resume"
	"mediabatch/internal/runstore"
)

const (
	OutputExt = ".txt"

	msgExtractFailed = "Could not extract audio from video"
)

// ChunkTranscriber turns one chunk into text. *stt.Transcriber satisfies it.
type ChunkTranscriber interface {
	Transcribe(ctx context.Context, chunk model.AudioChunk) model.ChunkResult
}

type Options struct {
	OutputDir   string
	ChunkLength time.Duration
	// ChunkWorkers bounds concurrent provider calls within one item; 1 keeps
	// chunks sequential.
	ChunkWorkers int
}

type Worker struct {
	decoder media.Decoder
	stt     ChunkTranscriber
	journal *journal.Journal
	opts    Options
	log     *logger.Logger
}

func NewWorker(dec media.Decoder, tr ChunkTranscriber, j *journal.Journal, opts Options, log *logger.Logger) (*Worker, error) {
	if dec == nil || tr == nil {
		return nil, errors.New("decoder and chunk transcriber are required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.ChunkLength <= 0 {
		opts.ChunkLength = media.DefaultChunkLength
	}
	if opts.ChunkLength < time.Millisecond {
		return nil, fmt.Errorf("chunk length must be at least 1ms, got %s", opts.ChunkLength)
	}
	if opts.ChunkWorkers <= 0 {
		opts.ChunkWorkers = 1
	}
	if err := runstore.Mkdir(opts.OutputDir); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Worker{decoder: dec, stt: tr, journal: j, opts: opts, log: log}, nil
}

func (w *Worker) Ext() string {
	return OutputExt
}

// Done is the resume predicate for transcripts. Transcripts are renamed into
// place whole, so any existing file is finished, including an empty one from
// a clip with no recognizable speech.
func Done(path string, info fs.FileInfo) bool {
	return resume.Exists(path, info)
}

// Messages returns the journal shapes for transcription.
func Messages() batch.Messages {
	return batch.Messages{
		Started:   journal.MsgTranscriptStarted,
		Completed: journal.MsgTranscriptCompleted,
		Failure: map[model.Reason]string{
			model.ReasonExtraction: msgExtractFailed,
		},
	}
}

// Process decodes, segments and transcribes one item, then writes
// OutputDir/{id}.txt. Chunk-level problems degrade the transcript but never
// fail the item; when no chunk is understood the file is written empty and
// Done still accepts it.
func (w *Worker) Process(ctx context.Context, item model.MediaItem) model.ItemOutcome {
	start := time.Now()
	entry := w.log.WithItem(item.ID, batch.WorkerID(ctx))

	if strings.TrimSpace(item.LocalPath) == "" {
		return model.Failed(item.ID, model.ReasonExtraction, errors.New("no local media file for item"), time.Since(start))
	}
	stream, err := w.decoder.Decode(ctx, item.LocalPath)
	if err != nil {
		return model.Failed(item.ID, model.ReasonExtraction, err, time.Since(start))
	}
	chunks, err := media.Segment(item.ID, stream, w.opts.ChunkLength)
	if err != nil {
		return model.Failed(item.ID, model.ReasonUnexpected, err, time.Since(start))
	}
	if len(chunks) == 0 {
		return model.Failed(item.ID, model.ReasonExtraction, media.ErrNoAudio, time.Since(start))
	}
	entry.WithField("chunks", len(chunks)).Debug("audio segmented")

	results := w.transcribeChunks(ctx, chunks)
	if ctx.Err() != nil {
		// A partial transcript would be taken as done by the next run.
		return model.Failed(item.ID, model.ReasonUnexpected, fmt.Errorf("interrupted: %w", ctx.Err()), time.Since(start))
	}
	for _, r := range results {
		switch r.Status {
		case model.ChunkUnrecognized:
			w.journal.Warnf("Chunk %d could not be understood: %s", r.Index, item.ID)
		case model.ChunkProviderError:
			w.journal.Warnf("Could not request results for chunk %d: %s - %v", r.Index, item.ID, r.Err)
		}
	}

	path := resume.OutputPath(w.opts.OutputDir, item.ID, OutputExt)
	transcript := Reassemble(item.ID, results)
	if err := runstore.WriteBytes(path, []byte(transcript.Text)); err != nil {
		return model.Failed(item.ID, model.ReasonUnexpected, fmt.Errorf("write transcript: %w", err), time.Since(start))
	}
	w.journal.Infof("Transcript saved to: %s", path)
	return model.Completed(item.ID, time.Since(start))
}

// transcribeChunks runs chunks through a bounded pool and returns results in
// chunk order. Chunks not started before ctx is cancelled are reported as
// provider errors.
func (w *Worker) transcribeChunks(ctx context.Context, chunks []model.AudioChunk) []model.ChunkResult {
	results := make([]model.ChunkResult, len(chunks))
	if len(chunks) == 0 {
		return results
	}
	workers := min(w.opts.ChunkWorkers, len(chunks))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = w.transcribeOne(ctx, chunks[i])
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(chunks); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(chunks); i++ {
		results[i] = model.ChunkResult{
			ItemID: chunks[i].ItemID,
			Index:  chunks[i].Index,
			Status: model.ChunkProviderError,
			Err:    ctx.Err(),
		}
	}
	return results
}

func (w *Worker) transcribeOne(ctx context.Context, chunk model.AudioChunk) (res model.ChunkResult) {
	defer func() {
		if r := recover(); r != nil {
			res = model.ChunkResult{
				ItemID: chunk.ItemID,
				Index:  chunk.Index,
				Status: model.ChunkProviderError,
				Err:    fmt.Errorf("panic: %v", r),
			}
		}
	}()
	res = w.stt.Transcribe(ctx, chunk)
	res.ItemID = chunk.ItemID
	res.Index = chunk.Index
	return res
}
