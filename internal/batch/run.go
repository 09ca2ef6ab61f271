package batch

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mediabatch/internal/journal"
	"mediabatch/internal/model"
	"mediabatch/internal/resume"
)

const (
	OrderManifest = "manifest"
	OrderReverse  = "reverse"
)

// Processor handles one item and reports its outcome. It must not panic, but
// a panic is recovered and recorded as an unexpected failure.
type Processor interface {
	Process(ctx context.Context, item model.MediaItem) model.ItemOutcome
}

type ProcessorFunc func(ctx context.Context, item model.MediaItem) model.ItemOutcome

func (f ProcessorFunc) Process(ctx context.Context, item model.MediaItem) model.ItemOutcome {
	return f(ctx, item)
}

// Observer receives the queue size once filtering is done, then item
// lifecycle events from worker goroutines.
type Observer interface {
	Queued(queued, skipped int)
	ItemStarted(workerID int, item model.MediaItem)
	ItemFinished(workerID int, outcome model.ItemOutcome)
}

type Options struct {
	RunID    string
	Pipeline string
	// Workers bounds in-flight items; zero means one per CPU.
	Workers int
	// Delay is a fixed pause between dispatches, for remote services with
	// rate limits.
	Delay    time.Duration
	Order    string
	MaxItems int
	Resume   *resume.Check
	Journal  *journal.Journal
	Messages Messages
	Observer Observer
}

// Run filters items against existing outputs, then fans the remainder out
// over a bounded pool. Each item is attempted at most once. A cancelled ctx
// stops dispatch; items already handed to a worker run to completion.
func Run(ctx context.Context, items []model.MediaItem, p Processor, opts Options) (model.BatchResult, error) {
	result := model.BatchResult{
		RunID:          opts.RunID,
		Pipeline:       opts.Pipeline,
		FailedByReason: make(map[model.Reason]int),
		StartedAt:      time.Now().UTC(),
	}
	msgs := opts.Messages.withDefaults()

	queue := orderItems(items, opts.Order)
	if opts.Resume != nil {
		kept, skipped, err := resume.Filter(queue, *opts.Resume)
		if err != nil {
			return result, fmt.Errorf("resumability filter: %w", err)
		}
		for _, it := range skipped {
			outcome := model.Skipped(it.ID)
			opts.Journal.Infof("%s: %s", journal.MsgSkipped, it.ID)
			result.Outcomes = append(result.Outcomes, outcome)
			result.Skipped++
		}
		queue = kept
	}
	if opts.MaxItems > 0 && len(queue) > opts.MaxItems {
		queue = queue[:opts.MaxItems]
	}
	result.Queued = len(queue)
	if opts.Observer != nil {
		opts.Observer.Queued(result.Queued, result.Skipped)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(queue)))

	jobCh := make(chan model.MediaItem)
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		processed  atomic.Int64
		dispatched int
	)

	record := func(outcome model.ItemOutcome) {
		mu.Lock()
		defer mu.Unlock()
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Kind {
		case model.OutcomeCompleted:
			result.Completed++
		case model.OutcomeSkipped:
			result.Skipped++
		case model.OutcomeFailed:
			result.Failed++
			result.FailedByReason[outcome.Reason]++
		}
	}

	workerFn := func(workerID int) {
		defer wg.Done()
		for item := range jobCh {
			itemCtx := withWorkerID(ctx, workerID)
			if opts.Observer != nil {
				opts.Observer.ItemStarted(workerID, item)
			}
			opts.Journal.Infof("%s: %s", msgs.Started, item.ID)

			outcome := runOne(itemCtx, p, item)
			msgs.journal(opts.Journal, outcome)
			processed.Add(1)
			record(outcome)
			if opts.Observer != nil {
				opts.Observer.ItemFinished(workerID, outcome)
			}
		}
	}

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go workerFn(w)
	}

	pacer := newPacer(opts.Delay)
dispatch:
	for i, item := range queue {
		if i > 0 && pacer != nil {
			t := time.NewTimer(pacer.NextBackOff())
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				break dispatch
			}
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case jobCh <- item:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	result.Processed = int(processed.Load())
	result.Remaining = len(queue) - dispatched
	result.Interrupted = ctx.Err() != nil && result.Remaining > 0
	result.FinishedAt = time.Now().UTC()
	if len(result.FailedByReason) == 0 {
		result.FailedByReason = nil
	}
	return result, nil
}

func runOne(ctx context.Context, p Processor, item model.MediaItem) (outcome model.ItemOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = model.Failed(item.ID, model.ReasonUnexpected, fmt.Errorf("panic: %v", r), time.Since(start))
		}
	}()
	outcome = p.Process(ctx, item)
	if outcome.ItemID == "" {
		outcome.ItemID = item.ID
	}
	if outcome.Kind == "" {
		outcome = model.Failed(item.ID, model.ReasonUnexpected, fmt.Errorf("processor returned no outcome"), 0)
	}
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	return outcome
}

// newPacer returns nil when no delay is configured.
func newPacer(delay time.Duration) backoff.BackOff {
	if delay <= 0 {
		return nil
	}
	return backoff.NewConstantBackOff(delay)
}

func orderItems(items []model.MediaItem, order string) []model.MediaItem {
	out := slices.Clone(items)
	switch strings.ToLower(strings.TrimSpace(order)) {
	case OrderReverse:
		slices.Reverse(out)
	default:
		// manifest order
	}
	return out
}

type workerKey struct{}

func withWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerID returns the 1-based pool slot handling the item, or 0 outside a
// batch.
func WorkerID(ctx context.Context) int {
	id, _ := ctx.Value(workerKey{}).(int)
	return id
}
