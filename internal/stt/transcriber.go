package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mediabatch/internal/model"
)

const (
	DefaultCallTimeout = 2 * time.Minute
	DefaultRetryBudget = 30 * time.Second
)

type Options struct {
	// CallTimeout bounds one chunk, retries included. A chunk that runs out
	// of time is treated as unrecognized.
	CallTimeout time.Duration
	// RetryBudget caps the time spent retrying transient provider errors.
	RetryBudget time.Duration
}

type Transcriber struct {
	provider Provider
	opts     Options
}

func NewTranscriber(p Provider, opts Options) *Transcriber {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	} else if opts.RetryBudget == 0 {
		opts.RetryBudget = DefaultRetryBudget
	}
	return &Transcriber{provider: p, opts: opts}
}

func (t *Transcriber) ProviderName() string {
	return t.provider.Name()
}

// Transcribe never fails the caller: every outcome is folded into the
// returned ChunkResult.
func (t *Transcriber) Transcribe(ctx context.Context, chunk model.AudioChunk) model.ChunkResult {
	res := model.ChunkResult{ItemID: chunk.ItemID, Index: chunk.Index}

	callCtx, cancel := context.WithTimeout(ctx, t.opts.CallTimeout)
	defer cancel()

	var text string
	op := func() error {
		out, err := t.provider.Recognize(callCtx, chunk.Payload)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = strings.TrimSpace(out)
		if text == "" {
			return backoff.Permanent(ErrUnrecognized)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = t.opts.RetryBudget
	var policy backoff.BackOff = bo
	if t.opts.RetryBudget == 0 {
		policy = &backoff.StopBackOff{}
	}
	err := backoff.Retry(op, backoff.WithContext(policy, callCtx))

	switch {
	case err == nil:
		res.Text = text
		res.Status = model.ChunkOK
	case ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		res.Status = model.ChunkUnrecognized
		res.Err = fmt.Errorf("%s call timed out after %s: %w", t.provider.Name(), t.opts.CallTimeout, ErrUnrecognized)
	case errors.Is(err, ErrUnrecognized):
		res.Status = model.ChunkUnrecognized
		res.Err = err
	default:
		res.Status = model.ChunkProviderError
		res.Err = err
	}
	return res
}
