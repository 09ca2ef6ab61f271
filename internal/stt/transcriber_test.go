package stt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mediabatch/internal/model"
)

type scriptedProvider struct {
	calls   atomic.Int32
	respond func(call int32) (string, error)
	delay   time.Duration
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Recognize(ctx context.Context, _ []byte) (string, error) {
	n := p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.respond(n)
}

func chunk(i int) model.AudioChunk {
	return model.AudioChunk{ItemID: "a1", Index: i, Payload: []byte("wav"), DurationMS: 60000}
}

func TestTranscribeOK(t *testing.T) {
	p := &scriptedProvider{respond: func(int32) (string, error) { return "  hello there ", nil }}
	res := NewTranscriber(p, Options{}).Transcribe(context.Background(), chunk(4))
	if res.Status != model.ChunkOK || res.Text != "hello there" || res.Index != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTranscribeUnrecognizedIsNotRetried(t *testing.T) {
	p := &scriptedProvider{respond: func(int32) (string, error) { return "", nil }}
	res := NewTranscriber(p, Options{}).Transcribe(context.Background(), chunk(0))
	if res.Status != model.ChunkUnrecognized || res.Text != "" {
		t.Fatalf("expected unrecognized, got %+v", res)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", p.calls.Load())
	}
}

func TestTranscribeTimeoutCountsAsUnrecognized(t *testing.T) {
	p := &scriptedProvider{delay: time.Second, respond: func(int32) (string, error) { return "late", nil }}
	res := NewTranscriber(p, Options{CallTimeout: 20 * time.Millisecond}).Transcribe(context.Background(), chunk(1))
	if res.Status != model.ChunkUnrecognized {
		t.Fatalf("expected timeout to be unrecognized, got %+v", res)
	}
	if !errors.Is(res.Err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized in chain, got %v", res.Err)
	}
}

func TestTranscribeRetriesTransientProviderErrors(t *testing.T) {
	p := &scriptedProvider{respond: func(n int32) (string, error) {
		if n == 1 {
			return "", &ProviderError{Provider: "scripted", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return "recovered", nil
	}}
	res := NewTranscriber(p, Options{}).Transcribe(context.Background(), chunk(2))
	if res.Status != model.ChunkOK || res.Text != "recovered" {
		t.Fatalf("expected retry to recover, got %+v", res)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("expected two calls, got %d", p.calls.Load())
	}
}

func TestTranscribePermanentProviderError(t *testing.T) {
	p := &scriptedProvider{respond: func(int32) (string, error) {
		return "", &ProviderError{Provider: "scripted", StatusCode: 401, Err: errors.New("bad key")}
	}}
	res := NewTranscriber(p, Options{}).Transcribe(context.Background(), chunk(3))
	if res.Status != model.ChunkProviderError {
		t.Fatalf("expected provider error, got %+v", res)
	}
	var pe *ProviderError
	if !errors.As(res.Err, &pe) || pe.StatusCode != 401 {
		t.Fatalf("expected ProviderError 401, got %v", res.Err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("expected no retry for 401, got %d calls", p.calls.Load())
	}
}

func TestTranscribeWithoutRetryBudget(t *testing.T) {
	p := &scriptedProvider{respond: func(int32) (string, error) {
		return "", &ProviderError{Provider: "scripted", StatusCode: 429, Err: errors.New("slow down")}
	}}
	res := NewTranscriber(p, Options{RetryBudget: -1}).Transcribe(context.Background(), chunk(0))
	if res.Status != model.ChunkProviderError || p.calls.Load() != 1 {
		t.Fatalf("expected a single failed call, got %+v after %d calls", res, p.calls.Load())
	}
}

func TestProviderErrorTemporary(t *testing.T) {
	cases := map[int]bool{0: true, 400: false, 401: false, 408: true, 429: true, 500: true, 503: true}
	for status, want := range cases {
		e := &ProviderError{StatusCode: status, Err: errors.New("x")}
		if got := e.Temporary(); got != want {
			t.Fatalf("status %d: Temporary() = %v, want %v", status, got, want)
		}
	}
}
