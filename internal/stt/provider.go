package stt

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnrecognized means the provider heard the audio but produced no text.
var ErrUnrecognized = errors.New("audio could not be understood")

// Provider recognizes speech in one WAV payload.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// ProviderError is a service-side or transport failure. StatusCode is zero
// when no HTTP response was received.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *ProviderError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func isTransient(err error) bool {
	if errors.Is(err, ErrUnrecognized) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
