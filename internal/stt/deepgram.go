package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	DefaultDeepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	DefaultDeepgramModel    = "nova-2"
	deepgramFrameBytes      = 32 * 1024
)

type DeepgramConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Language string
}

// DeepgramProvider streams each chunk over a live-transcription websocket and
// collects the final results until the server closes the stream.
type DeepgramProvider struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func NewDeepgramProvider(cfg DeepgramConfig) (*DeepgramProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepgram provider requires DEEPGRAM_API_KEY")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultDeepgramEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse deepgram endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("model", firstNonEmpty(cfg.Model, DefaultDeepgramModel))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		q.Set("language", lang)
	}
	u.RawQuery = q.Encode()
	return &DeepgramProvider{apiKey: strings.TrimSpace(cfg.APIKey), url: u.String(), dialer: websocket.DefaultDialer}, nil
}

func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

func (p *DeepgramProvider) Recognize(ctx context.Context, wav []byte) (string, error) {
	header := http.Header{"Authorization": {"Token " + p.apiKey}}
	conn, resp, err := p.dialer.DialContext(ctx, p.url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return "", &ProviderError{Provider: p.Name(), StatusCode: status, Err: err}
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	for start := 0; start < len(wav); start += deepgramFrameBytes {
		end := min(start+deepgramFrameBytes, len(wav))
		if err := conn.WriteMessage(websocket.BinaryMessage, wav[start:end]); err != nil {
			return "", p.streamError(ctx, err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", p.streamError(ctx, err)
	}

	parts := make([]string, 0, 4)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return "", p.streamError(ctx, err)
		}
		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "Metadata" {
			break
		}
		if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return "", ErrUnrecognized
	}
	return text, nil
}

func (p *DeepgramProvider) streamError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", p.Name(), ctxErr)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		// Deepgram closes with 1008 when it cannot decode the payload.
		status := http.StatusInternalServerError
		if closeErr.Code == websocket.ClosePolicyViolation {
			status = http.StatusBadRequest
		}
		return &ProviderError{Provider: p.Name(), StatusCode: status, Err: err}
	}
	return &ProviderError{Provider: p.Name(), Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
