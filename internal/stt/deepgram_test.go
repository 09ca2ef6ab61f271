package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func deepgramServer(t *testing.T, results []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		received := 0
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				received += len(data)
				continue
			}
			if strings.Contains(string(data), "CloseStream") {
				break
			}
		}
		if received == 0 {
			t.Errorf("server received no audio")
		}
		for _, text := range results {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"partial"}]}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"`+text+`"}]}}`))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeepgramProviderCollectsFinalResults(t *testing.T) {
	srv := deepgramServer(t, []string{"first part", "second part"})
	defer srv.Close()

	p, err := NewDeepgramProvider(DeepgramConfig{APIKey: "dg-key", Endpoint: wsURL(srv)})
	if err != nil {
		t.Fatal(err)
	}
	text, err := p.Recognize(context.Background(), make([]byte, 70*1024))
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if text != "first part second part" {
		t.Fatalf("text = %q", text)
	}
}

func TestDeepgramProviderSilenceIsUnrecognized(t *testing.T) {
	srv := deepgramServer(t, nil)
	defer srv.Close()

	p, _ := NewDeepgramProvider(DeepgramConfig{APIKey: "dg-key", Endpoint: wsURL(srv)})
	if _, err := p.Recognize(context.Background(), make([]byte, 1024)); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}

func TestDeepgramProviderRejectedHandshake(t *testing.T) {
	srv := deepgramServer(t, nil)
	defer srv.Close()

	p, _ := NewDeepgramProvider(DeepgramConfig{APIKey: "wrong", Endpoint: wsURL(srv)})
	_, err := p.Recognize(context.Background(), make([]byte, 1024))
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected ProviderError 401, got %v", err)
	}
}
