package tunnel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/config"
)

func TestTunnels(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tunnels" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tunnels":[
			{"public_url":"https://abc123.ngrok.io","proto":"https"},
			{"public_url":"tcp://0.tcp.ngrok.io:12345","proto":"tcp"}
		]}`))
	}))
	defer agent.Close()

	m := NewManager(config.NgrokConfig{APIAddr: agent.URL}, 8000,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	tunnels, err := m.Tunnels(context.Background())
	if err != nil {
		t.Fatalf("Tunnels failed: %v", err)
	}
	if len(tunnels) != 2 {
		t.Fatalf("tunnel count = %d, want 2", len(tunnels))
	}
	if tunnels[0] != "https://abc123.ngrok.io" {
		t.Errorf("tunnel[0] = %q", tunnels[0])
	}
}

func TestTunnelsAgentDown(t *testing.T) {
	m := NewManager(config.NgrokConfig{APIAddr: "http://127.0.0.1:1"}, 8000,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := m.Tunnels(context.Background()); err == nil {
		t.Error("expected error with no agent running")
	}
}
