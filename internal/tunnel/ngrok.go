// Package tunnel exposes the service through an ngrok public tunnel. The
// agent binary is started as a child process and its local API is used to
// discover active tunnels.
package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/config"
)

// Manager controls the ngrok agent process for one local port
type Manager struct {
	cfg    config.NgrokConfig
	port   int
	logger *slog.Logger

	httpClient *http.Client

	mu        sync.Mutex
	cmd       *exec.Cmd
	publicURL string
}

type agentTunnel struct {
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
}

type agentTunnelList struct {
	Tunnels []agentTunnel `json:"tunnels"`
}

// NewManager creates a tunnel manager for the given local port
func NewManager(cfg config.NgrokConfig, port int, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		port:       port,
		logger:     logger,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches the agent and waits for the public URL to appear on the
// agent API
func (m *Manager) Start(ctx context.Context) (string, error) {
	args := []string{"http", fmt.Sprintf("%d", m.port), "--log", "stdout", "--log-format", "json"}
	if m.cfg.Region != "" {
		args = append(args, "--region", m.cfg.Region)
	}

	cmd := exec.Command(m.cfg.Binary, args...)
	cmd.Env = os.Environ()
	if m.cfg.AuthToken != "" {
		cmd.Env = append(cmd.Env, "NGROK_AUTHTOKEN="+m.cfg.AuthToken)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ngrok agent: %w", err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.mu.Unlock()

	// The agent needs a moment to establish the tunnel; poll its API
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			_ = m.Stop()
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}

		tunnels, err := m.Tunnels(ctx)
		if err != nil || len(tunnels) == 0 {
			continue
		}

		m.mu.Lock()
		m.publicURL = tunnels[0]
		m.mu.Unlock()

		m.logger.Info("Ngrok tunnel established", slog.String("public_url", tunnels[0]))
		return tunnels[0], nil
	}

	_ = m.Stop()
	return "", fmt.Errorf("ngrok tunnel did not come up within 30s")
}

// Tunnels returns the public URLs of all active tunnels from the agent API
func (m *Manager) Tunnels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.APIAddr+"/api/tunnels", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent API request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent API returned status %d", resp.StatusCode)
	}

	var list agentTunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse agent API response: %w", err)
	}

	urls := make([]string, 0, len(list.Tunnels))
	for _, t := range list.Tunnels {
		urls = append(urls, t.PublicURL)
	}
	return urls, nil
}

// PublicURL returns the discovered public URL, empty until Start succeeds
func (m *Manager) PublicURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publicURL
}

// Stop terminates the agent process
func (m *Manager) Stop() error {
	m.mu.Lock()
	cmd := m.cmd
	m.cmd = nil
	m.publicURL = ""
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-waited
	}

	m.logger.Info("Ngrok tunnel closed")
	return nil
}
