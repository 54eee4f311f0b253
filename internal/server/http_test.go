package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/audio"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/config"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/metrics"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/stream"
)

func newTestAPI(t *testing.T) (*stream.Manager, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Engine.Endpoint = "http://unused.example"

	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	mock := engine.NewMock(24000)
	mock.SamplesPerChar = 64

	mgr := stream.NewManager(testLogger(), m, mock, stream.Config{
		Capacity:  10,
		ChunkSize: 512,
	})
	t.Cleanup(mgr.Stop)

	h := NewHTTPServer(cfg, testLogger(), mgr, mock, nil, m)
	srv := httptest.NewServer(h.router())
	t.Cleanup(srv.Close)

	return mgr, srv
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "components")
}

func TestStatusEndpoint(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body["server"])

	ngrok, ok := body["ngrok"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, ngrok["enabled"])
}

func TestVoicesEndpoint(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/voices")
	require.NoError(t, err)
	defer resp.Body.Close()

	var voices []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&voices))
	assert.Contains(t, voices, "default")
}

func TestSynthesizeEndpoint(t *testing.T) {
	_, srv := newTestAPI(t)

	body, _ := json.Marshal(map[string]interface{}{"text": "hello", "speed": 1.0})
	resp, err := http.Post(srv.URL+"/api/synthesize", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	samples, rate, err := audio.DecodeWAV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 24000, rate)
	assert.Len(t, samples, 5*64) // 5 chars at 64 samples each
}

func TestSynthesizeEndpointValidation(t *testing.T) {
	_, srv := newTestAPI(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "empty text", body: `{"text":""}`, code: http.StatusUnprocessableEntity},
		{name: "bad speed", body: `{"text":"hi","speed":9.0}`, code: http.StatusUnprocessableEntity},
		{name: "broken json", body: `{"text":`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/synthesize", "application/json",
				bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestSessionsEndpoints(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var listing struct {
		TotalSessions int                  `json:"total_sessions"`
		Sessions      []stream.SessionInfo `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Equal(t, 0, listing.TotalSessions)

	// Not found for unknown ids
	resp, err = http.Get(srv.URL + "/api/sessions/unknown-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
