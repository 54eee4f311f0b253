package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/audio"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/config"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/metrics"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/stream"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/tunnel"
)

// EngineStats is implemented by synthesizers that expose request
// statistics (the HTTP engine client does; the mock does not)
type EngineStats interface {
	GetStats() engine.ClientStats
}

// HTTPServer provides the HTTP API: WebSocket endpoint, one-shot
// synthesis, and monitoring/management endpoints
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	manager *stream.Manager
	synth   engine.Synthesizer
	tunnel  *tunnel.Manager
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the HTTP server with all routes registered.
// tun may be nil when the public tunnel is disabled.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, manager *stream.Manager,
	synth engine.Synthesizer, tun *tunnel.Manager, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		manager:   manager,
		synth:     synth,
		tunnel:    tun,
		metrics:   m,
		startTime: time.Now(),
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		Handler:      h.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // synthesis responses can be slow
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// router builds the chi route tree
func (h *HTTPServer) router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	if h.config.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(h.config.Server.RateLimit, time.Minute))
	}

	ws := NewWSHandler(h.manager, h.logger, h.config.Server.AllowedOrigins, h.config.Audio.MaxTextLength)
	r.Get("/ws", ws.ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.withMetrics("/api/health", h.handleHealth))
		r.Get("/status", h.withMetrics("/api/status", h.handleStatus))
		r.Get("/voices", h.withMetrics("/api/voices", h.handleVoices))
		r.Post("/synthesize", h.withMetrics("/api/synthesize", h.handleSynthesize))
		r.Get("/sessions", h.withMetrics("/api/sessions", h.handleSessions))
		r.Get("/sessions/{id}", h.withMetrics("/api/sessions/{id}", h.handleSessionDetail))
	})

	return r
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /api/health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{
		"session_manager": map[string]interface{}{
			"status":          "running",
			"active_sessions": h.manager.ActiveCount(),
		},
	}

	if stats, ok := h.synth.(EngineStats); ok {
		s := stats.GetStats()
		components["engine"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  s.TotalRequests,
			"success_rate":    s.SuccessRate,
			"active_requests": s.ActiveRequests,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "tonev-server",
			"version": "1.0.0",
		},
		"components": components,
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStatus implements the /api/status endpoint including tunnel state
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ngrok := map[string]interface{}{
		"enabled": h.config.Ngrok.Enabled,
		"tunnels": []string{},
	}

	if h.tunnel != nil {
		ngrok["public_url"] = h.tunnel.PublicURL()

		tunnels, err := h.tunnel.Tunnels(r.Context())
		if err != nil {
			h.logger.Warn("Failed to query tunnels", slog.String("error", err.Error()))
		} else {
			ngrok["tunnels"] = tunnels
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": "running",
		"ngrok":  ngrok,
	})
}

// handleVoices implements the /api/voices endpoint
func (h *HTTPServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{"default", "male", "female"})
}

// synthesizeBody is the request body for one-shot HTTP synthesis
type synthesizeBody struct {
	Text  string   `json:"text"`
	Voice string   `json:"voice"`
	Speed *float64 `json:"speed"`
}

// handleSynthesize implements POST /api/synthesize: full synthesis
// returned as a WAV attachment
func (h *HTTPServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var body synthesizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body")
		return
	}

	// Same bounds as the streaming path
	req, err := protocol.ValidateSynthesize(&protocol.Message{
		Type:  protocol.TypeSynthesize,
		Text:  body.Text,
		Voice: body.Voice,
		Speed: body.Speed,
	}, protocol.Bounds{
		MinSpeed:      h.config.Engine.MinSpeed,
		MaxSpeed:      h.config.Engine.MaxSpeed,
		MaxTextLength: h.config.Audio.MaxTextLength,
		DefaultVoice:  h.config.Engine.DefaultVoice,
	})
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	take, err := h.synth.Synthesize(r.Context(), engine.Request{
		Text:     req.Text,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Language: h.config.Engine.DefaultLanguage,
	})
	if err != nil {
		h.logger.Error("Synthesis failed", slog.String("error", err.Error()))
		httpError(w, http.StatusInternalServerError, "SYNTHESIS_ERROR", "Speech synthesis failed")
		return
	}

	wavData, err := audio.EncodeWAV(take.Samples, take.SampleRate)
	if err != nil {
		h.logger.Error("WAV encoding failed", slog.String("error", err.Error()))
		httpError(w, http.StatusInternalServerError, "AUDIO_ERROR", "Audio encoding failed")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Disposition", "attachment; filename=speech.wav")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(wavData)))
	_, _ = w.Write(wavData)
}

// handleSessions implements the /api/sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_sessions": len(sessions),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessions,
	})
}

// handleSessionDetail implements the /api/sessions/{id} endpoint
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID required")
		return
	}

	session, exists := h.manager.Get(id)
	if !exists {
		httpError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, session.Info())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
