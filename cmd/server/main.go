package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/config"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/metrics"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/server"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/stream"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/tunnel"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "tonev-server"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_connections", cfg.WebSocket.MaxConnections),
		slog.Duration("ping_interval", cfg.WebSocket.GetPingInterval()),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("chunk_size", cfg.Audio.ChunkSize),
		slog.String("engine_endpoint", cfg.Engine.Endpoint),
		slog.Bool("ngrok_enabled", cfg.Ngrok.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize synthesis engine client
	synth, err := engine.NewClient(engine.Config{
		Endpoint:        cfg.Engine.Endpoint,
		APIKey:          cfg.Engine.APIKey,
		Timeout:         cfg.Engine.GetTimeoutDuration(),
		MaxRetries:      cfg.Engine.MaxRetries,
		MaxConcurrent:   cfg.Engine.MaxConcurrent,
		DefaultVoice:    cfg.Engine.DefaultVoice,
		DefaultLanguage: cfg.Engine.DefaultLanguage,
	})
	if err != nil {
		logger.Error("Failed to create engine client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Engine client initialized",
		slog.String("endpoint", cfg.Engine.Endpoint),
		slog.Int("max_concurrent", cfg.Engine.MaxConcurrent),
	)

	// Initialize session manager
	sessionMgr := stream.NewManager(logger, appMetrics, synth, stream.Config{
		Capacity:     cfg.WebSocket.MaxConnections,
		PingInterval: cfg.WebSocket.GetPingInterval(),
		PingTimeout:  cfg.WebSocket.GetPingTimeout(),
		ChunkSize:    cfg.Audio.ChunkSize,
		Language:     cfg.Engine.DefaultLanguage,
		Bounds: protocol.Bounds{
			MinSpeed:      cfg.Engine.MinSpeed,
			MaxSpeed:      cfg.Engine.MaxSpeed,
			MaxTextLength: cfg.Audio.MaxTextLength,
			DefaultVoice:  cfg.Engine.DefaultVoice,
		},
	})
	logger.Info("Session manager initialized",
		slog.Int("capacity", cfg.WebSocket.MaxConnections),
	)

	// Start public tunnel (if enabled)
	var tun *tunnel.Manager
	if cfg.Ngrok.Enabled {
		tun = tunnel.NewManager(cfg.Ngrok, cfg.Server.Port, logger)
		publicURL, err := tun.Start(ctx)
		if err != nil {
			logger.Error("Failed to start tunnel", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Public tunnel established", slog.String("public_url", publicURL))
	}

	// Initialize and start HTTP server
	httpServer := server.NewHTTPServer(cfg, logger, sessionMgr, synth, tun, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Notify connected clients, then close sessions and join their goroutines
	sessionMgr.Broadcast(protocol.Success("Server shutting down"))
	sessionMgr.Stop()

	// Stop tunnel last
	if tun != nil {
		if err := tun.Stop(); err != nil {
			logger.Error("Error stopping tunnel", slog.String("error", err.Error()))
		}
	}

	// Final engine statistics
	stats := synth.GetStats()
	logger.Info("Final engine statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}
