package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ai8future/perplexity-mcp/internal/config"
	"github.com/ai8future/perplexity-mcp/internal/mcpserver"
	"github.com/ai8future/perplexity-mcp/internal/openrouter"
	"github.com/ai8future/perplexity-mcp/internal/search"
)

// Build-time variables
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	healthCheck := flag.Bool("health-check", false, "Run HTTP health check and exit")
	flag.Parse()

	// If health check mode, run the check and exit
	if *healthCheck {
		if err := runHealthCheck(); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration first so we can configure logging from it
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	configureLogger(cfg.Logging)

	slog.Info("starting Perplexity MCP server",
		"version", Version,
		"commit", GitCommit,
		"build_time", BuildTime,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	relay, err := openrouter.NewClient(openrouter.Config{
		APIKey:  cfg.Upstream.APIKey,
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		slog.Error("failed to create OpenRouter client", "error", err)
		os.Exit(1)
	}

	// Probe the API key once at startup. A transient upstream outage should
	// not keep the server from coming up, so failures only warn.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := relay.ValidateKey(probeCtx); err != nil {
		slog.Warn("OpenRouter key validation failed", "error", err)
	} else {
		slog.Info("OpenRouter key validated")
	}
	probeCancel()

	srv := mcpserver.New(mcpserver.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		BearerToken: cfg.Auth.BearerToken,
		Version:     Version,
	}, search.NewService(relay))

	// Handle shutdown gracefully
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// configureLogger sets up the default slog logger based on config values
func configureLogger(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// runHealthCheck performs an HTTP health check against the /health endpoint
func runHealthCheck() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/health", host, cfg.Server.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}
