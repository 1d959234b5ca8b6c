// Command seclogd is the host security log monitoring daemon. It loads a
// YAML configuration file, opens the local SQLite store, tails the system
// log files it can read, runs the detection rule engine, serves the
// dashboard HTTP API, and shuts down gracefully on SIGTERM or SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seclog/agent/internal/config"
	"github.com/seclog/agent/internal/mock"
	"github.com/seclog/agent/internal/pipeline"
	"github.com/seclog/agent/internal/server/rest"
	"github.com/seclog/agent/internal/store"
)

func main() {
	configPath := flag.String("config", "/etc/seclog/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load and validate configuration; a missing file runs on defaults.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seclogd: %v\n", err)
		os.Exit(1)
	}

	// Initialise structured slog logger from config log level.
	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("config_path", *configPath),
		slog.String("database_path", cfg.Database.Path),
		slog.String("log_level", cfg.Logging.Level),
		slog.Bool("use_mock_data", cfg.UseMockData),
	)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.UseMockData {
		if _, _, err := mock.Seed(context.Background(), st, logger); err != nil {
			logger.Error("failed to seed mock data", slog.Any("error", err))
		}
	}

	pl := pipeline.New(st, cfg, logger)
	pl.Start()

	var apiServer *http.Server
	if *cfg.API.Enabled {
		srv := rest.NewServer(st, pl.Status, func() []rest.RuleStatus {
			catalog := pl.Engine().Catalog()
			rules := make([]rest.RuleStatus, 0, len(catalog))
			for _, r := range catalog {
				rules = append(rules, rest.RuleStatus{Name: r.Name(), Enabled: r.Enabled()})
			}
			return rules
		})
		router := rest.NewRouter(srv, rest.RouterConfig{
			JWTSecret:      cfg.API.JWTSecret,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Logger:         logger,
		})
		apiServer = &http.Server{
			Addr:         cfg.API.Addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("api server listening", slog.String("addr", cfg.API.Addr))
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("api server error", slog.Any("error", err))
			}
		}()
	}

	// Block until SIGTERM or SIGINT.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	// Graceful shutdown: HTTP server first so in-flight queries finish,
	// then the pipeline, then the store.
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown error", slog.Any("error", err))
		}
		cancel()
	}
	pl.Stop()
	if err := st.Close(); err != nil {
		logger.Warn("store close error", slog.Any("error", err))
	}

	logger.Info("seclogd exited cleanly")
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
