package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pulseofpeople/sessionkit/pkg/authtest"
	"github.com/pulseofpeople/sessionkit/pkg/config"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
)

// Runs the in-memory auth service for local development against pulse-session
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	addr := flag.String("addr", cfg.Mock.Addr, "Address to listen on")
	prefix := flag.String("prefix", cfg.Mock.Prefix, "Path prefix the API is mounted under")
	logLevel := flag.String("log-level", cfg.Observability.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)

	opts := []authtest.Option{
		authtest.WithLogger(observability.NewLogger(observability.ParseLogLevel(*logLevel), os.Stderr)),
	}

	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, authtest.WithMetrics(observability.NewServerMetrics(registry)))
	}

	srv := authtest.New(opts...)
	if seedAccounts(srv, cfg.Mock.Accounts, logger) == 0 {
		logger.Info("No accounts seeded; register one via POST /auth/register/")
	}

	mux := http.NewServeMux()
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	p := strings.TrimRight(*prefix, "/")
	if p == "" {
		mux.Handle("/", srv)
	} else {
		mux.Handle(p+"/", http.StripPrefix(p, srv))
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := os.Getenv(config.ConfigFileEnv); path != "" {
		if err := watchAccounts(ctx, path, srv, logger); err != nil {
			logger.Warnf("Account hot reload disabled: %v", err)
		} else {
			logger.Infof("Watching %s for account changes", path)
		}
	}

	go func() {
		logger.Infof("Mock auth service listening on http://%s%s", *addr, p)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal, stopping mock auth service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
