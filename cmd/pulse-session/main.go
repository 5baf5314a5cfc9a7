package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulseofpeople/sessionkit/pkg/cli"
	"github.com/pulseofpeople/sessionkit/pkg/config"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Errorf("Failed to load configuration: %v", err)
		return 1
	}
	logger := setupLogger(cfg.Observability.LogLevel)

	// Setup signal handling so an interrupted request is cancelled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, cfg.Observability.Tracing(),
		observability.NewLogger(cfg.Observability.Level(), os.Stderr))
	if err != nil {
		logger.Warnf("Tracing disabled: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownTracing(shutdownCtx, tp, nil); err != nil {
			logger.Warnf("Failed to flush traces: %v", err)
		}
	}()

	env, err := cli.NewEnv(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		logger.Errorf("Failed to initialize session client: %v", err)
		return 1
	}
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warnf("Failed to close token store: %v", err)
		}
	}()

	if err := cli.NewRootCommand(env).Execute(os.Args[1:]); err != nil {
		logger.Error(err)
		return 1
	}
	return 0
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
