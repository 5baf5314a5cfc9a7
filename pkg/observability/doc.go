// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing
// for the session client and the mock auth service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("endpoint", "/profile/me/").Info("profile fetched")
//
// Request IDs attached with WithRequestID are picked up by ForContext.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordRefresh("success")
//
// A nil *Metrics records nothing, so components accept it as optional.
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "pulse-session",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
package observability
