// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
// Loggers are logrus loggers. Request-scoped entries travel in the context:
//
//	logger := observability.NewLogger("info", "json", os.Stdout)
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", id))
//	observability.FromContext(ctx, logger).Info("search executed")
//
// FromContext adds trace_id and span_id when the context carries a
// recording span.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordSearch("empSearch", "success", elapsed, len(rows))
//
// Recording methods are nil-safe so components can run without metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("exports", false, exportDirWritable)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "adminkit",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Graceful Shutdown
//
//	shutdown := observability.NewShutdownManager(logger, apiServer, 30*time.Second)
//	shutdown.Register("db", func(ctx context.Context) error { return db.Close() })
//	return shutdown.WaitForShutdown()
package observability
