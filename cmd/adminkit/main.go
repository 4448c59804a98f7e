package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/app"
	"github.com/platinummonkey/adminkit/pkg/config"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(app.Version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("adminkit exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	a.RunBackground(ctx)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      a.Server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// probes and scraping live on their own port
	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, a.Health)
	if a.Registry != nil {
		healthRouter.Handle("/metrics", observability.MetricsHandler(a.Registry)).Methods(http.MethodGet)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthRouter,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("app", func(context.Context) error {
		cancel()
		return a.Close()
	})
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serve := func(name string, srv *http.Server) {
		logger.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).WithField("server", name).Error("Server failed")
			shutdown.Trigger()
		}
	}
	go serve("health", healthServer)
	go serve("api", server)

	logger.WithField("version", app.Version).Info("adminkit started")
	return shutdown.WaitForShutdown()
}
