package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/config"
	"github.com/platinummonkey/adminkit/pkg/export"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

var (
	exportDir = flag.String("dir", getEnv("ADMINKIT_EXPORT_DIR", ""), "Export directory to clean (default: ADMINKIT_EXPORT_DIR or the configured one)")
	retention = flag.Duration("retention", 0, "Remove exports older than this (default: configured retention)")
	schedule  = flag.String("schedule", "", "Cron schedule for purges (default: configured schedule)")
	runOnce   = flag.Bool("run-once", false, "Purge once and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)

	dir := cfg.Export.Dir
	if *exportDir != "" {
		dir = *exportDir
	}
	keep := cfg.Export.Retention
	if *retention > 0 {
		keep = *retention
	}
	spec := cfg.Export.Schedule
	if *schedule != "" {
		spec = *schedule
	}

	// purging needs no search source
	exporter, err := export.NewExporter(nil, dir, export.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open export directory")
	}

	if *runOnce {
		if err := purge(exporter, keep, logger); err != nil {
			logger.WithError(err).Fatal("Purge failed")
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		if err := purge(exporter, keep, logger); err != nil {
			logger.WithError(err).Error("Purge failed")
		}
	})
	if err != nil {
		logger.WithError(err).WithField("schedule", spec).Fatal("Failed to schedule purge")
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"dir":       dir,
		"retention": keep.String(),
		"schedule":  spec,
	}).Info("adminkit janitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down janitor")
	<-c.Stop().Done()
}

func purge(exporter *export.Exporter, retention time.Duration, logger *logrus.Logger) error {
	start := time.Now()
	removed, err := exporter.Purge(retention)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(start).String(),
	}).Debug("purge run finished")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
