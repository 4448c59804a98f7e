package lov

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/observability"
)

// DefaultReloadDelay is how long the watcher waits for a burst of file
// events to settle before reloading
const DefaultReloadDelay = 200 * time.Millisecond

// Watcher keeps a Registry's catalogs in sync with a directory
type Watcher struct {
	dir      string
	registry *Registry
	delay    time.Duration
	log      *logrus.Logger
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, registry *Registry, delay time.Duration, log *logrus.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	if log == nil {
		log = logrus.New()
	}
	return &Watcher{dir: dir, registry: registry, delay: delay, log: log}
}

// Load reads the directory and replaces the registry's catalogs
func (w *Watcher) Load() error {
	catalogs, err := LoadCatalogDir(w.dir)
	if err != nil {
		return err
	}
	w.registry.ReplaceCatalogs(catalogs)
	w.log.WithFields(logrus.Fields{
		"dir":      w.dir,
		"catalogs": len(catalogs),
	}).Info("LOV catalogs loaded")
	return nil
}

// Run watches the directory until ctx is done. A reload that fails keeps
// the previously loaded catalogs.
func (w *Watcher) Run(ctx context.Context) error {
	defer observability.RecoverPanic(w.log, "lov.Watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	timer := time.NewTimer(w.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCatalogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.WithFields(logrus.Fields{
				"file": filepath.Base(event.Name),
				"op":   event.Op.String(),
			}).Debug("LOV catalog changed")
			timer.Reset(w.delay)
		case <-timer.C:
			if err := w.Load(); err != nil {
				w.log.WithError(err).Warn("LOV catalog reload failed, keeping previous catalogs")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("LOV watcher error")
		}
	}
}
