package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds the whole shutdown sequence
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc releases one resource
type ShutdownFunc func(context.Context) error

type shutdownHook struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager drains the API server first, then runs the registered
// hooks in parallel under one deadline
type ShutdownManager struct {
	logger  *logrus.Logger
	server  *http.Server
	timeout time.Duration
	signals chan os.Signal

	mu    sync.Mutex
	hooks []shutdownHook
}

// NewShutdownManager creates a manager for server. server may be nil.
func NewShutdownManager(logger *logrus.Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a named hook
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{name: name, fn: fn})
}

// Trigger starts the shutdown as if SIGTERM had been received
func (sm *ShutdownManager) Trigger() {
	select {
	case sm.signals <- syscall.SIGTERM:
	default:
	}
}

// WaitForShutdown blocks until SIGINT, SIGTERM or Trigger, then shuts
// everything down. The returned error joins every failed hook.
func (sm *ShutdownManager) WaitForShutdown() error {
	signal.Notify(sm.signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sm.signals)

	sig := <-sm.signals
	sm.logger.WithField("signal", sig.String()).Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API server shutdown error")
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		sm.logger.Info("API server stopped")
	}

	sm.mu.Lock()
	hooks := append([]shutdownHook(nil), sm.hooks...)
	sm.mu.Unlock()

	errs := make([]error, len(hooks))
	var g errgroup.Group
	for i, hook := range hooks {
		i, hook := i, hook
		g.Go(func() error {
			log := sm.logger.WithField("hook", hook.name)
			if err := hook.fn(ctx); err != nil {
				log.WithError(err).Error("Shutdown hook failed")
				errs[i] = fmt.Errorf("%s: %w", hook.name, err)
				return nil
			}
			log.Debug("Shutdown hook complete")
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, abandoning remaining hooks")
		return fmt.Errorf("shutdown timed out after %s", sm.timeout)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
