package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", "json", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("query", "empSearch").Debug("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "empSearch", entry["query"])

	assert.Equal(t, logrus.InfoLevel, NewLogger("bogus", "text", &buf).GetLevel())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json", &buf)

	t.Run("adds identity fields", func(t *testing.T) {
		ctx := contextkeys.WithRequestID(context.Background(), "req-1")
		ctx = contextkeys.WithUserID(ctx, "alice")
		ctx = contextkeys.WithSpace(ctx, "acme")

		entry := FromContext(ctx, logger)
		assert.Equal(t, "req-1", entry.Data["request_id"])
		assert.Equal(t, "alice", entry.Data["user_id"])
		assert.Equal(t, "acme", entry.Data["space"])
	})

	t.Run("prefers stored entry", func(t *testing.T) {
		stored := logger.WithField("component", "api")
		ctx := WithLogger(context.Background(), stored)

		entry := FromContext(ctx, logger)
		assert.Equal(t, "api", entry.Data["component"])
	})

	t.Run("nil base uses standard logger", func(t *testing.T) {
		entry := FromContext(context.Background(), nil)
		assert.Equal(t, logrus.StandardLogger(), entry.Logger)
	})
}

func TestMetrics_RecordSearch(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordSearch("empSearch", "success", 20*time.Millisecond, 3)
	metrics.RecordSearch("empSearch", "success", 10*time.Millisecond, 1)
	metrics.RecordSearch("empSearch", "unauthorized", time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SearchExecutionsTotal.WithLabelValues("empSearch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchExecutionsTotal.WithLabelValues("empSearch", "unauthorized")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.SearchDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordSearch("q", "success", time.Second, 1)
		metrics.RecordExtensionMutation("add_field")
		metrics.RecordExport("q", "local")
		metrics.RecordPurge(3)
		metrics.UpdateCacheStats("fields", 1, 2, 3)
	})
}

func TestMetrics_Gauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.UpdateCacheStats("fields", 10, 4, 7)
	metrics.RecordPurge(2)
	metrics.RecordPurge(0)
	metrics.RecordExport("empSearch", "s3")

	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("fields")))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.CacheEntries.WithLabelValues("fields")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ExportFilesPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExportFilesTotal.WithLabelValues("empSearch", "s3")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/search/{query}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/empSearch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search/{query}", "418")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordExtensionMutation("create_extension")

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "adminkit_extension_mutations_total"))
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("healthy without dependencies", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "v1")
		status := checker.Check(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, "v1", status.Version)
	})

	t.Run("database ping", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

		status := NewHealthChecker(db, nil, "").Check(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down is unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status := NewHealthChecker(db, nil, "").Check(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Contains(t, status.Dependencies["database"].Message, "connection refused")
	})

	t.Run("redis down is degraded", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		status := NewHealthChecker(nil, client, "").Check(context.Background())
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})

	t.Run("extra checks", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "")
		checker.AddCheck("exports", false, func(ctx context.Context) error {
			return errors.New("read-only file system")
		})
		assert.Equal(t, StatusDegraded, checker.Check(context.Background()).Status)

		checker.AddCheck("catalogs", true, func(ctx context.Context) error {
			return errors.New("missing")
		})
		assert.Equal(t, StatusUnhealthy, checker.Check(context.Background()).Status)
	})
}

func TestHealthRoutes(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "")
	checker.AddCheck("catalogs", true, func(ctx context.Context) error {
		return errors.New("missing")
	})
	router := mux.NewRouter()
	RegisterHealthRoutes(router, checker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json", &buf)

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json", &buf)

	func() {
		defer RecoverPanic(logger, "worker")
		panic("boom")
	}()

	assert.Contains(t, buf.String(), "worker")
	assert.NoError(t, MustRecover(nil))
	assert.EqualError(t, MustRecover("bad"), "panic: bad")
}

func TestShutdownManager(t *testing.T) {
	logger := NewLogger("error", "json", &bytes.Buffer{})
	manager := NewShutdownManager(logger, nil, time.Second)

	var called []string
	done := make(chan struct{})
	manager.Register("cleanup", func(ctx context.Context) error {
		called = append(called, "cleanup")
		return nil
	})

	var err error
	go func() {
		err = manager.WaitForShutdown()
		close(done)
	}()
	manager.Trigger()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.NoError(t, err)
	assert.Equal(t, []string{"cleanup"}, called)
}

func TestShutdownManager_FuncError(t *testing.T) {
	logger := NewLogger("error", "json", &bytes.Buffer{})
	manager := NewShutdownManager(logger, nil, time.Second)
	manager.Register("db", func(ctx context.Context) error {
		return errors.New("flush failed")
	})
	manager.Register("cache", func(ctx context.Context) error { return nil })

	manager.Trigger()
	err := manager.WaitForShutdown()
	assert.EqualError(t, err, "db: flush failed")
}

func TestShutdownManager_Timeout(t *testing.T) {
	logger := NewLogger("error", "json", &bytes.Buffer{})
	manager := NewShutdownManager(logger, nil, 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	manager.Register("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	manager.Trigger()
	err := manager.WaitForShutdown()
	assert.ErrorContains(t, err, "timed out")
}

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger("error", "json", &bytes.Buffer{})
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestOTelMetrics(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry).WithOTel(m)
	assert.NotPanics(t, func() {
		metrics.RecordSearch("empSearch", "success", time.Millisecond, 1)
		m.RecordExportBytes(context.Background(), "empSearch", 128)
	})

	var nilMetrics *OTelMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordExportBytes(context.Background(), "q", 1)
	})
}
