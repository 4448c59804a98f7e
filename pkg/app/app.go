package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/api"
	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/config"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/employees"
	"github.com/platinummonkey/adminkit/pkg/export"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/lov"
	"github.com/platinummonkey/adminkit/pkg/middleware"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
	"github.com/platinummonkey/adminkit/pkg/storage/memory"
	"github.com/platinummonkey/adminkit/pkg/storage/sqlstore"
)

// Version is stamped at build time
var Version = "dev"

// Seed spaces of the sample employees
const (
	SeedSpaceEven = "s1"
	SeedSpaceOdd  = "s2"
)

// statsInterval is how often cache and pool gauges are refreshed
const statsInterval = 15 * time.Second

// Backend is everything the services persist through. Both the memory
// store and sqlstore.DB satisfy it.
type Backend interface {
	extension.Repository
	extension.ValueRepository
	search.SettingsRepository
	search.Executor
	storage.RecordStore
	storage.TxRunner
}

// App holds the wired services of one adminkit process
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Backend   Backend
	Points    *extension.PointRegistry
	Meta      *extension.MetadataService
	Values    *extension.ValueStore
	Engine    *search.Engine
	LOV       *lov.Registry
	Watcher   *lov.Watcher
	Exporter  *export.Exporter
	Employees *employees.Service
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Health    *observability.HealthChecker
	RateLimit *middleware.RateLimitMiddleware
	Server    *api.Server

	db         *sqlstore.DB
	redis      *redis.Client
	fieldCache *cache.MemoryCache[int64, []*extension.Field]
	// in-process limiters whose idle buckets need sweeping
	localLimiters []*middleware.RateLimiter

	closeOnce sync.Once
}

// New builds every service from cfg. The caller owns the returned App and
// must Close it.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	if cfg.Observability.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = observability.NewMetrics(a.Registry)
		if cfg.Observability.OTelEnabled {
			otelMetrics, err := observability.NewOTelMetrics()
			if err != nil {
				return fmt.Errorf("failed to create otel metrics: %w", err)
			}
			a.Metrics.WithOTel(otelMetrics)
		}
	}

	if err := a.openBackend(ctx); err != nil {
		return err
	}
	if err := a.openRedis(); err != nil {
		return err
	}
	fields, err := a.openFieldCache()
	if err != nil {
		return err
	}

	a.Points = extension.NewPointRegistry()
	if path := cfg.Manifests.ExtensionPoints; path != "" {
		if err := a.Points.LoadPointManifest(path); err != nil {
			return err
		}
	}
	queries := search.NewRegistry(a.Points)
	if err := employees.Register(a.Points, queries); err != nil {
		return err
	}
	a.Points.Freeze()

	a.Meta = extension.NewMetadataService(a.Backend, a.Points, fields, nil, a.Logger)
	a.Values = extension.NewValueStore(a.Backend, a.Meta, a.Backend, a.Logger)
	saver := extension.NewSaver(a.Backend, a.Backend, a.Meta, a.Values)
	a.Employees = employees.NewService(saver, a.Points)

	settings := search.NewSettingsResolver(queries, a.Meta, a.Backend, a.Logger,
		search.WithDefaultPageSize(cfg.Search.DefaultPageSize))

	checker, err := a.loadChecker()
	if err != nil {
		return err
	}
	engineOpts := []search.EngineOption{
		search.WithMetadata(a.Meta),
		search.WithMetrics(a.Metrics),
		search.WithMaxPageSize(cfg.Search.MaxPageSize),
		search.WithLogger(a.Logger),
	}
	if checker != nil {
		engineOpts = append(engineOpts, search.WithAuthorizer(checker))
	}
	a.Engine = search.NewEngine(queries, settings, a.Backend, engineOpts...)

	a.LOV = lov.NewRegistry()
	if dir := cfg.Manifests.LOVDir; dir != "" {
		a.Watcher = lov.NewWatcher(dir, a.LOV, 0, a.Logger)
		if err := a.Watcher.Load(); err != nil {
			return err
		}
	}

	exportOpts := []export.Option{export.WithMetrics(a.Metrics), export.WithLogger(a.Logger)}
	if cfg.Export.Archive {
		archiver, err := export.NewS3Archiver(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		exportOpts = append(exportOpts, export.WithArchiver(archiver))
	}
	a.Exporter, err = export.NewExporter(a.Engine, cfg.Export.Dir, exportOpts...)
	if err != nil {
		return err
	}

	var sqlDB *sql.DB
	if a.db != nil {
		sqlDB = a.db.SQL()
	}
	a.Health = observability.NewHealthChecker(sqlDB, a.redis, Version)

	opts := api.Options{
		Meta:     a.Meta,
		Engine:   a.Engine,
		LOV:      a.LOV,
		Exporter: a.Exporter,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
		Registry: a.Registry,
		Health:   a.Health,
		Tracing:  cfg.Observability.OTelEnabled,
	}
	if checker != nil {
		opts.Checker = checker
	}
	if cfg.RateLimit.Enabled {
		a.RateLimit = a.newRateLimit()
		opts.RateLimit = a.RateLimit
	}
	a.Server = api.NewServer(opts)
	employees.NewHandlers(a.Employees).RegisterRoutes(a.Server.Router())

	if cfg.Manifests.Seed {
		if err := a.seed(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) openBackend(ctx context.Context) error {
	cfg := a.Config.Storage
	if cfg.Driver == "" || cfg.Driver == "memory" {
		a.Backend = memory.New()
		a.Logger.Info("Using in-memory storage")
		return nil
	}

	db, err := sqlstore.Open(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.db = db
	if err := db.RegisterTable(employees.Entity, employees.Table); err != nil {
		return err
	}
	if err := db.Migrate(ctx, employees.DDL, employees.IndexDDL); err != nil {
		return err
	}
	a.Backend = db
	a.Logger.WithField("driver", cfg.Driver).Info("Connected to SQL storage")
	return nil
}

// openRedis connects when a URL is configured. The field cache and the
// rate limiter share the client.
func (a *App) openRedis() error {
	cfg := a.Config.Storage
	if cfg.RedisURL == "" {
		return nil
	}
	client, err := cache.NewRedisClient(cache.RedisConfig{
		URL:        cfg.RedisURL,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxRetries: cfg.RedisMaxRetries,
		PoolSize:   cfg.RedisPoolSize,
	})
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

// openFieldCache builds the field-list cache: an LRU, backed by Redis when
// a URL is configured
func (a *App) openFieldCache() (cache.Cache[int64, []*extension.Field], error) {
	cfg := a.Config.Storage
	if !cfg.CacheEnabled {
		return nil, nil
	}
	a.fieldCache = cache.NewMemoryCache[int64, []*extension.Field](cfg.FieldCacheSize, cfg.FieldCacheTTL)
	if a.redis == nil {
		return a.fieldCache, nil
	}
	l2 := cache.NewRedisCache[int64, []*extension.Field](a.redis, "adminkit:fields:", cfg.FieldCacheTTL, a.Logger)
	return cache.NewTieredCache[int64, []*extension.Field](a.fieldCache, l2), nil
}

// newRateLimit shares budgets through Redis when it is configured and
// falls back to per-process buckets otherwise
func (a *App) newRateLimit() *middleware.RateLimitMiddleware {
	cfg := a.Config.RateLimit
	userCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.UserPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.UserBurst,
	}
	anonCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.AnonymousPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.AnonymousBurst,
	}

	if a.redis != nil {
		a.Logger.Info("Using Redis rate limiter")
		return middleware.NewRateLimitMiddleware(
			middleware.NewDistributedRateLimiter(a.redis, userCfg, "adminkit:ratelimit:user"),
			middleware.NewDistributedRateLimiter(a.redis, anonCfg, "adminkit:ratelimit:anon"),
			a.Logger,
		)
	}
	users := middleware.NewRateLimiter(userCfg)
	anonymous := middleware.NewRateLimiter(anonCfg)
	a.localLimiters = []*middleware.RateLimiter{users, anonymous}
	return middleware.NewRateLimitMiddleware(users, anonymous, a.Logger)
}

// loadChecker returns nil when no policy is configured, leaving the
// extension routes open
func (a *App) loadChecker() (*rbac.PolicyChecker, error) {
	path := a.Config.Manifests.Policy
	if path == "" {
		return nil, nil
	}
	policy, err := rbac.LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	a.Logger.WithField("policy", path).Info("RBAC policy loaded")
	return rbac.NewPolicyChecker(policy, a.Config.Manifests.PolicyCacheTTL, a.Logger), nil
}

// seed inserts the sample employees when none are stored yet
func (a *App) seed(ctx context.Context) error {
	err := a.Backend.Get(ctx, employees.Entity, 1, &employees.Employee{})
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFound(err) {
		return err
	}
	ctx = contextkeys.WithUserID(ctx, "seed")
	ids, err := a.Employees.Seed(ctx, SeedSpaceEven, SeedSpaceOdd)
	if err != nil {
		return fmt.Errorf("failed to seed employees: %w", err)
	}
	a.Logger.WithField("employees", len(ids)).Info("Seeded sample employees")
	return nil
}

// RunBackground starts the background loops. They stop when ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	for _, limiter := range a.localLimiters {
		limiter.StartCleanup(ctx)
	}
	if a.Watcher != nil && a.Config.Manifests.WatchLOV {
		go func() {
			if err := a.Watcher.Run(ctx); err != nil {
				a.Logger.WithError(err).Error("LOV watcher stopped")
			}
		}()
	}
	if a.Metrics != nil {
		go a.collectStats(ctx)
	}
}

func (a *App) collectStats(ctx context.Context) {
	defer observability.RecoverPanic(a.Logger, "app.collectStats")

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		a.publishStats()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) publishStats() {
	if a.fieldCache != nil {
		s := a.fieldCache.Stats()
		a.Metrics.UpdateCacheStats("fields", s.Hits, s.Misses, s.ItemCount)
	}
	if a.db != nil {
		a.Metrics.UpdateDBStats(a.db.Stats())
	}
}

// Close releases connections. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.redis != nil {
			if cerr := a.redis.Close(); cerr != nil {
				err = cerr
			}
		}
		if a.db != nil {
			if cerr := a.db.Close(); cerr != nil {
				err = cerr
			}
		}
	})
	return err
}
