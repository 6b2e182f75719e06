package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	analyticsCacheAdapter "view-analytics-service/internal/analytics/adapters/cache"
	analyticsHttp "view-analytics-service/internal/analytics/adapters/http/fiber"
	analyticsRepoPg "view-analytics-service/internal/analytics/adapters/postgres"
	"view-analytics-service/internal/analytics/adapters/scheduler"
	"view-analytics-service/internal/analytics/cache"
	analyticsPorts "view-analytics-service/internal/analytics/core/ports"
	analyticsUsecase "view-analytics-service/internal/analytics/core/usecase"
	"view-analytics-service/internal/platform/config"
	"view-analytics-service/internal/platform/database"
	"view-analytics-service/internal/platform/logger"
	"view-analytics-service/internal/storage/memory"
	viewsHttp "view-analytics-service/internal/views/adapters/http/fiber"
	viewsRepoPg "view-analytics-service/internal/views/adapters/postgres"
	viewsPorts "view-analytics-service/internal/views/core/ports"
	viewsUsecase "view-analytics-service/internal/views/core/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	_ "view-analytics-service/docs"
)

// @title View Analytics Service API
// @version 1.0
// @description Filtered analytics over blog view events: grouped counts, top-N rankings and performance over time.
// @BasePath /
func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()
	appLog = appLog.With(logger.String("service", cfg.Service.Name))

	ctx := context.Background()

	// Storage
	var (
		viewReader    analyticsPorts.ViewReaderPort
		summaryReader analyticsPorts.SummaryReaderPort
		viewWriter    viewsPorts.ViewWriterPort
		precalc       *scheduler.Scheduler
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		if cfg.Database.Fixtures != "" {
			if err := store.LoadFixturesFile(cfg.Database.Fixtures); err != nil {
				appLog.Error("Failed to load fixtures", logger.Error(err))
				os.Exit(1)
			}
		}
		viewReader, summaryReader, viewWriter = store, store, store

		// Nothing else can reach an in-process store, so summaries are
		// rebuilt here.
		precalcUC := analyticsUsecase.NewPrecalculateUseCase(store, store, appLog,
			analyticsUsecase.WithWorkers(cfg.Precalc.Workers))
		precalc, err = scheduler.New(precalcUC, cfg.Precalc.Schedule, cfg.Precalc.Days, appLog)
		if err != nil {
			appLog.Error("Failed to schedule precalculation", logger.Error(err))
			os.Exit(1)
		}

	default:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			appLog.Error("Failed to connect to postgres", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		analyticsDB := analyticsRepoPg.NewSQLDB(db)
		viewReader = analyticsRepoPg.NewViewRepository(analyticsDB)
		summaryReader = analyticsRepoPg.NewSummaryRepository(analyticsDB)
		viewWriter = viewsRepoPg.NewViewRepository(viewsRepoPg.NewSQLDB(db))
	}

	// Cache
	backend, closeCache := newCacheBackend(ctx, cfg.Cache, appLog)
	defer closeCache()
	resultCache := cache.NewLayer(backend, appLog)

	// Usecases
	queryUC := analyticsUsecase.NewQueryUseCase(viewReader, summaryReader,
		analyticsUsecase.WithCache(resultCache),
		analyticsUsecase.WithFilterLimits(cfg.Query.MaxFilterDepth, cfg.Query.MaxFilterNodes),
		analyticsUsecase.WithDefaultLimit(cfg.Query.DefaultTopLimit),
		analyticsUsecase.WithMaxLimit(cfg.Query.MaxTopLimit),
	)
	recordViewUC := viewsUsecase.NewRecordViewUseCase(viewWriter)

	// HTTP (Fiber) app + handlers
	app := fiber.New(fiber.Config{
		AppName:               cfg.Service.Name,
		DisableStartupMessage: !cfg.Service.Debug,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	analyticsHttp.NewAnalyticsHandler(queryUC, appLog).RegisterRoutes(app)
	viewsHttp.NewViewHandler(recordViewUC, appLog).RegisterRoutes(app)

	// Swagger
	app.Get("/docs/*", fiberSwagger.WrapHandler)

	if precalc != nil {
		precalc.Start()
	}

	// Graceful shutdown
	addr := ":" + strconv.Itoa(cfg.Service.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			appLog.Error("Fiber stopped", logger.Error(err))
		}
	}()

	appLog.Info("Server started",
		logger.String("addr", addr),
		logger.String("database", cfg.Database.Driver),
		logger.String("cache", cfg.Cache.Driver),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Error("Fiber shutdown error", logger.Error(err))
	}
	if precalc != nil {
		if err := precalc.Stop(shutdownCtx); err != nil {
			appLog.Warn("Precalculation still running at shutdown", logger.Error(err))
		}
	}

	appLog.Info("Server exiting")
}

// newCacheBackend builds the configured backend. An unreachable Redis is
// not fatal: the service starts without a cache.
func newCacheBackend(ctx context.Context, cfg config.CacheConfig, log logger.Logger) (cache.Backend, func()) {
	switch cfg.Driver {
	case config.DriverRedis:
		backend, err := analyticsCacheAdapter.NewRedisBackend(ctx, analyticsCacheAdapter.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
		if err != nil {
			log.Warn("Redis unavailable, running without result cache", logger.Error(err))
			return cache.Nop{}, func() {}
		}
		return backend, func() {
			if err := backend.Close(); err != nil {
				log.Warn("Closing redis failed", logger.Error(err))
			}
		}
	case config.DriverMemory:
		return analyticsCacheAdapter.NewMemoryBackend(cfg.MemorySize, cache.DefaultTTL), func() {}
	default:
		return cache.Nop{}, func() {}
	}
}
