package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	exportapp "github.com/shopsight/backend/internal/application/export"
	"github.com/shopsight/backend/internal/application/ingest"
	shopapp "github.com/shopsight/backend/internal/application/shop"
	"github.com/shopsight/backend/internal/infrastructure/auth"
	"github.com/shopsight/backend/internal/infrastructure/cache"
	"github.com/shopsight/backend/internal/infrastructure/config"
	"github.com/shopsight/backend/internal/infrastructure/logger"
	"github.com/shopsight/backend/internal/infrastructure/persistence"
	"github.com/shopsight/backend/internal/infrastructure/platform"
	"github.com/shopsight/backend/internal/infrastructure/scheduler"
	"github.com/shopsight/backend/internal/infrastructure/storage"
	"github.com/shopsight/backend/internal/infrastructure/telemetry"
	"github.com/shopsight/backend/internal/interfaces/http/handler"
	"github.com/shopsight/backend/internal/interfaces/http/middleware"
	"github.com/shopsight/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ShopSight Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers. Each constructor degrades to a no-op when disabled,
	// so the rest of the wiring does not branch on the flag.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Tee application logs into the OTel pipeline alongside stdout
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Continuous profiling via Pyroscope
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilerEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerEndpoint,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
		ProfileMutexCount: true,
		ProfileBlockCount: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Query tracing and DB metrics hook into GORM via callbacks
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: cfg.App.Env == "production",
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Error("Failed to register database tracing", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled {
		meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
		dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
			PoolStatsInterval:  15 * time.Second,
		}, log)
		if err != nil {
			log.Error("Failed to initialize database metrics", zap.Error(err))
		} else {
			if sqlDB, derr := db.DB.DB(); derr == nil {
				dbMetrics.SetSQLDB(sqlDB)
				dbMetrics.StartPoolStatsCollection(ctx)
			}
			if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
				log.Error("Failed to register database metrics callbacks", zap.Error(err))
			}
			defer dbMetrics.Stop()
		}
	}

	// Repositories
	shopRepo := persistence.NewGormShopRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)

	// Platform client and result fetcher. Raw result files are archived to
	// object storage when configured; otherwise the fetch path skips the tee.
	platformClient := platform.NewClient(&cfg.Platform, log)

	var archive platform.ArchiveSink
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3ExportArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize result archive", zap.Error(err))
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure archive bucket", zap.Error(err))
		}
		archive = s3Archive
		log.Info("Result file archival enabled", zap.String("bucket", s3Archive.GetBucket()))
	} else {
		archive = storage.NewNoopArchive()
	}

	fetcher := platform.NewJSONLFetcher(&cfg.Platform, &cfg.Ingest, archive, log)

	// Per-shop throttle state lives in Redis so multiple scheduler processes
	// share it; outside production an in-memory store is an acceptable fallback
	backoffFactory := cache.NewBackoffStoreFactory(
		cfg.Redis,
		cfg.Scheduler.BackoffBase,
		cfg.Scheduler.BackoffCap,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	backoffStore, err := backoffFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize backoff store", zap.Error(err))
	}

	// Application services
	ingestor := ingest.NewIngestor(customerRepo, orderRepo, productRepo, log)
	exportService := exportapp.NewService(shopRepo, jobRepo, platformClient, log)
	shopService := shopapp.NewService(shopRepo, exportService, log)
	poller := exportapp.NewPoller(exportapp.PollerConfig{
		MaxPollAttempts: cfg.Scheduler.MaxPollAttempts,
		MaxJobAge:       cfg.Scheduler.MaxJobAge,
	}, shopRepo, jobRepo, platformClient, fetcher, ingestor, backoffStore, log)

	// Export lifecycle metrics
	if cfg.Telemetry.Enabled {
		exportMetrics, err := telemetry.NewExportMetrics(telemetry.ExportMetricsConfig{
			Meter:       meterProvider.Meter(cfg.Telemetry.ServiceName),
			Logger:      log,
			JobProvider: telemetry.NewGormJobMetricsProvider(db.DB),
		})
		if err != nil {
			log.Error("Failed to initialize export metrics", zap.Error(err))
		} else {
			exportService.WithMetrics(exportMetrics)
			poller.WithMetrics(exportMetrics)
			exportMetrics.StartPeriodicCollection(ctx, time.Minute)
			defer exportMetrics.Stop()
		}
	}

	// Poll scheduler drives pending jobs to completion
	var enqueuer handler.ExportEnqueuer = noopEnqueuer{logger: log}
	if cfg.Scheduler.Enabled {
		pollScheduler, err := scheduler.NewPollScheduler(cfg.Scheduler, jobRepo, exportService, poller, backoffStore, log)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := pollScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start poll scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := pollScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping poll scheduler", zap.Error(err))
			}
		}()
		enqueuer = pollScheduler
	} else {
		log.Warn("Poll scheduler disabled; jobs will not advance in this process")
	}

	// Service token auth for the API surface
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	shopHandler := handler.NewShopHandler(shopService, enqueuer, log)
	exportJobHandler := handler.NewExportJobHandler(exportService)
	storeDataHandler := handler.NewStoreDataHandler(customerRepo, orderRepo, productRepo)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first: request ID, panic recovery, request
	// logging, security headers, CORS, body limit, rate limit, tracing,
	// metrics, profiling labels, then authentication
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter(cfg.Telemetry.ServiceName), true))
	}
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// All API routes require the service token except the ones a shop's
	// install flow or an uptime probe must reach
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
			"/api/v1/shops/connect",
		},
		Logger: log,
	}))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Shop connection lifecycle plus read access to the synced entity store
	shopRoutes := router.NewDomainGroup("shops", "/shops")
	shopRoutes.POST("/connect", shopHandler.Connect)
	shopRoutes.GET("", shopHandler.List)
	shopRoutes.GET("/:id", shopHandler.GetByID)
	shopRoutes.DELETE("/:id", shopHandler.Disconnect)
	shopRoutes.POST("/:id/exports", exportJobHandler.SubmitAll)
	shopRoutes.GET("/:id/data/counts", storeDataHandler.GetCounts)
	shopRoutes.GET("/:id/data/customers", storeDataHandler.GetCustomer)
	shopRoutes.GET("/:id/data/orders", storeDataHandler.GetOrder)
	shopRoutes.GET("/:id/data/products", storeDataHandler.GetProduct)

	// Export job submission and inspection
	exportRoutes := router.NewDomainGroup("exports", "/exports")
	exportRoutes.POST("", exportJobHandler.Submit)
	exportRoutes.GET("", exportJobHandler.List)
	exportRoutes.GET("/:id", exportJobHandler.GetByID)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(shopRoutes).
		Register(exportRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests first, then the deferred
	// stack drains the scheduler, metrics and telemetry exporters
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// noopEnqueuer stands in for the scheduler queue when the scheduler is
// disabled in this process
type noopEnqueuer struct {
	logger *zap.Logger
}

func (n noopEnqueuer) EnqueueExports(shopID uuid.UUID) error {
	n.logger.Warn("scheduler disabled, initial exports not queued",
		zap.String("shop_id", shopID.String()))
	return nil
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
