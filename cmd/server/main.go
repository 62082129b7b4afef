package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	syncapp "github.com/storesync/backend/internal/application/sync"
	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/commerce"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/ratelimit"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/infrastructure/storage"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
	"github.com/storesync/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/storesync/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			StoreSync Backend API
//	@version		1.0
//	@description	Commerce synchronization engine keeping a Wix storefront and a local commerce database consistent
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/storesync/backend
//	@contact.email	support@storesync.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

// Webhook deliveries are small JSON envelopes, so the intake group gets a
// much tighter body limit than the rest of the API.
const webhookMaxBodySize = 64 << 10

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

	log.Info("Starting StoreSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// OpenTelemetry providers; each one degrades to a no-op when disabled
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
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
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Tee application logs into the OTEL export pipeline when enabled
	if loggerProvider.IsEnabled() {
		bridgeLevel, perr := zapcore.ParseLevel(cfg.Log.Level)
		if perr != nil {
			bridgeLevel = zapcore.InfoLevel
		}
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          bridgeLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		log.Info("Log export to OTEL Collector enabled")
	}

	// Continuous profiling via Pyroscope
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingServer,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if cfg.Telemetry.ProfilingEnabled && tracerProvider.IsEnabled() {
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

	// Database query tracing and connection pool metrics
	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = meterProvider.IsEnabled()
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Initialize repositories and the local commerce store
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	attemptRepo := persistence.NewGormAttemptRepository(db.DB)
	cursorRepo := persistence.NewGormCursorRepository(db.DB)
	localStore := persistence.NewGormLocalStore(db.DB, cfg.Sync.DefaultWarehouse, cfg.Sync.DefaultPriceList)

	// Webhook dedupe store (Redis when reachable, in-memory otherwise)
	dedupeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	dedupeStore, err := dedupeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create webhook dedupe store", zap.Error(err))
	}

	// Wix platform adapter behind a client-side rate limit
	wixLimiter := ratelimit.New(cfg.Wix.RateLimitRPS, cfg.Wix.RateLimitBurst, cfg.Wix.RateLimitMaxWait)
	wixTokens := commerce.NewStaticTokenSource(cfg.Wix.APIKey)
	wixAdapter := commerce.NewWixAdapter(&cfg.Wix, wixTokens, wixLimiter)

	// Conflict resolution policy
	tieBreak, err := syncdomain.ParseTieBreak(cfg.Sync.TieBreak)
	if err != nil {
		log.Fatal("Invalid tie break rule", zap.String("tie_break", cfg.Sync.TieBreak), zap.Error(err))
	}
	resolver, err := syncdomain.NewResolver(tieBreak)
	if err != nil {
		log.Fatal("Failed to create conflict resolver", zap.Error(err))
	}

	// Sync orchestrator processes jobs pulled off the dispatcher queues
	orchestrator := syncapp.NewOrchestrator(mappingRepo, attemptRepo, wixAdapter, localStore, resolver, cfg.Sync, log)

	dispatcher, err := scheduler.NewDispatcher(scheduler.DispatcherConfig{
		Workers:    cfg.Sync.Workers,
		QueueSize:  cfg.Sync.QueueSize,
		JobTimeout: cfg.Sync.JobTimeout,
	}, orchestrator, log)
	if err != nil {
		log.Fatal("Failed to create job dispatcher", zap.Error(err))
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job dispatcher", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dispatcher.Stop(ctx); err != nil {
			log.Error("Error stopping job dispatcher", zap.Error(err))
		}
	}()
	log.Info("Job dispatcher started",
		zap.Int("workers", cfg.Sync.Workers),
		zap.Int("queue_size", cfg.Sync.QueueSize),
	)

	// Initialize application services
	feedService := syncapp.NewChangeFeedService(wixAdapter, localStore, cursorRepo, dispatcher, cfg.Sync, cfg.Wix.PageSize, log)
	orchestratorService := syncapp.NewOrchestratorService(mappingRepo, attemptRepo, dispatcher, feedService, cfg.Sync, log)

	archiveStore, err := storage.NewArchiveStore(context.Background(), cfg.Retention, log)
	if err != nil {
		log.Fatal("Failed to initialize attempt archive store", zap.Error(err))
	}
	retentionService := syncapp.NewRetentionService(attemptRepo, archiveStore, cfg.Retention, log)

	statusService := syncapp.NewStatusService(mappingRepo, attemptRepo, dispatcher, orchestratorService, wixLimiter)
	webhookService := syncapp.NewWebhookIngestService(cfg.Wix.WebhookSecret, dedupeStore, dispatcher, cfg.Sync, log)
	adminService := syncapp.NewMappingAdminService(mappingRepo, log)

	// Identity service for API clients
	jwtService := auth.NewJWTService(cfg.JWT)

	// Background triggers: entity polls, retry sweeps and retention passes
	if cfg.Scheduler.Enabled {
		pollConfig := scheduler.DefaultPollTriggerConfig()
		pollConfig.RetryScanInterval = cfg.Scheduler.RetryScanInterval
		pollConfig.RetentionInterval = cfg.Scheduler.RetentionInterval
		pollConfig.Polls = entityPolls(cfg.Sync)
		pollTrigger, err := scheduler.NewPollTrigger(pollConfig, feedService, orchestratorService, retentionService, log)
		if err != nil {
			log.Fatal("Failed to create poll trigger", zap.Error(err))
		}
		if err := pollTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start poll trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pollTrigger.Stop(ctx); err != nil {
				log.Error("Error stopping poll trigger", zap.Error(err))
			}
		}()
		log.Info("Poll trigger started",
			zap.Int("entity_polls", len(pollConfig.Polls)),
			zap.Duration("retry_scan_interval", pollConfig.RetryScanInterval),
			zap.Duration("retention_interval", pollConfig.RetentionInterval),
		)
	}

	// Sync gauges and counters exported through OTEL
	if meterProvider.IsEnabled() {
		syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:         meterProvider.Meter(telemetry.TracerName),
			Logger:        log,
			StatsProvider: telemetry.NewGormMappingStatsProvider(db.DB),
			QueueProvider: dispatcher,
		})
		if err != nil {
			log.Warn("Failed to create sync metrics", zap.Error(err))
		} else {
			syncMetrics.StartPeriodicCollection(context.Background(), time.Minute)
			defer syncMetrics.Stop()
		}
	}

	// Initialize HTTP handlers
	syncHandler := handler.NewSyncHandler(statusService, orchestratorService)
	mappingHandler := handler.NewMappingHandler(adminService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	authHandler := handler.NewAuthHandler(jwtService)

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

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing - Open a span per request
	// 3. Metrics - Record request counts and latencies
	// 4. Profiling - Label profiles with route information
	// 5. Recovery - Catch panics
	// 6. Logger - Log requests
	// 7. Security - Add security headers
	// 8. CORS - Handle cross-origin requests
	// 9. BodyLimit - Limit request body size
	// 10. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter(telemetry.TracerName), meterProvider.IsEnabled()))
	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = cfg.Telemetry.ProfilingEnabled
	engine.Use(middleware.ProfilingWithConfig(profilingCfg))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// JWT authentication middleware shared by the API routes and the
	// Swagger gate. Webhook deliveries authenticate by signature instead
	// and are listed as a skip prefix.
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	// Swagger documentation endpoint behind its protection rules
	swaggerProtection := middleware.SwaggerProtection(middleware.SwaggerConfig{
		Enabled:     cfg.Swagger.Enabled,
		RequireAuth: cfg.Swagger.RequireAuth,
		AllowedIPs:  cfg.Swagger.AllowedIPs,
	}, jwtMiddleware)
	engine.GET("/swagger/*any", swaggerProtection, ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(jwtMiddleware)

	// Sync engine routes (status, activity, triggers)
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.GET("/status", syncHandler.GetStatus)
	syncRoutes.GET("/activity", syncHandler.GetActivity)
	syncRoutes.GET("/activity/timeline", syncHandler.GetActivityTimeline)
	syncRoutes.GET("/errors", syncHandler.GetErrors)
	syncRoutes.POST("/all", syncHandler.TriggerSyncAll)
	syncRoutes.POST("/retry-failed", syncHandler.TriggerRetryFailed)
	syncRoutes.POST("/one", syncHandler.TriggerSyncOne)

	// Mapping administration
	syncRoutes.GET("/mappings", mappingHandler.List)
	syncRoutes.GET("/mappings/:id", mappingHandler.Get)
	syncRoutes.POST("/mappings/:id/disable", mappingHandler.Disable)

	// Webhook intake (signature-verified, tighter body limit)
	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.Use(middleware.BodyLimit(webhookMaxBodySize))
	webhookRoutes.POST("/wix", webhookHandler.Receive)

	// Token issuance for API clients
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/token", authHandler.IssueToken)

	// Register all domain groups
	r.Register(syncRoutes).
		Register(webhookRoutes).
		Register(authRoutes)

	// Register system routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// entityPolls lists the poll schedule for every entity type enabled in config.
// Inventory polls most often since stock levels drift fastest.
func entityPolls(cfg config.SyncConfig) []scheduler.EntityPoll {
	polls := make([]scheduler.EntityPoll, 0, 4)
	if cfg.Inventory.Enabled {
		polls = append(polls, scheduler.EntityPoll{EntityType: syncdomain.EntityTypeInventoryLevel, Interval: cfg.Inventory.PollInterval})
	}
	if cfg.Products.Enabled {
		polls = append(polls, scheduler.EntityPoll{EntityType: syncdomain.EntityTypeProduct, Interval: cfg.Products.PollInterval})
	}
	if cfg.Customers.Enabled {
		polls = append(polls, scheduler.EntityPoll{EntityType: syncdomain.EntityTypeCustomer, Interval: cfg.Customers.PollInterval})
	}
	if cfg.Orders.Enabled {
		polls = append(polls, scheduler.EntityPoll{EntityType: syncdomain.EntityTypeOrder, Interval: cfg.Orders.PollInterval})
	}
	return polls
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
