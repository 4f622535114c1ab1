package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	catalogapp "github.com/storeops/backend/internal/application/catalog"
	returnsapp "github.com/storeops/backend/internal/application/returns"
	saleapp "github.com/storeops/backend/internal/application/sale"
	"github.com/storeops/backend/internal/domain/sale"
	"github.com/storeops/backend/internal/infrastructure/auth"
	"github.com/storeops/backend/internal/infrastructure/cache"
	"github.com/storeops/backend/internal/infrastructure/config"
	"github.com/storeops/backend/internal/infrastructure/logger"
	"github.com/storeops/backend/internal/infrastructure/persistence"
	"github.com/storeops/backend/internal/infrastructure/telemetry"
	"github.com/storeops/backend/internal/interfaces/http/handler"
	"github.com/storeops/backend/internal/interfaces/http/middleware"
	"github.com/storeops/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.Log)
	defer func() { _ = log.Sync() }()

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Telemetry
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	// Database
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	if cfg.App.Env == "production" {
		gormLogLevel = gormlogger.Silent
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.NewGormLogger(log, gormLogLevel))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)

	// Domain services
	resolver := sale.NewResolver(saleRepo, productRepo, returnRepo)

	// Application services
	returnService := returnsapp.NewReturnService(returnRepo, resolver, productRepo)
	approvalService := returnsapp.NewApprovalService(returnRepo, returnRepo)
	saleService := saleapp.NewSaleService(saleRepo)
	productService := catalogapp.NewProductService(productRepo)

	// Stats cache is best-effort: a missing Redis only disables caching
	if cfg.Stats.CacheEnabled {
		statsCache, err := cache.NewRedisReturnStatsCache(cfg.Redis, cfg.Stats.CacheTTL)
		if err != nil {
			log.Warn("Stats cache disabled", zap.Error(err))
		} else {
			defer func() { _ = statsCache.Close() }()
			returnService.SetStatsCache(statsCache)
			approvalService.SetStatsCache(statsCache)
			log.Info("Stats cache enabled", zap.Duration("ttl", cfg.Stats.CacheTTL))
		}
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT)

	// Handlers
	returnHandler := handler.NewReturnHandler(returnService, approvalService)
	saleHandler := handler.NewSaleHandler(saleService)
	productHandler := handler.NewProductHandler(productService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithHealthCheck(db.Ping),
	)
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		Logger:     log,
	}))
	r.Register(returnHandler)
	r.Register(saleHandler)
	r.Register(productHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

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
