package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-backend/cart"
	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/revalidate"
	"storefront-backend/routes"
	"storefront-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load environment variables
	_ = config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Environment validation failed:", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "storefront-backend",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	for _, w := range cfg.Warnings() {
		logg.Warn(ctx, w)
	}

	fatal := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		os.Exit(1)
	}

	db, err := database.Connect(ctx, cfg, logg)
	if err != nil {
		fatal("failed to connect to database", err)
	}

	if err := database.Migrate(db); err != nil {
		fatal("failed to run migrations", err)
	}

	// Create default admin user if not exists
	created, err := database.CreateDefaultAdmin(db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logg.Error(ctx, "could not create default admin", err)
	} else if created {
		logg.Info(logg.WithField(ctx, "email", cfg.AdminEmail), "default admin created")
	}

	var pages revalidate.PageCache = revalidate.Noop{}
	var redisCache *revalidate.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = revalidate.NewRedisCache(ctx, cfg.RedisURL, cfg.PageCacheTTL, logg)
		if err != nil {
			fatal("failed to connect to redis", err)
		}
		pages = redisCache
	}

	carts, err := cart.NewService(cart.NewStore(db), cart.NewProductLookup(db), pages, logg)
	if err != nil {
		fatal("failed to build cart service", err)
	}

	tokens, err := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		fatal("failed to build token manager", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recoverer(logg), middleware.RequestLogger(logg), m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id", "X-Cache"},
		AllowCredentials: true,
	}))

	routes.SetupRoutes(r, routes.Deps{
		DB:           db,
		Carts:        carts,
		Tokens:       tokens,
		Pages:        pages,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		AuthLimiter:  middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, time.Minute, logg),
		CookieSecure: cfg.CookieSecure,
		Log:          logg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.Port), "server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("failed to start server", err)
		}
	}()

	<-ctx.Done()
	logg.Info(context.Background(), "shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "server forced to shutdown", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logg.Error(shutdownCtx, "error closing redis connection", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logg.Error(shutdownCtx, "error closing database connection", err)
		} else {
			logg.Info(shutdownCtx, "database connection closed")
		}
	}

	logg.Info(shutdownCtx, "server exited gracefully")
}
