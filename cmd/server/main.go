package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"booking-service/internal/app"
	"booking-service/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL required")
	}

	pool, err := newPool(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	appInstance := &app.App{DB: pool, Log: logger}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err := app.NewSlotCache(redisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		defer cache.Close()
		appInstance.Cache = cache
	}

	if err := appInstance.Bootstrap(ctx); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}
	if os.Getenv("SEED_DEMO") == "1" {
		if err := appInstance.SeedDemo(ctx); err != nil {
			logger.Fatal("demo seed failed", zap.Error(err))
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), app.RequestLogger(logger))

	api := router.Group("/api")
	{
		// Public: guest-facing booking surface.
		api.GET("/users/:username", appInstance.GetUserHandler)
		api.GET("/users/:username/availability", appInstance.ListAvailabilityHandler)
		api.GET("/users/:username/overrides", appInstance.GetOverrideHandler)
		api.GET("/users/:username/event-types", appInstance.ListEventTypesHandler)
		api.GET("/users/:username/event-types/:slug", appInstance.GetEventTypeBySlugHandler)
		api.GET("/users/:username/slots", appInstance.GetSlotsHandler)
		api.POST("/bookings", appInstance.CreateBookingHandler)
		api.PATCH("/bookings/:id/cancel", appInstance.CancelBookingHandler)

		// Host dashboard, behind the bearer middleware.
		host := api.Group("", app.AuthMiddlewareFromEnv())
		{
			host.PUT("/users/:username/availability", appInstance.SetAvailabilityHandler)
			host.PUT("/users/:username/overrides", appInstance.PutOverrideHandler)
			host.DELETE("/users/:username/overrides", appInstance.DeleteOverrideHandler)
			host.POST("/users/:username/event-types", appInstance.CreateEventTypeHandler)
			host.PUT("/event-types/:id", appInstance.UpdateEventTypeHandler)
			host.DELETE("/event-types/:id", appInstance.DeleteEventTypeHandler)
			host.GET("/users/:username/bookings", appInstance.ListBookingsHandler)
			host.PATCH("/users/:username/timezone", appInstance.UpdateTimezoneHandler)
		}
	}

	server.Run(router, logger)
}

func newPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
