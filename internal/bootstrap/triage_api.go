package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"complaint_triage/adapter/in/http"
	"complaint_triage/config"
	"complaint_triage/core/port/out"
	"complaint_triage/infra/middleware"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/ratelimit"
)

// NewAPI builds the fiber app. The returned cleanup closes every connection.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return newApp(cfg, deps), cleanup, nil
}

// NewAPIWithDeps builds the fiber app over connections the caller owns.
func NewAPIWithDeps(cfg *config.Config, deps *Dependencies) *fiber.App {
	return newApp(cfg, deps)
}

func newApp(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json: 표준 encoding/json 대비 빠른 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.RequireJSON())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders: "X-Request-ID,Retry-After",
		MaxAge:        86400,
	}))

	// Health check (no auth required)
	health := http.NewHealthHandler(map[string]http.CheckFunc{
		"postgres": func(ctx context.Context) error { return deps.DB.Ping(ctx) },
		"postgres_pool": func(ctx context.Context) error {
			if h := metrics.AssessPool(deps.SQLDB.DB); h.Status == metrics.PoolUnhealthy {
				return errors.New("connection pool exhausted")
			}
			return nil
		},
	})
	if deps.Redis != nil {
		health.WithOptional("redis", func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() })
	}
	if deps.MongoDB != nil {
		health.WithOptional("mongodb", func(ctx context.Context) error { return deps.MongoDB.Ping(ctx, nil) })
	}
	health.Register(app)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, operator routes will reject every request")
	}
	auth := middleware.NewAuthenticator(cfg.JWTSecret, deps.Redis)
	limiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.IntakeRateLimit, time.Minute)

	var intake out.IntakeQueue
	if cfg.IntakeEnabled && deps.IntakeProducer != nil {
		intake = deps.IntakeProducer
	}

	api := app.Group("/api/v1")
	http.NewComplaintHandler(deps.TriageService, deps.TriageService, intake, deps.Keys).
		Register(api, auth.Middleware(), middleware.RateLimit(limiter, "intake"))
	http.NewAnalyticsHandler(deps.TriageService, deps.Metrics).Register(api)

	return app
}
