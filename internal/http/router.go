package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"

	"lpgen/internal/config"
	"lpgen/internal/metrics"
	"lpgen/internal/services"
)

// Pinger is the health surface of the optional job mirror.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	app    *fiber.App
	config *config.Config
	redis  *redis.Client
	logger *slog.Logger
}

// NewServer wires the API routes. mirror may be nil when no database is
// configured.
func NewServer(cfg *config.Config, svc services.JobService, mirror Pinger, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Inject config and the job service into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("jobs", svc)
		return c.Next()
	})

	app.Use(requestLogger(logger))
	app.Use(cors.New(cors.Config{AllowOrigins: "*"}))

	// Redis client for rate limiting and health checks
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		} else if logger != nil {
			logger.Warn("redis_url_invalid", "error", err)
		}
	}

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check the job mirror and Redis connectivity.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "disabled"
		if mirror != nil {
			if err := mirror.Ping(ctx); err != nil {
				dbStatus = "error"
			} else {
				dbStatus = "ok"
			}
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		status := "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status": status,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	api := app.Group("/api")
	registerAPIRoutes(api, rateLimitMiddleware(cfg, rdb))

	return &Server{
		app:    app,
		config: cfg,
		redis:  rdb,
		logger: logger,
	}
}

func registerAPIRoutes(group fiber.Router, rateMw fiber.Handler) {
	group.Post("/generate", rateMw, generateHandler)
	group.Get("/jobs", jobsListHandler)
	group.Get("/jobs/:id", jobStatusHandler)
	group.Post("/jobs/:id/retry", rateMw, jobRetryHandler)
	group.Get("/jobs/:id/download", jobDownloadHandler)
	group.Get("/jobs/:id/artifacts/:name", jobArtifactHandler)
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and closes the Redis client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.redis != nil {
		_ = s.redis.Close()
	}
	return err
}
