// Package api assembles the HTTP application: middleware, form pages, the
// JSON API and the live estimation socket.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/apartment-estimator/backend/internal/api/handlers"
	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/metrics"
	"github.com/apartment-estimator/backend/internal/middleware/ratelimit"
	"github.com/apartment-estimator/backend/internal/middleware/security"
	"github.com/apartment-estimator/backend/internal/middleware/validation"
	"github.com/apartment-estimator/backend/internal/web"
	"github.com/apartment-estimator/backend/pkg/config"
	"github.com/apartment-estimator/backend/pkg/logger"
)

type Deps struct {
	Service     *estimation.Service
	Renderer    *web.Renderer
	Server      config.ServerConfig
	RateLimit   config.RateLimitConfig
	DefaultCity string
	// Checks gate /api/v1/ready, keyed by dependency name.
	Checks map[string]handlers.Pinger
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// NewApp builds the fiber application. The returned stop function releases
// background resources and must be called after shutdown.
func NewApp(d Deps) (*fiber.App, func()) {
	app := fiber.New(fiber.Config{
		AppName:      "apartment-estimator",
		ReadTimeout:  time.Duration(d.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(d.Server.WriteTimeout) * time.Second,
		BodyLimit:    d.Server.BodyLimit,
	})

	estimateHandler := handlers.NewEstimateHandler(d.Service, d.Renderer, d.DefaultCity)
	referenceHandler := handlers.NewReferenceHandler(d.Service.Provider())
	healthHandler := handlers.NewHealthHandler(d.Checks)
	wsHandler := handlers.NewWebSocketHandler(d.Service)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: d.RateLimit.RequestsPerMinute,
		Logger:               logger.Log,
	})
	formLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: d.RateLimit.RequestsPerMinute,
		Logger:               logger.Log,
		OnLimit: func(c *fiber.Ctx) error {
			return estimateHandler.RenderError(c, fiber.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		},
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: d.Server.AllowedOrigins,
		IsDevelopment:  d.Server.Development,
	}))

	origins := "*"
	if len(d.Server.AllowedOrigins) > 0 {
		origins = strings.Join(d.Server.AllowedOrigins, ", ")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	formErrors := func(c *fiber.Ctx, status int, err error) error {
		return estimateHandler.RenderError(c, status, err.Error())
	}

	app.Get("/", estimateHandler.ShowForm)
	app.Post("/", formLimiter.Middleware(), validation.Middleware(validation.Config{
		Logger:  logger.Log,
		OnError: formErrors,
	}), estimateHandler.SubmitForm)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Post("/estimate", limiter.Middleware(), validation.Middleware(validation.Config{Logger: logger.Log}), estimateHandler.SubmitJSON)
	api.Get("/cities", referenceHandler.ListCities)
	api.Get("/models", referenceHandler.ListModels)
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/estimate", websocket.New(wsHandler.HandleConnection))

	return app, func() {
		limiter.Stop()
		formLimiter.Stop()
	}
}
