package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/mediator"
	"github.com/Checker-Finance/catalog-api/internal/rate"
)

// Options configures the HTTP application.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int

	Logger  *zap.Logger
	Limiter *rate.Manager // nil disables rate limiting
	Checks  []Check
}

// NewApp builds the fiber application serving the product routes through m.
// Middleware order: trace id, problem translation, panic recovery, request
// metrics, rate limiting, routes.
func NewApp(m *mediator.Mediator, opts Options) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		IdleTimeout:           opts.IdleTimeout,
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(TraceID())
	app.Use(Problems(log))
	app.Use(recover.New())
	app.Use(RequestMetrics(log))

	RegisterOps(app, opts.Checks...)

	if opts.Limiter != nil {
		app.Use("/v1", RateLimit(opts.Limiter))
	}
	Mount(app, m, Routes())

	return app
}
