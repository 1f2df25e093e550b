package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/metrics"
	"github.com/Checker-Finance/catalog-api/internal/rate"
	"github.com/Checker-Finance/catalog-api/pkg/logger"
)

const (
	// HeaderTraceID carries the request trace id in both directions.
	HeaderTraceID = "X-Trace-Id"

	localTraceID  = "traceId"
	maxTraceIDLen = 128
)

// TraceID assigns the request trace id: the caller's X-Trace-Id when it is
// well formed, a fresh UUID otherwise. The id is echoed on the response and
// carried in the user context for logging.
func TraceID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		assignTraceID(c)
		return c.Next()
	}
}

func assignTraceID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localTraceID).(string); ok && id != "" {
		return id
	}
	id := c.Get(HeaderTraceID)
	if !validTraceID(id) {
		id = uuid.NewString()
	}
	c.Locals(localTraceID, id)
	c.SetUserContext(logger.WithTraceID(c.UserContext(), id))
	if len(c.Response().Header.Peek(HeaderTraceID)) == 0 {
		c.Set(HeaderTraceID, id)
	}
	return id
}

// TraceIDOf returns the trace id assigned to the request, or "".
func TraceIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localTraceID).(string)
	return id
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

// Problems turns any error returned further down the chain into a problem
// response. Nothing is rewritten once the body has been written.
func Problems(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		if responseStarted(c) {
			logger.FromContext(c.UserContext(), log).Warn("http.error_after_write",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return nil
		}
		return writeProblem(c, err, log)
	}
}

// ErrorHandler covers errors raised before the middleware chain runs, such
// as an oversized body rejected by the server.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		assignTraceID(c)
		if responseStarted(c) {
			return nil
		}
		return writeProblem(c, err, log)
	}
}

// RequestMetrics records request counters and latency and logs each request at debug.
func RequestMetrics(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = classify(err).status
		}
		route := routeLabel(c, err)
		method := c.Method()

		metrics.IncHTTPRequest(method, route, strconv.Itoa(status))
		metrics.ObserveDuration(metrics.HTTPRequestDuration, start, method, route)

		logger.FromContext(c.UserContext(), log).Debug("http.request",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func routeLabel(c *fiber.Ctx, err error) string {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code == fiber.StatusNotFound {
		return "unmatched"
	}
	return c.Route().Path
}

// RateLimit rejects requests beyond the per-IP budget of m with 429.
func RateLimit(m *rate.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Allow(c.IP()) {
			return fiber.ErrTooManyRequests
		}
		return c.Next()
	}
}
