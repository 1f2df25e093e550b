package api

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Check is one dependency probed by /health.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// StoreCheck probes anything with a HealthCheck method.
func StoreCheck(name string, s interface {
	HealthCheck(ctx context.Context) error
}) Check {
	return Check{Name: name, Probe: s.HealthCheck}
}

// NATSCheck reports a disconnected or unresponsive NATS connection.
func NATSCheck(nc *nats.Conn) Check {
	return Check{Name: "nats", Probe: func(ctx context.Context) error {
		if nc == nil || !nc.IsConnected() {
			return nats.ErrConnectionClosed
		}
		return nc.FlushWithContext(ctx)
	}}
}

// RedisCheck pings the discount Redis.
func RedisCheck(rdb redis.Cmdable) Check {
	return Check{Name: "redis", Probe: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
}

// RegisterOps mounts /metrics and /health.
func RegisterOps(app *fiber.App, checks ...Check) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(2*time.Second, checks))
}

func healthHandler(timeout time.Duration, checks []Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			g       errgroup.Group
		)
		for _, chk := range checks {
			chk := chk
			g.Go(func() error {
				err := chk.Probe(ctx)
				res := "ok"
				if err != nil {
					res = err.Error()
				}
				mu.Lock()
				results[chk.Name] = res
				mu.Unlock()
				return err
			})
		}

		status := "ok"
		code := fiber.StatusOK
		if err := g.Wait(); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
