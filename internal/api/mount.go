package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/catalog-api/internal/fault"
	"github.com/Checker-Finance/catalog-api/internal/mediator"
)

// Mount registers every route on r. Each request is built by the route,
// dispatched through m and written with the route's success status.
func Mount(r fiber.Router, m *mediator.Mediator, routes []Route) {
	for _, rt := range routes {
		r.Add(rt.Method, rt.Path, routeHandler(m, rt))
	}
}

func routeHandler(m *mediator.Mediator, rt Route) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := rt.Build(fiberBinder{c: c})
		if err != nil {
			return err
		}

		res, err := m.Dispatch(c.UserContext(), req)
		if err != nil {
			return err
		}

		if rt.Location != nil {
			if loc := rt.Location(res); loc != "" {
				c.Location(loc)
			}
		}
		if rt.Status == fiber.StatusNoContent {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Status(rt.Status).JSON(res)
	}
}

type fiberBinder struct {
	c *fiber.Ctx
}

func (b fiberBinder) Param(name string) string {
	return b.c.Params(name)
}

func (b fiberBinder) Decode(v any) error {
	body := b.c.Body()
	if len(body) == 0 {
		return fault.InvalidArgument("request body is required")
	}
	if err := b.c.App().Config().JSONDecoder(body, v); err != nil {
		return fault.InvalidArgument("malformed request body: %v", err)
	}
	return nil
}
