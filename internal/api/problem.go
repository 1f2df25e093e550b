package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/fault"
	"github.com/Checker-Finance/catalog-api/internal/metrics"
	"github.com/Checker-Finance/catalog-api/pkg/logger"
)

const (
	// ContentTypeProblem is the media type of every error response body.
	ContentTypeProblem = "application/problem+json"

	titleNotFound  = "Resource not found"
	titleInvalid   = "Invalid request"
	titleInternal  = "Internal server error"
	detailInternal = "An error occurred while processing the request. Please try again later."
)

// Problem is the error body returned for every failed request.
type Problem struct {
	Status     int               `json:"status"`
	Title      string            `json:"title"`
	Detail     string            `json:"detail"`
	Instance   string            `json:"instance"`
	Extensions map[string]string `json:"extensions"`
}

type classified struct {
	status int
	title  string
	detail string
	kind   string
}

// classify decides the status and user-visible text for err. Internal
// failures never expose their message.
func classify(err error) classified {
	var fe *fault.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fault.KindNotFound:
			return classified{fiber.StatusNotFound, titleNotFound, fe.Message, fe.Kind.String()}
		case fault.KindInvalidArgument:
			return classified{fiber.StatusBadRequest, titleInvalid, fe.Message, fe.Kind.String()}
		}
		return internalProblem()
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
		return classified{fiberErr.Code, utils.StatusMessage(fiberErr.Code), fiberErr.Message, "transport"}
	}
	return internalProblem()
}

func internalProblem() classified {
	return classified{fiber.StatusInternalServerError, titleInternal, detailInternal, fault.KindInternal.String()}
}

// writeProblem renders err as a problem document.
func writeProblem(c *fiber.Ctx, err error, log *zap.Logger) error {
	p := classify(err)
	traceID := TraceIDOf(c)

	l := logger.FromContext(c.UserContext(), log).With(
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", p.status),
		zap.String("kind", p.kind),
		zap.Error(err),
	)
	if p.status >= fiber.StatusInternalServerError {
		l.Error("http.request_failed")
	} else {
		l.Warn("http.request_rejected")
	}
	metrics.IncFault(p.kind)

	body, encErr := c.App().Config().JSONEncoder(Problem{
		Status:     p.status,
		Title:      p.title,
		Detail:     p.detail,
		Instance:   c.Path(),
		Extensions: map[string]string{"traceId": traceID},
	})
	if encErr != nil {
		return encErr
	}
	c.Set(fiber.HeaderContentType, ContentTypeProblem)
	return c.Status(p.status).Send(body)
}

// responseStarted reports whether something was already written to the body.
func responseStarted(c *fiber.Ctx) bool {
	resp := c.Response()
	return resp.IsBodyStream() || len(resp.Body()) > 0
}
