package instrument

import (
	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/metadata"
)

// Middleware sets up tracing for each request: it opens a root HTTP span,
// injects the instrumenter into the request context for downstream
// handlers, and echoes the trace ID back in a response header.
func Middleware(enabled bool, buffer *EventBuffer) fiber.Handler {
	var inst *DBInstrumenter
	if buffer != nil {
		inst = NewDBInstrumenter(buffer)
	}

	return func(c *fiber.Ctx) error {
		if !enabled || inst == nil {
			return c.Next()
		}

		ctx, span := inst.StartSpan(c.UserContext(), "http", "handler", "request")
		span.SetMetadata("method", c.Method())
		span.SetMetadata("path", c.Path())
		c.SetUserContext(WithInstrumenter(ctx, inst))
		c.Set("X-Trace-ID", span.TraceID())

		err := c.Next()

		// Auth middleware runs after this one, so the user is only known
		// once downstream completes.
		if user, ok := c.Locals("user").(*metadata.UserContext); ok && user != nil {
			span.SetMetadata("user_id", user.ID)
		}
		status := c.Response().StatusCode()
		span.SetMetadata("status_code", status)
		if status >= 400 {
			span.SetStatus("error")
		} else {
			span.SetStatus("ok")
		}
		span.End()

		return err
	}
}
