package adapters

import (
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/toyz/tracegen/pkg/telemetry"
)

// Fiber returns middleware tracing every request on src's tracer provider.
// The span is renamed after the matched route once the handler has run.
func Fiber(src *telemetry.Source) fiber.Handler {
	return otelfiber.Middleware(
		otelfiber.WithServerName(src.Name()),
		otelfiber.WithTracerProvider(src.TracerProvider()),
	)
}
