package adapters

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/toyz/tracegen/pkg/telemetry"
)

// Echo returns middleware tracing every request on src's tracer provider
func Echo(src *telemetry.Source) echo.MiddlewareFunc {
	return otelecho.Middleware(src.Name(), otelecho.WithTracerProvider(src.TracerProvider()))
}
