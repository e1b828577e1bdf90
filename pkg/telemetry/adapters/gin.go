package adapters

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/toyz/tracegen/pkg/telemetry"
)

// Gin returns middleware tracing every request on src's tracer provider
func Gin(src *telemetry.Source) gin.HandlerFunc {
	return otelgin.Middleware(src.Name(), otelgin.WithTracerProvider(src.TracerProvider()))
}
