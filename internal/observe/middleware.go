package observe

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EchoMiddleware returns an echo middleware that records request latency to
// [Metrics.HTTPRequestDuration], labelled by method and route path. The
// registered route pattern is used rather than the raw URL so that
// parameterised routes do not explode cardinality.
func EchoMiddleware(m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			m.HTTPRequestDuration.Record(c.Request().Context(), time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.String("method", c.Request().Method),
					attribute.String("path", path),
				),
			)
			return err
		}
	}
}
