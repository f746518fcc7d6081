package middleware

import (
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request count and latency. The route pattern is used as
// the path label to keep cardinality bounded.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, path, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
