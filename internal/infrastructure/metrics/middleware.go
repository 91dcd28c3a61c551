package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware collects HTTP request metrics. The route template is used as
// the path label so ids do not explode cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
