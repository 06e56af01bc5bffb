package middleware

import (
	"strconv"
	"time"

	"ordermgmt/internal/observability"

	"github.com/labstack/echo/v4"
)

// ルート単位でリクエスト数とレイテンシを記録する。
func Metrics(m *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				//ステータスを確定させる（commit済みなら以降のc.Errorは何もしない）
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)

			m.Requests.WithLabelValues(route, c.Request().Method, status).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
			return err
		}
	}
}
