package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// リクエストのcontextに期限を付ける。usecase側の各呼び出しはさらに短い期限を持つ
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: d,
	})
}
