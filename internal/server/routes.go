package server

import (
	"net/http"

	"ordermgmt/internal/observability"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(observability.Handler(d.Gatherer)))
	}

	api := e.Group("/api")
	d.Orders.RegisterRoutes(api)
	d.Products.RegisterRoutes(api)
}
