package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ordermgmt/internal/handler"
	"ordermgmt/internal/middleware"
	"ordermgmt/internal/observability"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Deps struct {
	Orders   *handler.OrderHandler
	Products *handler.ProductHandler

	Log            *zap.Logger
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.Metrics(d.Metrics))
	if d.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(d.RequestTimeout))
	}

	RegisterRoutes(e, d)
	return &Server{e: e, log: d.Log}
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Start はShutdownされるまでブロックする
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
