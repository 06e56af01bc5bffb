package handler

import (
	"context"
	"net/http"
	"time"

	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// OrderService は OrderUsecase のうちhandlerが使う部分
type OrderService interface {
	CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (model.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (model.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrdersByDateRange(ctx context.Context, start time.Time, end time.Time) ([]model.Order, error)
	GetOrdersByAmountRange(ctx context.Context, min decimal.Decimal, max decimal.Decimal) ([]model.Order, error)
}

type OrderHandler struct {
	uc OrderService
}

func NewOrderHandler(uc OrderService) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderCreateRequest struct {
	UserID string                   `json:"user_id"`
	Items  []usecase.OrderLineInput `json:"items"`
}

func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	o := g.Group("/orders")

	o.POST("", h.create)
	o.GET("", h.list)
	o.GET("/filter/date", h.byDate)
	o.GET("/filter/amount", h.byAmount)
	o.GET("/user/:userId", h.byUser)
	o.GET("/:id", h.detail)
	o.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), usecase.CreateOrderInput{
		UserID: req.UserID,
		Items:  req.Items,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	out, err := h.uc.GetAllOrders(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	out, err := h.uc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) byUser(c echo.Context) error {
	out, err := h.uc.GetOrdersByUser(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?startDate=...&endDate=...（RFC3339）
func (h *OrderHandler) byDate(c echo.Context) error {
	start, err := time.Parse(time.RFC3339, c.QueryParam("startDate"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid startDate"})
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("endDate"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid endDate"})
	}

	out, err := h.uc.GetOrdersByDateRange(c.Request().Context(), start, end)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) byAmount(c echo.Context) error {
	min, err := decimal.NewFromString(c.QueryParam("minAmount"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid minAmount"})
	}
	max, err := decimal.NewFromString(c.QueryParam("maxAmount"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid maxAmount"})
	}

	out, err := h.uc.GetOrdersByAmountRange(c.Request().Context(), min, max)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// キャンセル後の注文を読み直して返す
func (h *OrderHandler) cancel(c echo.Context) error {
	id := c.Param("id")

	if err := h.uc.CancelOrder(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
