package handler

import (
	"context"
	"net/http"
	"strconv"

	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// AppErrorの種類でステータスを決める
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := usecase.AsAppError(err); ok {
		switch ae.Kind {
		case usecase.KindValidation:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ae.Message})
		case usecase.KindNotFound:
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: ae.Message})
		case usecase.KindInvalidState:
			return c.JSON(http.StatusConflict, ErrorResponse{Error: ae.Message})
		}
	}

	//500（原因は返さない）
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

type ProductService interface {
	CreateProduct(ctx context.Context, in usecase.CreateProductInput) (model.Product, error)
	GetProduct(ctx context.Context, productID string) (model.Product, error)
	SetStock(ctx context.Context, productID string, newStock int64, reason string) (model.Product, error)
	ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error)
}

// InventoryUpdateRequest は在庫更新の入力です。
type InventoryUpdateRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

// /products と在庫調整をまとめる
type ProductHandler struct {
	uc ProductService
}

// DI
func NewProductHandler(uc ProductService) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(g *echo.Group) {
	p := g.Group("/products")

	p.POST("", h.create)
	p.GET("/:id", h.detail)
	p.PUT("/:id/stock", h.updateStock)
	p.GET("/:id/adjustments", h.adjustments)
}

func (h *ProductHandler) create(c echo.Context) error {
	var req usecase.CreateProductInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	p, err := h.uc.CreateProduct(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) detail(c echo.Context) error {
	p, err := h.uc.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) updateStock(c echo.Context) error {
	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	p, err := h.uc.SetStock(c.Request().Context(), c.Param("id"), req.Stock, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) adjustments(c echo.Context) error {
	// limit（default 50）
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 || l > 200 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.uc.ListAdjustments(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
