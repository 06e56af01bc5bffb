package repository

import (
	"context"

	"ordermgmt/internal/domain/model"
)

// 在庫の増減1件分
type StockDelta struct {
	ProductID string
	Quantity  int64
}

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID string, newStock int64) error

	// 在庫が足りるときだけ減算（条件付きUPDATE 1本）
	DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（キャンセル）。同じ商品はまとめて1回で戻す
	IncreaseStockBatch(ctx context.Context, deltas []StockDelta) error

	// 調整履歴
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error)
}
