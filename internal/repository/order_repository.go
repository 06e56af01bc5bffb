package repository

import (
	"context"
	"time"

	"ordermgmt/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 注文の永続化。取得系は明細(Items)を含めて返す。
// 一覧はすべて作成日時の新しい順。
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string) ([]model.Order, error)
	ListByDateRange(ctx context.Context, from time.Time, to time.Time) ([]model.Order, error)
	ListByAmountRange(ctx context.Context, min decimal.Decimal, max decimal.Decimal) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)

	//ヘッダのみ保存（明細はOrderItemRepository）
	Create(ctx context.Context, order model.Order) error

	//statusがfromのときだけtoへ更新する。更新できなければfalse
	TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error)
}
