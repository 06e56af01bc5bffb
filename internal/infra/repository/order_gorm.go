package repository

import (
	"context"
	"time"

	"ordermgmt/internal/domain/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// 明細を挿入順で読み込む
func (r *OrderGormRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	})
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := r.withItems(ctx).Where("id = ?", orderID).First(&o).Error
	if err != nil {
		return model.Order{}, translateError(err)
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID string) ([]model.Order, error) {
	return r.list(r.withItems(ctx).Where("user_id = ?", userID))
}

func (r *OrderGormRepository) ListByDateRange(ctx context.Context, from time.Time, to time.Time) ([]model.Order, error) {
	return r.list(r.withItems(ctx).Where("created_at >= ? AND created_at <= ?", from.UTC(), to.UTC()))
}

func (r *OrderGormRepository) ListByAmountRange(ctx context.Context, min decimal.Decimal, max decimal.Decimal) ([]model.Order, error) {
	return r.list(r.withItems(ctx).Where("total_amount >= ? AND total_amount <= ?", min, max))
}

func (r *OrderGormRepository) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(r.withItems(ctx))
}

func (r *OrderGormRepository) list(q *gorm.DB) ([]model.Order, error) {
	var items []model.Order
	if err := q.Order("created_at desc").Order("id desc").Find(&items).Error; err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	//明細はOrderItemGormRepository.CreateBulkで入れる
	if err := r.db.WithContext(ctx).Omit("Items").Create(&order).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *OrderGormRepository) TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
