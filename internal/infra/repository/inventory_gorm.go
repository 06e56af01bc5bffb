package repository

import (
	"context"
	"math"
	"sort"

	"ordermgmt/internal/domain/model"
	repo "ordermgmt/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	//負数だと stock - qty で在庫が増える
	if qty <= 0 {
		return false, repo.ErrInvalidQuantity
	}

	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル）
// 同じ商品は合算し、ID順に更新する（ロック順を固定）
func (r *InventoryGormRepository) IncreaseStockBatch(ctx context.Context, deltas []repo.StockDelta) error {
	merged := map[string]int64{}
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		if d.Quantity <= 0 || merged[d.ProductID] > math.MaxInt64-d.Quantity {
			return repo.ErrInvalidQuantity
		}
		if _, ok := merged[d.ProductID]; !ok {
			ids = append(ids, d.ProductID)
		}
		merged[d.ProductID] += d.Quantity
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := r.db.WithContext(ctx).
			Model(&model.Product{}).
			Where("id = ?", id).
			Update("stock", gorm.Expr("stock + ?", merged[id]))

		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
	}
	return nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return err
	}
	return nil
}

func (r *InventoryGormRepository) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var adjs []model.InventoryAdjustment
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&adjs).Error
	if err != nil {
		return nil, err
	}
	return adjs, nil
}
