package usecase

import (
	"context"
	"errors"
	"strings"

	"ordermgmt/internal/domain/model"
	repo "ordermgmt/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductUsecase は商品の登録と在庫の手動調整を扱う（注文の前提データ）。
type ProductUsecase struct {
	tx        repo.TransactionManager
	products  repo.ProductRepository
	inventory repo.InventoryRepository
	ids       IDGenerator
	clock     Clock
	log       *zap.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	inventory repo.InventoryRepository,
	ids IDGenerator,
	clock Clock,
	log *zap.Logger,
) *ProductUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductUsecase{
		tx:        tx,
		products:  products,
		inventory: inventory,
		ids:       ids,
		clock:     clock,
		log:       log,
	}
}

type CreateProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, in CreateProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewValidationError("name required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, NewValidationError("price must be >= 0")
	}
	if in.Price.GreaterThan(model.MaxAmount) {
		return model.Product{}, NewValidationError("price must be <= %s", model.MaxAmount.StringFixed(2))
	}
	if in.Stock < 0 {
		return model.Product{}, NewValidationError("stock must be >= 0")
	}

	now := u.clock.Now().UTC()
	p, err := u.products.Create(ctx, model.Product{
		ID:          u.ids.NewID(),
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Product{}, asInfrastructure("create product", err)
	}

	u.log.Info("product created", zap.String("product_id", p.ID), zap.Int64("stock", p.Stock))
	return p, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewValidationError("product id is required")
	}

	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewNotFoundError("product not found")
	}
	if err != nil {
		return model.Product{}, asInfrastructure("load product", err)
	}
	return p, nil
}

// SetStock は在庫を newStock にし、差分を調整履歴に残す。
func (u *ProductUsecase) SetStock(ctx context.Context, productID string, newStock int64, reason string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewValidationError("product id is required")
	}
	if newStock < 0 {
		return model.Product{}, NewValidationError("stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Product{}, NewValidationError("reason required")
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError("product not found")
		}
		if err != nil {
			return asInfrastructure("load product", err)
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFoundError("product not found")
			}
			return asInfrastructure("set stock", err)
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID: productID,
			Delta:     newStock - p.Stock,
			Reason:    reason,
			CreatedAt: u.clock.Now().UTC(),
		}); err != nil {
			return asInfrastructure("create adjustment", err)
		}

		p.Stock = newStock
		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}

	u.log.Info("stock updated",
		zap.String("product_id", productID),
		zap.Int64("stock", newStock),
		zap.String("reason", reason))
	return out, nil
}

func (u *ProductUsecase) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if strings.TrimSpace(productID) == "" {
		return []model.InventoryAdjustment{}, NewValidationError("product id is required")
	}

	adjs, err := u.inventory.ListAdjustments(ctx, productID, limit)
	if err != nil {
		return []model.InventoryAdjustment{}, asInfrastructure("list adjustments", err)
	}
	if adjs == nil {
		adjs = []model.InventoryAdjustment{}
	}
	return adjs, nil
}
