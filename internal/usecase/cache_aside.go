package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ordermgmt/internal/domain/model"
	repo "ordermgmt/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const AllOrdersCacheKey = "all-orders"

func OrderCacheKey(orderID string) string {
	return "order:" + orderID
}

func UserOrdersCacheKey(userID string) string {
	return "user-orders:" + userID
}

func (u *OrderUsecase) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return model.Order{}, NewValidationError("order id is required")
	}

	return readThrough(ctx, u, OrderCacheKey(orderID),
		func(ctx context.Context) (model.Order, error) {
			o, err := u.orders.FindByID(ctx, orderID)
			if errors.Is(err, repo.ErrNotFound) {
				return model.Order{}, NewNotFoundError("order not found")
			}
			if err != nil {
				return model.Order{}, asInfrastructure("load order", err)
			}
			return o, nil
		},
		func(model.Order) bool { return true },
	)
}

func (u *OrderUsecase) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	if err := validateUserID(userID); err != nil {
		return []model.Order{}, err
	}

	return readThrough(ctx, u, UserOrdersCacheKey(userID),
		func(ctx context.Context) ([]model.Order, error) {
			orders, err := u.orders.ListByUserID(ctx, userID)
			if err != nil {
				return []model.Order{}, asInfrastructure("list user orders", err)
			}
			return orders, nil
		},
		nonEmpty,
	)
}

func (u *OrderUsecase) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	return readThrough(ctx, u, AllOrdersCacheKey,
		func(ctx context.Context) ([]model.Order, error) {
			orders, err := u.orders.ListAll(ctx)
			if err != nil {
				return []model.Order{}, asInfrastructure("list orders", err)
			}
			return orders, nil
		},
		nonEmpty,
	)
}

// 絞り込み検索はキーが定まらないのでキャッシュしない
func (u *OrderUsecase) GetOrdersByDateRange(ctx context.Context, start time.Time, end time.Time) ([]model.Order, error) {
	if start.IsZero() || end.IsZero() {
		return []model.Order{}, NewValidationError("start and end dates are required")
	}
	if end.Before(start) {
		return []model.Order{}, NewValidationError("end date must not be before start date")
	}

	ctx, cancel := u.bounded(ctx)
	defer cancel()

	orders, err := u.orders.ListByDateRange(ctx, start, end)
	if err != nil {
		return []model.Order{}, asInfrastructure("list orders by date", err)
	}
	return orders, nil
}

func (u *OrderUsecase) GetOrdersByAmountRange(ctx context.Context, min decimal.Decimal, max decimal.Decimal) ([]model.Order, error) {
	if min.IsNegative() {
		return []model.Order{}, NewValidationError("min amount must be >= 0")
	}
	if max.LessThan(min) {
		return []model.Order{}, NewValidationError("max amount must be >= min amount")
	}

	ctx, cancel := u.bounded(ctx)
	defer cancel()

	orders, err := u.orders.ListByAmountRange(ctx, min, max)
	if err != nil {
		return []model.Order{}, asInfrastructure("list orders by amount", err)
	}
	return orders, nil
}

func nonEmpty(orders []model.Order) bool {
	return len(orders) > 0
}

// readThrough はキャッシュ → なければload → cacheableなら保存。
// 同じキーの同時ミスは1回のloadにまとめる。
func readThrough[T any](ctx context.Context, u *OrderUsecase, key string, load func(context.Context) (T, error), cacheable func(T) bool) (T, error) {
	if v, ok := cacheGet[T](ctx, u, key); ok {
		return v, nil
	}

	res, err, _ := u.loads.Do(key, func() (any, error) {
		//相乗りした他の呼び出しがあるので、先頭のキャンセルに巻き込まない
		shared := context.WithoutCancel(ctx)
		lctx, cancel := u.bounded(shared)
		defer cancel()

		v, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if cacheable(v) {
			cacheSet(shared, u, key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// キャッシュの失敗はミス扱い（ログのみ）
func cacheGet[T any](ctx context.Context, u *OrderUsecase, key string) (T, bool) {
	var zero T
	if u.cache == nil {
		return zero, false
	}

	ctx, cancel := u.bounded(ctx)
	defer cancel()

	b, ok, err := u.cache.Get(ctx, key)
	if err != nil {
		u.metrics.CacheLookup("error")
		u.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if !ok {
		u.metrics.CacheLookup("miss")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		u.metrics.CacheLookup("error")
		u.log.Warn("cache entry undecodable, dropping", zap.String("key", key), zap.Error(err))
		_ = u.cache.Delete(ctx, key)
		return zero, false
	}
	u.metrics.CacheLookup("hit")
	return v, true
}

func cacheSet[T any](ctx context.Context, u *OrderUsecase, key string, v T) {
	if u.cache == nil {
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		u.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := u.bounded(ctx)
	defer cancel()

	if err := u.cache.Set(ctx, key, b, u.cacheTTL); err != nil {
		u.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
