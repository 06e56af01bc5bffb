package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/observability"
	repo "ordermgmt/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL     = 30 * time.Minute
	DefaultInfraTimeout = 5 * time.Second

	//注文番号が衝突したときの作り直し回数
	maxOrderNumberAttempts = 3

	// 1行あたりの数量上限
	MaxLineQuantity = 1_000_000
)

var tracer = otel.Tracer("ordermgmt/usecase")

type OrderUsecaseDeps struct {
	Tx       repo.TransactionManager
	Orders   repo.OrderRepository
	Products repo.ProductRepository
	Outbox   repo.OutboxRepository // nilなら失敗した通知は捨てる

	Cache     Cache
	Publisher EventPublisher
	Notifier  WebhookNotifier

	IDs     IDGenerator
	Clock   Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics

	CacheTTL     time.Duration
	InfraTimeout time.Duration
}

// OrderUsecase は注文の作成/キャンセルと、その後の通知・キャッシュ無効化をまとめる。
type OrderUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	products repo.ProductRepository
	outbox   repo.OutboxRepository

	cache     Cache
	publisher EventPublisher
	notifier  WebhookNotifier

	ids     IDGenerator
	clock   Clock
	log     *zap.Logger
	metrics *observability.Metrics

	cacheTTL time.Duration
	timeout  time.Duration

	loads singleflight.Group
}

func NewOrderUsecase(d OrderUsecaseDeps) *OrderUsecase {
	if d.CacheTTL <= 0 {
		d.CacheTTL = DefaultCacheTTL
	}
	if d.InfraTimeout <= 0 {
		d.InfraTimeout = DefaultInfraTimeout
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &OrderUsecase{
		tx:        d.Tx,
		orders:    d.Orders,
		products:  d.Products,
		outbox:    d.Outbox,
		cache:     d.Cache,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		ids:       d.IDs,
		clock:     d.Clock,
		log:       d.Logger,
		metrics:   d.Metrics,
		cacheTTL:  d.CacheTTL,
		timeout:   d.InfraTimeout,
	}
}

type OrderLineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CreateOrderInput struct {
	UserID string
	Items  []OrderLineInput
}

func (u *OrderUsecase) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, u.timeout)
}

// CreateOrder は在庫確認 → 在庫引当+注文保存(1トランザクション) → 通知 の順で処理する。
func (u *OrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.lines", len(in.Items)),
	))
	defer span.End()

	if err := validateCreateInput(in); err != nil {
		return model.Order{}, fail(span, err)
	}

	//ここで落ちたら何も変更していない
	if err := u.ValidateOrder(ctx, in.Items); err != nil {
		return model.Order{}, fail(span, err)
	}

	var (
		order model.Order
		err   error
	)
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order, err = u.placeOrder(ctx, in)
		if !errors.Is(err, repo.ErrConflict) {
			break
		}
		u.log.Warn("order number collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		err = asInfrastructure("persist order", err)
		if IsKind(err, KindInfrastructure) {
			u.log.Error("create order failed", zap.String("user_id", in.UserID), zap.Error(err))
		}
		return model.Order{}, fail(span, err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	u.metrics.OrderCreated()
	u.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.String()))

	u.fanOut(ctx, model.EventOrderCreated, order)
	return order, nil
}

// ValidateOrder は全商品の存在と在庫を確認する（読み取りのみ）。
// 同じ商品が複数行にある場合は合計数量で判定する。
func (u *OrderUsecase) ValidateOrder(ctx context.Context, items []OrderLineInput) error {
	ctx, cancel := u.bounded(ctx)
	defer cancel()

	lines, err := aggregateLines(items)
	if err != nil {
		return err
	}

	for _, d := range lines {
		p, err := u.products.FindByID(ctx, d.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewValidationError("product %s not found", d.ProductID)
		}
		if err != nil {
			return asInfrastructure("load product", err)
		}
		if p.Stock < d.Quantity {
			return NewValidationError("insufficient stock for product %s", d.ProductID)
		}
	}
	return nil
}

func (u *OrderUsecase) placeOrder(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	ctx, cancel := u.bounded(ctx)
	defer cancel()

	var out model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now().UTC()
		order := model.Order{
			ID:        u.ids.NewID(),
			UserID:    in.UserID,
			Status:    model.OrderStatusCreated,
			CreatedAt: now,
			UpdatedAt: now,
		}
		order.OrderNumber = newOrderNumber(now, u.ids.NewID())

		//価格はこの時点のスナップショット
		items := make([]model.OrderItem, 0, len(in.Items))
		total := decimal.Zero
		for i, line := range in.Items {
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewValidationError("product %s not found", line.ProductID)
			}
			if err != nil {
				return asInfrastructure("load product", err)
			}

			item := model.OrderItem{
				ID:                  u.ids.NewID(),
				OrderID:             order.ID,
				ProductID:           line.ProductID,
				ProductNameSnapshot: p.Name,
				Position:            i,
				Quantity:            line.Quantity,
				UnitPrice:           p.Price,
				CreatedAt:           now,
			}
			item.TotalPrice = item.LineTotal()
			items = append(items, item)
			total = total.Add(item.TotalPrice)
		}

		//numeric(18,2)に収まらない金額は保存前に弾く
		if total.GreaterThan(model.MaxAmount) {
			return NewValidationError("order total exceeds %s", model.MaxAmount.StringFixed(2))
		}

		lines, err := aggregateLines(in.Items)
		if err != nil {
			return err
		}

		//在庫引当。条件付きUPDATEなので同時注文でもマイナスにならない
		for _, d := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, d.ProductID, d.Quantity)
			if err != nil {
				return asInfrastructure("reserve stock", err)
			}
			if !ok {
				return NewValidationError("insufficient stock for product %s", d.ProductID)
			}
		}

		order.TotalAmount = total
		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return err
			}
			return asInfrastructure("create order", err)
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
			return asInfrastructure("create order items", err)
		}

		order.Items = items
		out = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// CancelOrder は Created の注文を Cancelled にして在庫を戻す。
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "order.cancel", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	if strings.TrimSpace(orderID) == "" {
		return fail(span, NewValidationError("order id is required"))
	}

	cancelled, err := u.cancelInTx(ctx, orderID)
	if err != nil {
		err = asInfrastructure("cancel order", err)
		if IsKind(err, KindInfrastructure) {
			u.log.Error("cancel order failed", zap.String("order_id", orderID), zap.Error(err))
		}
		return fail(span, err)
	}

	u.metrics.OrderCancelled()
	u.log.Info("order cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("user_id", cancelled.UserID))

	u.fanOut(ctx, model.EventOrderCancelled, cancelled)
	return nil
}

func (u *OrderUsecase) cancelInTx(ctx context.Context, orderID string) (model.Order, error) {
	ctx, cancel := u.bounded(ctx)
	defer cancel()

	var out model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError("order not found")
		}
		if err != nil {
			return asInfrastructure("load order", err)
		}
		if !o.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return NewInvalidStateError("order is already cancelled")
		}

		now := u.clock.Now().UTC()

		//同時キャンセルはここで片方だけ通る
		ok, err := r.Orders().TransitionStatus(ctx, o.ID, model.OrderStatusCreated, model.OrderStatusCancelled, now)
		if err != nil {
			return asInfrastructure("update order status", err)
		}
		if !ok {
			return NewInvalidStateError("order is already cancelled")
		}

		//全明細の在庫をまとめて戻す
		deltas := make([]repo.StockDelta, 0, len(o.Items))
		for _, it := range o.Items {
			deltas = append(deltas, repo.StockDelta{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		if err := r.Inventory().IncreaseStockBatch(ctx, deltas); err != nil {
			return asInfrastructure("restore stock", err)
		}

		o.Status = model.OrderStatusCancelled
		o.UpdatedAt = now
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

func validateCreateInput(in CreateOrderInput) error {
	if err := validateUserID(in.UserID); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return NewValidationError("order must contain at least one item")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return NewValidationError("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return NewValidationError("item %d: quantity must be greater than 0", i)
		}
		if it.Quantity > MaxLineQuantity {
			return NewValidationError("item %d: quantity must be at most %d", i, MaxLineQuantity)
		}
	}
	return nil
}

func validateUserID(userID string) error {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || id == uuid.Nil {
		return NewValidationError("invalid user id")
	}
	return nil
}

// 商品ごとに数量を合算し、商品ID順に並べる（ロック順を固定）
// 合算がint64を超えると負数になって在庫が増えるので弾く
func aggregateLines(items []OrderLineInput) ([]repo.StockDelta, error) {
	sum := map[string]int64{}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, NewValidationError("quantity for product %s must be greater than 0", it.ProductID)
		}
		if sum[it.ProductID] > math.MaxInt64-it.Quantity {
			return nil, NewValidationError("total quantity for product %s is too large", it.ProductID)
		}
		sum[it.ProductID] += it.Quantity
	}

	out := make([]repo.StockDelta, 0, len(sum))
	for id, qty := range sum {
		out = append(out, repo.StockDelta{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ORD-YYYYMMDD-XXXXXXXX
func newOrderNumber(now time.Time, seed string) string {
	s := strings.ToUpper(strings.ReplaceAll(seed, "-", ""))
	if len(s) > 8 {
		s = s[:8]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), s)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
