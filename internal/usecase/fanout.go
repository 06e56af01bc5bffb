package usecase

import (
	"context"
	"encoding/json"

	"ordermgmt/internal/domain/model"

	"go.uber.org/zap"
)

const (
	stageWebhook    = "webhook"
	stagePublish    = "publish"
	stageInvalidate = "invalidate"
	stageOutbox     = "outbox"
)

// fanOut は保存成功後の副作用。webhook → publish → キャッシュ無効化 の順。
// どれが失敗しても呼び出し元にはエラーを返さない。
func (u *OrderUsecase) fanOut(ctx context.Context, event model.LifecycleEvent, order model.Order) {
	//リクエストがキャンセルされても通知は続ける
	ctx = context.WithoutCancel(ctx)

	if err := u.notify(ctx, event, order); err != nil {
		u.sideEffectFailed(stageWebhook, event, order, err)
		u.enqueueRetry(ctx, model.OutboxChannelWebhook, event, order, err)
	}

	if err := u.publish(ctx, event, order); err != nil {
		u.sideEffectFailed(stagePublish, event, order, err)
		u.enqueueRetry(ctx, model.OutboxChannelQueue, event, order, err)
	}

	if err := u.invalidate(ctx, order); err != nil {
		u.sideEffectFailed(stageInvalidate, event, order, err)
	}
}

func (u *OrderUsecase) notify(ctx context.Context, event model.LifecycleEvent, order model.Order) error {
	if u.notifier == nil {
		return nil
	}
	ctx, cancel := u.bounded(ctx)
	defer cancel()
	return u.notifier.Notify(ctx, event, order)
}

func (u *OrderUsecase) publish(ctx context.Context, event model.LifecycleEvent, order model.Order) error {
	if u.publisher == nil {
		return nil
	}
	ctx, cancel := u.bounded(ctx)
	defer cancel()
	return u.publisher.Publish(ctx, string(event), order.ID, order)
}

// 注文本体・所有ユーザーの一覧・全件一覧のキーを消す
func (u *OrderUsecase) invalidate(ctx context.Context, order model.Order) error {
	if u.cache == nil {
		return nil
	}
	ctx, cancel := u.bounded(ctx)
	defer cancel()
	return u.cache.Delete(ctx,
		OrderCacheKey(order.ID),
		UserOrdersCacheKey(order.UserID),
		AllOrdersCacheKey,
	)
}

func (u *OrderUsecase) sideEffectFailed(stage string, event model.LifecycleEvent, order model.Order, err error) {
	u.metrics.SideEffectFailed(stage)
	u.log.Error("order side effect failed",
		zap.String("stage", stage),
		zap.String("event", string(event)),
		zap.String("order_id", order.ID),
		zap.Error(err))
}

// 失敗した通知をoutboxへ。ここでの失敗もログだけ
func (u *OrderUsecase) enqueueRetry(ctx context.Context, channel model.OutboxChannel, event model.LifecycleEvent, order model.Order, cause error) {
	if u.outbox == nil {
		return
	}

	payload, err := json.Marshal(order)
	if err != nil {
		u.sideEffectFailed(stageOutbox, event, order, err)
		return
	}

	now := u.clock.Now().UTC()
	rec := model.NotificationOutbox{
		Channel:       channel,
		Event:         event,
		OrderID:       order.ID,
		Payload:       string(payload),
		Attempts:      1,
		LastError:     cause.Error(),
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	ctx, cancel := u.bounded(ctx)
	defer cancel()
	if err := u.outbox.Enqueue(ctx, rec); err != nil {
		u.sideEffectFailed(stageOutbox, event, order, err)
	}
}
