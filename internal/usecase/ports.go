package usecase

import (
	"context"
	"time"

	"ordermgmt/internal/domain/model"
)

// TTL付きのキーバリュー。共有資源なので毎回失敗しうる前提で扱う。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// topicへpayloadをJSONで送る（fire-and-forget）
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload any) error
}

// ライフサイクルイベントのwebhook送信（best-effort）
type WebhookNotifier interface {
	Notify(ctx context.Context, event model.LifecycleEvent, order model.Order) error
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}
