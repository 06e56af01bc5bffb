package repository

import (
	"context"
	"time"

	"ordermgmt/internal/domain/model"
)

// 再送待ちの通知の保存・取得の約束。
type OutboxRepository interface {
	Enqueue(ctx context.Context, rec model.NotificationOutbox) error

	//next_attempt_at <= now で未送信・未dead のものを古い順に
	FetchDue(ctx context.Context, now time.Time, limit int) ([]model.NotificationOutbox, error)

	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkRetry(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error
	MarkDead(ctx context.Context, id int64, attempts int, lastErr string, at time.Time) error
}
