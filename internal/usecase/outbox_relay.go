package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/observability"
	repo "ordermgmt/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type OutboxRelayConfig struct {
	Interval    time.Duration
	Batch       int
	MaxAttempts int

	// 1件の再送にかける上限
	Timeout time.Duration
}

// OutboxRelay は送信に失敗した通知を定期的に再送する。
type OutboxRelay struct {
	outbox    repo.OutboxRepository
	notifier  WebhookNotifier
	publisher EventPublisher
	clock     Clock
	log       *zap.Logger
	metrics   *observability.Metrics
	cfg       OutboxRelayConfig

	newBackOff func() backoff.BackOff
}

func NewOutboxRelay(
	outbox repo.OutboxRepository,
	notifier WebhookNotifier,
	publisher EventPublisher,
	clock Clock,
	log *zap.Logger,
	metrics *observability.Metrics,
	cfg OutboxRelayConfig,
) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInfraTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &OutboxRelay{
		outbox:    outbox,
		notifier:  notifier,
		publisher: publisher,
		clock:     clock,
		log:       log,
		metrics:   metrics,
		cfg:       cfg,
	}
	r.newBackOff = func() backoff.BackOff {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = cfg.Interval
		eb.MaxInterval = 30 * time.Minute
		eb.MaxElapsedTime = 0
		eb.Reset()
		return eb
	}
	return r
}

func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce は期限が来たものを1バッチ分送る。送れた件数を返す。
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	recs, err := r.outbox.FetchDue(ctx, r.clock.Now().UTC(), r.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}

	sent := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		if err := r.deliver(ctx, rec); err != nil {
			r.reschedule(ctx, rec, err)
			continue
		}

		if err := r.outbox.MarkSent(ctx, rec.ID, r.clock.Now().UTC()); err != nil {
			r.log.Error("outbox mark sent failed", zap.Int64("outbox_id", rec.ID), zap.Error(err))
			continue
		}
		r.metrics.OutboxDelivery(string(rec.Channel), "sent")
		sent++
	}
	return sent, nil
}

func (r *OutboxRelay) deliver(ctx context.Context, rec model.NotificationOutbox) error {
	var order model.Order
	if err := json.Unmarshal([]byte(rec.Payload), &order); err != nil {
		return backoff.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	switch rec.Channel {
	case model.OutboxChannelWebhook:
		return r.notifier.Notify(ctx, rec.Event, order)
	case model.OutboxChannelQueue:
		return r.publisher.Publish(ctx, string(rec.Event), order.ID, order)
	default:
		return backoff.Permanent(fmt.Errorf("unknown channel %q", rec.Channel))
	}
}

// 上限回数か恒久エラーならdead、それ以外は指数バックオフで次回時刻を決める
func (r *OutboxRelay) reschedule(ctx context.Context, rec model.NotificationOutbox, cause error) {
	attempts := rec.Attempts + 1
	now := r.clock.Now().UTC()

	var perm *backoff.PermanentError
	if errors.As(cause, &perm) || attempts >= r.cfg.MaxAttempts {
		if err := r.outbox.MarkDead(ctx, rec.ID, attempts, cause.Error(), now); err != nil {
			r.log.Error("outbox mark dead failed", zap.Int64("outbox_id", rec.ID), zap.Error(err))
			return
		}
		r.metrics.OutboxDelivery(string(rec.Channel), "dead")
		r.log.Error("outbox notification dead",
			zap.Int64("outbox_id", rec.ID),
			zap.String("order_id", rec.OrderID),
			zap.String("event", string(rec.Event)),
			zap.Int("attempts", attempts),
			zap.Error(cause))
		return
	}

	next := now.Add(r.retryDelay(attempts))
	if err := r.outbox.MarkRetry(ctx, rec.ID, attempts, cause.Error(), next); err != nil {
		r.log.Error("outbox mark retry failed", zap.Int64("outbox_id", rec.ID), zap.Error(err))
		return
	}
	r.metrics.OutboxDelivery(string(rec.Channel), "retry")
	r.log.Warn("outbox notification rescheduled",
		zap.Int64("outbox_id", rec.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause))
}

// attempts回目の失敗後の待ち時間
func (r *OutboxRelay) retryDelay(attempts int) time.Duration {
	b := r.newBackOff()
	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	if d == backoff.Stop || d <= 0 {
		d = r.cfg.Interval
	}
	return d
}
