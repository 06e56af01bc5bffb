package repository

import (
	"context"
	"time"

	"ordermgmt/internal/domain/model"
	repo "ordermgmt/internal/repository"

	"gorm.io/gorm"
)

type outboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) repo.OutboxRepository {
	return &outboxGormRepository{db: db}
}

func (r *outboxGormRepository) Enqueue(ctx context.Context, rec model.NotificationOutbox) error {
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	return nil
}

func (r *outboxGormRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]model.NotificationOutbox, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var recs []model.NotificationOutbox
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL AND dead_at IS NULL AND next_attempt_at <= ?", now).
		Order("id asc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *outboxGormRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"sent_at": at})
}

func (r *outboxGormRepository) MarkRetry(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"attempts":        attempts,
		"last_error":      lastErr,
		"next_attempt_at": next,
	})
}

func (r *outboxGormRepository) MarkDead(ctx context.Context, id int64, attempts int, lastErr string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"attempts":   attempts,
		"last_error": lastErr,
		"dead_at":    at,
	})
}

func (r *outboxGormRepository) update(ctx context.Context, id int64, cols map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.NotificationOutbox{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
