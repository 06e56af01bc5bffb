package model

import "time"

// 通知の送り先
type OutboxChannel string

const (
	//webhookへのHTTP送信
	OutboxChannelWebhook OutboxChannel = "webhook"
	//メッセージキューへのpublish
	OutboxChannelQueue OutboxChannel = "queue"
)

// 送信に失敗した通知。リレーが後で再送する。
// 「どこへ」「何のイベントを」「どの注文で」「何回失敗したか」を残す。
type NotificationOutbox struct {
	ID      int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel OutboxChannel  `gorm:"type:varchar(20);not null;index" json:"channel"`
	Event   LifecycleEvent `gorm:"type:varchar(50);not null" json:"event"`
	OrderID string         `gorm:"type:varchar(36);not null;index" json:"order_id"`

	//注文のJSON
	Payload string `gorm:"type:text;not null" json:"payload"`

	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	NextAttemptAt time.Time  `gorm:"not null;index" json:"next_attempt_at"`
	SentAt        *time.Time `gorm:"index" json:"sent_at"`
	DeadAt        *time.Time `json:"dead_at"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}
