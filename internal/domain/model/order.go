package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "Created"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// numeric(18,2)の上限
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// Created -> Cancelled のみ。Cancelled は終端。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusCreated && next == OrderStatusCancelled
}

type Order struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderNumber string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	UserID      string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null;index" json:"total_amount"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`

	//明細は作成時に確定（Positionの昇順 = 挿入順）
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// 明細合計の再計算。TotalAmountと一致するはず。
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}
