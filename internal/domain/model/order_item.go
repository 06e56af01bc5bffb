package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID                  string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID             string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID           string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Position            int             `gorm:"not null" json:"position"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	UnitPrice           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	TotalPrice          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_price"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
}

// quantity × unit price
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
