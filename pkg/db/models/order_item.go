package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem freezes what was sold: name, image, and the unit price actually
// charged. Immutable once the order is finalized; catalog edits never reach
// these rows.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`

	NameAr string `gorm:"column:name_ar;not null"`
	NameFr string `gorm:"column:name_fr;not null"`
	Image  string `gorm:"column:image"`

	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,3);not null"`
	Quantity         int             `gorm:"column:quantity;not null"`
	LineTotal        decimal.Decimal `gorm:"column:line_total;type:numeric(12,3);not null"`
	WholesaleApplied bool            `gorm:"column:wholesale_applied;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
