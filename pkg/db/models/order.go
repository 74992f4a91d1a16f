package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	"github.com/wbenromdhane/tijara-backend/pkg/types"
)

// Order is the settled header row. All monetary columns are dinars at scale
// 3, converted exactly once by pkg/currency before insert. The stored
// invariant is total = subtotal + shipping + fee - discount.
type Order struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	GuestEmail  *string    `gorm:"column:guest_email"`
	GuestPhone  *string    `gorm:"column:guest_phone"`
	OrderNumber string     `gorm:"column:order_number;not null;uniqueIndex:ux_orders_number"`

	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	Subtotal decimal.Decimal `gorm:"column:subtotal;type:numeric(12,3);not null"`
	Shipping decimal.Decimal `gorm:"column:shipping;type:numeric(12,3);not null"`
	Fee      decimal.Decimal `gorm:"column:fee;type:numeric(12,3);not null"`
	Discount decimal.Decimal `gorm:"column:discount;type:numeric(12,3);not null"`
	Total    decimal.Decimal `gorm:"column:total;type:numeric(12,3);not null"`

	ShippingAddress types.Address `gorm:"embedded;embeddedPrefix:ship_"`

	Wholesale bool `gorm:"column:wholesale;not null;default:false"`

	// PaymentRef holds the gateway correlation id for online orders. It is
	// a typed column rather than a metadata bag so verification can index
	// into it and the schema documents what is stored.
	PaymentRef *string `gorm:"column:payment_ref"`

	Items  []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt *time.Time  `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
