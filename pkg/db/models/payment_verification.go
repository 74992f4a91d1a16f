package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wbenromdhane/tijara-backend/pkg/enums"
)

// PaymentVerification is the append-only audit row written alongside every
// payment determination. Rows are never updated or deleted. Automated
// gateway verifications carry the system actor with a nil ActorID.
type PaymentVerification struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	Actor   enums.VerificationActor  `gorm:"column:actor;type:text;not null"`
	ActorID *uuid.UUID               `gorm:"column:actor_id;type:uuid"`
	Action  enums.VerificationAction `gorm:"column:action;type:text;not null"`

	BankReference    *string `gorm:"column:bank_reference"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`

	VerifiedAmount decimal.Decimal `gorm:"column:verified_amount;type:numeric(12,3);not null"`
	Note           *string         `gorm:"column:note"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
