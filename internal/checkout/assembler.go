package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wbenromdhane/tijara-backend/pkg/currency"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/types"
)

// AssembleInput is everything the assembler needs to build a persistable
// order payload. Monetary adjustments arrive in millimes and leave this
// package as scale-3 dinars exactly once.
type AssembleInput struct {
	UserID     *uuid.UUID
	GuestEmail *string
	GuestPhone *string

	Address       types.Address
	PaymentMethod enums.PaymentMethod
	Wholesale     bool

	ShippingMillimes int64
	FeeMillimes      int64
	DiscountMillimes int64

	Lines []AssembleLine
}

// AssembleLine pairs a loaded product row with the requested quantity.
type AssembleLine struct {
	Product  models.Product
	Quantity int
}

// AssembledOrder is the header plus item snapshots ready for insertion.
// Nothing here has touched storage yet.
type AssembledOrder struct {
	Header models.Order
	Items  []models.OrderItem
}

// Assemble validates the request and produces the order payload. Every new
// order starts at order status pending and payment status pending, whatever
// the payment method. The unit price is the wholesale price exactly when the
// order is flagged wholesale and the product carries one; line totals are
// computed from the persisted-unit price so there is a single rounding path.
func Assemble(input AssembleInput) (*AssembledOrder, error) {
	if input.UserID == nil {
		if input.GuestEmail == nil && input.GuestPhone == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest orders require an email or phone")
		}
	}
	if missing := input.Address.Validate(); missing != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is missing "+missing)
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.ShippingMillimes < 0 || input.FeeMillimes < 0 || input.DiscountMillimes < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "monetary adjustments must be non-negative")
	}

	items := make([]models.OrderItem, 0, len(input.Lines))
	subtotal := decimal.Zero
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantities must be positive")
		}
		product := line.Product
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available")
		}
		if product.WholesaleOnly && !input.Wholesale {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product is sold wholesale only")
		}

		unitPrice := product.RetailPrice
		wholesaleApplied := false
		if input.Wholesale && product.WholesalePrice != nil {
			unitPrice = *product.WholesalePrice
			wholesaleApplied = true
		}

		lineTotal := currency.LineTotal(unitPrice, line.Quantity)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, models.OrderItem{
			ID:               uuid.New(),
			ProductID:        product.ID,
			NameAr:           product.NameAr,
			NameFr:           product.NameFr,
			Image:            product.FirstImage(),
			UnitPrice:        unitPrice,
			Quantity:         line.Quantity,
			LineTotal:        lineTotal,
			WholesaleApplied: wholesaleApplied,
		})
	}

	shipping := currency.ToMajor(input.ShippingMillimes)
	fee := currency.ToMajor(input.FeeMillimes)
	discount := currency.ToMajor(input.DiscountMillimes)
	total := currency.TotalFromComponents(subtotal, shipping, fee, discount)

	header := models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		GuestEmail:      input.GuestEmail,
		GuestPhone:      input.GuestPhone,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		Subtotal:        subtotal,
		Shipping:        shipping,
		Fee:             fee,
		Discount:        discount,
		Total:           total,
		ShippingAddress: input.Address,
		Wholesale:       input.Wholesale,
	}

	return &AssembledOrder{Header: header, Items: items}, nil
}
