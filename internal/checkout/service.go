package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/internal/cart"
	"github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/metrics"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
	"github.com/wbenromdhane/tijara-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes the atomic settlement transaction.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*Result, error)
}

// CheckoutInput is the settlement entry payload. Adjustment amounts are in
// millimes.
type CheckoutInput struct {
	UserID     *uuid.UUID
	GuestEmail *string
	GuestPhone *string

	Address       types.Address
	PaymentMethod enums.PaymentMethod
	Wholesale     bool

	ShippingMillimes int64
	FeeMillimes      int64
	DiscountMillimes int64

	Items []ItemInput

	// ClearCart drops the signed-in user's persisted cart once the order
	// commits, inside the same transaction.
	ClearCart bool
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Result is returned on a committed settlement.
type Result struct {
	OrderID     uuid.UUID
	OrderNumber string
	Order       *models.Order
}

type service struct {
	tx           txRunner
	productsRepo *products.Repository
	ordersRepo   *orders.Repository
	cartRepo     *cart.Repository
	outbox       outboxPublisher
	settlement   *metrics.SettlementMetrics
	maxItems     int
	now          func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	productsRepo *products.Repository,
	ordersRepo *orders.Repository,
	cartRepo *cart.Repository,
	publisher outboxPublisher,
	settlement *metrics.SettlementMetrics,
	maxItems int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if maxItems <= 0 {
		maxItems = 50
	}
	return &service{
		tx:           tx,
		productsRepo: productsRepo,
		ordersRepo:   ordersRepo,
		cartRepo:     cartRepo,
		outbox:       publisher,
		settlement:   settlement,
		maxItems:     maxItems,
		now:          time.Now,
	}, nil
}

// OrderCreatedEvent is emitted inside the settlement transaction.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Wholesale     bool                `json:"wholesale"`
	ItemCount     int                 `json:"item_count"`
	Total         string              `json:"total"`
}

// Execute runs assembly plus settlement as one all-or-nothing transaction:
// number assignment, header insert, locked stock re-check, item inserts,
// and stock decrements either all commit or none do.
func (s *service) Execute(ctx context.Context, input CheckoutInput) (*Result, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if len(input.Items) > s.maxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("orders are limited to %d items", s.maxItems))
	}

	requested := make(map[uuid.UUID]int, len(input.Items))
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantities must be positive")
		}
		if _, dup := requested[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order items")
		}
		requested[item.ProductID] = item.Quantity
		ids = append(ids, item.ProductID)
	}

	started := s.now()
	tier := metrics.TierLabel(input.Wholesale)

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productsRepo := s.productsRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		// Row locks up front; the quantities read here are the ones the
		// decision is made on, not whatever the client saw earlier.
		locked, err := productsRepo.LockForSettlement(ctx, ids)
		if err != nil {
			return err
		}
		if len(locked) != len(ids) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more products do not exist")
		}

		lines := make([]AssembleLine, 0, len(input.Items))
		for _, item := range input.Items {
			for _, product := range locked {
				if product.ID == item.ProductID {
					lines = append(lines, AssembleLine{Product: product, Quantity: item.Quantity})
					break
				}
			}
		}

		assembled, err := Assemble(AssembleInput{
			UserID:           input.UserID,
			GuestEmail:       input.GuestEmail,
			GuestPhone:       input.GuestPhone,
			Address:          input.Address,
			PaymentMethod:    input.PaymentMethod,
			Wholesale:        input.Wholesale,
			ShippingMillimes: input.ShippingMillimes,
			FeeMillimes:      input.FeeMillimes,
			DiscountMillimes: input.DiscountMillimes,
			Lines:            lines,
		})
		if err != nil {
			return err
		}

		for _, product := range locked {
			if qty := requested[product.ID]; product.StockQty < qty {
				return pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock for one or more items")
			}
		}

		number, err := NextOrderNumber(ctx, tx, s.now())
		if err != nil {
			return err
		}
		assembled.Header.OrderNumber = number

		if err := ordersRepo.CreateOrder(ctx, &assembled.Header); err != nil {
			return err
		}
		for i := range assembled.Items {
			assembled.Items[i].OrderID = assembled.Header.ID
		}
		if err := ordersRepo.CreateOrderItems(ctx, assembled.Items); err != nil {
			return err
		}

		for _, product := range locked {
			if err := productsRepo.DecrementStock(ctx, product.ID, requested[product.ID]); err != nil {
				return err
			}
		}

		if input.ClearCart && input.UserID != nil {
			cartRepo := s.cartRepo.WithTx(tx)
			if record, err := cartRepo.FindByUser(ctx, *input.UserID); err == nil {
				if err := cartRepo.ClearItems(ctx, record.ID); err != nil {
					return err
				}
			}
		}

		if err := s.emitOrderCreated(ctx, tx, assembled, input.UserID); err != nil {
			return err
		}

		order, err := ordersRepo.FindByID(ctx, assembled.Header.ID)
		if err != nil {
			return err
		}
		result = &Result{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Order:       order,
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsStockConflict(err) {
			s.settlement.IncStockConflict()
		}
		s.settlement.IncFailure(tier)
		return nil, err
	}

	s.settlement.ObserveDuration(tier, s.now().Sub(started))
	s.settlement.IncSuccess(tier)
	return result, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, assembled *AssembledOrder, userID *uuid.UUID) error {
	var actor *outbox.ActorRef
	if userID != nil {
		actor = &outbox.ActorRef{UserID: userID, Role: "customer"}
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   assembled.Header.ID,
		Actor:         actor,
		Data: OrderCreatedEvent{
			OrderID:       assembled.Header.ID,
			OrderNumber:   assembled.Header.OrderNumber,
			PaymentMethod: assembled.Header.PaymentMethod,
			Wholesale:     assembled.Header.Wholesale,
			ItemCount:     len(assembled.Items),
			Total:         assembled.Header.Total.StringFixed(3),
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
