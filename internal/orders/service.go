package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns order state transitions after settlement.
type Service interface {
	GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	Fulfill(ctx context.Context, orderID uuid.UUID, event TransitionEvent) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyVerification(ctx context.Context, input VerificationInput) (*VerificationResult, error)
}

type service struct {
	repo         *Repository
	productsRepo *products.Repository
	tx           txRunner
	outbox       outboxPublisher
	now          func() time.Time
}

// NewService builds the orders service.
func NewService(repo *Repository, productsRepo *products.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:         repo,
		productsRepo: productsRepo,
		tx:           tx,
		outbox:       publisher,
		now:          time.Now,
	}, nil
}

// VerificationInput captures one payment determination, manual or automated.
type VerificationInput struct {
	OrderID uuid.UUID
	Action  enums.VerificationAction
	Actor   enums.VerificationActor
	// ActorID is nil for the system actor.
	ActorID          *uuid.UUID
	BankReference    *string
	GatewayPaymentID *string
	VerifiedAmount   decimal.Decimal
	Note             *string
}

// VerificationResult reports the post-verification order and whether this
// call actually changed anything. Replays of an already-paid order come
// back with Applied false and no new audit row.
type VerificationResult struct {
	Order   *models.Order
	Applied bool
}

// OrderStateEvent is the payload for post-settlement order transitions.
type OrderStateEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// GetForUser loads an order owned by the given user.
func (s *service) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForUser returns the user's orders, newest first.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Cancel cancels a pending order on behalf of its owner and restores the
// stock its settlement took, inside one transaction.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and user id are required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productsRepo := s.productsRepo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID == nil || *order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		nextStatus, nextPayment, err := Transition(order.Status, order.PaymentStatus, EventCancel)
		if err != nil {
			return err
		}

		items, err := repo.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := productsRepo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		order.Status = nextStatus
		order.PaymentStatus = nextPayment
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: &userID, Role: "customer"}
		if err := s.emitState(ctx, tx, enums.EventOrderCancelled, order, actor); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Fulfill advances the fulfillment leg (process, ship, deliver).
func (s *service) Fulfill(ctx context.Context, orderID uuid.UUID, event TransitionEvent) (*models.Order, error) {
	switch event {
	case EventProcess, EventShip, EventDeliver:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfillment event")
	}
	return s.applyEvent(ctx, orderID, event, enums.EventOrderUpdated)
}

// Refund runs the explicit refund path for a paid cancelled or delivered order.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.applyEvent(ctx, orderID, EventRefund, enums.EventOrderRefunded)
}

func (s *service) applyEvent(ctx context.Context, orderID uuid.UUID, event TransitionEvent, eventType enums.OutboxEventType) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		nextStatus, nextPayment, err := Transition(order.Status, order.PaymentStatus, event)
		if err != nil {
			return err
		}

		order.Status = nextStatus
		order.PaymentStatus = nextPayment
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return err
		}

		if err := s.emitState(ctx, tx, eventType, order, nil); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyVerification records one payment determination. Approvals mark the
// payment paid, stamp the paid timestamp, and append exactly one audit row.
// Approving an order that is already paid is a no-op so webhook retries and
// polling races cannot double-write; rejections leave the order available
// for another payment attempt.
func (s *service) ApplyVerification(ctx context.Context, input VerificationInput) (*VerificationResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown verification action")
	}
	if !input.Actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown verification actor")
	}
	if input.Actor == enums.VerificationActorAdmin && input.ActorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin verifications require the admin id")
	}

	result := &VerificationResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}

		if input.Action == enums.VerificationActionApprove && order.PaymentStatus == enums.PaymentStatusPaid {
			// replayed verification, nothing to change
			result.Order = order
			result.Applied = false
			return nil
		}

		event := EventMarkPaid
		eventType := enums.EventOrderPaid
		if input.Action == enums.VerificationActionReject {
			event = EventMarkFailed
			eventType = enums.EventOrderUpdated
		}

		nextStatus, nextPayment, err := Transition(order.Status, order.PaymentStatus, event)
		if err != nil {
			return err
		}

		order.Status = nextStatus
		order.PaymentStatus = nextPayment
		if input.Action == enums.VerificationActionApprove {
			paidAt := s.now()
			order.PaidAt = &paidAt
		}
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return err
		}

		audit := models.PaymentVerification{
			OrderID:          order.ID,
			Actor:            input.Actor,
			ActorID:          input.ActorID,
			Action:           input.Action,
			BankReference:    input.BankReference,
			GatewayPaymentID: input.GatewayPaymentID,
			VerifiedAmount:   input.VerifiedAmount,
			Note:             input.Note,
		}
		if err := repo.CreateVerification(ctx, &audit); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.ActorID, Role: string(input.Actor)}
		if err := s.emitState(ctx, tx, eventType, order, actor); err != nil {
			return err
		}

		result.Order, err = repo.FindByID(ctx, input.OrderID)
		result.Applied = true
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitState(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: OrderStateEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
		},
		Version: 1,
	})
}
