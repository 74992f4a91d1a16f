package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/pkg/currency"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/konnect"
)

// verifyLockTTL bounds how long a stuck verification can hold its lock.
const verifyLockTTL = 30 * time.Second

type gatewayClient interface {
	InitPayment(ctx context.Context, req konnect.InitPaymentRequest) (*konnect.InitPaymentResponse, error)
	GetPayment(ctx context.Context, paymentRef string) (*konnect.Payment, error)
}

type orderVerifier interface {
	ApplyVerification(ctx context.Context, input orders.VerificationInput) (*orders.VerificationResult, error)
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

// Service bridges orders to the Konnect gateway. Amounts cross the boundary
// in millimes; everything stored on our side stays in dinars.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	Verify(ctx context.Context, paymentRef string) (*VerifyResult, error)
}

type service struct {
	gateway    gatewayClient
	ordersRepo *orders.Repository
	verifier   orderVerifier
	idem       idempotencyStore
	webhookURL string
}

// NewService builds the payments service. The idempotency store is optional;
// without it concurrent verifications still converge through the database
// short-circuit, they just both hit the gateway.
func NewService(gateway gatewayClient, ordersRepo *orders.Repository, verifier orderVerifier, idem idempotencyStore, webhookURL string) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("order verifier required")
	}
	return &service{
		gateway:    gateway,
		ordersRepo: ordersRepo,
		verifier:   verifier,
		idem:       idem,
		webhookURL: webhookURL,
	}, nil
}

// InitiateInput identifies the order to pay and the customer details the
// gateway shows on its hosted page.
type InitiateInput struct {
	OrderID     uuid.UUID
	UserID      *uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}

// InitiateResult carries the hosted payment page for the storefront to
// redirect to.
type InitiateResult struct {
	PaymentRef string
	PayURL     string
}

// VerifyResult reports the order state after a verification attempt.
// Paid is true when the gateway confirmed the payment, whether on this call
// or on an earlier one.
type VerifyResult struct {
	Order         *models.Order
	Paid          bool
	GatewayStatus string
}

// Initiate registers a payment intent with the gateway and stores the
// returned reference on the order. Re-initiating a still-pending order
// replaces the reference, which abandons the previous hosted page.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.UserID != nil && (order.UserID == nil || *order.UserID != *input.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable online")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer payable")
	}

	resp, err := s.gateway.InitPayment(ctx, konnect.InitPaymentRequest{
		Amount:      currency.ToMinor(order.Total),
		OrderID:     order.OrderNumber,
		Description: "Tijara order " + order.OrderNumber,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Webhook:     s.webhookURL,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ordersRepo.SetPaymentRef(ctx, order.ID, resp.PaymentRef); err != nil {
		return nil, err
	}

	return &InitiateResult{PaymentRef: resp.PaymentRef, PayURL: resp.PayURL}, nil
}

// Verify resolves a gateway reference to its order and applies the outcome.
// The call is safe to repeat: an order that is already paid comes straight
// back without touching the gateway, and a completed payment is recorded at
// most once. Gateway transport failures surface as dependency errors so the
// caller can retry; any other gateway status leaves the order pending.
func (s *service) Verify(ctx context.Context, paymentRef string) (*VerifyResult, error) {
	if paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	order, err := s.ordersRepo.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return &VerifyResult{Order: order, Paid: true, GatewayStatus: konnect.StatusCompleted}, nil
	}

	if s.idem != nil {
		key := s.idem.IdempotencyKey("payment_verify", paymentRef)
		acquired, err := s.idem.SetNX(ctx, key, "1", verifyLockTTL)
		if err == nil && !acquired {
			// another verification holds the lock, report current state
			return &VerifyResult{Order: order, Paid: false, GatewayStatus: konnect.StatusPending}, nil
		}
		if err == nil {
			defer func() { _ = s.idem.Del(context.WithoutCancel(ctx), key) }()
		}
	}

	payment, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	if !payment.Completed() {
		return &VerifyResult{Order: order, Paid: false, GatewayStatus: payment.Status}, nil
	}

	result, err := s.verifier.ApplyVerification(ctx, orders.VerificationInput{
		OrderID:          order.ID,
		Action:           enums.VerificationActionApprove,
		Actor:            enums.VerificationActorSystem,
		GatewayPaymentID: &paymentRef,
		VerifiedAmount:   currency.ToMajor(payment.ReachedAmount),
	})
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Order: result.Order, Paid: true, GatewayStatus: payment.Status}, nil
}
