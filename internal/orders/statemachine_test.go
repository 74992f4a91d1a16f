package orders

import (
	"testing"

	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
)

func TestTransitionHappyPaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		order       enums.OrderStatus
		payment     enums.PaymentStatus
		event       TransitionEvent
		wantOrder   enums.OrderStatus
		wantPayment enums.PaymentStatus
	}{
		{"verify pending order", enums.OrderStatusPending, enums.PaymentStatusPending, EventMarkPaid, enums.OrderStatusProcessing, enums.PaymentStatusPaid},
		{"verify processing order", enums.OrderStatusProcessing, enums.PaymentStatusPending, EventMarkPaid, enums.OrderStatusProcessing, enums.PaymentStatusPaid},
		{"cod collect after delivery", enums.OrderStatusDelivered, enums.PaymentStatusPending, EventMarkPaid, enums.OrderStatusDelivered, enums.PaymentStatusPaid},
		{"failed payment attempt", enums.OrderStatusPending, enums.PaymentStatusPending, EventMarkFailed, enums.OrderStatusPending, enums.PaymentStatusFailed},
		{"start fulfillment", enums.OrderStatusPending, enums.PaymentStatusPending, EventProcess, enums.OrderStatusProcessing, enums.PaymentStatusPending},
		{"ship paid order", enums.OrderStatusProcessing, enums.PaymentStatusPaid, EventShip, enums.OrderStatusShipped, enums.PaymentStatusPaid},
		{"deliver cod order", enums.OrderStatusShipped, enums.PaymentStatusPending, EventDeliver, enums.OrderStatusDelivered, enums.PaymentStatusPending},
		{"cancel pending order", enums.OrderStatusPending, enums.PaymentStatusPending, EventCancel, enums.OrderStatusCancelled, enums.PaymentStatusPending},
		{"cancel after failed payment", enums.OrderStatusPending, enums.PaymentStatusFailed, EventCancel, enums.OrderStatusCancelled, enums.PaymentStatusFailed},
		{"refund cancelled paid order", enums.OrderStatusCancelled, enums.PaymentStatusPaid, EventRefund, enums.OrderStatusRefunded, enums.PaymentStatusRefunded},
		{"refund delivered paid order", enums.OrderStatusDelivered, enums.PaymentStatusPaid, EventRefund, enums.OrderStatusRefunded, enums.PaymentStatusRefunded},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotOrder, gotPayment, err := Transition(tc.order, tc.payment, tc.event)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if gotOrder != tc.wantOrder || gotPayment != tc.wantPayment {
				t.Fatalf("got %s/%s, want %s/%s", gotOrder, gotPayment, tc.wantOrder, tc.wantPayment)
			}
		})
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		order   enums.OrderStatus
		payment enums.PaymentStatus
		event   TransitionEvent
	}{
		{"double mark paid", enums.OrderStatusProcessing, enums.PaymentStatusPaid, EventMarkPaid},
		{"mark paid after delivery settled", enums.OrderStatusDelivered, enums.PaymentStatusPaid, EventMarkPaid},
		{"cancel shipped order", enums.OrderStatusShipped, enums.PaymentStatusPending, EventCancel},
		{"cancel processing order", enums.OrderStatusProcessing, enums.PaymentStatusPending, EventCancel},
		{"cancel paid order", enums.OrderStatusPending, enums.PaymentStatusPaid, EventCancel},
		{"ship before processing", enums.OrderStatusPending, enums.PaymentStatusPending, EventShip},
		{"deliver before shipping", enums.OrderStatusProcessing, enums.PaymentStatusPaid, EventDeliver},
		{"backward move to processing", enums.OrderStatusShipped, enums.PaymentStatusPaid, EventProcess},
		{"refund unpaid order", enums.OrderStatusCancelled, enums.PaymentStatusPending, EventRefund},
		{"refund twice", enums.OrderStatusRefunded, enums.PaymentStatusRefunded, EventRefund},
		{"fail a paid payment", enums.OrderStatusProcessing, enums.PaymentStatusPaid, EventMarkFailed},
		{"touch cancelled order", enums.OrderStatusCancelled, enums.PaymentStatusPending, EventProcess},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotOrder, gotPayment, err := Transition(tc.order, tc.payment, tc.event)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
				t.Fatalf("expected state conflict, got %v", err)
			}
			if gotOrder != tc.order || gotPayment != tc.payment {
				t.Fatalf("rejected transition must not change state, got %s/%s", gotOrder, gotPayment)
			}
		})
	}
}

func TestTransitionRetryAfterFailedPayment(t *testing.T) {
	t.Parallel()

	// a failed attempt does not strand the order: the customer can pay
	// again once a later verification approves
	order, payment, err := Transition(enums.OrderStatusPending, enums.PaymentStatusPending, EventMarkFailed)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if payment != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", payment)
	}
	if _, _, err := Transition(order, payment, EventProcess); err != nil {
		t.Fatalf("failed payment must not block fulfillment: %v", err)
	}
}
