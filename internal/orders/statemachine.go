package orders

import (
	"fmt"

	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
)

// TransitionEvent names a requested state change.
type TransitionEvent string

const (
	EventProcess    TransitionEvent = "process"
	EventShip       TransitionEvent = "ship"
	EventDeliver    TransitionEvent = "deliver"
	EventCancel     TransitionEvent = "cancel"
	EventRefund     TransitionEvent = "refund"
	EventMarkPaid   TransitionEvent = "mark_paid"
	EventMarkFailed TransitionEvent = "mark_failed"
)

type transitionKey struct {
	Order   enums.OrderStatus
	Payment enums.PaymentStatus
	Event   TransitionEvent
}

type transitionResult struct {
	Order   enums.OrderStatus
	Payment enums.PaymentStatus
}

// transitions is the whole machine. Anything not listed here is illegal,
// which keeps the "no backward moves except refund" rule in one place
// instead of scattered conditionals.
var transitions = map[transitionKey]transitionResult{
	// payment verification outcomes
	{enums.OrderStatusPending, enums.PaymentStatusPending, EventMarkPaid}:    {enums.OrderStatusProcessing, enums.PaymentStatusPaid},
	{enums.OrderStatusProcessing, enums.PaymentStatusPending, EventMarkPaid}: {enums.OrderStatusProcessing, enums.PaymentStatusPaid},
	// cash on delivery is confirmed after the parcel moves
	{enums.OrderStatusShipped, enums.PaymentStatusPending, EventMarkPaid}:   {enums.OrderStatusShipped, enums.PaymentStatusPaid},
	{enums.OrderStatusDelivered, enums.PaymentStatusPending, EventMarkPaid}: {enums.OrderStatusDelivered, enums.PaymentStatusPaid},

	{enums.OrderStatusPending, enums.PaymentStatusPending, EventMarkFailed}:    {enums.OrderStatusPending, enums.PaymentStatusFailed},
	{enums.OrderStatusProcessing, enums.PaymentStatusPending, EventMarkFailed}: {enums.OrderStatusProcessing, enums.PaymentStatusFailed},

	// a failed attempt can be retried until the order is paid or cancelled
	{enums.OrderStatusPending, enums.PaymentStatusFailed, EventMarkPaid}:      {enums.OrderStatusProcessing, enums.PaymentStatusPaid},
	{enums.OrderStatusProcessing, enums.PaymentStatusFailed, EventMarkPaid}:   {enums.OrderStatusProcessing, enums.PaymentStatusPaid},
	{enums.OrderStatusPending, enums.PaymentStatusFailed, EventMarkFailed}:    {enums.OrderStatusPending, enums.PaymentStatusFailed},
	{enums.OrderStatusProcessing, enums.PaymentStatusFailed, EventMarkFailed}: {enums.OrderStatusProcessing, enums.PaymentStatusFailed},

	// fulfillment
	{enums.OrderStatusPending, enums.PaymentStatusPending, EventProcess}: {enums.OrderStatusProcessing, enums.PaymentStatusPending},
	{enums.OrderStatusPending, enums.PaymentStatusFailed, EventProcess}:  {enums.OrderStatusProcessing, enums.PaymentStatusFailed},

	{enums.OrderStatusProcessing, enums.PaymentStatusPending, EventShip}: {enums.OrderStatusShipped, enums.PaymentStatusPending},
	{enums.OrderStatusProcessing, enums.PaymentStatusPaid, EventShip}:    {enums.OrderStatusShipped, enums.PaymentStatusPaid},

	{enums.OrderStatusShipped, enums.PaymentStatusPending, EventDeliver}: {enums.OrderStatusDelivered, enums.PaymentStatusPending},
	{enums.OrderStatusShipped, enums.PaymentStatusPaid, EventDeliver}:    {enums.OrderStatusDelivered, enums.PaymentStatusPaid},

	// owner cancellation, only before fulfillment starts
	{enums.OrderStatusPending, enums.PaymentStatusPending, EventCancel}: {enums.OrderStatusCancelled, enums.PaymentStatusPending},
	{enums.OrderStatusPending, enums.PaymentStatusFailed, EventCancel}:  {enums.OrderStatusCancelled, enums.PaymentStatusFailed},

	// the explicit refund path
	{enums.OrderStatusCancelled, enums.PaymentStatusPaid, EventRefund}: {enums.OrderStatusRefunded, enums.PaymentStatusRefunded},
	{enums.OrderStatusDelivered, enums.PaymentStatusPaid, EventRefund}: {enums.OrderStatusRefunded, enums.PaymentStatusRefunded},
}

// Transition resolves the requested event against the current status pair.
// Illegal combinations come back as a state conflict with no side effects.
func Transition(order enums.OrderStatus, payment enums.PaymentStatus, event TransitionEvent) (enums.OrderStatus, enums.PaymentStatus, error) {
	next, ok := transitions[transitionKey{Order: order, Payment: payment, Event: event}]
	if !ok {
		return order, payment, pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot %s an order that is %s with payment %s", event, order, payment),
		)
	}
	return next.Order, next.Payment, nil
}
