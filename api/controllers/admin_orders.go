package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/wbenromdhane/tijara-backend/api/middleware"
	"github.com/wbenromdhane/tijara-backend/api/responses"
	"github.com/wbenromdhane/tijara-backend/api/validators"
	ordersvc "github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
)

var fulfillmentEvents = map[string]ordersvc.TransitionEvent{
	"process": ordersvc.EventProcess,
	"ship":    ordersvc.EventShip,
	"deliver": ordersvc.EventDeliver,
}

type adminTransitionRequest struct {
	Event string `json:"event" validate:"required"`
}

type adminVerifyRequest struct {
	Action        string          `json:"action" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	BankReference *string         `json:"bank_reference,omitempty"`
	Note          *string         `json:"note,omitempty"`
}

// AdminOrderDetail returns any order with its lines.
func AdminOrderDetail(repo *ordersvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderTransition advances an order along the fulfillment leg.
func AdminOrderTransition(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, ok := fulfillmentEvents[payload.Event]
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfillment event"))
			return
		}

		order, err := svc.Fulfill(r.Context(), orderID, event)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderRefund runs the explicit refund path.
func AdminOrderRefund(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminVerifyPayment records a manual payment determination, typically for
// bank transfers checked against the merchant account statement.
func AdminVerifyPayment(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if middleware.RoleFromContext(r.Context()) != string(enums.UserRoleAdmin) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
			return
		}

		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseVerificationAction(payload.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		result, err := svc.ApplyVerification(r.Context(), ordersvc.VerificationInput{
			OrderID:        orderID,
			Action:         action,
			Actor:          enums.VerificationActorAdmin,
			ActorID:        &adminID,
			BankReference:  payload.BankReference,
			VerifiedAmount: payload.Amount,
			Note:           payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order":   newOrderResponse(result.Order),
			"applied": result.Applied,
		})
	}
}
