package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wbenromdhane/tijara-backend/api/middleware"
	"github.com/wbenromdhane/tijara-backend/api/responses"
	"github.com/wbenromdhane/tijara-backend/api/validators"
	checkoutsvc "github.com/wbenromdhane/tijara-backend/internal/checkout"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
	"github.com/wbenromdhane/tijara-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Items            []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Address          types.Address         `json:"address" validate:"required"`
	PaymentMethod    string                `json:"payment_method" validate:"required"`
	ShippingMillimes int64                 `json:"shipping_millimes" validate:"min=0"`
	FeeMillimes      int64                 `json:"fee_millimes" validate:"min=0"`
	DiscountMillimes int64                 `json:"discount_millimes" validate:"min=0"`
	GuestEmail       *string               `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone       *string               `json:"guest_phone,omitempty"`
	ClearCart        bool                  `json:"clear_cart"`
}

type checkoutResponse struct {
	OrderID     uuid.UUID     `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	Order       orderResponse `json:"order"`
}

// Checkout settles an order atomically. It serves both signed-in customers
// (identity and pricing tier come from the token) and guests (contact details
// come from the body, always at retail tier).
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := checkoutsvc.CheckoutInput{
			Address:          payload.Address,
			PaymentMethod:    method,
			ShippingMillimes: payload.ShippingMillimes,
			FeeMillimes:      payload.FeeMillimes,
			DiscountMillimes: payload.DiscountMillimes,
			GuestEmail:       payload.GuestEmail,
			GuestPhone:       payload.GuestPhone,
		}

		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}
			input.UserID = &userID
			input.Wholesale = middleware.WholesaleFromContext(r.Context())
			input.ClearCart = payload.ClearCart
		}

		for _, item := range payload.Items {
			input.Items = append(input.Items, checkoutsvc.ItemInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.Execute(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			OrderID:     result.OrderID,
			OrderNumber: result.OrderNumber,
			Order:       newOrderResponse(result.Order),
		})
	}
}
