package controllers

import (
	"net/http"

	"github.com/wbenromdhane/tijara-backend/api/responses"
	"github.com/wbenromdhane/tijara-backend/api/validators"
	paymentsvc "github.com/wbenromdhane/tijara-backend/internal/payments"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
)

type paymentInitiateRequest struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type paymentInitiateResponse struct {
	PaymentRef string `json:"payment_ref"`
	PayURL     string `json:"pay_url"`
}

type paymentVerifyRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required"`
}

type paymentVerifyResponse struct {
	Order         orderResponse `json:"order"`
	Paid          bool          `json:"paid"`
	GatewayStatus string        `json:"gateway_status"`
}

// PaymentInitiate registers a gateway payment for an online order and
// returns the hosted payment page URL.
func PaymentInitiate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentInitiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), paymentsvc.InitiateInput{
			OrderID:     orderID,
			UserID:      &userID,
			FirstName:   payload.FirstName,
			LastName:    payload.LastName,
			Email:       payload.Email,
			PhoneNumber: payload.PhoneNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentInitiateResponse{
			PaymentRef: result.PaymentRef,
			PayURL:     result.PayURL,
		})
	}
}

// PaymentVerify checks a gateway reference and applies the outcome. The
// storefront calls this when the customer lands back from the hosted page.
func PaymentVerify(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), payload.PaymentRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentVerifyResponse{
			Order:         newOrderResponse(result.Order),
			Paid:          result.Paid,
			GatewayStatus: result.GatewayStatus,
		})
	}
}
