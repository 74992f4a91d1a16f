package webhooks

import (
	"net/http"
	"strings"

	"github.com/wbenromdhane/tijara-backend/api/responses"
	paymentsvc "github.com/wbenromdhane/tijara-backend/internal/payments"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
)

// KonnectWebhook handles the gateway's payment notification. Konnect calls
// the configured webhook with the reference in the query string; the actual
// payment state is always re-read from the gateway API rather than trusted
// from the notification.
func KonnectWebhook(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentRef := strings.TrimSpace(r.URL.Query().Get("payment_ref"))
		if paymentRef == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment_ref is required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "payment_ref", paymentRef)
		}

		result, err := svc.Verify(ctx, paymentRef)
		if err != nil {
			// dependency errors return 5xx so the gateway retries delivery
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"order_id":       result.Order.ID.String(),
				"gateway_status": result.GatewayStatus,
				"paid":           result.Paid,
			})
			logg.Info(ctx, "konnect webhook processed")
		}

		responses.WriteSuccess(w, map[string]any{
			"received": true,
			"paid":     result.Paid,
		})
	}
}
