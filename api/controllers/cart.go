package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wbenromdhane/tijara-backend/api/middleware"
	"github.com/wbenromdhane/tijara-backend/api/responses"
	"github.com/wbenromdhane/tijara-backend/api/validators"
	cartsvc "github.com/wbenromdhane/tijara-backend/internal/cart"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type cartMergeRequest struct {
	Items []cartItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cartItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type cartResponse struct {
	ID        uuid.UUID          `json:"id"`
	Items     []cartItemResponse `json:"items"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type cartMergeResponse struct {
	Cart    cartResponse          `json:"cart"`
	Skipped []cartsvc.SkippedItem `json:"skipped,omitempty"`
}

func newCartResponse(record *models.Cart) cartResponse {
	resp := cartResponse{
		ID:        record.ID,
		Items:     make([]cartItemResponse, 0, len(record.Items)),
		UpdatedAt: record.UpdatedAt,
	}
	for _, item := range record.Items {
		resp.Items = append(resp.Items, cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return resp
}

// CartFetch returns the signed-in user's cart, creating one on first access.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartAddItem stacks quantity onto the user's cart line for the product.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItem(r.Context(), userID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartUpdateItem replaces the quantity of an existing cart line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateItem(r.Context(), userID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartRemoveItem drops a product line from the cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuidURLParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RemoveItem(r.Context(), userID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartClear empties the user's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// CartMerge folds a device-local cart into the account cart after sign-in.
func CartMerge(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartMergeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]cartsvc.MergeItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, cartsvc.MergeItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.Merge(r.Context(), userID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartMergeResponse{
			Cart:    newCartResponse(result.Cart),
			Skipped: result.Skipped,
		})
	}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
