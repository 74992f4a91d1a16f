package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wbenromdhane/tijara-backend/api/responses"
	ordersvc "github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
	"github.com/wbenromdhane/tijara-backend/pkg/types"
)

type orderItemResponse struct {
	ProductID        uuid.UUID       `json:"product_id"`
	NameAr           string          `json:"name_ar"`
	NameFr           string          `json:"name_fr"`
	Image            string          `json:"image,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Quantity         int             `json:"quantity"`
	LineTotal        decimal.Decimal `json:"line_total"`
	WholesaleApplied bool            `json:"wholesale_applied"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Wholesale     bool                `json:"wholesale"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Shipping      decimal.Decimal     `json:"shipping"`
	Fee           decimal.Decimal     `json:"fee"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	Address       types.Address       `json:"address"`
	Items         []orderItemResponse `json:"items,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Wholesale:     order.Wholesale,
		Subtotal:      order.Subtotal,
		Shipping:      order.Shipping,
		Fee:           order.Fee,
		Discount:      order.Discount,
		Total:         order.Total,
		Address:       order.ShippingAddress,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:        item.ProductID,
			NameAr:           item.NameAr,
			NameFr:           item.NameFr,
			Image:            item.Image,
			UnitPrice:        item.UnitPrice,
			Quantity:         item.Quantity,
			LineTotal:        item.LineTotal,
			WholesaleApplied: item.WholesaleApplied,
		})
	}
	return resp
}

// OrdersList returns the signed-in user's orders, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		records, err := svc.ListForUser(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := make([]orderResponse, 0, len(records))
		for i := range records {
			list = append(list, newOrderResponse(&records[i]))
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one of the signed-in user's orders with its lines.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.GetForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCancel cancels a pending order on behalf of its owner.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Cancel(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
