package controllers

import (
	"net/http"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	"github.com/angelmondragon/gamestore-backend/api/validators"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

// CreateOrder records a checkout submission. The total is computed server-side.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload orders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderSummary(*order))
	}
}

// PaymentIntentHeader carries the customer's proof of ownership for order reads.
const PaymentIntentHeader = "X-Payment-Intent-Id"

// GetOrder serves the customer-facing order summary. The caller must present the
// order's payment intent id in PaymentIntentHeader.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID, r.Header.Get(PaymentIntentHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderSummary(*order))
	}
}
