package controllers

import (
	"net/http"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	"github.com/angelmondragon/gamestore-backend/api/validators"
	"github.com/angelmondragon/gamestore-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

type createIntentRequest struct {
	Amount       int64  `json:"amount" validate:"gte=0"`
	OrderID      *int64 `json:"orderId" validate:"omitempty,gt=0"`
	ItemsTotal   *int64 `json:"itemsTotal" validate:"omitempty,gte=0"`
	ShippingCost *int64 `json:"shippingCost" validate:"omitempty,gte=0"`
}

type createIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Mock            bool   `json:"mock,omitempty"`
}

// CreatePaymentIntent issues a client secret for the checkout form.
func CreatePaymentIntent(gateway payments.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "payment gateway unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := gateway.CreatePaymentIntent(r.Context(), payments.CreateIntentInput{
			Amount:       payload.Amount,
			OrderID:      payload.OrderID,
			ItemsTotal:   payload.ItemsTotal,
			ShippingCost: payload.ShippingCost,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createIntentResponse{
			ClientSecret:    intent.ClientSecret,
			PaymentIntentID: intent.PaymentIntentID,
			Amount:          intent.Amount,
			Mock:            intent.Mock,
		})
	}
}
