package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	"github.com/angelmondragon/gamestore-backend/api/validators"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/reconciliation"
	"github.com/angelmondragon/gamestore-backend/internal/shipping"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

type shipmentSummary struct {
	OrderID            int64      `json:"orderId"`
	Provider           string     `json:"provider"`
	ProviderShipmentID *string    `json:"providerShipmentId,omitempty"`
	Status             string     `json:"status"`
	TrackingNumber     *string    `json:"trackingNumber,omitempty"`
	TrackingURL        *string    `json:"trackingUrl,omitempty"`
	BoughtAt           *time.Time `json:"boughtAt,omitempty"`
	BuyError           *string    `json:"buyError,omitempty"`
	ShippedAt          *time.Time `json:"shippedAt,omitempty"`
}

func newShipmentSummary(s *models.Shipment) shipmentSummary {
	return shipmentSummary{
		OrderID:            s.OrderID,
		Provider:           s.Provider,
		ProviderShipmentID: s.ProviderShipmentID,
		Status:             s.Status,
		TrackingNumber:     s.TrackingNumber,
		TrackingURL:        s.TrackingURL,
		BoughtAt:           s.BoughtAt,
		BuyError:           s.BuyError,
		ShippedAt:          s.ShippedAt,
	}
}

type resyncResponse struct {
	OrderID        int64  `json:"orderId"`
	IntentStatus   string `json:"intentStatus"`
	PaymentStatus  string `json:"paymentStatus"`
	PreviousStatus string `json:"previousStatus"`
	CurrentStatus  string `json:"currentStatus"`
	Changed        bool   `json:"changed"`
}

// AdminRetryShipmentPurchase clears a sticky buy error and re-runs the shipment lifecycle once.
func AdminRetryShipmentPurchase(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "shipping service unavailable"))
			return
		}
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.RetryPurchase(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentSummary(shipment))
	}
}

// AdminShipmentLabel streams the carrier label for a purchased shipment.
func AdminShipmentLabel(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "shipping service unavailable"))
			return
		}
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		label, err := svc.FetchLabel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePDF(w, fmt.Sprintf("label-%d.pdf", orderID), label.Data)
	}
}

// AdminResyncPayment asks the gateway for the intent status and reapplies it.
func AdminResyncPayment(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "reconciliation service unavailable"))
			return
		}
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ResyncOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resyncResponse{
			OrderID:        res.OrderID,
			IntentStatus:   res.IntentStatus,
			PaymentStatus:  string(res.Status),
			PreviousStatus: string(res.PreviousStatus),
			CurrentStatus:  string(res.CurrentStatus),
			Changed:        res.Changed(),
		})
	}
}

// AdminReplayFulfillment re-runs shipment, invoice and email for a PAID order.
// Every step is gated by its own sticky field, so replays only fill gaps.
func AdminReplayFulfillment(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "reconciliation service unavailable"))
			return
		}
		orderID, err := validators.ParsePathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CompletePostPayment(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderSummary(*order))
	}
}
