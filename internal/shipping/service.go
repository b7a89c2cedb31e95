// Package shipping owns carrier shipments: creation, offer resolution, the single
// purchase attempt, and status polling.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/gamestore-backend/internal/notifications"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/shipx"
)

// Service is the Shipment Lifecycle Service.
type Service interface {
	OnOrderPaid(ctx context.Context, order *models.Order) (*models.Shipment, error)
	RetryPurchase(ctx context.Context, orderID int64) (*models.Shipment, error)
	SyncShipment(ctx context.Context, order *models.Order) error
	FetchLabel(ctx context.Context, orderID int64) (*shipx.Label, error)
	TrackingURL(trackingNumber string) string
}

// ServiceParams carries the collaborators of NewService. Mailer may be nil, in
// which case no dispatched email is sent.
type ServiceParams struct {
	Orders    orders.Repository
	Shipments Repository
	Provider  Provider
	Mailer    notifications.Mailer
	LabelsDir string
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	orders    orders.Repository
	shipments Repository
	provider  Provider
	mailer    notifications.Mailer
	labelsDir string
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs the shipment lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil || params.Shipments == nil {
		return nil, fmt.Errorf("shipping repositories required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("shipping provider required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		orders:    params.Orders,
		shipments: params.Shipments,
		provider:  params.Provider,
		mailer:    params.Mailer,
		labelsDir: params.LabelsDir,
		logg:      params.Logger,
		now:       params.Now,
	}, nil
}

func (s *service) TrackingURL(trackingNumber string) string {
	return s.provider.TrackingURL(trackingNumber)
}

// OnOrderPaid makes sure the order has a carrier shipment and, when possible,
// purchases it. A failed purchase is recorded on the row and not returned.
func (s *service) OnOrderPaid(ctx context.Context, order *models.Order) (*models.Shipment, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	shipment, err := s.ensureShipment(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.purchase(ctx, order, shipment, nil)
}

func (s *service) ensureShipment(ctx context.Context, order *models.Order) (*models.Shipment, error) {
	existing, err := s.shipments.FindByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load shipment: %w", err)
	}

	out, err := s.provider.CreateShipment(ctx, order)
	if err != nil {
		return nil, err
	}

	shipment := &models.Shipment{
		OrderID:            order.ID,
		Provider:           out.Provider,
		ProviderShipmentID: optional(out.ShipmentID),
		SelectedOfferID:    optional(out.SelectedOfferID),
		TrackingNumber:     optional(out.TrackingNumber),
		TrackingURL:        optional(out.TrackingURL),
		Status:             out.Status,
	}
	if err := s.shipments.Create(ctx, shipment); err != nil {
		if db.IsUniqueViolation(err, "shipments_order_id_key") {
			s.logg.Warn(ctx, "shipment row created concurrently, reloading")
			return s.shipments.FindByOrderID(ctx, order.ID)
		}
		return nil, fmt.Errorf("persist shipment: %w", err)
	}

	ctx = s.logg.WithShipmentID(ctx, out.ShipmentID)
	s.logg.Info(ctx, "carrier shipment created")
	s.mirror(ctx, order.ID, map[string]any{
		"shipment_id":     out.ShipmentID,
		"shipment_status": out.Status,
		"tracking_number": optional(out.TrackingNumber),
	})
	return shipment, nil
}

// purchase issues the buy request at most once per shipment. remote, when set,
// is a fresh carrier view used to resolve the offer without another call.
func (s *service) purchase(ctx context.Context, order *models.Order, shipment *models.Shipment, remote *shipx.Shipment) (*models.Shipment, error) {
	if shipment.ProviderShipmentID == nil || *shipment.ProviderShipmentID == "" || shipment.BoughtAt != nil {
		return shipment, nil
	}
	providerID := *shipment.ProviderShipmentID
	ctx = s.logg.WithShipmentID(ctx, providerID)

	offerID := ""
	if shipment.SelectedOfferID != nil {
		offerID = *shipment.SelectedOfferID
	}
	if offerID == "" {
		if remote == nil {
			fetched, err := s.provider.GetShipment(ctx, providerID)
			if err != nil {
				s.logg.Error(ctx, "fetch shipment for offer resolution", err)
				return shipment, nil
			}
			remote = fetched
		}
		offerID = remote.SelectedOfferID()
		if offerID == "" {
			s.logg.Info(ctx, "carrier has not selected an offer yet")
			return shipment, nil
		}
		if err := s.shipments.Update(ctx, shipment.ID, map[string]any{"selected_offer_id": offerID}); err != nil {
			return nil, fmt.Errorf("persist selected offer: %w", err)
		}
		shipment.SelectedOfferID = &offerID
	}

	if shipment.BuyError != nil {
		s.logg.Warn(s.logg.WithField(ctx, "buy_error", *shipment.BuyError), "shipment purchase previously failed, skipping")
		return shipment, nil
	}

	now := s.now().UTC()
	claimed, err := s.shipments.SetIfNull(ctx, shipment.ID, "bought_at", now, nil)
	if err != nil {
		return nil, fmt.Errorf("claim shipment purchase: %w", err)
	}
	if !claimed {
		s.logg.Info(ctx, "shipment purchase already claimed")
		return s.shipments.FindByOrderID(ctx, order.ID)
	}
	shipment.BoughtAt = &now

	bought, err := s.provider.BuyShipment(ctx, providerID, offerID)
	if err != nil {
		msg := buyErrorMessage(err)
		s.logg.Error(ctx, "shipment purchase failed", err)
		if uerr := s.shipments.Update(ctx, shipment.ID, map[string]any{"buy_error": msg}); uerr != nil {
			return nil, fmt.Errorf("persist buy error: %w", uerr)
		}
		shipment.BuyError = &msg
		return shipment, nil
	}

	updates := map[string]any{"status": enums.ShipmentStatusBuyPending}
	orderUpdates := map[string]any{"shipment_status": enums.ShipmentStatusBuyPending}
	shipment.Status = enums.ShipmentStatusBuyPending
	if bought != nil && bought.TrackingNumber != "" {
		tracking := bought.TrackingNumber
		trackingURL := s.provider.TrackingURL(tracking)
		updates["tracking_number"] = tracking
		updates["tracking_url"] = trackingURL
		orderUpdates["tracking_number"] = tracking
		shipment.TrackingNumber = &tracking
		shipment.TrackingURL = &trackingURL
	}
	if err := s.shipments.Update(ctx, shipment.ID, updates); err != nil {
		return nil, fmt.Errorf("persist purchase: %w", err)
	}
	s.mirror(ctx, order.ID, orderUpdates)
	s.logg.Info(ctx, "shipment purchased")
	return shipment, nil
}

// RetryPurchase clears a sticky purchase failure and runs the lifecycle once more.
func (s *service) RetryPurchase(ctx context.Context, orderID int64) (*models.Shipment, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid").
			WithDetails(map[string]any{"status": order.Status})
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	shipment, err := s.shipments.FindByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	case shipment.BoughtAt != nil && shipment.BuyError == nil:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment already purchased")
	default:
		if err := s.shipments.Update(ctx, shipment.ID, map[string]any{"buy_error": nil, "bought_at": nil}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear buy error")
		}
		s.logg.Info(ctx, "shipment buy error cleared for retry")
	}

	out, err := s.OnOrderPaid(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retry shipment purchase")
	}
	return out, nil
}

// SyncShipment refreshes carrier state for one order during polling. A paid
// order without a carrier shipment gets another creation attempt.
func (s *service) SyncShipment(ctx context.Context, order *models.Order) error {
	if order == nil {
		return nil
	}
	if order.ShipmentID == nil || *order.ShipmentID == "" {
		if order.Status != enums.OrderStatusPaid {
			return nil
		}
		if _, err := s.OnOrderPaid(ctx, order); err != nil {
			return fmt.Errorf("create missing shipment: %w", err)
		}
		return nil
	}
	providerID := *order.ShipmentID
	ctx = s.logg.WithShipmentID(s.logg.WithOrderID(ctx, order.ID), providerID)

	remote, err := s.provider.GetShipment(ctx, providerID)
	if err != nil {
		return fmt.Errorf("fetch shipment %s: %w", providerID, err)
	}

	shipment, err := s.shipments.FindByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load shipment: %w", err)
	}

	status := strings.ToLower(strings.TrimSpace(remote.Status))
	orderUpdates := map[string]any{}
	if status != "" && !equalPtr(order.ShipmentStatus, status) {
		orderUpdates["shipment_status"] = status
	}
	if remote.TrackingNumber != "" && !equalPtr(order.TrackingNumber, remote.TrackingNumber) {
		orderUpdates["tracking_number"] = remote.TrackingNumber
	}

	if shipment != nil {
		updates := map[string]any{}
		if status != "" && shipment.Status != status && shipment.Status != enums.ShipmentStatusShipped {
			updates["status"] = status
		}
		if status != "" && shipment.Status == enums.ShipmentStatusShipped && enums.IsTerminalCarrierStatus(status) {
			updates["status"] = status
		}
		if remote.TrackingNumber != "" && !equalPtr(shipment.TrackingNumber, remote.TrackingNumber) {
			updates["tracking_number"] = remote.TrackingNumber
			updates["tracking_url"] = s.provider.TrackingURL(remote.TrackingNumber)
		}
		if err := s.shipments.Update(ctx, shipment.ID, updates); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		if remote.TrackingNumber != "" {
			shipment.TrackingNumber = &remote.TrackingNumber
		}
	}
	if err := s.orders.Update(ctx, order.ID, orderUpdates); err != nil {
		return fmt.Errorf("update order shipment status: %w", err)
	}

	var errs error
	if shipment != nil && shipment.BoughtAt == nil && order.Status == enums.OrderStatusPaid {
		if _, err := s.purchase(ctx, order, shipment, remote); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if enums.HasReachedConfirmed(status) && !order.LabelGenerated {
		if err := s.storeLabel(ctx, order, shipment, providerID); err != nil {
			s.logg.Error(ctx, "label generation failed", err)
			errs = multierr.Append(errs, err)
		}
	}
	if shipment != nil && enums.IsDispatchedCarrierStatus(status) && shipment.ShippedAt == nil {
		if err := s.markShipped(ctx, order, shipment); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *service) storeLabel(ctx context.Context, order *models.Order, shipment *models.Shipment, providerID string) error {
	label, err := s.provider.GetLabel(ctx, providerID)
	if err != nil {
		return fmt.Errorf("fetch label: %w", err)
	}
	if label == nil || len(label.Data) == 0 {
		return errors.New("carrier returned an empty label")
	}
	if err := os.MkdirAll(s.labelsDir, 0o755); err != nil {
		return fmt.Errorf("create label dir: %w", err)
	}
	path := filepath.Join(s.labelsDir, fmt.Sprintf("label-%d.pdf", order.ID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, label.Data, 0o644); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store label: %w", err)
	}

	if err := s.orders.Update(ctx, order.ID, map[string]any{"label_generated": true}); err != nil {
		return fmt.Errorf("mark label generated: %w", err)
	}
	order.LabelGenerated = true
	if shipment != nil {
		if err := s.shipments.Update(ctx, shipment.ID, map[string]any{"label_path": path}); err != nil {
			return fmt.Errorf("persist label path: %w", err)
		}
		shipment.LabelPath = &path
	}
	s.logg.Info(s.logg.WithField(ctx, "label_path", path), "shipment label stored")
	return nil
}

func (s *service) markShipped(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	now := s.now().UTC()
	claimed, err := s.shipments.SetIfNull(ctx, shipment.ID, "shipped_at", now, map[string]any{"status": enums.ShipmentStatusShipped})
	if err != nil {
		return fmt.Errorf("mark shipment shipped: %w", err)
	}
	if !claimed {
		return nil
	}
	shipment.ShippedAt = &now
	shipment.Status = enums.ShipmentStatusShipped
	s.logg.Info(ctx, "shipment dispatched")

	if s.mailer == nil {
		return nil
	}
	trackingURL := ""
	if shipment.TrackingNumber != nil {
		trackingURL = s.provider.TrackingURL(*shipment.TrackingNumber)
	}
	if err := s.mailer.SendShipmentDispatchedEmail(ctx, order, trackingURL); err != nil {
		s.logg.Error(ctx, "send shipment dispatched email", err)
		return err
	}
	return nil
}

// FetchLabel returns the carrier label for an order's purchased shipment.
func (s *service) FetchLabel(ctx context.Context, orderID int64) (*shipx.Label, error) {
	shipment, err := s.shipments.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	if shipment.ProviderShipmentID == nil || *shipment.ProviderShipmentID == "" || shipment.BoughtAt == nil || shipment.BuyError != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has not been purchased")
	}
	label, err := s.provider.GetLabel(ctx, *shipment.ProviderShipmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch label")
	}
	return label, nil
}

// mirror copies shipment fields onto the order. Failures are logged only; the
// shipment row stays authoritative and polling re-mirrors.
func (s *service) mirror(ctx context.Context, orderID int64, updates map[string]any) {
	if err := s.orders.Update(ctx, orderID, updates); err != nil {
		s.logg.Error(ctx, "mirror shipment onto order", err)
	}
}

func buyErrorMessage(err error) string {
	if apiErr, ok := shipx.AsAPIError(err); ok {
		if apiErr.Payload != nil && apiErr.Payload.Message != "" {
			return fmt.Sprintf("carrier %d: %s", apiErr.StatusCode, apiErr.Payload.Message)
		}
		return fmt.Sprintf("carrier %d", apiErr.StatusCode)
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown purchase error"
	}
	return msg
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func equalPtr(current *string, value string) bool {
	return current != nil && *current == value
}
