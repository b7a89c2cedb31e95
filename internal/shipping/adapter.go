package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
	"github.com/angelmondragon/gamestore-backend/pkg/shipx"
)

const (
	ProviderInPost = "inpost"
	labelFormat    = "pdf"
)

// CarrierClient is the subset of the ShipX API the adapter consumes.
type CarrierClient interface {
	CreateShipment(ctx context.Context, req shipx.CreateShipmentRequest) (*shipx.Shipment, error)
	GetShipment(ctx context.Context, shipmentID string) (*shipx.Shipment, error)
	BuyShipment(ctx context.Context, shipmentID, offerID string) (*shipx.Shipment, error)
	GetLabel(ctx context.Context, shipmentID, format string) (*shipx.Label, error)
}

// ShipmentOutput is the normalized result of a carrier create call.
type ShipmentOutput struct {
	Provider        string
	TrackingNumber  string
	TrackingURL     string
	Status          string
	ShipmentID      string
	ShipXStatus     string
	SelectedOfferID string
}

// Provider is the Shipping Provider Adapter.
type Provider interface {
	CreateShipment(ctx context.Context, order *models.Order) (*ShipmentOutput, error)
	GetShipment(ctx context.Context, shipmentID string) (*shipx.Shipment, error)
	BuyShipment(ctx context.Context, shipmentID, offerID string) (*shipx.Shipment, error)
	GetLabel(ctx context.Context, shipmentID string) (*shipx.Label, error)
	TrackingURL(trackingNumber string) string
}

type AdapterParams struct {
	Client   CarrierClient
	Sender   config.SenderConfig
	Delivery config.DeliveryConfig
	ShipX    config.ShipXConfig
	Metrics  *metrics.CarrierMetrics
	Logger   *logger.Logger
}

type adapter struct {
	client      CarrierClient
	sender      config.SenderConfig
	delivery    config.DeliveryConfig
	trackingURL string
	retry       shipx.RetryPolicy
	metrics     *metrics.CarrierMetrics
	logg        *logger.Logger
}

func NewAdapter(params AdapterParams) (Provider, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "carrier integration is not configured")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	a := &adapter{
		client:      params.Client,
		sender:      params.Sender,
		delivery:    params.Delivery,
		trackingURL: params.ShipX.TrackingURL,
		metrics:     params.Metrics,
		logg:        params.Logger,
		retry: shipx.RetryPolicy{
			Attempts:  params.ShipX.RetryAttempts,
			BaseDelay: params.ShipX.RetryBaseDelay,
		},
	}
	return a, nil
}

func (a *adapter) policy(ctx context.Context, op string) shipx.RetryPolicy {
	p := a.retry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.metrics.IncRetry(op)
		a.logg.Warn(a.logg.WithFields(ctx, map[string]any{
			"operation": op,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
			"error":     err.Error(),
		}), "retrying carrier call")
	}
	return p
}

func (a *adapter) CreateShipment(ctx context.Context, order *models.Order) (*ShipmentOutput, error) {
	req, err := a.buildRequest(order)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(req); err != nil {
		return nil, err
	}

	created, err := shipx.WithRetry(ctx, a.policy(ctx, "create_shipment"), func(ctx context.Context) (*shipx.Shipment, error) {
		return a.client.CreateShipment(ctx, *req)
	})
	if err != nil {
		return nil, err
	}
	return a.toOutput(created)
}

func (a *adapter) GetShipment(ctx context.Context, shipmentID string) (*shipx.Shipment, error) {
	return shipx.WithRetry(ctx, a.policy(ctx, "get_shipment"), func(ctx context.Context) (*shipx.Shipment, error) {
		return a.client.GetShipment(ctx, shipmentID)
	})
}

// BuyShipment is never retried; a repeated purchase could double charge.
func (a *adapter) BuyShipment(ctx context.Context, shipmentID, offerID string) (*shipx.Shipment, error) {
	return a.client.BuyShipment(ctx, shipmentID, offerID)
}

func (a *adapter) GetLabel(ctx context.Context, shipmentID string) (*shipx.Label, error) {
	return shipx.WithRetry(ctx, a.policy(ctx, "get_label"), func(ctx context.Context) (*shipx.Label, error) {
		return a.client.GetLabel(ctx, shipmentID, labelFormat)
	})
}

func (a *adapter) TrackingURL(trackingNumber string) string {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" || a.trackingURL == "" {
		return ""
	}
	return a.trackingURL + url.QueryEscape(trackingNumber)
}

func (a *adapter) buildRequest(order *models.Order) (*shipx.CreateShipmentRequest, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	first, last := splitName(order.CustomerName)
	receiver := shipx.Party{
		Name:      strings.TrimSpace(order.CustomerName),
		FirstName: first,
		LastName:  last,
		Email:     strings.TrimSpace(order.CustomerEmail),
		Phone:     normalizePhone(order.CustomerPhone),
	}

	req := &shipx.CreateShipmentRequest{
		Receiver:  receiver,
		Sender:    a.senderParty(),
		Reference: fmt.Sprintf("order-%d", order.ID),
		Comments:  fmt.Sprintf("Order #%d", order.ID),
	}

	switch order.DeliveryMethod {
	case enums.DeliveryMethodParcelLocker:
		point := ""
		if order.DeliveryPointID != nil {
			point = strings.TrimSpace(*order.DeliveryPointID)
		}
		if point == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "parcel locker delivery requires a delivery point").
				WithDetails(map[string]any{"orderId": order.ID})
		}
		req.Service = shipx.ServiceLockerStandard
		req.CustomAttributes = map[string]string{
			"target_point":   point,
			"sending_method": "dispatch_order",
		}
		req.Parcels = []shipx.Parcel{{Template: a.delivery.LockerTemplate}}
	default:
		street, building := splitStreet(order.Address)
		req.Receiver.Address = &shipx.Address{
			Street:         street,
			BuildingNumber: building,
			City:           strings.TrimSpace(order.City),
			PostCode:       normalizePostCode(order.PostalCode),
			CountryCode:    normalizeCountry(order.Country),
		}
		req.Service = shipx.ServiceCourierStandard
		req.Parcels = []shipx.Parcel{{
			Dimensions: &shipx.Dimensions{
				Length: a.delivery.ParcelLengthMM,
				Width:  a.delivery.ParcelWidthMM,
				Height: a.delivery.ParcelHeightMM,
				Unit:   "mm",
			},
			Weight: &shipx.Weight{Amount: a.delivery.ParcelWeightKg, Unit: "kg"},
		}}
	}
	return req, nil
}

func (a *adapter) senderParty() shipx.Party {
	s := a.sender
	return shipx.Party{
		Name:        strings.TrimSpace(s.Name),
		CompanyName: strings.TrimSpace(s.CompanyName),
		Email:       strings.TrimSpace(s.Email),
		Phone:       normalizePhone(s.Phone),
		Address: &shipx.Address{
			Street:         strings.TrimSpace(s.Street),
			BuildingNumber: strings.TrimSpace(s.BuildingNumber),
			City:           strings.TrimSpace(s.City),
			PostCode:       normalizePostCode(s.PostCode),
			CountryCode:    normalizeCountry(s.CountryCode),
		},
	}
}

func (a *adapter) toOutput(s *shipx.Shipment) (*ShipmentOutput, error) {
	if s == nil || s.ID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier response is missing a shipment id")
	}
	if strings.TrimSpace(s.TrackingNumber) == "" && strings.TrimSpace(s.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier response is missing a trackable reference").
			WithDetails(map[string]any{"shipmentId": s.ID.String()})
	}
	return &ShipmentOutput{
		Provider:        ProviderInPost,
		TrackingNumber:  s.TrackingNumber,
		TrackingURL:     a.TrackingURL(s.TrackingNumber),
		Status:          s.Status,
		ShipmentID:      s.ID.String(),
		ShipXStatus:     s.Status,
		SelectedOfferID: s.SelectedOfferID(),
	}, nil
}

// validatePayload rejects empty strings and unresolved placeholders anywhere in the
// outgoing request.
func validatePayload(req *shipx.CreateShipmentRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode shipment request: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode shipment request: %w", err)
	}

	var empty, placeholders []string
	walkStrings(tree, "", func(path, value string) {
		switch {
		case strings.TrimSpace(value) == "":
			empty = append(empty, path)
		case config.IsPlaceholder(value):
			placeholders = append(placeholders, path)
		}
	})
	if len(empty) == 0 && len(placeholders) == 0 {
		return nil
	}
	sort.Strings(empty)
	sort.Strings(placeholders)
	details := map[string]any{}
	if len(empty) > 0 {
		details["empty"] = empty
	}
	if len(placeholders) > 0 {
		details["placeholders"] = placeholders
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "shipment payload is incomplete").WithDetails(details)
}

func walkStrings(node any, path string, visit func(path, value string)) {
	switch v := node.(type) {
	case string:
		visit(path, v)
	case map[string]any:
		for key, child := range v {
			walkStrings(child, joinPath(path, key), visit)
		}
	case []any:
		for i, child := range v {
			walkStrings(child, path+"["+strconv.Itoa(i)+"]", visit)
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
