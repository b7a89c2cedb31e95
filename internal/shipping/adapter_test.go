package shipping

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/shipx"
)

type fakeCarrier struct {
	createCalls int
	getCalls    int
	buyCalls    int
	labelCalls  int

	lastCreate shipx.CreateShipmentRequest

	createErrs []error
	createResp *shipx.Shipment
	getResp    *shipx.Shipment
	getErr     error
	buyResp    *shipx.Shipment
	buyErr     error
	label      *shipx.Label
}

func (f *fakeCarrier) CreateShipment(ctx context.Context, req shipx.CreateShipmentRequest) (*shipx.Shipment, error) {
	f.createCalls++
	f.lastCreate = req
	if len(f.createErrs) >= f.createCalls {
		if err := f.createErrs[f.createCalls-1]; err != nil {
			return nil, err
		}
	}
	return f.createResp, nil
}

func (f *fakeCarrier) GetShipment(ctx context.Context, id string) (*shipx.Shipment, error) {
	f.getCalls++
	return f.getResp, f.getErr
}

func (f *fakeCarrier) BuyShipment(ctx context.Context, id, offerID string) (*shipx.Shipment, error) {
	f.buyCalls++
	return f.buyResp, f.buyErr
}

func (f *fakeCarrier) GetLabel(ctx context.Context, id, format string) (*shipx.Label, error) {
	f.labelCalls++
	return f.label, nil
}

func testSender() config.SenderConfig {
	return config.SenderConfig{
		Name:           "Gamestore",
		CompanyName:    "Gamestore sp. z o.o.",
		Email:          "shop@example.com",
		Phone:          "+48 500 600 700",
		Street:         "Magazynowa",
		BuildingNumber: "1",
		City:           "Kraków",
		PostCode:       "30-001",
		CountryCode:    "PL",
	}
}

func testDelivery() config.DeliveryConfig {
	return config.DeliveryConfig{
		LockerTemplate: "medium",
		ParcelWeightKg: "2.5",
		ParcelLengthMM: "400",
		ParcelWidthMM:  "300",
		ParcelHeightMM: "120",
	}
}

func newTestAdapter(t *testing.T, client CarrierClient, sender config.SenderConfig) Provider {
	t.Helper()
	p, err := NewAdapter(AdapterParams{
		Client:   client,
		Sender:   sender,
		Delivery: testDelivery(),
		ShipX: config.ShipXConfig{
			RetryAttempts:  3,
			RetryBaseDelay: time.Millisecond,
			TrackingURL:    "https://track.example/?n=",
		},
	})
	require.NoError(t, err)
	return p
}

func courierOrder() *models.Order {
	return &models.Order{
		ID:             1,
		Quantity:       1,
		CustomerName:   "Jan Kowalski",
		CustomerEmail:  "jan@example.com",
		CustomerPhone:  "500 600 700",
		Address:        "ul. Długa 5, m. 3",
		City:           "Kraków",
		PostalCode:     "30001",
		Country:        "Polska",
		DeliveryMethod: enums.DeliveryMethodCourier,
	}
}

func TestCreateShipmentCourierPayload(t *testing.T) {
	carrier := &fakeCarrier{createResp: &shipx.Shipment{ID: "777", Status: "created", Reference: "order-1"}}
	p := newTestAdapter(t, carrier, testSender())

	out, err := p.CreateShipment(context.Background(), courierOrder())
	require.NoError(t, err)

	req := carrier.lastCreate
	assert.Equal(t, shipx.ServiceCourierStandard, req.Service)
	assert.Equal(t, "order-1", req.Reference)
	require.NotNil(t, req.Receiver.Address)
	assert.Equal(t, "ul. Długa", req.Receiver.Address.Street)
	assert.Equal(t, "5", req.Receiver.Address.BuildingNumber)
	assert.Equal(t, "30-001", req.Receiver.Address.PostCode)
	assert.Equal(t, "PL", req.Receiver.Address.CountryCode)
	assert.Equal(t, "500600700", req.Receiver.Phone)
	require.Len(t, req.Parcels, 1)
	assert.Equal(t, "mm", req.Parcels[0].Dimensions.Unit)

	assert.Equal(t, ProviderInPost, out.Provider)
	assert.Equal(t, "777", out.ShipmentID)
	assert.Equal(t, "created", out.ShipXStatus)
}

func TestCreateShipmentLockerRequiresPoint(t *testing.T) {
	carrier := &fakeCarrier{}
	p := newTestAdapter(t, carrier, testSender())

	order := courierOrder()
	order.DeliveryMethod = enums.DeliveryMethodParcelLocker

	_, err := p.CreateShipment(context.Background(), order)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 0, carrier.createCalls)
}

func TestCreateShipmentLockerPayload(t *testing.T) {
	carrier := &fakeCarrier{createResp: &shipx.Shipment{ID: "9", Reference: "order-1", TrackingNumber: "6200"}}
	p := newTestAdapter(t, carrier, testSender())

	order := courierOrder()
	order.DeliveryMethod = enums.DeliveryMethodParcelLocker
	point := "KRA01M"
	order.DeliveryPointID = &point

	out, err := p.CreateShipment(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, shipx.ServiceLockerStandard, carrier.lastCreate.Service)
	assert.Equal(t, "KRA01M", carrier.lastCreate.CustomAttributes["target_point"])
	assert.Equal(t, "medium", carrier.lastCreate.Parcels[0].Template)
	assert.Nil(t, carrier.lastCreate.Receiver.Address)
	assert.Equal(t, "https://track.example/?n=6200", out.TrackingURL)
}

func TestCreateShipmentRejectsPlaceholderSender(t *testing.T) {
	sender := testSender()
	sender.Street = "<SENDER_STREET>"
	carrier := &fakeCarrier{}
	p := newTestAdapter(t, carrier, sender)

	_, err := p.CreateShipment(context.Background(), courierOrder())
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeValidation, coded.Code())
	details := coded.Details().(map[string]any)
	assert.Equal(t, []string{"sender.address.street"}, details["placeholders"])
	assert.Equal(t, 0, carrier.createCalls)
}

func TestCreateShipmentRejectsEmptyField(t *testing.T) {
	sender := testSender()
	sender.City = ""
	carrier := &fakeCarrier{}
	p := newTestAdapter(t, carrier, sender)

	_, err := p.CreateShipment(context.Background(), courierOrder())
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, []string{"sender.address.city"}, details["empty"])
}

func TestCreateShipmentRetriesServerErrors(t *testing.T) {
	unavailable := &shipx.APIError{StatusCode: http.StatusServiceUnavailable}
	carrier := &fakeCarrier{
		createErrs: []error{unavailable, unavailable},
		createResp: &shipx.Shipment{ID: "1", Reference: "order-1"},
	}
	p := newTestAdapter(t, carrier, testSender())

	_, err := p.CreateShipment(context.Background(), courierOrder())
	require.NoError(t, err)
	assert.Equal(t, 3, carrier.createCalls)
}

func TestCreateShipmentDoesNotRetryClientErrors(t *testing.T) {
	carrier := &fakeCarrier{createErrs: []error{&shipx.APIError{StatusCode: http.StatusUnprocessableEntity}}}
	p := newTestAdapter(t, carrier, testSender())

	_, err := p.CreateShipment(context.Background(), courierOrder())
	require.Error(t, err)
	assert.Equal(t, 1, carrier.createCalls)
}

func TestCreateShipmentRequiresCarrierID(t *testing.T) {
	carrier := &fakeCarrier{createResp: &shipx.Shipment{Reference: "order-1"}}
	p := newTestAdapter(t, carrier, testSender())

	_, err := p.CreateShipment(context.Background(), courierOrder())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestTrackingURL(t *testing.T) {
	p := newTestAdapter(t, &fakeCarrier{}, testSender())
	assert.Equal(t, "", p.TrackingURL(""))
	assert.Equal(t, "https://track.example/?n=123", p.TrackingURL(" 123 "))
}
