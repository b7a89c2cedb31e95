package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gamestore-backend/internal/invoices"
	"github.com/angelmondragon/gamestore-backend/internal/notifications"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/reconciliation"
	"github.com/angelmondragon/gamestore-backend/internal/shipping"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/shipx"
)

type countingApplier struct {
	calls int
	err   error
}

func (c *countingApplier) ApplyPaymentStatusUpdate(ctx context.Context, order *models.Order, status enums.PaymentStatus, in orders.PaymentUpdate) (*models.Order, error) {
	c.calls++
	return order, c.err
}

type stubProvider struct {
	buys int
}

func (p *stubProvider) CreateShipment(ctx context.Context, order *models.Order) (*shipping.ShipmentOutput, error) {
	return &shipping.ShipmentOutput{Provider: shipping.ProviderInPost, ShipmentID: "sx-100", Status: "created", SelectedOfferID: "off-1"}, nil
}

func (p *stubProvider) GetShipment(ctx context.Context, id string) (*shipx.Shipment, error) {
	return &shipx.Shipment{ID: shipx.FlexID(id), Status: "offer_selected"}, nil
}

func (p *stubProvider) BuyShipment(ctx context.Context, id, offerID string) (*shipx.Shipment, error) {
	p.buys++
	return &shipx.Shipment{ID: shipx.FlexID(id), TrackingNumber: "6200001"}, nil
}

func (p *stubProvider) GetLabel(ctx context.Context, id string) (*shipx.Label, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) TrackingURL(n string) string { return "https://track.example/" + n }

type stubMailer struct {
	paid int
}

func (m *stubMailer) SendPaidInvoiceEmail(ctx context.Context, order *models.Order, inv notifications.InvoiceAttachment) error {
	m.paid++
	return nil
}

func (m *stubMailer) SendShipmentDispatchedEmail(ctx context.Context, order *models.Order, url string) error {
	return nil
}

func createOrder(t *testing.T, repo orders.Repository, status enums.OrderStatus) *models.Order {
	t.Helper()
	intent := "pi_123"
	order := &models.Order{
		ProductID:       1,
		Quantity:        1,
		TotalCents:      29900,
		Currency:        "pln",
		CustomerName:    "Jan Kowalski",
		CustomerEmail:   "jan@example.com",
		CustomerPhone:   "500600700",
		Address:         "ul. Długa 5",
		City:            "Kraków",
		PostalCode:      "30-001",
		Country:         "PL",
		Status:          status,
		PaymentIntentID: &intent,
		DeliveryMethod:  enums.DeliveryMethodCourier,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func stripeSucceeded(eventID string) []byte {
	return []byte(`{"id":"` + eventID + `","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded"}}}`)
}

func TestProcessDeduplicatesByEventID(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	createOrder(t, repo, enums.OrderStatusPaymentPending)
	applier := &countingApplier{}
	ledger := NewLedger(conn)

	svc, err := NewService(ServiceParams{
		Verifier: NewVerifier(testStripeSecret, ""),
		Ledger:   ledger,
		Orders:   repo,
		Applier:  applier,
	})
	require.NoError(t, err)

	body := stripeSucceeded("evt_dup")
	for i := 0; i < 2; i++ {
		event, err := svc.Verify(body, stripeHeaders(t, body))
		require.NoError(t, err)
		res, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, OutcomeProcessed, res.Outcome)
		} else {
			assert.Equal(t, OutcomeDuplicate, res.Outcome)
		}
	}
	assert.Equal(t, 1, applier.calls)

	stored, err := ledger.Find(context.Background(), "evt_dup")
	require.NoError(t, err)
	assert.Equal(t, string(enums.PaymentStatusCompleted), stored.Status)
	assert.Equal(t, "pi_123", *stored.PaymentReference)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, int64(1), *stored.OrderID)
	assert.True(t, stored.SignatureValid)
}

func TestVerifyRejectsBeforeAnyWrite(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Verifier: NewVerifier(testStripeSecret, testHMACSecret),
		Ledger:   NewLedger(conn),
		Orders:   orders.NewRepository(conn),
		Applier:  &countingApplier{},
	})
	require.NoError(t, err)

	_, err = svc.Verify(stripeSucceeded("evt_x"), http.Header{HeaderSignature: []string{"deadbeef"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	var count int64
	require.NoError(t, conn.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessFailureReleasesLedger(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	createOrder(t, repo, enums.OrderStatusPaymentPending)
	applier := &countingApplier{err: errors.New("db timeout")}
	ledger := NewLedger(conn)
	svc, err := NewService(ServiceParams{Verifier: NewVerifier("", testHMACSecret), Ledger: ledger, Orders: repo, Applier: applier})
	require.NoError(t, err)

	event, err := ParsePayload(ProviderGeneric, []byte(`{"eventId":"g-1","status":"PAID","reference":"pi_123"}`))
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), event)
	require.Error(t, err)
	_, err = ledger.Find(context.Background(), "g-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	applier.err = nil
	res, err := svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, 2, applier.calls)
}

func TestProcessIgnoresUnknownStatus(t *testing.T) {
	conn := dbtest.Open(t)
	applier := &countingApplier{}
	svc, err := NewService(ServiceParams{Verifier: NewVerifier("", testHMACSecret), Ledger: NewLedger(conn), Orders: orders.NewRepository(conn), Applier: applier})
	require.NoError(t, err)

	unknown, err := ParsePayload(ProviderGeneric, []byte(`{"eventId":"g-2","status":"REFUNDED","reference":"pi_123"}`))
	require.NoError(t, err)
	res, err := svc.Process(context.Background(), unknown)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Zero(t, applier.calls)
}

func TestProcessUnmatchedEventIsRedeliverable(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := orders.NewRepository(conn)
	ledger := NewLedger(conn)
	applier := &countingApplier{}
	svc, err := NewService(ServiceParams{Verifier: NewVerifier("", testHMACSecret), Ledger: ledger, Orders: repo, Applier: applier})
	require.NoError(t, err)

	event, err := ParsePayload(ProviderGeneric, []byte(`{"eventId":"g-9","status":"PAID","reference":"pi_123"}`))
	require.NoError(t, err)

	_, err = svc.Process(ctx, event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnavailable))
	_, err = ledger.Find(ctx, "g-9")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, applier.calls)

	order := createOrder(t, repo, enums.OrderStatusPaymentPending)

	res, err := svc.Process(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, order.ID, *res.OrderID)
	assert.Equal(t, 1, applier.calls)
}

func TestPaidWebhookRunsFullFulfillment(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	order := createOrder(t, repo, enums.OrderStatusCreated)
	require.Equal(t, int64(1), order.ID)
	ctx := context.Background()

	provider := &stubProvider{}
	shipments := shipping.NewRepository(conn)
	mailer := &stubMailer{}
	shipSvc, err := shipping.NewService(shipping.ServiceParams{Orders: repo, Shipments: shipments, Provider: provider, Mailer: mailer, LabelsDir: t.TempDir()})
	require.NoError(t, err)
	gen, err := invoices.NewGenerator(config.InvoicesConfig{StorageDir: t.TempDir(), NumberPrefix: "FV"})
	require.NoError(t, err)
	recon, err := reconciliation.NewService(reconciliation.ServiceParams{
		Orders:   repo,
		Shipping: shipSvc,
		Invoices: gen,
		Mailer:   mailer,
		Now:      func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{Verifier: NewVerifier(testStripeSecret, ""), Ledger: NewLedger(conn), Orders: repo, Applier: recon})
	require.NoError(t, err)

	for _, id := range []string{"evt_paid", "evt_paid", "evt_paid_retry"} {
		body := stripeSucceeded(id)
		event, err := svc.Verify(body, stripeHeaders(t, body))
		require.NoError(t, err)
		_, err = svc.Process(ctx, event)
		require.NoError(t, err)
	}

	paid, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentConfirmedAt)
	assert.True(t, paid.PaymentConfirmedAt.Equal(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)))
	require.NotNil(t, paid.InvoiceNumber)
	assert.Equal(t, "FV/2025/03/000001", *paid.InvoiceNumber)
	assert.NotNil(t, paid.EmailSentAt)
	assert.Equal(t, "pi_123", *paid.PaymentReference)

	shipment, err := shipments.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, shipment.ProviderShipmentID)
	assert.Equal(t, "sx-100", *shipment.ProviderShipmentID)
	assert.Equal(t, 1, provider.buys)
	assert.Equal(t, 1, mailer.paid)
}
