package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gamestore-backend/internal/invoices"
	"github.com/angelmondragon/gamestore-backend/internal/notifications"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/payments"
	"github.com/angelmondragon/gamestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
)

type fakeShipping struct {
	calls int
	err   error
}

func (f *fakeShipping) OnOrderPaid(ctx context.Context, order *models.Order) (*models.Shipment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Shipment{OrderID: order.ID}, nil
}

type fakeInvoices struct {
	calls int
	err   error
}

func (f *fakeInvoices) Generate(ctx context.Context, order *models.Order, product *models.Product) (*invoices.Invoice, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &invoices.Invoice{
		Number:   fmt.Sprintf("FV/2025/03/%06d", order.ID),
		Path:     fmt.Sprintf("/tmp/invoice-%d.pdf", order.ID),
		IssuedAt: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakeMailer struct {
	paid int
	err  error
}

func (f *fakeMailer) SendPaidInvoiceEmail(ctx context.Context, order *models.Order, inv notifications.InvoiceAttachment) error {
	f.paid++
	return f.err
}

func (f *fakeMailer) SendShipmentDispatchedEmail(ctx context.Context, order *models.Order, trackingURL string) error {
	return nil
}

type fakeGateway struct {
	status string
	calls  int
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, in payments.CreateIntentInput) (*payments.CreatedIntent, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*payments.Intent, error) {
	f.calls++
	return &payments.Intent{ID: id, Status: f.status}, nil
}

func (f *fakeGateway) MockMode() bool { return false }

type fixture struct {
	svc      Service
	repo     orders.Repository
	shipping *fakeShipping
	invoices *fakeInvoices
	mailer   *fakeMailer
	gateway  *fakeGateway
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     orders.NewRepository(dbtest.Open(t)),
		shipping: &fakeShipping{},
		invoices: &fakeInvoices{},
		mailer:   &fakeMailer{},
		gateway:  &fakeGateway{},
		clock:    time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Orders:   f.repo,
		Gateway:  f.gateway,
		Shipping: f.shipping,
		Invoices: f.invoices,
		Mailer:   f.mailer,
		Now:      func() time.Time { return f.clock },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) createOrder(t *testing.T, status enums.OrderStatus) *models.Order {
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
	require.NoError(t, f.repo.Create(context.Background(), order))
	return order
}

func TestPendingSetsTimestampOnce(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusCreated)
	ctx := context.Background()

	updated, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusPending, orders.PaymentUpdate{PaymentReference: "pi_123", PaymentProvider: "stripe"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPending, updated.Status)
	require.NotNil(t, updated.PaymentPendingAt)
	assert.True(t, updated.PaymentPendingAt.Equal(f.clock))
	assert.Equal(t, "pi_123", *updated.PaymentReference)
	assert.Equal(t, "stripe", *updated.PaymentProvider)
	assert.Equal(t, 0, f.shipping.calls)
}

func TestCompletedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	first, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCompleted, orders.PaymentUpdate{PaymentReference: "pi_123"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, first.Status)
	require.NotNil(t, first.PaymentConfirmedAt)
	require.NotNil(t, first.EmailSentAt)
	require.NotNil(t, first.InvoiceNumber)

	f.clock = f.clock.Add(time.Hour)
	second, err := f.svc.ApplyPaymentStatusUpdate(ctx, first, enums.PaymentStatusCompleted, orders.PaymentUpdate{PaymentReference: "pi_other"})
	require.NoError(t, err)

	// A stale in-memory copy still must not re-run the workflow.
	third, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCompleted, orders.PaymentUpdate{PaymentReference: "pi_other"})
	require.NoError(t, err)

	for _, o := range []*models.Order{second, third} {
		assert.Equal(t, enums.OrderStatusPaid, o.Status)
		assert.True(t, o.PaymentConfirmedAt.Equal(*first.PaymentConfirmedAt))
		assert.True(t, o.EmailSentAt.Equal(*first.EmailSentAt))
		assert.Equal(t, *first.InvoiceNumber, *o.InvoiceNumber)
		assert.Equal(t, "pi_123", *o.PaymentReference)
	}
	assert.Equal(t, 1, f.shipping.calls)
	assert.Equal(t, 1, f.invoices.calls)
	assert.Equal(t, 1, f.mailer.paid)
}

func TestFailedDoesNotDowngradePaid(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	paid, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCompleted, orders.PaymentUpdate{})
	require.NoError(t, err)

	for _, status := range []enums.PaymentStatus{enums.PaymentStatusFailed, enums.PaymentStatusCanceled, enums.PaymentStatusPending} {
		out, err := f.svc.ApplyPaymentStatusUpdate(ctx, paid, status, orders.PaymentUpdate{})
		require.NoError(t, err)
		assert.Equal(t, enums.OrderStatusPaid, out.Status, status)
	}
}

func TestFailedThenCompleted(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	failed, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCanceled, orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, failed.Status)
	assert.Nil(t, failed.PaymentConfirmedAt)
	assert.Equal(t, 0, f.invoices.calls)

	paid, err := f.svc.ApplyPaymentStatusUpdate(ctx, failed, enums.PaymentStatusCompleted, orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	assert.Equal(t, 1, f.mailer.paid)
}

func TestUnknownStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusCreated)

	out, err := f.svc.ApplyPaymentStatusUpdate(context.Background(), order, enums.PaymentStatus("REFUNDED"), orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.Same(t, order, out)

	stored, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCreated, stored.Status)
}

func TestShippingFailureDoesNotBlockInvoice(t *testing.T) {
	f := newFixture(t)
	f.shipping.err = errors.New("carrier down")
	order := f.createOrder(t, enums.OrderStatusPaymentPending)

	out, err := f.svc.ApplyPaymentStatusUpdate(context.Background(), order, enums.PaymentStatusCompleted, orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.NotNil(t, out.InvoiceNumber)
	assert.NotNil(t, out.EmailSentAt)
}

func TestInvoiceFailureSkipsEmailAndReplayRecovers(t *testing.T) {
	f := newFixture(t)
	f.invoices.err = errors.New("disk full")
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	out, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCompleted, orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, out.Status)
	assert.Nil(t, out.InvoiceNumber)
	assert.Nil(t, out.EmailSentAt)
	assert.Equal(t, 0, f.mailer.paid)

	f.invoices.err = nil
	replayed, err := f.svc.CompletePostPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, replayed.InvoiceNumber)
	assert.NotNil(t, replayed.EmailSentAt)
	assert.Equal(t, 1, f.mailer.paid)
	assert.Equal(t, 2, f.shipping.calls)

	_, err = f.svc.CompletePostPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.mailer.paid)
	assert.Equal(t, 2, f.invoices.calls)
}

func TestEmailFailureLeavesGateOpen(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("sendgrid 500")
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	out, err := f.svc.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusCompleted, orders.PaymentUpdate{})
	require.NoError(t, err)
	assert.Nil(t, out.EmailSentAt)

	f.mailer.err = nil
	out, err = f.svc.CompletePostPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, out.EmailSentAt)
	assert.Equal(t, 2, f.mailer.paid)
	assert.Equal(t, 1, f.invoices.calls)
}

func TestCompletePostPaymentRequiresPaid(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusPaymentPending)

	_, err := f.svc.CompletePostPayment(context.Background(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.CompletePostPayment(context.Background(), 999)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSyncFromGateway(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.OrderStatusPaymentPending)
	ctx := context.Background()

	f.gateway.status = "processing"
	res, err := f.svc.SyncFromGateway(ctx, order, false)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, res.Status)
	assert.False(t, res.Changed())

	f.gateway.status = "succeeded"
	res, err = f.svc.SyncFromGateway(ctx, order, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.False(t, res.Changed())
	stored, err := f.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPending, stored.Status)

	res, err = f.svc.ResyncOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed())
	assert.Equal(t, enums.OrderStatusPaid, res.CurrentStatus)
	assert.Equal(t, 3, f.gateway.calls)
}

func TestSyncFromGatewayRequiresIntent(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SyncFromGateway(context.Background(), &models.Order{ID: 1}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
