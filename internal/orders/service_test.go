package orders

import (
	"context"
	"testing"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingApplier struct {
	repo  Repository
	calls []enums.PaymentStatus
}

func (r *recordingApplier) ApplyPaymentStatusUpdate(ctx context.Context, order *models.Order, status enums.PaymentStatus, in PaymentUpdate) (*models.Order, error) {
	r.calls = append(r.calls, status)
	if _, err := r.repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusCreated}, enums.OrderStatusPaymentPending, map[string]any{
		"payment_reference": in.PaymentReference,
		"payment_provider":  in.PaymentProvider,
	}); err != nil {
		return nil, err
	}
	return r.repo.FindByID(ctx, order.ID)
}

func newTestService(t *testing.T) (Service, Repository, *recordingApplier) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	applier := &recordingApplier{repo: repo}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Payments: applier,
		Delivery: config.DeliveryConfig{LockerCostCents: 1399, CourierCostCents: 1899},
		Catalog:  config.CatalogConfig{ProductName: "Board Game", ProductPriceCents: 29900},
	})
	require.NoError(t, err)
	require.NoError(t, svc.SeedCatalog(context.Background()))
	return svc, repo, applier
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		ProductID:       1,
		Quantity:        2,
		PaymentIntentID: "pi_123",
		CustomerName:    "Jan Kowalski",
		CustomerEmail:   "jan@example.com",
		CustomerPhone:   "+48 500 600 700",
		Address:         "ul. Długa 5/3, 30-001 Kraków",
		City:            "Kraków",
		PostalCode:      "30-001",
		Country:         "Polska",
		DeliveryMethod:  "COURIER",
	}
}

func TestCreateOrderComputesTotalServerSide(t *testing.T) {
	svc, _, applier := newTestService(t)

	order, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(2*29900+1899), order.TotalCents)
	assert.Equal(t, int64(1899), order.DeliveryCostCents)
	assert.Equal(t, enums.OrderStatusPaymentPending, order.Status)
	assert.Equal(t, []enums.PaymentStatus{enums.PaymentStatusPending}, applier.calls)
}

func TestCreateOrderIsIdempotentPerIntent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateOrderRejectsLockerWithoutPoint(t *testing.T) {
	svc, repo, applier := newTestService(t)
	input := validInput()
	input.DeliveryMethod = "PARCEL_LOCKER"

	_, err := svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, applier.calls)

	_, lookupErr := repo.FindByPaymentIntentID(context.Background(), "pi_123")
	require.Error(t, lookupErr)
}

func TestCreateOrderLockerUsesLockerCost(t *testing.T) {
	svc, _, _ := newTestService(t)
	input := validInput()
	input.Quantity = 1
	input.DeliveryMethod = "parcel_locker"
	input.DeliveryPoint = "KRA010"

	order, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryMethodParcelLocker, order.DeliveryMethod)
	require.NotNil(t, order.DeliveryPointID)
	assert.Equal(t, "KRA010", *order.DeliveryPointID)
	assert.Equal(t, int64(29900+1399), order.TotalCents)
}

func TestCreateOrderValidatesRequiredFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	input := validInput()
	input.Quantity = 0
	input.CustomerEmail = "  "

	_, err := svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"quantity", "customerEmail"}, details["fields"])
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(t)
	input := validInput()
	input.ProductID = 99

	_, err := svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSeedCatalogRunsOnce(t *testing.T) {
	svc, repo, _ := newTestService(t)
	require.NoError(t, svc.SeedCatalog(context.Background()))

	count, err := repo.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetOrderNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetOrder(context.Background(), 404, "pi_123")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetOrderRequiresMatchingPaymentIntent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.GetOrder(ctx, order.ID, "pi_other")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	found, err := svc.GetOrder(ctx, order.ID, " pi_123 ")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}
