package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
)

// Repository is the Order Store: orders plus the product catalog.
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindShipmentPollCandidates(ctx context.Context, terminalStatuses []string, limit int) ([]models.Order, error)

	// Transition moves the order to `to` only while its status is one of `from`.
	// It reports whether a row changed.
	Transition(ctx context.Context, id int64, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (bool, error)
	// SetIfNull writes column only while it is still NULL (first write wins).
	SetIfNull(ctx context.Context, id int64, column string, value any, extra map[string]any) (bool, error)
	Update(ctx context.Context, id int64, updates map[string]any) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	FindProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	CountProducts(ctx context.Context) (int64, error)
}

// PaymentStatusApplier is the reconciliation entry point used right after checkout.
type PaymentStatusApplier interface {
	ApplyPaymentStatusUpdate(ctx context.Context, order *models.Order, status enums.PaymentStatus, in PaymentUpdate) (*models.Order, error)
}

// PaymentUpdate carries the optional fields accompanying a status change.
type PaymentUpdate struct {
	PaymentReference string
	PaymentProvider  string
	Product          *models.Product
}
