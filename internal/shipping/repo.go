package shipping

import (
	"context"
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists the one-per-order shipment rows.
type Repository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	// SetIfNull writes column only while it is still NULL and reports whether it did.
	SetIfNull(ctx context.Context, id int64, column string, value any, extra map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	values := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (r *repository) SetIfNull(ctx context.Context, id int64, column string, value any, extra map[string]any) (bool, error) {
	values := map[string]any{column: value, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", id).
		Where(column + " IS NULL").
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
