package webhooks

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
)

// Ledger is the webhook event dedup store keyed by provider event id.
type Ledger interface {
	// Record inserts the event and reports false when the id is already present.
	Record(ctx context.Context, event *models.WebhookEvent) (bool, error)
	AttachOrder(ctx context.Context, id string, orderID int64) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, id string) (*models.WebhookEvent, error)
}

type ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) Record(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (l *ledger) AttachOrder(ctx context.Context, id string, orderID int64) error {
	return l.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND order_id IS NULL", id).
		Update("order_id", orderID).Error
}

func (l *ledger) Delete(ctx context.Context, id string) error {
	return l.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WebhookEvent{}).Error
}

func (l *ledger) Find(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}
