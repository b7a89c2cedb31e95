package models

import "time"

// WebhookEvent is the dedup ledger keyed by the provider's event id.
type WebhookEvent struct {
	ID               string    `gorm:"column:id;primaryKey"`
	ReceivedAt       time.Time `gorm:"column:received_at;not null"`
	Provider         string    `gorm:"column:provider;not null"`
	EventType        string    `gorm:"column:event_type"`
	Status           string    `gorm:"column:status;not null"`
	PaymentReference *string   `gorm:"column:payment_reference"`
	OrderID          *int64    `gorm:"column:order_id;index"`
	SignatureValid   bool      `gorm:"column:signature_valid;not null"`
	RawPayload       string    `gorm:"column:raw_payload;not null"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
