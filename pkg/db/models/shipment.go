package models

import "time"

// Shipment is the carrier-side record for an order. BoughtAt and BuyError are sticky.
type Shipment struct {
	ID                 int64      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID            int64      `gorm:"column:order_id;not null;uniqueIndex"`
	Provider           string     `gorm:"column:provider;not null"`
	ProviderShipmentID *string    `gorm:"column:provider_shipment_id"`
	SelectedOfferID    *string    `gorm:"column:selected_offer_id"`
	TrackingNumber     *string    `gorm:"column:tracking_number"`
	TrackingURL        *string    `gorm:"column:tracking_url"`
	Status             string     `gorm:"column:status;not null"`
	BoughtAt           *time.Time `gorm:"column:bought_at"`
	BuyError           *string    `gorm:"column:buy_error"`
	ShippedAt          *time.Time `gorm:"column:shipped_at"`
	LabelPath          *string    `gorm:"column:label_path"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Shipment) TableName() string { return "shipments" }
