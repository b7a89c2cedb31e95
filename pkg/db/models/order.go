package models

import (
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/enums"
)

// Order is one purchase attempt. Money columns are integer minor units.
type Order struct {
	ID                int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID         int64  `gorm:"column:product_id;not null"`
	Quantity          int    `gorm:"column:quantity;not null"`
	TotalCents        int64  `gorm:"column:total;not null"`
	DeliveryCostCents int64  `gorm:"column:delivery_cost;not null;default:0"`
	Currency          string `gorm:"column:currency;not null;default:'pln'"`

	CustomerName  string `gorm:"column:customer_name;not null"`
	CustomerEmail string `gorm:"column:customer_email;not null"`
	CustomerPhone string `gorm:"column:customer_phone;not null"`
	Address       string `gorm:"column:address;not null"`
	City          string `gorm:"column:city;not null"`
	PostalCode    string `gorm:"column:postal_code;not null"`
	Country       string `gorm:"column:country;not null"`

	Status             enums.OrderStatus `gorm:"column:status;not null;default:'CREATED';index"`
	PaymentIntentID    *string           `gorm:"column:payment_intent_id;index"`
	PaymentProvider    *string           `gorm:"column:payment_provider"`
	PaymentReference   *string           `gorm:"column:payment_reference;index"`
	PaymentPendingAt   *time.Time        `gorm:"column:payment_pending_at"`
	PaymentConfirmedAt *time.Time        `gorm:"column:payment_confirmed_at"`

	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;not null;default:'COURIER'"`
	DeliveryPointID *string              `gorm:"column:delivery_point_id"`

	ShipmentID     *string `gorm:"column:shipment_id"`
	ShipmentStatus *string `gorm:"column:shipment_status"`
	TrackingNumber *string `gorm:"column:tracking_number"`
	LabelGenerated bool    `gorm:"column:label_generated;not null;default:false"`

	InvoiceNumber   *string    `gorm:"column:invoice_number"`
	InvoicePDFPath  *string    `gorm:"column:invoice_pdf_path"`
	InvoiceIssuedAt *time.Time `gorm:"column:invoice_issued_at"`
	EmailSentAt     *time.Time `gorm:"column:email_sent_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// ItemsTotalCents is the product portion of the total.
func (o Order) ItemsTotalCents() int64 {
	return o.TotalCents - o.DeliveryCostCents
}
