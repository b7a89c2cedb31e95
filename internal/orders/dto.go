package orders

import (
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
)

// CreateOrderInput is the checkout submission.
type CreateOrderInput struct {
	ProductID       int64  `json:"productId" validate:"required,gt=0"`
	Quantity        int    `json:"quantity" validate:"required,gt=0,lte=20"`
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	CustomerName    string `json:"customerName" validate:"required"`
	CustomerEmail   string `json:"customerEmail" validate:"required,email"`
	CustomerPhone   string `json:"customerPhone" validate:"required,phone"`
	Address         string `json:"address" validate:"required"`
	City            string `json:"city" validate:"required"`
	PostalCode      string `json:"postalCode" validate:"required"`
	Country         string `json:"country" validate:"required"`
	DeliveryMethod  string `json:"deliveryMethod" validate:"omitempty,oneof=PARCEL_LOCKER COURIER parcel_locker courier"`
	DeliveryPoint   string `json:"deliveryPoint"`
}

// ProductDTO is the public catalog shape.
type ProductDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

func NewProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.PriceCents,
		Image:       p.Image,
		Category:    p.Category,
	}
}

// OrderSummary is what a customer may see about their order.
type OrderSummary struct {
	ID             int64                `json:"id"`
	Status         enums.OrderStatus    `json:"status"`
	Quantity       int                  `json:"quantity"`
	Total          int64                `json:"total"`
	DeliveryCost   int64                `json:"deliveryCost"`
	Currency       string               `json:"currency"`
	DeliveryMethod enums.DeliveryMethod `json:"deliveryMethod"`
	PaidAt         *time.Time           `json:"paidAt,omitempty"`
	TrackingNumber *string              `json:"trackingNumber,omitempty"`
	InvoiceNumber  *string              `json:"invoiceNumber,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func NewOrderSummary(o models.Order) OrderSummary {
	return OrderSummary{
		ID:             o.ID,
		Status:         o.Status,
		Quantity:       o.Quantity,
		Total:          o.TotalCents,
		DeliveryCost:   o.DeliveryCostCents,
		Currency:       o.Currency,
		DeliveryMethod: o.DeliveryMethod,
		PaidAt:         o.PaymentConfirmedAt,
		TrackingNumber: o.TrackingNumber,
		InvoiceNumber:  o.InvoiceNumber,
		CreatedAt:      o.CreatedAt,
	}
}
