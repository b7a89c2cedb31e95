package orders

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"gorm.io/gorm"
)

const paymentProviderStripe = "stripe"

// Service owns checkout-time order creation and customer-facing reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id int64, paymentIntentID string) (*models.Order, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	SeedCatalog(ctx context.Context) error
}

type ServiceParams struct {
	Repo     Repository
	Payments PaymentStatusApplier
	Delivery config.DeliveryConfig
	Catalog  config.CatalogConfig
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	payments PaymentStatusApplier
	delivery config.DeliveryConfig
	catalog  config.CatalogConfig
	currency string
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment status applier required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "pln"
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		delivery: params.Delivery,
		catalog:  params.Catalog,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	method, err := validateCreateInput(&input)
	if err != nil {
		return nil, err
	}

	// A resubmitted checkout for the same intent returns the order already created for it.
	existing, err := s.repo.FindByPaymentIntentID(ctx, input.PaymentIntentID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by payment intent")
	}

	product, err := s.repo.FindProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"productId": input.ProductID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	deliveryCost := s.deliveryCost(method)
	order := &models.Order{
		ProductID:         product.ID,
		Quantity:          input.Quantity,
		TotalCents:        product.PriceCents*int64(input.Quantity) + deliveryCost,
		DeliveryCostCents: deliveryCost,
		Currency:          s.currency,
		CustomerName:      input.CustomerName,
		CustomerEmail:     input.CustomerEmail,
		CustomerPhone:     input.CustomerPhone,
		Address:           input.Address,
		City:              input.City,
		PostalCode:        input.PostalCode,
		Country:           input.Country,
		Status:            enums.OrderStatusCreated,
		PaymentIntentID:   ptr(input.PaymentIntentID),
		DeliveryMethod:    method,
	}
	if method == enums.DeliveryMethodParcelLocker {
		order.DeliveryPointID = ptr(input.DeliveryPoint)
	}

	if err := s.repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(ctx, "order created")

	updated, err := s.payments.ApplyPaymentStatusUpdate(ctx, order, enums.PaymentStatusPending, PaymentUpdate{
		PaymentReference: input.PaymentIntentID,
		PaymentProvider:  paymentProviderStripe,
		Product:          product,
	})
	if err != nil {
		// The order exists; the payment poller picks it up once the intent settles.
		s.logg.Error(ctx, "mark order payment pending", err)
		return order, nil
	}
	return updated, nil
}

// GetOrder returns the order only to a caller holding its payment intent id.
// A mismatch looks exactly like an unknown order so ids cannot be enumerated.
func (s *service) GetOrder(ctx context.Context, id int64, paymentIntentID string) (*models.Order, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment intent id required")
	}
	notFound := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.PaymentIntentID == nil ||
		subtle.ConstantTimeCompare([]byte(*order.PaymentIntentID), []byte(paymentIntentID)) != 1 {
		return nil, notFound
	}
	return order, nil
}

func (s *service) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return products, nil
}

// SeedCatalog inserts the configured product when the catalog is empty.
func (s *service) SeedCatalog(ctx context.Context) error {
	count, err := s.repo.CountProducts(ctx)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	product := &models.Product{
		Name:        s.catalog.ProductName,
		Description: s.catalog.ProductDescription,
		PriceCents:  s.catalog.ProductPriceCents,
		Image:       s.catalog.ProductImage,
		Category:    s.catalog.ProductCategory,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("seed product: %w", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID), "catalog seeded")
	return nil
}

func (s *service) deliveryCost(method enums.DeliveryMethod) int64 {
	if method == enums.DeliveryMethodParcelLocker {
		return s.delivery.LockerCostCents
	}
	return s.delivery.CourierCostCents
}

func validateCreateInput(input *CreateOrderInput) (enums.DeliveryMethod, error) {
	input.PaymentIntentID = strings.TrimSpace(input.PaymentIntentID)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	input.Address = strings.TrimSpace(input.Address)
	input.City = strings.TrimSpace(input.City)
	input.PostalCode = strings.TrimSpace(input.PostalCode)
	input.Country = strings.TrimSpace(input.Country)
	input.DeliveryPoint = strings.TrimSpace(input.DeliveryPoint)

	missing := []string{}
	if input.ProductID <= 0 {
		missing = append(missing, "productId")
	}
	if input.Quantity <= 0 {
		missing = append(missing, "quantity")
	}
	required := map[string]string{
		"paymentIntentId": input.PaymentIntentID,
		"customerName":    input.CustomerName,
		"customerEmail":   input.CustomerEmail,
		"customerPhone":   input.CustomerPhone,
		"address":         input.Address,
		"city":            input.City,
		"postalCode":      input.PostalCode,
		"country":         input.Country,
	}
	for _, field := range []string{"paymentIntentId", "customerName", "customerEmail", "customerPhone", "address", "city", "postalCode", "country"} {
		if required[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}

	method, err := enums.ParseDeliveryMethod(input.DeliveryMethod)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method")
	}
	if method == enums.DeliveryMethodParcelLocker && input.DeliveryPoint == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "parcel locker delivery requires a delivery point").
			WithDetails(map[string]any{"fields": []string{"deliveryPoint"}})
	}
	return method, nil
}

func ptr[T any](v T) *T {
	return &v
}
