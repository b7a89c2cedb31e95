// Package reconciliation applies normalized payment statuses to orders and runs
// the post-payment workflow exactly once per paid order.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/gamestore-backend/internal/invoices"
	"github.com/angelmondragon/gamestore-backend/internal/notifications"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/payments"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

// ShipmentLifecycle is the part of the shipping service triggered on payment.
type ShipmentLifecycle interface {
	OnOrderPaid(ctx context.Context, order *models.Order) (*models.Shipment, error)
}

// InvoiceGenerator renders an invoice document for a paid order.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order *models.Order, product *models.Product) (*invoices.Invoice, error)
}

// Service is the Payment Status Reconciliation Service.
type Service interface {
	orders.PaymentStatusApplier
	CompletePostPayment(ctx context.Context, orderID int64) (*models.Order, error)
	SyncFromGateway(ctx context.Context, order *models.Order, dryRun bool) (*SyncResult, error)
	ResyncOrder(ctx context.Context, orderID int64) (*SyncResult, error)
}

// SyncResult reports one gateway poll.
type SyncResult struct {
	OrderID        int64
	IntentStatus   string
	Status         enums.PaymentStatus
	PreviousStatus enums.OrderStatus
	CurrentStatus  enums.OrderStatus
	DryRun         bool
}

// Changed reports whether the poll moved the order.
func (r *SyncResult) Changed() bool {
	return r != nil && r.PreviousStatus != r.CurrentStatus
}

// ServiceParams carries the collaborators of NewService. Gateway and Shipping
// are optional; without a gateway the polling operations answer SERVICE_UNAVAILABLE.
type ServiceParams struct {
	Orders   orders.Repository
	Gateway  payments.Gateway
	Shipping ShipmentLifecycle
	Invoices InvoiceGenerator
	Mailer   notifications.Mailer
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	orders   orders.Repository
	gateway  payments.Gateway
	shipping ShipmentLifecycle
	invoices InvoiceGenerator
	mailer   notifications.Mailer
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the reconciliation service. Orders, Invoices and Mailer
// are required.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Invoices == nil || params.Mailer == nil {
		return nil, fmt.Errorf("invoice generator and mailer required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		orders:   params.Orders,
		gateway:  params.Gateway,
		shipping: params.Shipping,
		invoices: params.Invoices,
		mailer:   params.Mailer,
		logg:     params.Logger,
		now:      params.Now,
	}, nil
}

type transition struct {
	to        enums.OrderStatus
	from      []enums.OrderStatus
	timestamp string
}

// PAID is terminal: nothing moves an order out of it.
var transitions = map[enums.PaymentStatus]transition{
	enums.PaymentStatusPending: {
		to:        enums.OrderStatusPaymentPending,
		from:      []enums.OrderStatus{enums.OrderStatusCreated},
		timestamp: "payment_pending_at",
	},
	enums.PaymentStatusFailed: {
		to:   enums.OrderStatusFailed,
		from: []enums.OrderStatus{enums.OrderStatusCreated, enums.OrderStatusPaymentPending},
	},
	enums.PaymentStatusCanceled: {
		to:   enums.OrderStatusFailed,
		from: []enums.OrderStatus{enums.OrderStatusCreated, enums.OrderStatusPaymentPending},
	},
	enums.PaymentStatusCompleted: {
		to:        enums.OrderStatusPaid,
		from:      []enums.OrderStatus{enums.OrderStatusCreated, enums.OrderStatusPaymentPending, enums.OrderStatusFailed},
		timestamp: "payment_confirmed_at",
	},
}

func (s *service) ApplyPaymentStatusUpdate(ctx context.Context, order *models.Order, status enums.PaymentStatus, in orders.PaymentUpdate) (*models.Order, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required")
	}
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID), map[string]any{
		"payment_status": status,
		"order_status":   order.Status,
	})

	t, ok := transitions[status]
	if !ok {
		s.logg.Warn(ctx, "ignoring unknown payment status")
		return order, nil
	}
	if order.Status == t.to {
		s.logg.Debug(ctx, "payment status already applied")
		return order, nil
	}

	now := s.now().UTC()
	updates := map[string]any{}
	if t.timestamp != "" {
		updates[t.timestamp] = gorm.Expr("COALESCE("+t.timestamp+", ?)", now)
	}
	if ref := strings.TrimSpace(in.PaymentReference); ref != "" {
		updates["payment_reference"] = gorm.Expr("COALESCE(NULLIF(payment_reference, ''), ?)", ref)
	}
	if provider := strings.TrimSpace(in.PaymentProvider); provider != "" {
		updates["payment_provider"] = gorm.Expr("COALESCE(NULLIF(payment_provider, ''), ?)", provider)
	}

	changed, err := s.orders.Transition(ctx, order.ID, t.from, t.to, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply payment status")
	}

	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	if !changed {
		s.logg.Info(s.logg.WithField(ctx, "stored_status", current.Status), "payment status transition not applicable")
		return current, nil
	}
	s.logg.Info(s.logg.WithField(ctx, "new_status", t.to), "order payment status updated")

	if t.to != enums.OrderStatusPaid {
		return current, nil
	}
	return s.postPayment(ctx, current, in.Product)
}

// CompletePostPayment replays the post-payment workflow for a paid order. Each
// step still honors its own sticky field.
func (s *service) CompletePostPayment(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid").
			WithDetails(map[string]any{"status": order.Status})
	}
	return s.postPayment(s.logg.WithOrderID(ctx, order.ID), order, nil)
}

func (s *service) postPayment(ctx context.Context, order *models.Order, product *models.Product) (*models.Order, error) {
	if s.shipping != nil {
		if _, err := s.shipping.OnOrderPaid(ctx, order); err != nil {
			s.logg.Error(ctx, "shipment lifecycle failed", err)
		}
	}

	invoiceNumber, invoicePath, err := s.ensureInvoice(ctx, order, product)
	if err != nil {
		s.logg.Error(ctx, "invoice generation failed", err)
		return s.orders.FindByID(ctx, order.ID)
	}

	if order.EmailSentAt == nil {
		if err := s.sendPaidEmail(ctx, order, invoiceNumber, invoicePath); err != nil {
			s.logg.Error(ctx, "paid invoice email failed", err)
		}
	}
	return s.orders.FindByID(ctx, order.ID)
}

func (s *service) ensureInvoice(ctx context.Context, order *models.Order, product *models.Product) (string, string, error) {
	if order.InvoiceNumber != nil && *order.InvoiceNumber != "" {
		return *order.InvoiceNumber, deref(order.InvoicePDFPath), nil
	}
	if product == nil {
		loaded, err := s.orders.FindProduct(ctx, order.ProductID)
		if err != nil {
			s.logg.Warn(ctx, "product not found for invoice, using generic line item")
		} else {
			product = loaded
		}
	}

	inv, err := s.invoices.Generate(ctx, order, product)
	if err != nil {
		return "", "", err
	}
	set, err := s.orders.SetIfNull(ctx, order.ID, "invoice_number", inv.Number, map[string]any{
		"invoice_pdf_path":  inv.Path,
		"invoice_issued_at": inv.IssuedAt,
	})
	if err != nil {
		return "", "", fmt.Errorf("persist invoice: %w", err)
	}
	if !set {
		stored, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			return "", "", fmt.Errorf("reload invoice: %w", err)
		}
		return deref(stored.InvoiceNumber), deref(stored.InvoicePDFPath), nil
	}
	s.logg.Info(s.logg.WithField(ctx, "invoice_number", inv.Number), "invoice issued")
	return inv.Number, inv.Path, nil
}

func (s *service) sendPaidEmail(ctx context.Context, order *models.Order, number, path string) error {
	if err := s.mailer.SendPaidInvoiceEmail(ctx, order, notifications.InvoiceAttachment{Number: number, Path: path}); err != nil {
		return err
	}
	set, err := s.orders.SetIfNull(ctx, order.ID, "email_sent_at", s.now().UTC(), nil)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if set {
		s.logg.Info(ctx, "paid invoice email sent")
	}
	return nil
}

// SyncFromGateway retrieves the order's payment intent and applies its status.
// In dry-run mode nothing is written.
func (s *service) SyncFromGateway(ctx context.Context, order *models.Order, dryRun bool) (*SyncResult, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "payment gateway is not configured")
	}
	if order == nil || order.PaymentIntentID == nil || strings.TrimSpace(*order.PaymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no payment intent")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	intent, err := s.gateway.RetrievePaymentIntent(ctx, *order.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{
		OrderID:        order.ID,
		IntentStatus:   intent.Status,
		Status:         payments.MapStatus(intent.Status),
		PreviousStatus: order.Status,
		CurrentStatus:  order.Status,
		DryRun:         dryRun,
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_intent_id": intent.ID,
		"intent_status":     intent.Status,
		"mapped_status":     result.Status,
	})
	if dryRun {
		s.logg.Info(ctx, "dry run, payment status not applied")
		return result, nil
	}

	updated, err := s.ApplyPaymentStatusUpdate(ctx, order, result.Status, orders.PaymentUpdate{
		PaymentReference: intent.ID,
		PaymentProvider:  payments.ProviderStripe,
	})
	if err != nil {
		return nil, err
	}
	result.CurrentStatus = updated.Status
	return result, nil
}

// ResyncOrder is the operator-triggered gateway poll for one order.
func (s *service) ResyncOrder(ctx context.Context, orderID int64) (*SyncResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.SyncFromGateway(ctx, order, false)
}

func (s *service) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
