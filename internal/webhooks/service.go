package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
)

// Outcome labels how a delivery was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnmatched Outcome = "unmatched"
)

type Result struct {
	EventID string
	Outcome Outcome
	OrderID *int64
}

// Service runs the verified-event pipeline: ledger, order lookup, reconciliation.
type Service interface {
	Verify(body []byte, headers http.Header) (*Event, error)
	Process(ctx context.Context, event *Event) (*Result, error)
}

type ServiceParams struct {
	Verifier *Verifier
	Ledger   Ledger
	Orders   orders.Repository
	Applier  orders.PaymentStatusApplier
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	verifier *Verifier
	ledger   Ledger
	orders   orders.Repository
	applier  orders.PaymentStatusApplier
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook verifier required")
	}
	if params.Ledger == nil || params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repositories required")
	}
	if params.Applier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment status applier required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		verifier: params.Verifier,
		ledger:   params.Ledger,
		orders:   params.Orders,
		applier:  params.Applier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      params.Now,
	}, nil
}

// Verify authenticates and parses a raw delivery. Nothing is written for an
// invalid signature.
func (s *service) Verify(body []byte, headers http.Header) (*Event, error) {
	v := s.verifier.Verify(body, headers)
	if !v.Valid {
		s.metrics.Observe("unknown", string(OutcomeRejected))
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	event, err := ParsePayload(v.Provider, v.Payload)
	if err != nil {
		s.metrics.Observe(v.Provider, string(OutcomeRejected))
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	return event, nil
}

func (s *service) Process(ctx context.Context, event *Event) (*Result, error) {
	if event == nil || event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	ctx = s.logg.WithFields(s.logg.WithProvider(ctx, event.Provider), map[string]any{
		"event_id":       event.ID,
		"event_type":     event.Type,
		"payment_status": event.Status,
	})

	record := &models.WebhookEvent{
		ID:             event.ID,
		ReceivedAt:     s.now().UTC(),
		Provider:       event.Provider,
		EventType:      event.Type,
		Status:         string(event.Status),
		OrderID:        event.OrderID,
		SignatureValid: true,
		RawPayload:     string(event.Payload),
	}
	if event.PaymentReference != "" {
		ref := event.PaymentReference
		record.PaymentReference = &ref
	}

	inserted, err := s.ledger.Record(ctx, record)
	if err != nil {
		s.metrics.Observe(event.Provider, string(OutcomeFailed))
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook event")
	}
	if !inserted {
		s.logg.Info(ctx, "duplicate webhook event ignored")
		return s.done(event, OutcomeDuplicate, nil), nil
	}

	if event.Status == enums.PaymentStatusUnknown {
		s.logg.Info(s.logg.WithField(ctx, "raw_status", event.RawStatus), "webhook status not actionable")
		return s.done(event, OutcomeIgnored, nil), nil
	}

	order, err := s.findOrder(ctx, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// the event may precede order creation; answer 503 so the provider redelivers
			s.logg.Warn(s.logg.WithField(ctx, "payment_reference", event.PaymentReference), "webhook does not match any order yet")
			return nil, s.release(ctx, event, OutcomeUnmatched,
				pkgerrors.New(pkgerrors.CodeUnavailable, "no order matches the webhook event yet"))
		}
		return nil, s.fail(ctx, event, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order"))
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)
	if event.OrderID == nil {
		if err := s.ledger.AttachOrder(ctx, event.ID, order.ID); err != nil {
			s.logg.Warn(ctx, "attach order to webhook event failed")
		}
	}

	if _, err := s.applier.ApplyPaymentStatusUpdate(ctx, order, event.Status, orders.PaymentUpdate{
		PaymentReference: event.PaymentReference,
		PaymentProvider:  event.Provider,
	}); err != nil {
		return nil, s.fail(ctx, event, err)
	}

	s.logg.Info(ctx, "webhook event processed")
	id := order.ID
	return s.done(event, OutcomeProcessed, &id), nil
}

func (s *service) findOrder(ctx context.Context, event *Event) (*models.Order, error) {
	if event.OrderID != nil {
		order, err := s.orders.FindByID(ctx, *event.OrderID)
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) || event.PaymentReference == "" {
			return order, err
		}
	}
	if event.PaymentReference == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return s.orders.FindByPaymentReference(ctx, event.PaymentReference)
}

func (s *service) fail(ctx context.Context, event *Event, err error) error {
	s.logg.Error(ctx, "webhook processing failed", err)
	return s.release(ctx, event, OutcomeFailed, err)
}

// release removes the ledger row so a redelivery can be processed again.
func (s *service) release(ctx context.Context, event *Event, outcome Outcome, err error) error {
	if derr := s.ledger.Delete(ctx, event.ID); derr != nil {
		s.logg.Error(ctx, "release webhook ledger entry", derr)
		err = fmt.Errorf("%w (ledger release failed: %v)", err, derr)
	}
	s.metrics.Observe(event.Provider, string(outcome))
	return err
}

func (s *service) done(event *Event, outcome Outcome, orderID *int64) *Result {
	s.metrics.Observe(event.Provider, string(outcome))
	return &Result{EventID: event.ID, Outcome: outcome, OrderID: orderID}
}
