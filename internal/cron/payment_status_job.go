package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/gamestore-backend/internal/reconciliation"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

type pendingPaymentReader interface {
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type gatewaySyncer interface {
	SyncFromGateway(ctx context.Context, order *models.Order, dryRun bool) (*reconciliation.SyncResult, error)
}

// PaymentStatusJobParams configure the payment status poller.
type PaymentStatusJobParams struct {
	Logger    *logger.Logger
	Orders    pendingPaymentReader
	Syncer    gatewaySyncer
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	DryRun    bool
}

// NewPaymentStatusJob builds the job that asks the gateway about orders stuck in PAYMENT_PENDING.
func NewPaymentStatusJob(params PaymentStatusJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("gateway syncer required")
	}
	return &paymentStatusJob{
		logg:      params.Logger,
		orders:    params.Orders,
		syncer:    params.Syncer,
		interval:  params.Interval,
		minAge:    params.MinAge,
		batchSize: params.BatchSize,
		dryRun:    params.DryRun,
		now:       time.Now,
	}, nil
}

type paymentStatusJob struct {
	logg      *logger.Logger
	orders    pendingPaymentReader
	syncer    gatewaySyncer
	interval  time.Duration
	minAge    time.Duration
	batchSize int
	dryRun    bool
	now       func() time.Time
}

func (j *paymentStatusJob) Name() string            { return "payment-status" }
func (j *paymentStatusJob) Interval() time.Duration { return j.interval }

// Run syncs every candidate; a failing order does not stop the sweep.
func (j *paymentStatusJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	candidates, err := j.orders.FindPendingPaymentBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query pending payments: %w", err)
	}

	var errs error
	changed := 0
	for i := range candidates {
		order := &candidates[i]
		orderCtx := j.logg.WithOrderID(ctx, order.ID)
		res, err := j.syncer.SyncFromGateway(orderCtx, order, j.dryRun)
		if err != nil {
			j.logg.Error(orderCtx, "payment status sync failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
			continue
		}
		if res.Changed() {
			changed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"changed":    changed,
		"dry_run":    j.dryRun,
	}), "payment status sweep finished")
	return errs
}
