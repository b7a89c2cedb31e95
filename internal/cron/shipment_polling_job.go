package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

type shipmentCandidateReader interface {
	FindShipmentPollCandidates(ctx context.Context, terminalStatuses []string, limit int) ([]models.Order, error)
}

type shipmentSyncer interface {
	SyncShipment(ctx context.Context, order *models.Order) error
}

type ShipmentPollingJobParams struct {
	Logger    *logger.Logger
	Orders    shipmentCandidateReader
	Shipping  shipmentSyncer
	Interval  time.Duration
	BatchSize int
}

// NewShipmentPollingJob builds the job that refreshes carrier state for non-terminal shipments.
func NewShipmentPollingJob(params ShipmentPollingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping syncer required")
	}
	return &shipmentPollingJob{
		logg:      params.Logger,
		orders:    params.Orders,
		shipping:  params.Shipping,
		interval:  params.Interval,
		batchSize: params.BatchSize,
	}, nil
}

type shipmentPollingJob struct {
	logg      *logger.Logger
	orders    shipmentCandidateReader
	shipping  shipmentSyncer
	interval  time.Duration
	batchSize int
}

func (j *shipmentPollingJob) Name() string            { return "shipment-polling" }
func (j *shipmentPollingJob) Interval() time.Duration { return j.interval }

func (j *shipmentPollingJob) Run(ctx context.Context) error {
	candidates, err := j.orders.FindShipmentPollCandidates(ctx, enums.TerminalCarrierStatuses(), j.batchSize)
	if err != nil {
		return fmt.Errorf("query shipment candidates: %w", err)
	}

	var errs error
	for i := range candidates {
		order := &candidates[i]
		orderCtx := j.logg.WithOrderID(ctx, order.ID)
		if err := j.shipping.SyncShipment(orderCtx, order); err != nil {
			j.logg.Error(orderCtx, "shipment sync failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "candidates", len(candidates)), "shipment polling sweep finished")
	return errs
}
