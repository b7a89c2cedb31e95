// Package app assembles the fulfillment service graph shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/gamestore-backend/internal/invoices"
	"github.com/angelmondragon/gamestore-backend/internal/notifications"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/payments"
	"github.com/angelmondragon/gamestore-backend/internal/reconciliation"
	"github.com/angelmondragon/gamestore-backend/internal/shipping"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
	"github.com/angelmondragon/gamestore-backend/pkg/shipx"
	pkgstripe "github.com/angelmondragon/gamestore-backend/pkg/stripe"
)

type Params struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *logger.Logger
	Registerer prometheus.Registerer
	// CarrierClient overrides the ShipX client, mainly for tests.
	CarrierClient shipping.CarrierClient
}

// Services is the wired domain layer.
type Services struct {
	OrdersRepo     orders.Repository
	Orders         orders.Service
	Gateway        payments.Gateway
	Shipping       shipping.Service
	Reconciliation reconciliation.Service
	Mailer         notifications.Mailer
}

// Build wires repositories, external clients and services. Mock payment mode
// skips the Stripe client entirely.
func Build(ctx context.Context, p Params) (*Services, error) {
	cfg, logg := p.Config, p.Logger
	if cfg == nil || p.DB == nil {
		return nil, fmt.Errorf("config and database are required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if p.Registerer == nil {
		p.Registerer = prometheus.NewRegistry()
	}

	var intents pkgstripe.PaymentIntentAPI
	if !cfg.Stripe.MockMode {
		stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		intents = stripeClient.PaymentIntents()
	}
	gateway := payments.NewGateway(payments.GatewayParams{
		API:      intents,
		MockMode: cfg.Stripe.MockMode,
		Currency: cfg.Stripe.Currency,
		Logger:   logg,
	})

	carrierMetrics := metrics.NewCarrierMetrics(p.Registerer)
	carrier := p.CarrierClient
	if carrier == nil {
		client, err := shipx.New(cfg.ShipX, shipx.WithMetrics(carrierMetrics))
		if err != nil {
			return nil, fmt.Errorf("shipx client: %w", err)
		}
		carrier = client
	}
	provider, err := shipping.NewAdapter(shipping.AdapterParams{
		Client:   carrier,
		Sender:   cfg.Sender,
		Delivery: cfg.Delivery,
		ShipX:    cfg.ShipX,
		Metrics:  carrierMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	mailer, err := notifications.NewMailer(notifications.MailerParams{
		Config:  cfg.Sendgrid,
		LogOnly: !cfg.App.IsProd(),
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	generator, err := invoices.NewGenerator(cfg.Invoices)
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(p.DB)
	shippingSvc, err := shipping.NewService(shipping.ServiceParams{
		Orders:    ordersRepo,
		Shipments: shipping.NewRepository(p.DB),
		Provider:  provider,
		Mailer:    mailer,
		LabelsDir: cfg.Invoices.LabelsDir,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Orders:   ordersRepo,
		Gateway:  gateway,
		Shipping: shippingSvc,
		Invoices: generator,
		Mailer:   mailer,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Payments: reconciler,
		Delivery: cfg.Delivery,
		Catalog:  cfg.Catalog,
		Currency: cfg.Stripe.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		OrdersRepo:     ordersRepo,
		Orders:         ordersSvc,
		Gateway:        gateway,
		Shipping:       shippingSvc,
		Reconciliation: reconciler,
		Mailer:         mailer,
	}, nil
}
