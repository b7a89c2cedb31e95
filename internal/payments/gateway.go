package payments

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/gamestore-backend/pkg/stripe"
)

const (
	ProviderStripe = "stripe"
	mockIntentPfx  = "pi_mock_"
)

// CreateIntentInput is the checkout request. ItemsTotal and ShippingCost, when both
// present, take precedence over Amount.
type CreateIntentInput struct {
	Amount       int64
	OrderID      *int64
	ItemsTotal   *int64
	ShippingCost *int64
}

type CreatedIntent struct {
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	Mock            bool
}

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
	Metadata map[string]string
}

// Gateway is the Payment Gateway Adapter.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*CreatedIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
	MockMode() bool
}

type GatewayParams struct {
	API      pkgstripe.PaymentIntentAPI
	MockMode bool
	Currency string
	Logger   *logger.Logger
	// NewID mints mock intent ids; defaults to random UUIDs.
	NewID    func() string
}

type gateway struct {
	api      pkgstripe.PaymentIntentAPI
	mock     bool
	currency string
	logg     *logger.Logger
	newID    func() string
}

func NewGateway(params GatewayParams) Gateway {
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.NewID == nil {
		params.NewID = func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		}
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyPLN)
	}
	return &gateway{
		api:      params.API,
		mock:     params.MockMode,
		currency: currency,
		logg:     params.Logger,
		newID:    params.NewID,
	}
}

func (g *gateway) MockMode() bool {
	return g.mock
}

func (g *gateway) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*CreatedIntent, error) {
	amount, err := g.resolveAmount(ctx, in)
	if err != nil {
		return nil, err
	}

	if g.mock {
		id := mockIntentPfx + g.newID()
		g.logg.Info(g.logg.WithField(ctx, "payment_intent_id", id), "mock payment intent issued")
		return &CreatedIntent{ClientSecret: id + "_secret_mock", PaymentIntentID: id, Amount: amount, Mock: true}, nil
	}
	if g.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "payment gateway is not configured")
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.OrderID != nil {
		params.Metadata = map[string]string{"order_id": strconv.FormatInt(*in.OrderID, 10)}
	}

	intent, err := g.api.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return &CreatedIntent{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, Amount: amount}, nil
}

func (g *gateway) RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if g.mock {
		return &Intent{ID: id, Status: string(stripe.PaymentIntentStatusSucceeded), Currency: g.currency}, nil
	}
	if g.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "payment gateway is not configured")
	}

	intent, err := g.api.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return &Intent{
		ID:       intent.ID,
		Status:   string(intent.Status),
		Amount:   intent.Amount,
		Currency: string(intent.Currency),
		Metadata: intent.Metadata,
	}, nil
}

func (g *gateway) resolveAmount(ctx context.Context, in CreateIntentInput) (int64, error) {
	amount := in.Amount
	if in.ItemsTotal != nil && in.ShippingCost != nil {
		computed := *in.ItemsTotal + *in.ShippingCost
		if amount != computed {
			g.logg.Warn(g.logg.WithFields(ctx, map[string]any{
				"client_amount":   formatMinor(amount),
				"computed_amount": formatMinor(computed),
			}), "payment amount differs from items total plus shipping; using computed amount")
		}
		amount = computed
	}
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return amount, nil
}

// MapStatus normalizes a PaymentIntent status.
func MapStatus(providerStatus string) enums.PaymentStatus {
	switch stripe.PaymentIntentStatus(strings.ToLower(strings.TrimSpace(providerStatus))) {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

func formatMinor(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
