// Package stripe builds the payment-intent API handle from configuration.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

const (
	maxNetworkRetries = 2
	requestTimeout    = 30 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// keyPrefixes lists the secret and restricted key prefixes each environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// PaymentIntentAPI is the subset of the PaymentIntents resource the gateway uses.
type PaymentIntentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

type Client struct {
	api *stripe.Client
}

// NewClient checks that the key belongs to the configured environment and
// builds a client whose SDK logs flow through logg.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(key, prefixes) {
		return nil, fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}
	if logg == nil {
		logg = logger.Nop()
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: requestTimeout},
		LeveledLogger:     sdkLogger{ctx: logg.WithProvider(ctx, "stripe"), logg: logg},
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
	})
	logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	return &Client{api: stripe.NewClient(key, stripe.WithBackends(backends))}, nil
}

func (c *Client) PaymentIntents() PaymentIntentAPI {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.V1PaymentIntents
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// sdkLogger adapts the SDK's leveled logger onto the service logger. Debug
// output is dropped.
type sdkLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l sdkLogger) Debugf(string, ...any) {}

func (l sdkLogger) Infof(format string, v ...any) {
	l.logg.Info(l.ctx, fmt.Sprintf(format, v...))
}

func (l sdkLogger) Warnf(format string, v ...any) {
	l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
}

func (l sdkLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, fmt.Sprintf(format, v...), nil)
}
