package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Env: AppEnvDev},
		Stripe: StripeConfig{APIKey: "sk_test_123"},
		ShipX:  ShipXConfig{Token: "token", OrganizationID: "42", Env: ShipXEnvSandbox},
		Sender: SenderConfig{
			Name:           "Gamestore",
			Email:          "shop@example.com",
			Phone:          "500600700",
			Street:         "Długa",
			BuildingNumber: "5",
			City:           "Kraków",
			PostCode:       "30-001",
			CountryCode:    "PL",
		},
	}
}

func problemsOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeConfiguration, coded.Code())
	details, ok := coded.Details().(map[string]any)
	require.True(t, ok)
	problems, ok := details["problems"].([]string)
	require.True(t, ok)
	return problems
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMockInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.App.Env = AppEnvProduction
	cfg.Sendgrid.APIKey = "SG.key"
	cfg.Stripe.MockMode = true

	problems := problemsOf(t, cfg.Validate())
	assert.Contains(t, problems, EnvPaymentsMock+" must not be enabled in production")
}

func TestValidateRejectsMockWithLiveCarrier(t *testing.T) {
	cfg := validConfig()
	cfg.Stripe.MockMode = true
	cfg.ShipX.Env = ShipXEnvProduction

	problems := problemsOf(t, cfg.Validate())
	assert.Contains(t, problems, EnvPaymentsMock+" must not be combined with a production carrier environment")
}

func TestValidateMissingCarrierAndSender(t *testing.T) {
	cfg := validConfig()
	cfg.ShipX.Token = ""
	cfg.Sender.City = " "

	problems := problemsOf(t, cfg.Validate())
	assert.Contains(t, problems, EnvShipXToken+" is required")
	assert.Contains(t, problems, EnvSenderCity+" is required")
}

func TestValidatePlaceholders(t *testing.T) {
	cfg := validConfig()
	cfg.Sender.Street = "<STREET>"
	cfg.Sender.CompanyName = "changeme"

	problems := problemsOf(t, cfg.Validate())
	assert.Contains(t, problems, EnvSenderStreet+" contains a placeholder value")
	assert.Contains(t, problems, EnvSenderCompany+" contains a placeholder value")
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"<name>", "TODO", "xxx", "CHANGEME", "todo: fill"} {
		assert.True(t, IsPlaceholder(v), v)
	}
	for _, v := range []string{"", "Gamestore", "Długa 5", "30-001"} {
		assert.False(t, IsPlaceholder(v), v)
	}
}
