package config

import (
	"regexp"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
)

var (
	angleBracketToken = regexp.MustCompile(`<[^<>]*>`)
	placeholderWords  = map[string]struct{}{
		"changeme":    {},
		"change_me":   {},
		"todo":        {},
		"xxx":         {},
		"placeholder": {},
	}
)

// IsPlaceholder reports whether value looks like an unfilled template token.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if angleBracketToken.MatchString(v) {
		return true
	}
	lower := strings.ToLower(v)
	if _, ok := placeholderWords[lower]; ok {
		return true
	}
	return strings.Contains(lower, "changeme") || strings.HasPrefix(lower, "todo:") || strings.Contains(lower, "xxxx")
}

// Validate enforces the runtime rules that envconfig tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	if c.Stripe.MockMode && c.App.IsProd() {
		problems = append(problems, EnvPaymentsMock+" must not be enabled in production")
	}
	if c.Stripe.MockMode && c.ShipX.IsProduction() {
		problems = append(problems, EnvPaymentsMock+" must not be combined with a production carrier environment")
	}
	if !c.Stripe.MockMode && strings.TrimSpace(c.Stripe.APIKey) == "" {
		problems = append(problems, EnvStripeAPIKey+" is required unless "+EnvPaymentsMock+" is set")
	}

	switch c.ShipX.Environment() {
	case ShipXEnvSandbox, ShipXEnvProduction:
	default:
		problems = append(problems, EnvShipXEnv+" must be sandbox or production")
	}

	required := map[string]string{
		EnvShipXToken:           c.ShipX.Token,
		EnvShipXOrganizationID:  c.ShipX.OrganizationID,
		EnvSenderName:           c.Sender.Name,
		EnvSenderEmail:          c.Sender.Email,
		EnvSenderPhone:          c.Sender.Phone,
		EnvSenderStreet:         c.Sender.Street,
		EnvSenderBuildingNumber: c.Sender.BuildingNumber,
		EnvSenderCity:           c.Sender.City,
		EnvSenderPostCode:       c.Sender.PostCode,
		EnvSenderCountryCode:    c.Sender.CountryCode,
	}
	var missing []string
	for env, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	sort.Strings(missing)
	for _, env := range missing {
		problems = append(problems, env+" is required")
	}

	identity := map[string]string{
		EnvSenderName:           c.Sender.Name,
		EnvSenderCompany:        c.Sender.CompanyName,
		EnvSenderEmail:          c.Sender.Email,
		EnvSenderPhone:          c.Sender.Phone,
		EnvSenderStreet:         c.Sender.Street,
		EnvSenderBuildingNumber: c.Sender.BuildingNumber,
		EnvSenderCity:           c.Sender.City,
		EnvSenderPostCode:       c.Sender.PostCode,
	}
	var placeholders []string
	for env, value := range identity {
		if IsPlaceholder(value) {
			placeholders = append(placeholders, env)
		}
	}
	sort.Strings(placeholders)
	for _, env := range placeholders {
		problems = append(problems, env+" contains a placeholder value")
	}

	if c.App.IsProd() && strings.TrimSpace(c.Sendgrid.APIKey) == "" {
		problems = append(problems, EnvSendgridAPIKey+" is required in production")
	}

	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConfiguration, "invalid configuration").
		WithDetails(map[string]any{"problems": problems})
}
