// Package webhooks verifies, parses, deduplicates and applies inbound payment
// notifications.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	ProviderStripe  = "stripe"
	ProviderGeneric = "generic"

	HeaderStripeSignature  = "Stripe-Signature"
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderSignature        = "X-Signature"
)

// Verification is the outcome of a signature check.
type Verification struct {
	Valid    bool
	Provider string
	Payload  []byte
}

type Verifier struct {
	stripeSecret string
	hmacSecret   string
}

func NewVerifier(stripeSecret, hmacSecret string) *Verifier {
	return &Verifier{
		stripeSecret: strings.TrimSpace(stripeSecret),
		hmacSecret:   strings.TrimSpace(hmacSecret),
	}
}

// Verify checks the provider signature first and falls back to the generic
// HMAC-SHA256 headers. An unconfigured secret never validates.
func (v *Verifier) Verify(body []byte, headers http.Header) Verification {
	if sig := headers.Get(HeaderStripeSignature); sig != "" && v.stripeSecret != "" {
		if err := webhook.ValidatePayload(body, sig, v.stripeSecret); err == nil {
			return Verification{Valid: true, Provider: ProviderStripe, Payload: body}
		}
	}
	if v.hmacSecret == "" {
		return Verification{}
	}
	for _, name := range []string{HeaderWebhookSignature, HeaderSignature} {
		if sig := headers.Get(name); sig != "" && validHMAC(body, v.hmacSecret, sig) {
			return Verification{Valid: true, Provider: ProviderGeneric, Payload: body}
		}
	}
	return Verification{}
}

func validHMAC(body []byte, secret, header string) bool {
	header = strings.TrimSpace(header)
	if idx := strings.Index(header, "="); idx > 0 && strings.EqualFold(header[:idx], "sha256") {
		header = header[idx+1:]
	}
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(header); err == nil && hmac.Equal(expected, decoded) {
		return true
	}
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil && hmac.Equal(expected, decoded) {
		return true
	}
	return false
}

// SignHMAC returns the hex signature the generic scheme expects.
func SignHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
