package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	testStripeSecret = "whsec_test"
	testHMACSecret   = "shared-secret"
)

func stripeHeaders(t *testing.T, body []byte) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    testStripeSecret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set(HeaderStripeSignature, signed.Header)
	return h
}

func TestVerifyStripeSignature(t *testing.T) {
	v := NewVerifier(testStripeSecret, testHMACSecret)
	body := []byte(`{"id":"evt_1"}`)

	res := v.Verify(body, stripeHeaders(t, body))
	assert.True(t, res.Valid)
	assert.Equal(t, ProviderStripe, res.Provider)

	res = v.Verify([]byte(`{"id":"evt_2"}`), stripeHeaders(t, body))
	assert.False(t, res.Valid)
}

func TestVerifyGenericHMACEncodings(t *testing.T) {
	v := NewVerifier("", testHMACSecret)
	body := []byte(`{"status":"PAID"}`)

	mac := hmac.New(sha256.New, []byte(testHMACSecret))
	mac.Write(body)
	raw := mac.Sum(nil)

	for name, header := range map[string]http.Header{
		"hex":        {HeaderWebhookSignature: []string{SignHMAC(body, testHMACSecret)}},
		"prefixed":   {HeaderSignature: []string{"sha256=" + SignHMAC(body, testHMACSecret)}},
		"base64":     {HeaderSignature: []string{base64.StdEncoding.EncodeToString(raw)}},
		"stripeMiss": {HeaderStripeSignature: []string{"t=1,v1=bad"}, HeaderWebhookSignature: []string{SignHMAC(body, testHMACSecret)}},
	} {
		res := v.Verify(body, header)
		assert.True(t, res.Valid, name)
		assert.Equal(t, ProviderGeneric, res.Provider, name)
	}
}

func TestVerifyRejects(t *testing.T) {
	body := []byte(`{"status":"PAID"}`)

	v := NewVerifier("", testHMACSecret)
	assert.False(t, v.Verify(body, http.Header{}).Valid)
	assert.False(t, v.Verify(body, http.Header{HeaderSignature: []string{SignHMAC(body, "other")}}).Valid)
	assert.False(t, v.Verify(body, http.Header{HeaderSignature: []string{"sha256="}}).Valid)

	unconfigured := NewVerifier("", "")
	assert.False(t, unconfigured.Verify(body, http.Header{HeaderSignature: []string{SignHMAC(body, "")}}).Valid)
}
