package webhooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/gamestore-backend/pkg/enums"
)

// Event is a verified notification normalized to the reconciliation vocabulary.
type Event struct {
	ID               string
	Provider         string
	Type             string
	RawStatus        string
	Status           enums.PaymentStatus
	PaymentReference string
	OrderID          *int64
	Payload          []byte
}

var stripeEventStatuses = map[stripe.EventType]enums.PaymentStatus{
	stripe.EventTypePaymentIntentSucceeded:      enums.PaymentStatusCompleted,
	stripe.EventTypePaymentIntentPaymentFailed:  enums.PaymentStatusFailed,
	stripe.EventTypePaymentIntentCanceled:       enums.PaymentStatusCanceled,
	stripe.EventTypePaymentIntentProcessing:     enums.PaymentStatusPending,
	stripe.EventTypePaymentIntentRequiresAction: enums.PaymentStatusPending,
	stripe.EventTypePaymentIntentCreated:        enums.PaymentStatusPending,
	stripe.EventTypeChargeSucceeded:             enums.PaymentStatusCompleted,
	stripe.EventTypeChargeFailed:                enums.PaymentStatusFailed,
}

var genericStatuses = map[string]enums.PaymentStatus{
	"PAID":       enums.PaymentStatusCompleted,
	"SUCCESS":    enums.PaymentStatusCompleted,
	"SUCCEEDED":  enums.PaymentStatusCompleted,
	"COMPLETED":  enums.PaymentStatusCompleted,
	"CONFIRMED":  enums.PaymentStatusCompleted,
	"PENDING":    enums.PaymentStatusPending,
	"PROCESSING": enums.PaymentStatusPending,
	"WAITING":    enums.PaymentStatusPending,
	"NEW":        enums.PaymentStatusPending,
	"FAILED":     enums.PaymentStatusFailed,
	"FAILURE":    enums.PaymentStatusFailed,
	"ERROR":      enums.PaymentStatusFailed,
	"DECLINED":   enums.PaymentStatusFailed,
	"REJECTED":   enums.PaymentStatusFailed,
	"CANCELED":   enums.PaymentStatusCanceled,
	"CANCELLED":  enums.PaymentStatusCanceled,
	"EXPIRED":    enums.PaymentStatusCanceled,
	"ABANDONED":  enums.PaymentStatusCanceled,
}

// NormalizeStatus maps a generic provider status word.
func NormalizeStatus(raw string) enums.PaymentStatus {
	if status, ok := genericStatuses[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return status
	}
	return enums.PaymentStatusUnknown
}

// ParsePayload extracts the event fields for a verified payload.
func ParsePayload(provider string, payload []byte) (*Event, error) {
	var (
		event *Event
		err   error
	)
	switch provider {
	case ProviderStripe:
		event, err = parseStripe(payload)
	default:
		event, err = parseGeneric(payload)
	}
	if err != nil {
		return nil, err
	}
	if event.ID == "" {
		sum := sha256.Sum256(payload)
		event.ID = "sha256:" + hex.EncodeToString(sum[:])
	}
	event.Payload = payload
	return event, nil
}

func parseStripe(payload []byte) (*Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}

	status, ok := stripeEventStatuses[evt.Type]
	if !ok {
		status = enums.PaymentStatusUnknown
	}
	out := &Event{
		ID:        evt.ID,
		Provider:  ProviderStripe,
		Type:      string(evt.Type),
		RawStatus: string(evt.Type),
		Status:    status,
	}
	if evt.Data == nil {
		return out, nil
	}

	switch evt.GetObjectValue("object") {
	case "charge":
		out.PaymentReference = evt.GetObjectValue("payment_intent")
	default:
		out.PaymentReference = evt.GetObjectValue("id")
	}
	if raw := evt.GetObjectValue("metadata", "order_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			out.OrderID = &id
		}
	}
	return out, nil
}

type genericPayload struct {
	ID                    string          `json:"id"`
	EventID               string          `json:"eventId"`
	EventIDSnake          string          `json:"event_id"`
	Type                  string          `json:"type"`
	Status                string          `json:"status"`
	PaymentStatus         string          `json:"paymentStatus"`
	PaymentStatusSnake    string          `json:"payment_status"`
	Reference             string          `json:"reference"`
	PaymentReference      string          `json:"paymentReference"`
	PaymentReferenceSnake string          `json:"payment_reference"`
	PaymentIntentID       string          `json:"paymentIntentId"`
	OrderID               json.RawMessage `json:"orderId"`
	OrderIDSnake          json.RawMessage `json:"order_id"`
	Provider              string          `json:"provider"`
}

func parseGeneric(payload []byte) (*Event, error) {
	var p genericPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	rawStatus := firstNonEmpty(p.Status, p.PaymentStatus, p.PaymentStatusSnake)
	out := &Event{
		ID:               firstNonEmpty(p.EventID, p.EventIDSnake, p.ID),
		Provider:         strings.ToLower(firstNonEmpty(p.Provider, ProviderGeneric)),
		Type:             p.Type,
		RawStatus:        rawStatus,
		Status:           NormalizeStatus(rawStatus),
		PaymentReference: firstNonEmpty(p.PaymentReference, p.PaymentReferenceSnake, p.Reference, p.PaymentIntentID),
	}
	for _, raw := range []json.RawMessage{p.OrderID, p.OrderIDSnake} {
		if id, ok := parseOrderID(raw); ok {
			out.OrderID = &id
			break
		}
	}
	return out, nil
}

// parseOrderID accepts numbers and numeric strings.
func parseOrderID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
