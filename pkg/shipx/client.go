// Package shipx is a thin client for the InPost ShipX API.
package shipx

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
)

const (
	opCreateShipment = "create_shipment"
	opGetShipment    = "get_shipment"
	opBuyShipment    = "buy_shipment"
	opGetLabel       = "get_label"

	maxErrorBody = 64 << 10
)

// Client talks to one ShipX organization.
type Client struct {
	baseURL string
	token   string
	orgID   string
	http    *http.Client
	metrics *metrics.CarrierMetrics
}

type Option func(*Client)

// WithHTTPClient overrides the transport, e.g. for httptest servers.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

func WithMetrics(m *metrics.CarrierMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client from config. Missing credentials yield SERVICE_UNAVAILABLE.
func New(cfg config.ShipXConfig, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	orgID := strings.TrimSpace(cfg.OrganizationID)
	if token == "" || orgID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "carrier integration is not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: cfg.ResolvedBaseURL(),
		token:   token,
		orgID:   orgID,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateShipment registers a shipment under the configured organization.
func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*Shipment, error) {
	var out Shipment
	path := fmt.Sprintf("/v1/organizations/%s/shipments", url.PathEscape(c.orgID))
	err := c.doJSON(ctx, opCreateShipment, http.MethodPost, path, req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	var out Shipment
	path := fmt.Sprintf("/v1/shipments/%s", url.PathEscape(shipmentID))
	if err := c.doJSON(ctx, opGetShipment, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuyShipment purchases the shipment with the given offer. Not idempotent on the carrier side.
func (c *Client) BuyShipment(ctx context.Context, shipmentID, offerID string) (*Shipment, error) {
	var out Shipment
	path := fmt.Sprintf("/v1/shipments/%s/buy", url.PathEscape(shipmentID))
	body := map[string]string{"offer_id": offerID}
	if err := c.doJSON(ctx, opBuyShipment, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLabel downloads the label document. format is pdf (default) or zpl.
func (c *Client) GetLabel(ctx context.Context, shipmentID, format string) (*Label, error) {
	if format == "" {
		format = "pdf"
	}
	q := url.Values{}
	q.Set("format", format)
	q.Set("type", "normal")
	path := fmt.Sprintf("/v1/shipments/%s/label?%s", url.PathEscape(shipmentID), q.Encode())

	resp, err := c.do(ctx, opGetLabel, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("shipx: read label: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || mediaType == "text/plain" {
		decoded, derr := decodeEncodedLabel(data)
		if derr != nil {
			return nil, derr
		}
		data = decoded
		contentType = "application/" + format
	}
	return &Label{Data: data, ContentType: contentType, Format: format}, nil
}

func decodeEncodedLabel(data []byte) ([]byte, error) {
	raw := strings.TrimSpace(string(data))
	var wrapped struct {
		Label string `json:"label"`
		Data  string `json:"data"`
	}
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("shipx: decode label envelope: %w", err)
		}
		raw = wrapped.Label
		if raw == "" {
			raw = wrapped.Data
		}
	} else if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("shipx: decode label string: %w", err)
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("shipx: label is not base64: %w", err)
	}
	return decoded, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("shipx: decode %s response: %w", op, err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses; the caller closes the body.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (resp *http.Response, err error) {
	defer func() { c.metrics.ObserveCall(op, err) }()

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("shipx: marshal %s request: %w", op, merr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("shipx: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err = c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shipx: %s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, newAPIError(resp)
	}
	return resp, nil
}

func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	var payload ErrorPayload
	if len(raw) > 0 && json.Unmarshal(raw, &payload) == nil {
		apiErr.Payload = &payload
	}
	return apiErr
}
