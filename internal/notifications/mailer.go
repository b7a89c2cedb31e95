// Package notifications sends the transactional customer emails.
package notifications

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

// InvoiceAttachment points at a rendered invoice on disk.
type InvoiceAttachment struct {
	Number string
	Path   string
}

// Mailer is the Notification Sender.
type Mailer interface {
	SendPaidInvoiceEmail(ctx context.Context, order *models.Order, invoice InvoiceAttachment) error
	SendShipmentDispatchedEmail(ctx context.Context, order *models.Order, trackingURL string) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type MailerParams struct {
	Config  config.SendgridConfig
	LogOnly bool
	Logger  *logger.Logger
	client  sendClient
}

type mailer struct {
	client sendClient
	from   *mail.Email
	logg   *logger.Logger
}

// NewMailer returns a SendGrid-backed mailer. Without an API key it only logs
// messages, which is refused when LogOnly is false.
func NewMailer(params MailerParams) (Mailer, error) {
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	cfg := params.Config
	m := &mailer{
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		logg:   params.Logger,
		client: params.client,
	}
	if m.client != nil {
		return m, nil
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		if !params.LogOnly {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "sendgrid api key required")
		}
		return m, nil
	}
	m.client = sendgrid.NewSendClient(key)
	return m, nil
}

func (m *mailer) SendPaidInvoiceEmail(ctx context.Context, order *models.Order, invoice InvoiceAttachment) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	subject := fmt.Sprintf("Order #%d confirmed, invoice %s", order.ID, invoice.Number)
	plain := fmt.Sprintf(
		"Hi %s,\n\nthank you for your payment. Order #%d is confirmed and will ship soon.\nYour invoice %s is attached.\n",
		order.CustomerName, order.ID, invoice.Number,
	)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>thank you for your payment. Order <strong>#%d</strong> is confirmed and will ship soon.</p><p>Your invoice %s is attached.</p>",
		order.CustomerName, order.ID, invoice.Number,
	)

	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(order.CustomerName, order.CustomerEmail), plain, html)
	if invoice.Path != "" {
		data, err := os.ReadFile(invoice.Path)
		if err != nil {
			return fmt.Errorf("read invoice: %w", err)
		}
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(data))
		att.SetType("application/pdf")
		att.SetFilename(filepath.Base(invoice.Path))
		att.SetDisposition("attachment")
		msg.AddAttachment(att)
	}
	return m.send(ctx, order, "paid_invoice", msg)
}

func (m *mailer) SendShipmentDispatchedEmail(ctx context.Context, order *models.Order, trackingURL string) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	subject := fmt.Sprintf("Order #%d is on its way", order.ID)
	plain := fmt.Sprintf("Hi %s,\n\norder #%d has been handed to the carrier.\n", order.CustomerName, order.ID)
	html := fmt.Sprintf("<p>Hi %s,</p><p>order <strong>#%d</strong> has been handed to the carrier.</p>", order.CustomerName, order.ID)
	if trackingURL != "" {
		plain += "Track it here: " + trackingURL + "\n"
		html += fmt.Sprintf(`<p><a href="%s">Track your parcel</a></p>`, trackingURL)
	}
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(order.CustomerName, order.CustomerEmail), plain, html)
	return m.send(ctx, order, "shipment_dispatched", msg)
}

func (m *mailer) send(ctx context.Context, order *models.Order, template string, msg *mail.SGMailV3) error {
	ctx = m.logg.WithFields(m.logg.WithOrderID(ctx, order.ID), map[string]any{
		"template": template,
		"to":       order.CustomerEmail,
	})
	if m.client == nil {
		m.logg.Info(ctx, "email not sent, log-only mailer")
		return nil
	}

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}
	if resp != nil && resp.StatusCode >= 300 {
		return pkgerrors.Newf(pkgerrors.CodeDependency, "sendgrid returned status %d", resp.StatusCode).
			WithDetails(map[string]any{"body": resp.Body})
	}
	m.logg.Info(ctx, "email sent")
	return nil
}
