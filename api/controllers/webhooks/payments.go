package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/gamestore-backend/api/responses"
	webhooksvc "github.com/angelmondragon/gamestore-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// InFlightGuard short-circuits concurrent redeliveries of one event.
type InFlightGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookResponse struct {
	EventID string             `json:"eventId"`
	Outcome webhooksvc.Outcome `json:"outcome"`
}

// PaymentWebhook verifies a raw provider delivery and runs it through the webhook pipeline.
// Failures answer 5xx so the provider redelivers; the ledger keeps redeliveries idempotent.
func PaymentWebhook(svc webhooksvc.Service, guard InFlightGuard, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := svc.Verify(payload, r.Header)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if guard != nil {
			inFlight, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				// the ledger still dedups; a Redis outage must not drop deliveries
				logg.Warn(logg.WithField(ctx, "event_id", event.ID), "in-flight guard unavailable")
			} else if inFlight {
				responses.WriteSuccess(w, webhookResponse{EventID: event.ID, Outcome: webhooksvc.OutcomeDuplicate})
				return
			}
		}

		result, err := svc.Process(ctx, event)
		if err != nil {
			if guard != nil {
				if derr := guard.Delete(ctx, event.ID); derr != nil {
					logg.Warn(logg.WithField(ctx, "event_id", event.ID), "release in-flight guard failed")
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, webhookResponse{EventID: result.EventID, Outcome: result.Outcome})
	}
}
