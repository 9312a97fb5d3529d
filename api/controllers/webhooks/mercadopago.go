package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	mpwebhook "github.com/angelmondragon/enxoval-backend/internal/webhooks/mercadopago"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const (
	signatureHeader = "X-Signature"
	maxWebhookBody  = 64 << 10
)

type MercadoPagoWebhookService interface {
	HandleEvent(ctx context.Context, event *mpwebhook.Event) (string, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type secretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}

// MercadoPagoWebhook verifies the notification signature and applies the
// payment status. Nothing is mutated before the signature checks out.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, secrets secretSource, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || secrets == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		secret, err := secrets.WebhookSecret(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sigHeader := strings.TrimSpace(r.Header.Get(signatureHeader))
		if secret == "" || sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "assinatura ausente"))
			return
		}
		if !mpwebhook.VerifySignature(payload, sigHeader, secret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "assinatura inválida"))
			return
		}

		event, err := mpwebhook.DecodeEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if event.Type != mpwebhook.EventTypePayment {
			result, _ := svc.HandleEvent(ctx, event)
			writeOK(ctx, logg, w, result)
			return
		}
		if event.Data.ID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidPayload, "id do pagamento ausente"))
			return
		}

		// notifications without an id skip the replay mark
		eventID := event.DedupKey()
		if eventID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadyProcessed {
				writeOK(ctx, logg, w, mpwebhook.ResultDuplicate)
				return
			}
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if eventID != "" {
				if delErr := guard.Delete(ctx, eventID); delErr != nil {
					logg.Error(ctx, "failed to clear webhook idempotency mark", delErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeOK(ctx, logg, w, result)
	}
}

func writeOK(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, result string) {
	logg.Info(logg.WithField(ctx, "result", result), "mercadopago webhook handled")
	responses.WriteBody(w, http.StatusOK, "text/plain; charset=utf-8", []byte("OK"))
}
