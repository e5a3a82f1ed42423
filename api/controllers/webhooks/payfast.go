package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/castwell/launch-backend/api/responses"
	payfastwebhook "github.com/castwell/launch-backend/internal/webhooks/payfast"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

const maxNotificationBytes = 64 << 10

type PayFastNotificationService interface {
	HandleNotification(ctx context.Context, body []byte) (payfastwebhook.Outcome, error)
}

// PayFastWebhook receives ITN callbacks. Only failures the gateway can fix by
// redelivering get a non-200 answer; rejected notifications are acknowledged.
func PayFastWebhook(svc PayFastNotificationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		outcome, err := svc.HandleNotification(ctx, payload)
		if err != nil && payfastwebhook.Retryable(err) {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "process notification"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
