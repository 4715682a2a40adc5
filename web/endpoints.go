package web

import (
	"context"
	"net/http"
	"time"

	"hrhelp/messenger-relay/pkgs/conf"
	"hrhelp/messenger-relay/pkgs/messenger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

const (
	ServiceName = "hr-help-bot"
	Version     = "1.0.0"

	// WebhookPath is the callback URL path registered with the platform.
	WebhookPath = "/hr"
)

// RegisterMessengerHandlers mounts the webhook handshake and event delivery.
// Event delivery goes through signature verification before its body is parsed.
func RegisterMessengerHandlers(router chi.Router, handler *messenger.Handler) {
	router.Get(WebhookPath, handler.HandleWebhookVerification)
	router.With(handler.VerifySignature).Post(WebhookPath, handler.HandleWebhookEvent)
}

func RegisterStatusHandlers(api huma.API, cfg *conf.Config, startedAt time.Time) {
	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get relay status",
		Tags:        []string{"status"},
	}, func(ctx context.Context, input *StatusInput) (*StatusOutput, error) {
		return &StatusOutput{
			Body: StatusBody{
				Service:         ServiceName,
				Version:         Version,
				GraphAPIBase:    cfg.GraphConfig.BaseURL,
				RedeliveryGuard: cfg.RedeliveryGuardEnabled(),
				UptimeSeconds:   int64(time.Since(startedAt).Seconds()),
			},
		}, nil
	})
}
