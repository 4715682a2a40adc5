package messenger

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// VerifySubscription reports whether a handshake request carries the subscribe
// mode and the configured verify token.
func VerifySubscription(input WebhookVerifyInput, verifyToken string) bool {
	return input.Mode == "subscribe" && input.Token == verifyToken
}

// HandleWebhookVerification answers the GET handshake the platform performs
// when the webhook is registered.
func (h *Handler) HandleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := WebhookVerifyInput{
		Mode:      query.Get("hub.mode"),
		Token:     query.Get("hub.verify_token"),
		Challenge: query.Get("hub.challenge"),
	}

	if !VerifySubscription(input, h.verifyToken) {
		log.Warn().Str("mode", input.Mode).Msg("Failed validation. Make sure the validation tokens match.")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	log.Info().Msg("Validated webhook")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(input.Challenge))
}
