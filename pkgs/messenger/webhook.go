package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/juju/errors"
	"github.com/rs/zerolog/log"
)

// maxBodySize bounds the raw body read for signature verification.
const maxBodySize = 1 << 20

// Conversation reacts to the two kinds of events the relay understands.
type Conversation interface {
	HandleMessage(ctx context.Context, senderID string, text string)
	HandlePostback(ctx context.Context, senderID string, postback Postback)
}

// RedeliveryGuard reports whether an event id is seen for the first time.
type RedeliveryGuard interface {
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
}

type Handler struct {
	verifyToken  string
	verifier     *SignatureVerifier
	conversation Conversation
	guard        RedeliveryGuard
	inflight     sync.WaitGroup
}

type Option func(*Handler)

// WithRedeliveryGuard drops events whose id the guard has already seen.
func WithRedeliveryGuard(guard RedeliveryGuard) Option {
	return func(h *Handler) {
		h.guard = guard
	}
}

func NewHandler(verifyToken string, verifier *SignatureVerifier, conversation Conversation, opts ...Option) *Handler {
	h := &Handler{
		verifyToken:  verifyToken,
		verifier:     verifier,
		conversation: conversation,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// VerifySignature checks the raw body against the signature header before any
// handler parses it. A missing header is only logged.
func (h *Handler) VerifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			log.Error().Err(err).Msg("Failed to read webhook body")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		_ = r.Body.Close()

		err = h.verifier.Verify(body, r.Header.Get(SignatureHeader))
		switch {
		case errors.Is(err, ErrMissingSignature):
			log.Warn().Str("remote", r.RemoteAddr).Msg("Signature missing.")
		case err != nil:
			log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected webhook delivery")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// HandleWebhookEvent acknowledges a delivery and hands its events to the
// conversation on a detached goroutine. The response never waits for them.
func (h *Handler) HandleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("Malformed webhook payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object != ObjectPage {
		log.Debug().Str("object", payload.Object).Msg("Ignoring non-page subscription event")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Msg("Recovered from panic while dispatching webhook events")
			}
		}()
		h.Dispatch(ctx, payload)
	}()

	w.WriteHeader(http.StatusOK)
}

// Dispatch routes every messaging event of every entry.
func (h *Handler) Dispatch(ctx context.Context, payload WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			h.dispatchEvent(ctx, event)
		}
	}
}

func (h *Handler) dispatchEvent(ctx context.Context, event MessagingEvent) {
	logger := log.With().Str("sender", event.Sender.ID).Str("kind", string(event.Kind())).Logger()

	switch event.Kind() {
	case EventKindMessage:
		if event.Message.IsEcho || event.Message.Text == nil {
			logger.Debug().Bool("echo", event.Message.IsEcho).Msg("Skipping message without user text")
			return
		}
	case EventKindPostback:
	default:
		logger.Debug().Msg("Skipping event without message or postback")
		return
	}

	if !h.firstDelivery(ctx, event) {
		logger.Info().Str("event_id", event.ID()).Msg("Skipping redelivered event")
		return
	}

	if event.Kind() == EventKindMessage {
		h.conversation.HandleMessage(ctx, event.Sender.ID, *event.Message.Text)
		return
	}
	h.conversation.HandlePostback(ctx, event.Sender.ID, *event.Postback)
}

// firstDelivery fails open: without a guard, an id, or a reachable store the
// event is handled.
func (h *Handler) firstDelivery(ctx context.Context, event MessagingEvent) bool {
	id := event.ID()
	if h.guard == nil || id == "" {
		return true
	}
	first, err := h.guard.FirstDelivery(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("event_id", id).Msg("Redelivery guard unavailable")
		return true
	}
	return first
}

// Wait blocks until every dispatched delivery has been handled.
func (h *Handler) Wait() {
	h.inflight.Wait()
}
