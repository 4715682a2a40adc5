package messenger

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVerifyToken = "my_test_verify_token"
	testAppSecret   = "my_test_app_secret"
)

type recordedCall struct {
	Kind     EventKind
	SenderID string
	Text     string
}

type recordingConversation struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (c *recordingConversation) HandleMessage(ctx context.Context, senderID string, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{Kind: EventKindMessage, SenderID: senderID, Text: text})
}

func (c *recordingConversation) HandlePostback(ctx context.Context, senderID string, postback Postback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{Kind: EventKindPostback, SenderID: senderID, Text: postback.Payload})
}

// blockingConversation holds every event until release is closed.
type blockingConversation struct {
	recordingConversation
	started chan struct{}
	release chan struct{}
}

func (c *blockingConversation) HandleMessage(ctx context.Context, senderID string, text string) {
	close(c.started)
	<-c.release
	c.recordingConversation.HandleMessage(ctx, senderID, text)
}

type mapGuard struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (g *mapGuard) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.seen[eventID] {
		return false, nil
	}
	g.seen[eventID] = true
	return true, nil
}

func newTestHandler(opts ...Option) (*Handler, *recordingConversation) {
	conv := &recordingConversation{}
	return NewHandler(testVerifyToken, NewSignatureVerifier(testAppSecret), conv, opts...), conv
}

func newTestRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hr", h.HandleWebhookVerification)
	mux.Handle("POST /hr", h.VerifySignature(http.HandlerFunc(h.HandleWebhookEvent)))
	return mux
}

func signPayload(secret, payload string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func postEvent(t *testing.T, h *Handler, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hr", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rr, req)
	h.Wait()
	return rr
}

// --- Verification (GET) ---

func TestVerification_ValidToken(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet,
		"/hr?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=1158201444", nil)
	rr := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1158201444", rr.Body.String())
}

func TestVerification_Rejected(t *testing.T) {
	cases := map[string]string{
		"wrong token":   "/hr?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1",
		"wrong mode":    "/hr?hub.mode=unsubscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1",
		"missing token": "/hr?hub.mode=subscribe&hub.challenge=1",
		"no params":     "/hr",
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			h, _ := newTestHandler()
			rr := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusForbidden, rr.Code)
			assert.Empty(t, rr.Body.String())
		})
	}
}

// --- Event delivery (POST) ---

const helloPayload = `{"object":"page","entry":[{"id":"P1","time":1,"messaging":[{"sender":{"id":"U1"},"recipient":{"id":"P1"},"timestamp":1,"message":{"mid":"m.1","text":"hello"}}]}]}`

func TestEvent_MessageDispatched(t *testing.T) {
	h, conv := newTestHandler()
	rr := postEvent(t, h, helloPayload, signPayload(testAppSecret, helloPayload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, []recordedCall{{Kind: EventKindMessage, SenderID: "U1", Text: "hello"}}, conv.calls)
}

func TestEvent_EmptyTextDispatched(t *testing.T) {
	payload := `{"object":"page","entry":[{"id":"P1","messaging":[{"sender":{"id":"U1"},"message":{"mid":"m2","text":""}}]}]}`
	h, conv := newTestHandler()
	rr := postEvent(t, h, payload, signPayload(testAppSecret, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []recordedCall{{Kind: EventKindMessage, SenderID: "U1", Text: ""}}, conv.calls)
}

func TestEvent_AcknowledgedBeforeConversationFinishes(t *testing.T) {
	conv := &blockingConversation{started: make(chan struct{}), release: make(chan struct{})}
	h := NewHandler(testVerifyToken, NewSignatureVerifier(testAppSecret), conv)

	req := httptest.NewRequest(http.MethodPost, "/hr", strings.NewReader(helloPayload))
	req.Header.Set(SignatureHeader, signPayload(testAppSecret, helloPayload))
	rr := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-conv.started:
	case <-time.After(5 * time.Second):
		t.Fatal("conversation was never called")
	}
	conv.mu.Lock()
	assert.Empty(t, conv.calls)
	conv.mu.Unlock()

	close(conv.release)
	h.Wait()
	assert.Equal(t, []recordedCall{{Kind: EventKindMessage, SenderID: "U1", Text: "hello"}}, conv.calls)
}

func TestEvent_MissingSignatureTolerated(t *testing.T) {
	h, conv := newTestHandler()
	rr := postEvent(t, h, helloPayload, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, conv.calls, 1)
}

func TestEvent_SignatureMismatch(t *testing.T) {
	sig := signPayload(testAppSecret, helloPayload)
	flipped := []byte(sig)
	last := len(flipped) - 1
	if flipped[last] == '0' {
		flipped[last] = '1'
	} else {
		flipped[last] = '0'
	}

	for _, bad := range []string{string(flipped), signPayload("other", helloPayload), "sha1=zz", "sha256=abcd"} {
		h, conv := newTestHandler()
		rr := postEvent(t, h, helloPayload, bad)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "signature %q", bad)
		assert.Empty(t, conv.calls)
	}
}

func TestEvent_NonPageObject(t *testing.T) {
	payload := `{"object":"instagram","entry":[{"id":"1","messaging":[{"sender":{"id":"U1"},"message":{"text":"hi"}}]}]}`
	h, conv := newTestHandler()
	rr := postEvent(t, h, payload, signPayload(testAppSecret, payload))

	assert.NotEqual(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, conv.calls)
}

func TestEvent_MalformedJSON(t *testing.T) {
	payload := `{"object":`
	h, conv := newTestHandler()
	rr := postEvent(t, h, payload, signPayload(testAppSecret, payload))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, conv.calls)
}

func TestEvent_MultipleEntriesAndKinds(t *testing.T) {
	payload := `{"object":"page","entry":[
		{"id":"P1","messaging":[
			{"sender":{"id":"U1"},"message":{"mid":"m.1","text":"first"}},
			{"sender":{"id":"U2"},"postback":{"title":"Submit it","payload":"second"}}
		]},
		{"id":"P1","messaging":[
			{"sender":{"id":"U3"},"delivery":{"mids":["m.0"]}},
			{"sender":{"id":"U4"},"message":{"mid":"m.2","text":"both"},"postback":{"payload":"ignored"}},
			{"sender":{"id":"P1"},"message":{"mid":"m.3","text":"echo","is_echo":true}},
			{"sender":{"id":"U5"},"message":{"mid":"m.4","attachments":[{"type":"image"}]}}
		]}
	]}`
	h, conv := newTestHandler()
	rr := postEvent(t, h, payload, signPayload(testAppSecret, payload))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []recordedCall{
		{Kind: EventKindMessage, SenderID: "U1", Text: "first"},
		{Kind: EventKindPostback, SenderID: "U2", Text: "second"},
		{Kind: EventKindMessage, SenderID: "U4", Text: "both"},
	}, conv.calls)
}

func TestEvent_RedeliveryGuard(t *testing.T) {
	guard := &mapGuard{seen: map[string]bool{}}
	h, conv := newTestHandler(WithRedeliveryGuard(guard))
	sig := signPayload(testAppSecret, helloPayload)

	postEvent(t, h, helloPayload, sig)
	rr := postEvent(t, h, helloPayload, sig)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, conv.calls, 1)
}

func TestEvent_RedeliveryGuardFailsOpen(t *testing.T) {
	guard := &mapGuard{seen: map[string]bool{}, err: errors.New("redis down")}
	h, conv := newTestHandler(WithRedeliveryGuard(guard))
	sig := signPayload(testAppSecret, helloPayload)

	postEvent(t, h, helloPayload, sig)
	postEvent(t, h, helloPayload, sig)

	assert.Len(t, conv.calls, 2)
}

func TestMessagingEvent_ID(t *testing.T) {
	text := "hi"
	msg := MessagingEvent{Sender: Participant{ID: "U1"}, Timestamp: 42, Message: &Message{MID: "m.1", Text: &text}}
	assert.Equal(t, "m.1", msg.ID())

	pb := MessagingEvent{Sender: Participant{ID: "U1"}, Timestamp: 42, Postback: &Postback{Payload: "x"}}
	assert.Equal(t, "postback:U1:42", pb.ID())

	noTimestamp := MessagingEvent{Sender: Participant{ID: "U1"}, Postback: &Postback{Payload: "x"}}
	assert.Empty(t, noTimestamp.ID())

	assert.Empty(t, MessagingEvent{}.ID())
}

func TestDispatch_Direct(t *testing.T) {
	h, conv := newTestHandler()
	h.Dispatch(context.Background(), WebhookPayload{
		Object: ObjectPage,
		Entry: []Entry{{Messaging: []MessagingEvent{
			{Sender: Participant{ID: "U9"}, Postback: &Postback{Payload: "POST_CANCEL_PAYLOAD"}},
		}}},
	})
	require.Len(t, conv.calls, 1)
	assert.Equal(t, "POST_CANCEL_PAYLOAD", conv.calls[0].Text)
}
