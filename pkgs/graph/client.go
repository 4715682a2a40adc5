// Package graph is a small client for the Graph API endpoints the relay calls:
// Messenger send (/me/messages) and group feed posts (/{group-id}/feed).
//
// Every request carries the page access token as the access_token query
// parameter. Failed calls return *Error with the status and the platform's
// error object; the client never retries.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hrhelp/messenger-relay/pkgs/auth"

	"github.com/juju/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the Graph API version the bot was built against.
	DefaultBaseURL = "https://graph.facebook.com/v2.10"

	defaultTimeout = 30 * time.Second
	// maxResponseBodySize caps how much of a response is read.
	maxResponseBodySize = 64 << 10
)

type Client struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	baseURL    string
	groupID    string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a client that posts to groupID's feed and sends messages as
// the page owning the tokens.
func NewClient(tokens oauth2.TokenSource, groupID string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		baseURL:    DefaultBaseURL,
		groupID:    groupID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText sends a plain text message to recipientID.
func (c *Client) SendText(ctx context.Context, recipientID, text string) (*SendMessageResponse, error) {
	req := SendMessageRequest{
		Recipient: Recipient{ID: recipientID},
		Message:   OutboundMessage{Text: text},
	}

	var resp SendMessageResponse
	if err := c.post(ctx, "send text", "/me/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendButtons sends a button template. Buttons keep their order.
func (c *Client) SendButtons(ctx context.Context, recipientID, text string, buttons []Button) (*SendMessageResponse, error) {
	req := SendMessageRequest{
		Recipient: Recipient{ID: recipientID},
		Message: OutboundMessage{
			Attachment: &Attachment{
				Type: "template",
				Payload: TemplatePayload{
					TemplateType: "button",
					Text:         text,
					Buttons:      buttons,
				},
			},
		},
	}

	var resp SendMessageResponse
	if err := c.post(ctx, "send buttons", "/me/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreatePost publishes message to the configured group's feed as markdown.
func (c *Client) CreatePost(ctx context.Context, message string) (*CreatePostResponse, error) {
	req := CreatePostRequest{
		Message:    message,
		Formatting: FormattingMarkdown,
	}

	var resp CreatePostResponse
	if err := c.post(ctx, "create post", "/"+url.PathEscape(c.groupID)+"/feed", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	token, err := auth.AccessToken(c.tokens)
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Annotatef(err, "failed to marshal %s payload", op)
	}

	endpoint := c.baseURL + path + "?" + url.Values{"access_token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Annotatef(err, "failed to create %s request", op)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode != http.StatusOK {
		gerr := &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
		var envelope errorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			gerr.API = envelope.Error
		} else {
			gerr.Body = string(respBody)
		}
		return gerr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			// The call went through; an unexpected response shape is not a failure.
			log.Debug().Err(err).Str("op", op).Msg("Unexpected Graph API response body")
		}
	}
	return nil
}
