package bot

import (
	"context"
	"errors"

	"hrhelp/messenger-relay/pkgs/graph"
	"hrhelp/messenger-relay/pkgs/messenger"
	"hrhelp/messenger-relay/pkgs/utils"

	"github.com/rs/zerolog/log"
)

const (
	// MaxMessageLength is counted in UTF-16 code units, as Messenger counts it.
	MaxMessageLength = 512

	// CancelPayload is the postback payload that withdraws a submission.
	CancelPayload = "POST_CANCEL_PAYLOAD"

	SubmitButtonTitle = "Submit it"

	TooLongNotice         = "Your message is too long, please limit it to 512 characters or less."
	CancelledNotice       = "OK, I will not post it."
	PendingApprovalNotice = "OK, I will post it anonymously, please wait for an admin to approve it."
)

// Outbound is the subset of the Graph API the conversation needs.
type Outbound interface {
	SendText(ctx context.Context, recipientID, text string) (*graph.SendMessageResponse, error)
	SendButtons(ctx context.Context, recipientID, text string, buttons []graph.Button) (*graph.SendMessageResponse, error)
	CreatePost(ctx context.Context, message string) (*graph.CreatePostResponse, error)
}

// Bot turns submissions into confirmation prompts and confirmed postbacks into
// anonymous group posts. It keeps no state between events: the submitted text
// travels in the button payload and comes back verbatim in the postback.
type Bot struct {
	outbound Outbound
}

func New(outbound Outbound) *Bot {
	return &Bot{outbound: outbound}
}

var _ messenger.Conversation = (*Bot)(nil)

// HandleMessage asks the sender to confirm text before it is posted.
func (b *Bot) HandleMessage(ctx context.Context, senderID string, text string) {
	if utils.UTF16Length(text) > MaxMessageLength {
		b.sendText(ctx, senderID, TooLongNotice)
		return
	}

	buttons := []graph.Button{
		{
			Type:    graph.ButtonTypePostback,
			Title:   SubmitButtonTitle,
			Payload: text,
		},
	}
	if _, err := b.outbound.SendButtons(ctx, senderID, ConfirmationPrompt(text), buttons); err != nil {
		logOutboundError(err, senderID)
		return
	}
	log.Debug().Str("recipient", senderID).Msg("Sent confirmation prompt")
}

// HandlePostback cancels or publishes the submission carried in the payload.
// The acknowledgment and the post are attempted independently.
func (b *Bot) HandlePostback(ctx context.Context, senderID string, postback messenger.Postback) {
	if postback.Payload == CancelPayload {
		b.sendText(ctx, senderID, CancelledNotice)
		return
	}

	b.sendText(ctx, senderID, PendingApprovalNotice)

	resp, err := b.outbound.CreatePost(ctx, postback.Payload)
	if err != nil {
		logOutboundError(err, senderID)
		return
	}
	log.Info().Str("post_id", resp.ID).Str("preview", utils.Ellipsize(postback.Payload, 40)).Msg("Created group post")
}

// ConfirmationPrompt quotes the submission back to its author.
func ConfirmationPrompt(text string) string {
	return "Your message:\n\"" + text + "\""
}

func (b *Bot) sendText(ctx context.Context, recipientID, text string) {
	if _, err := b.outbound.SendText(ctx, recipientID, text); err != nil {
		logOutboundError(err, recipientID)
	}
}

func logOutboundError(err error, recipientID string) {
	event := log.Error().Str("recipient", recipientID)

	var gerr *graph.Error
	if errors.As(err, &gerr) {
		event = event.Str("op", gerr.Op).Int("status_code", gerr.StatusCode).Str("status", gerr.Status)
		if gerr.API != nil {
			event = event.Interface("platform_error", gerr.API)
		} else if gerr.Body != "" {
			event = event.Str("body", gerr.Body)
		}
		if gerr.Err != nil {
			event = event.AnErr("cause", gerr.Err)
		}
	} else {
		event = event.Err(err)
	}
	event.Msg("Failed sending message")
}
