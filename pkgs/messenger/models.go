package messenger

import "strconv"

type WebhookVerifyInput struct {
	Mode      string // hub.mode, should be "subscribe"
	Token     string // hub.verify_token
	Challenge string // hub.challenge, echoed back on success
}

// ObjectPage is the only subscription object this relay handles.
const ObjectPage = "page"

// Webhook event structures
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent carries exactly one of Message or Postback in practice.
type MessagingEvent struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Postback  *Postback   `json:"postback,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

// Message.Text is nil for attachment-only messages and "" for an empty text.
type Message struct {
	MID         string       `json:"mid"`
	Text        *string      `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Type string `json:"type"`
}

type Postback struct {
	MID     string `json:"mid,omitempty"`
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload"`
}

// EventKind tells the dispatcher which handler an event goes to.
type EventKind string

const (
	EventKindMessage  EventKind = "message"
	EventKindPostback EventKind = "postback"
	EventKindUnknown  EventKind = "unknown"
)

// Kind prefers the message when both fields are set.
func (e MessagingEvent) Kind() EventKind {
	switch {
	case e.Message != nil:
		return EventKindMessage
	case e.Postback != nil:
		return EventKindPostback
	default:
		return EventKindUnknown
	}
}

// ID returns the platform id of the message or postback, used to detect redelivery.
// Postbacks from older API versions have no mid, so the sender and timestamp stand in.
func (e MessagingEvent) ID() string {
	switch e.Kind() {
	case EventKindMessage:
		if e.Message.MID != "" {
			return e.Message.MID
		}
	case EventKindPostback:
		if e.Postback.MID != "" {
			return e.Postback.MID
		}
	default:
		return ""
	}
	if e.Timestamp == 0 {
		return ""
	}
	return string(e.Kind()) + ":" + e.Sender.ID + ":" + strconv.FormatInt(e.Timestamp, 10)
}
