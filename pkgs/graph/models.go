package graph

// ButtonTypePostback makes the platform echo the button payload back as a postback.
const ButtonTypePostback = "postback"

// FormattingMarkdown renders feed post bodies as markdown in groups.
const FormattingMarkdown = "MARKDOWN"

type Recipient struct {
	ID string `json:"id"`
}

type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type SendMessageRequest struct {
	Recipient Recipient       `json:"recipient"`
	Message   OutboundMessage `json:"message"`
}

// OutboundMessage carries either Text or Attachment.
type OutboundMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

type Attachment struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

type TemplatePayload struct {
	TemplateType string   `json:"template_type"`
	Text         string   `json:"text"`
	Buttons      []Button `json:"buttons"`
}

type CreatePostRequest struct {
	Message    string `json:"message"`
	Formatting string `json:"formatting"`
}

// SendMessageResponse is returned by /me/messages.
type SendMessageResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// CreatePostResponse is returned by /{group-id}/feed.
type CreatePostResponse struct {
	ID string `json:"id"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// APIError is the error object the Graph API puts in failed responses.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}
