package chat

import "github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

type EventType string

const (
	EventJoin  EventType = "join"
	EventSend  EventType = "send"
	EventError EventType = "error"
)

// InboundEvent is what a session may send over the push transport.
type InboundEvent struct {
	Type EventType `json:"type"`

	// join
	UserID string `json:"userId,omitempty"`

	// send. SenderID is advisory only; the server always acts on the
	// identity bound to the session and rejects a mismatch.
	SenderID      string             `json:"senderId,omitempty"`
	ReceiverID    string             `json:"receiverId,omitempty"`
	Content       string             `json:"content,omitempty"`
	Kind          models.MessageKind `json:"kind,omitempty"`
	AttachmentURL string             `json:"attachmentUrl,omitempty"`
}

// OutboundEvent is the server→client envelope: receive and read
// notifications, plus error feedback on rejected inbound events.
type OutboundEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}
