package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Message is a direct message between two users. Immutable once
// persisted, except for IsRead.
type Message struct {
	ID            uuid.UUID   `json:"id"`
	SenderID      uuid.UUID   `json:"senderId"`
	ReceiverID    uuid.UUID   `json:"receiverId"`
	SenderName    string      `json:"senderName,omitempty"`
	Content       string      `json:"content"`
	Kind          MessageKind `json:"kind"`
	AttachmentURL string      `json:"attachmentUrl,omitempty"`
	IsRead        bool        `json:"isRead"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Between reports whether the message belongs to the conversation of
// the unordered pair (a, b).
func (m *Message) Between(a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}
