package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	KindText  = "text"
	KindImage = "image"
	KindFile  = "file"
)

// Message is an append-only chat record. Once created, only ReadBy is
// mutated, and it grows monotonically: the sender is present from creation
// and ids are never removed.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Kind           string    `json:"kind"`
	Text           string    `json:"text,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	ReadBy         []string  `json:"readBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ReadByContains reports whether userID already acknowledged the message.
func (m Message) ReadByContains(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidKind reports whether k is one of the supported message kinds.
func ValidKind(k string) bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}
