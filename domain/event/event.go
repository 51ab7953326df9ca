// Package event defines the events pushed to connected clients. Each event
// knows its wire name and the room it is addressed to.
package event

import (
	"time"

	"chat-core/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything that can be fanned out to a room.
type DomainEvent interface {
	Name() string
	Room() string
}

// UserRoom and ConversationRoom build the namespaced room keys used by the
// registry.
func UserRoom(userID string) string         { return "user:" + userID }
func ConversationRoom(convID string) string { return "conversation:" + convID }

// MessageNew carries the full persisted message to the conversation room,
// sender included, so all of the sender's sessions converge.
type MessageNew struct {
	Message domain.Message `json:"message"`
}

func (e MessageNew) Name() string { return "message:new" }
func (e MessageNew) Room() string { return ConversationRoom(e.Message.ConversationID) }

// LastMessageSummary is the lightweight payload list views refresh from.
type LastMessageSummary struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationUpdated is sent to each participant's personal room after a
// successful send, strictly after the corresponding MessageNew.
type ConversationUpdated struct {
	ConversationID string             `json:"conversationId"`
	LastMessage    LastMessageSummary `json:"lastMessage"`
	UserID         string             `json:"-"`
}

func (e ConversationUpdated) Name() string { return "conversation:update" }
func (e ConversationUpdated) Room() string { return UserRoom(e.UserID) }

// ConversationNew notifies a user's personal room that a conversation now
// involves them.
type ConversationNew struct {
	Conversation domain.Conversation `json:"conversation"`
	UserID       string              `json:"-"`
}

func (e ConversationNew) Name() string { return "conversation:new" }
func (e ConversationNew) Room() string { return UserRoom(e.UserID) }

// Typing is a transient indicator, never persisted.
type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

func (e Typing) Name() string { return "typing" }
func (e Typing) Room() string { return ConversationRoom(e.ConversationID) }

// MessageRead acknowledges a read receipt to the conversation room. It is
// broadcast even when the read-set did not change, so the reader's other
// sessions observe the ack too.
type MessageRead struct {
	ConversationID string    `json:"-"`
	MessageID      uuid.UUID `json:"messageId"`
	UserID         string    `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e MessageRead) Name() string { return "message:read" }
func (e MessageRead) Room() string { return ConversationRoom(e.ConversationID) }

// Me is emitted once to a freshly authenticated connection.
type Me struct {
	Identity domain.Identity `json:"identity"`
}

func (e Me) Name() string { return "me" }
func (e Me) Room() string { return UserRoom(e.Identity.LocalID) }
