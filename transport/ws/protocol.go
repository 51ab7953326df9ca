// Package ws implements the persistent-connection protocol: JSON envelopes
// over a websocket, request events acknowledged per id, server pushes
// unacknowledged.
package ws

import (
	"encoding/json"

	"chat-core/domain"
)

// Client-to-server event names.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventMessageRead      = "message:read"
)

// Envelope frames every client-to-server and server-to-client message.
// A non-zero id on a client event requests an acknowledgment carrying the
// same id.
type Envelope struct {
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack is the response to an acknowledged client event.
type Ack struct {
	ID      int64           `json:"id"`
	Ok      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendPayload struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Kind           string `json:"kind"`
	MediaURL       string `json:"mediaUrl"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
}

type readPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// push builds a server-to-client envelope from an already-marshalable
// payload.
func push(eventName string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: eventName, Data: data}, nil
}
