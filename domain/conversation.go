package domain

import "time"

// Participant roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Participant struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Conversation groups two or more participants. A direct conversation
// (IsGroup false) holds exactly two distinct users and is unique per
// unordered pair system-wide.
type Conversation struct {
	ID            string        `json:"id"`
	Title         string        `json:"title,omitempty"`
	IsGroup       bool          `json:"isGroup"`
	Participants  []Participant `json:"participants"`
	LastMessageID string        `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HasParticipant reports membership. Participant order is insertion order,
// so a linear scan is fine for the small lists conversations carry.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ConversationView is the populated shape returned by list operations:
// participant identities and the last message (with its sender) are
// resolved by the store, not lazily by callers.
type ConversationView struct {
	Conversation
	ParticipantUsers []User   `json:"participantUsers"`
	LastMessage      *Message `json:"lastMessage,omitempty"`
	LastMessageFrom  *User    `json:"lastMessageFrom,omitempty"`
}
