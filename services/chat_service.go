// Package services holds the application operations consumed by the
// websocket session layer and the HTTP surface.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/errors"
	"chat-core/moderation"
	"chat-core/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type SendMessageInput struct {
	ConversationID string `validate:"required"`
	Text           string
	Kind           string `validate:"omitempty,oneof=text image file"`
	MediaURL       string
}

type CreateConversationInput struct {
	IsGroup        bool
	Title          string
	ParticipantIDs []string `validate:"required,min=1"`
}

type IChatService interface {
	// JoinConversation validates that userID may enter the conversation
	// room. It performs no registry mutation; the transport joins the room
	// on success.
	JoinConversation(ctx context.Context, userID, convID string) (domain.Conversation, error)

	// SendMessage validates membership again (it can change between join
	// and send), persists the message with the sender pre-acknowledged,
	// then fans out message:new to the conversation room followed by a
	// conversation:update to every participant's personal room.
	SendMessage(ctx context.Context, userID string, in SendMessageInput) (domain.Message, error)

	// Typing relays a transient indicator to the conversation room,
	// excluding the emitting session. Nothing is persisted.
	Typing(ctx context.Context, userID, convID string, isTyping bool, except contract.EventSink)

	// MarkRead applies a read receipt idempotently and always broadcasts
	// the acknowledgment, so the reader's other sessions observe it even
	// when the read-set did not change.
	MarkRead(ctx context.Context, userID string, msgID uuid.UUID) (event.MessageRead, error)

	// StartConversation finds or creates the direct conversation with
	// participantID and, on first creation, notifies the peer's personal
	// room.
	StartConversation(ctx context.Context, callerID, participantID string) (domain.Conversation, error)

	CreateConversation(ctx context.Context, callerID string, in CreateConversationInput) (domain.Conversation, error)
	AddParticipants(ctx context.Context, callerID, convID string, userIDs []string) (domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationView, error)
	ListMessages(ctx context.Context, callerID, convID string, page, limit int) ([]domain.Message, bool, error)
}

var validate = validator.New()

type ChatService struct {
	convs       repositories.IConversationRepository
	msgs        repositories.IMessageRepository
	broadcaster contract.Broadcaster
	moderator   *moderation.Moderator
	log         *slog.Logger
}

func NewChatService(convs repositories.IConversationRepository, msgs repositories.IMessageRepository,
	broadcaster contract.Broadcaster, moderator *moderation.Moderator, log *slog.Logger) *ChatService {
	return &ChatService{
		convs:       convs,
		msgs:        msgs,
		broadcaster: broadcaster,
		moderator:   moderator,
		log:         log,
	}
}

// memberConversation loads the conversation and checks the caller belongs
// to it. The check always runs before any mutation for the calling
// operation.
func (s *ChatService) memberConversation(convID, userID string) (domain.Conversation, error) {
	conv, err := s.convs.GetByID(convID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return domain.Conversation{}, fmt.Errorf("user %s is not a participant of %s: %w", userID, convID, errors.ErrForbidden)
	}
	return conv, nil
}

func (s *ChatService) JoinConversation(_ context.Context, userID, convID string) (domain.Conversation, error) {
	return s.memberConversation(convID, userID)
}

func (s *ChatService) SendMessage(ctx context.Context, userID string, in SendMessageInput) (domain.Message, error) {
	if in.Kind == "" {
		in.Kind = domain.KindText
	}
	if err := validate.Struct(in); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	conv, err := s.memberConversation(in.ConversationID, userID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		Kind:           in.Kind,
		Text:           in.Text,
		MediaURL:       in.MediaURL,
		ReadBy:         []string{userID},
		CreatedAt:      time.Now().UTC(),
	}
	if msg.Kind == domain.KindText && msg.Text != "" {
		result := s.moderator.Sanitize(msg.Text)
		msg.Text = result.Sanitized
		msg.Lang = result.Lang
	}

	msg, err = s.msgs.Append(msg)
	if err != nil {
		return domain.Message{}, err
	}

	// Fan-out happens after the commit and is fire-and-forget: the sender's
	// ack does not wait for recipients. message:new goes out strictly
	// before the per-participant summaries.
	s.broadcaster.Broadcast(ctx, event.ConversationRoom(conv.ID), event.MessageNew{Message: msg}, nil)
	summary := event.LastMessageSummary{Text: msg.Text, CreatedAt: msg.CreatedAt}
	for _, p := range conv.Participants {
		update := event.ConversationUpdated{
			ConversationID: conv.ID,
			LastMessage:    summary,
			UserID:         p.UserID,
		}
		s.broadcaster.Broadcast(ctx, update.Room(), update, nil)
	}
	return msg, nil
}

func (s *ChatService) Typing(ctx context.Context, userID, convID string, isTyping bool, except contract.EventSink) {
	if convID == "" {
		return
	}
	evt := event.Typing{ConversationID: convID, UserID: userID, IsTyping: isTyping}
	s.broadcaster.Broadcast(ctx, evt.Room(), evt, except)
}

func (s *ChatService) MarkRead(ctx context.Context, userID string, msgID uuid.UUID) (event.MessageRead, error) {
	msg, changed, err := s.msgs.MarkRead(msgID, userID)
	if err != nil {
		return event.MessageRead{}, err
	}
	if !changed {
		s.log.Debug("read receipt already applied", "message_id", msgID, "user_id", userID)
	}

	evt := event.MessageRead{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
	}
	s.broadcaster.Broadcast(ctx, evt.Room(), evt, nil)
	return evt, nil
}

func (s *ChatService) StartConversation(ctx context.Context, callerID, participantID string) (domain.Conversation, error) {
	conv, created, err := s.convs.CreateDirect(callerID, participantID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		evt := event.ConversationNew{Conversation: conv, UserID: participantID}
		s.broadcaster.Broadcast(ctx, evt.Room(), evt, nil)
	}
	return conv, nil
}

func (s *ChatService) CreateConversation(ctx context.Context, callerID string, in CreateConversationInput) (domain.Conversation, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	if !in.IsGroup {
		others := lo.Uniq(lo.Without(in.ParticipantIDs, callerID))
		if len(others) != 1 {
			return domain.Conversation{}, fmt.Errorf("a direct conversation needs exactly one other participant: %w", errors.ErrValidation)
		}
		return s.StartConversation(ctx, callerID, others[0])
	}
	return s.convs.CreateGroup(callerID, in.ParticipantIDs, in.Title)
}

func (s *ChatService) AddParticipants(_ context.Context, callerID, convID string, userIDs []string) (domain.Conversation, error) {
	return s.convs.AddParticipants(convID, callerID, userIDs)
}

func (s *ChatService) ListConversations(_ context.Context, userID string) ([]domain.ConversationView, error) {
	return s.convs.ListForUser(userID)
}

func (s *ChatService) ListMessages(_ context.Context, callerID, convID string, page, limit int) ([]domain.Message, bool, error) {
	if _, err := s.memberConversation(convID, callerID); err != nil {
		return nil, false, err
	}
	return s.msgs.List(convID, page, limit)
}
