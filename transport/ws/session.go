package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/errors"
	"chat-core/services"
	"chat-core/sink"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Session is the per-connection state machine. By the time a Session
// exists the connection is authenticated; Run drives it until disconnect,
// which is terminal and leaves every joined room.
type Session struct {
	conn        *websocket.Conn
	sink        *sink.ChannelSink
	identity    domain.Identity
	chat        services.IChatService
	broadcaster contract.Broadcaster
	log         *slog.Logger
}

func NewSession(conn *websocket.Conn, identity domain.Identity, chat services.IChatService,
	broadcaster contract.Broadcaster, bufferSize int, log *slog.Logger) *Session {
	return &Session{
		conn:        conn,
		sink:        sink.NewChannelSink(bufferSize),
		identity:    identity,
		chat:        chat,
		broadcaster: broadcaster,
		log:         log.With("user_id", identity.LocalID),
	}
}

// Run blocks until the connection closes. The reader processes this
// connection's events strictly in arrival order; a writer goroutine drains
// the sink so fan-out never blocks on this client's socket.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.broadcaster.LeaveAll(s.sink)

	// Every connection lives in its owner's personal room.
	s.broadcaster.Join(s.sink, event.UserRoom(s.identity.LocalID))

	if err := wsjson.Write(ctx, s.conn, mustPush("me", event.Me{Identity: s.identity})); err != nil {
		return err
	}

	go s.writeLoop(ctx)

	for {
		var env Envelope
		if err := wsjson.Read(ctx, s.conn, &env); err != nil {
			s.log.Debug("connection closed", "error", err)
			return nil
		}
		s.handle(ctx, env)
	}
}

// writeLoop serializes pushes to the client in sink order.
func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.sink.Events:
			env, err := push(evt.Name(), evt)
			if err != nil {
				s.log.Error("event marshal failed", "event", evt.Name(), "error", err)
				continue
			}
			if err := wsjson.Write(ctx, s.conn, env); err != nil {
				s.log.Debug("push failed, closing writer", "error", err)
				return
			}
		}
	}
}

// handle dispatches one client event. Errors are reported through the ack
// and never tear down the connection.
func (s *Session) handle(ctx context.Context, env Envelope) {
	switch env.Event {
	case EventJoinConversation:
		s.handleJoin(ctx, env)
	case EventSendMessage:
		s.handleSend(ctx, env)
	case EventTypingStart:
		s.handleTyping(ctx, env, true)
	case EventTypingStop:
		s.handleTyping(ctx, env, false)
	case EventMessageRead:
		s.handleRead(ctx, env)
	default:
		s.ack(ctx, env.ID, fmt.Errorf("unknown event %q: %w", env.Event, errors.ErrValidation), nil)
	}
}

func (s *Session) handleJoin(ctx context.Context, env Envelope) {
	var p joinPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
		s.ack(ctx, env.ID, fmt.Errorf("conversationId is required: %w", errors.ErrValidation), nil)
		return
	}

	conv, err := s.chat.JoinConversation(ctx, s.identity.LocalID, p.ConversationID)
	if err != nil {
		s.ack(ctx, env.ID, err, nil)
		return
	}

	// Idempotent: re-joining an already joined room is a no-op.
	s.broadcaster.Join(s.sink, event.ConversationRoom(conv.ID))
	s.ack(ctx, env.ID, nil, nil)
}

func (s *Session) handleSend(ctx context.Context, env Envelope) {
	var p sendPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.ack(ctx, env.ID, fmt.Errorf("malformed payload: %w", errors.ErrValidation), nil)
		return
	}

	msg, err := s.chat.SendMessage(ctx, s.identity.LocalID, services.SendMessageInput{
		ConversationID: p.ConversationID,
		Text:           p.Text,
		Kind:           p.Kind,
		MediaURL:       p.MediaURL,
	})
	if err != nil {
		s.ack(ctx, env.ID, err, nil)
		return
	}
	s.ack(ctx, env.ID, nil, &msg)
}

func (s *Session) handleTyping(ctx context.Context, env Envelope, isTyping bool) {
	var p typingPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}
	// Best-effort UX signal: no ack, no persistence, sender excluded.
	s.chat.Typing(ctx, s.identity.LocalID, p.ConversationID, isTyping, s.sink)
}

func (s *Session) handleRead(ctx context.Context, env Envelope) {
	var p readPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.ack(ctx, env.ID, fmt.Errorf("malformed payload: %w", errors.ErrValidation), nil)
		return
	}
	msgID, err := uuid.Parse(p.MessageID)
	if err != nil {
		s.ack(ctx, env.ID, fmt.Errorf("messageId is not a uuid: %w", errors.ErrValidation), nil)
		return
	}

	if _, err := s.chat.MarkRead(ctx, s.identity.LocalID, msgID); err != nil {
		s.ack(ctx, env.ID, err, nil)
		return
	}
	s.ack(ctx, env.ID, nil, nil)
}

// ack answers a client event. An id of zero means the client did not
// request an acknowledgment.
func (s *Session) ack(ctx context.Context, id int64, err error, msg *domain.Message) {
	if id == 0 {
		if err != nil {
			s.log.Debug("unacknowledged event failed", "error", err)
		}
		return
	}

	out := Ack{ID: id, Ok: err == nil, Message: msg}
	if err != nil {
		out.Error = errors.ClientMessage(err)
		s.log.Debug("event rejected", "error", err)
	}
	if writeErr := wsjson.Write(ctx, s.conn, out); writeErr != nil {
		s.log.Debug("ack write failed", "error", writeErr)
	}
}

// mustPush is for payloads built by the server itself, whose marshaling
// cannot fail.
func mustPush(eventName string, payload any) Envelope {
	env, err := push(eventName, payload)
	if err != nil {
		panic(err)
	}
	return env
}
