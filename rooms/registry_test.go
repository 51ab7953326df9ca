package rooms

import (
	"context"
	"log/slog"
	"testing"

	"chat-core/domain/event"

	"github.com/stretchr/testify/require"
)

// recordingSink collects everything it is offered, in order.
type recordingSink struct {
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.events = append(s.events, e)
	return nil
}

func Test_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	room := event.ConversationRoom("c-1")
	registry.Join(sink, room)
	registry.Join(sink, room)

	registry.Broadcast(ctx, room, event.Typing{ConversationID: "c-1", UserID: "alice", IsTyping: true}, nil)
	req.Len(sink.events, 1)
}

func Test_Broadcast_Excludes_One_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	ctx := context.Background()

	emitter := &recordingSink{}
	peer := &recordingSink{}
	room := event.ConversationRoom("c-1")
	registry.Join(emitter, room)
	registry.Join(peer, room)

	registry.Broadcast(ctx, room, event.Typing{ConversationID: "c-1", UserID: "alice", IsTyping: true}, emitter)

	req.Empty(emitter.events)
	req.Len(peer.events, 1)
}

func Test_Broadcast_Unknown_Room_Is_Noop(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Broadcast(context.Background(), "conversation:nowhere", event.Typing{ConversationID: "nowhere"}, nil)
}

func Test_Leave_And_LeaveAll(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	personal := event.UserRoom("alice")
	conv := event.ConversationRoom("c-1")
	registry.Join(sink, personal)
	registry.Join(sink, conv)

	registry.Leave(sink, conv)
	registry.Broadcast(ctx, conv, event.Typing{ConversationID: "c-1"}, nil)
	req.Empty(sink.events)

	registry.Broadcast(ctx, personal, event.ConversationUpdated{ConversationID: "c-1", UserID: "alice"}, nil)
	req.Len(sink.events, 1)

	// Disconnect: nothing reaches the sink afterwards.
	registry.LeaveAll(sink)
	registry.Broadcast(ctx, personal, event.ConversationUpdated{ConversationID: "c-1", UserID: "alice"}, nil)
	req.Len(sink.events, 1)

	// Leaving again must not panic or corrupt the index.
	registry.Leave(sink, personal)
	registry.LeaveAll(sink)
}

func Test_Broadcast_Preserves_Caller_Order_Per_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	room := event.ConversationRoom("c-1")
	registry.Join(sink, room)

	first := event.MessageNew{}
	second := event.Typing{ConversationID: "c-1"}
	registry.Broadcast(ctx, room, first, nil)
	registry.Broadcast(ctx, room, second, nil)

	req.Len(sink.events, 2)
	req.Equal("message:new", sink.events[0].Name())
	req.Equal("typing", sink.events[1].Name())
}
