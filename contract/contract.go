//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"chat-core/domain/event"
)

// EventSink receives events addressed to one connection. Implementations
// must never block the caller: a slow consumer drops rather than stalls.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Broadcaster is the fan-out substrate. The in-process registry is the only
// implementation shipped; a multi-instance deployment swaps in a shared
// pub/sub behind the same four operations without touching the session
// layer.
type Broadcaster interface {
	// Join subscribes sink to room. Joining twice is a no-op.
	Join(sink EventSink, room string)
	// Leave removes sink from room. Removing an absent sink is a no-op.
	Leave(sink EventSink, room string)
	// LeaveAll removes sink from every room it joined. Called on disconnect.
	LeaveAll(sink EventSink)
	// Broadcast delivers e to every sink currently in room, except the
	// optionally excluded one. Delivery is best-effort and non-blocking;
	// sinks subscribed via the same Broadcast caller observe events in
	// call order.
	Broadcast(ctx context.Context, room string, e event.DomainEvent, except EventSink)
}
