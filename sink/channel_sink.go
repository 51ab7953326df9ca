// Package sink provides EventSink implementations bridging the registry to
// individual transports.
package sink

import (
	"context"
	"fmt"

	"chat-core/domain/event"
)

// ChannelSink buffers events for one connection. The transport's writer
// goroutine drains Events in order.
type ChannelSink struct {
	Events chan event.DomainEvent
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the registry fan-out. A full buffer means the
// consumer is too slow; the event is dropped rather than stalling the
// sender or other recipients.
func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("sink buffer full, dropping %s", e.Name())
	}
}
