// Package rooms holds the in-process broadcast substrate: a transient index
// from room keys to live connection sinks. It owns no message content and
// no durable state; membership dies with the connection.
package rooms

import (
	"context"
	"log/slog"
	"sync"

	"chat-core/contract"
	"chat-core/domain/event"
)

type set map[contract.EventSink]struct{}

// Registry maps room keys (`user:<id>`, `conversation:<id>`) to the sinks
// currently subscribed to them. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	rooms  map[string]set
	joined map[contract.EventSink]map[string]struct{}
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		rooms:  make(map[string]set),
		joined: make(map[contract.EventSink]map[string]struct{}),
	}
}

// Join subscribes the sink to a room. Idempotent.
func (r *Registry) Join(sink contract.EventSink, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(set)
	}
	r.rooms[room][sink] = struct{}{}

	if _, ok := r.joined[sink]; !ok {
		r.joined[sink] = make(map[string]struct{})
	}
	r.joined[sink][room] = struct{}{}
}

// Leave removes the sink from one room. Idempotent.
func (r *Registry) Leave(sink contract.EventSink, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(sink, room)
}

// LeaveAll removes the sink from every room it joined. Called on
// disconnect so a dead connection never receives further broadcasts.
func (r *Registry) LeaveAll(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.joined[sink] {
		r.remove(sink, room)
	}
	delete(r.joined, sink)
}

// remove expects r.mu held for writing. Empty sets are cleaned up so the
// index does not leak rooms over time.
func (r *Registry) remove(sink contract.EventSink, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, sink)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.joined[sink]; ok {
		delete(rooms, room)
	}
}

// Broadcast hands e to every sink in the room except the excluded one.
// Sinks are required to be non-blocking, so this returns as soon as every
// member has been offered the event; a single caller goroutine therefore
// preserves its call order per sink.
func (r *Registry) Broadcast(ctx context.Context, room string, e event.DomainEvent, except contract.EventSink) {
	r.mu.RLock()
	members, ok := r.rooms[room]
	if !ok {
		r.mu.RUnlock()
		return
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for s := range members {
		if s == except {
			continue
		}
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Consume(ctx, e); err != nil {
			r.log.Debug("event dropped", "room", room, "event", e.Name(), "error", err)
		}
	}
}
