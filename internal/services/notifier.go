package services

import (
	"context"

	"github.com/repstack/repstack-backend/internal/clients/redis"
	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/sse"
)

// SessionNotifier pushes staging lifecycle events to the local SSE hub and,
// when a redis bus is configured, to every other replica's hub as well.
type SessionNotifier interface {
	Notify(ctx context.Context, channel string, event sse.SSEEvent, data map[string]any)
}

type sessionNotifier struct {
	log *logger.Logger
	hub *sse.SSEHub
	bus redis.SSEBus
}

func NewSessionNotifier(baseLog *logger.Logger, hub *sse.SSEHub, bus redis.SSEBus) SessionNotifier {
	return &sessionNotifier{
		log: baseLog.With("service", "SessionNotifier"),
		hub: hub,
		bus: bus,
	}
}

func (n *sessionNotifier) Notify(ctx context.Context, channel string, event sse.SSEEvent, data map[string]any) {
	msg := sse.SSEMessage{Channel: channel, Event: event, Data: data}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Failed to publish SSE message to redis", "error", err, "event", event)
		}
	}
}
