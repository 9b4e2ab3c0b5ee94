package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/geosync/internal/logger"
)

// EventHandler processes location events received from the channel.
type EventHandler interface {
	HandleEvent(ctx context.Context, event LocationEvent) error
}

// Subscriber reads location events from the Redis pub/sub channel and
// dispatches them to a handler.
type Subscriber struct {
	client  *redis.Client
	handler EventHandler
	log     logger.Logger
}

// NewSubscriber creates a new event subscriber.
// Returns nil if client is nil.
func NewSubscriber(client *redis.Client, handler EventHandler, log logger.Logger) *Subscriber {
	if client == nil {
		return nil
	}
	return &Subscriber{
		client:  client,
		handler: handler,
		log:     log,
	}
}

// Run subscribes to the location events channel and dispatches until
// ctx is cancelled. Malformed messages and handler errors are logged
// and skipped; the subscription keeps going.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, Channel)
	defer sub.Close()

	// Confirm the subscription before consuming so callers know the
	// channel is live once Run is underway.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	if s.log != nil {
		s.log.Info("Subscribed to location events", logger.String("channel", Channel))
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, payload string) {
	var event LocationEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		if s.log != nil {
			s.log.Warn("Discarding malformed event", logger.Error(err))
		}
		return
	}

	if err := s.handler.HandleEvent(ctx, event); err != nil && s.log != nil {
		s.log.Error("Event handler failed",
			logger.String("event_type", string(event.EventType)),
			logger.Int("location_id", event.LocationID),
			logger.Error(err),
		)
	}
}
