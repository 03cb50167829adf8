package utils

import (
	"context"
	"encoding/json"
	"log"

	"hubly/helpdesk-service/internal/models"
)

const TicketEventsChannel = "ticket_events"

// EventPublisher broadcasts ticket change notifications over redis pub/sub.
type EventPublisher struct {
	redis   *RedisClient
	channel string
}

func NewEventPublisher(redis *RedisClient) *EventPublisher {
	return &EventPublisher{redis: redis, channel: redis.key(TicketEventsChannel)}
}

// PublishTicketEvent never fails the caller: a lost notification only delays
// clients until their next poll.
func (p *EventPublisher) PublishTicketEvent(ctx context.Context, event models.TicketEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal %s event: %v", event.Type, err)
		return
	}
	if err := p.redis.client.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish %s for ticket %s: %v", event.Type, event.TicketID.Hex(), err)
	}
}

// SubscribeToTicketEvents delivers every event on the channel to handle until
// ctx is cancelled.
func SubscribeToTicketEvents(ctx context.Context, redis *RedisClient, handle func(models.TicketEvent)) {
	channel := redis.key(TicketEventsChannel)
	pubsub := redis.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Printf("[EVENTS] Subscribed to %s", channel)

	for {
		select {
		case <-ctx.Done():
			log.Println("[EVENTS] Stopping subscriber")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.TicketEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[EVENTS] Dropping malformed event: %v", err)
				continue
			}
			handle(event)
		}
	}
}
