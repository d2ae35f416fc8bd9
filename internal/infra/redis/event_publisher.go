package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// EventPublisher mirrors committed game events onto Redis pub/sub so other processes
// (dashboards, additional socket nodes) can follow a game.
// Channel layout: quiz:events:{code}
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, EventChannel(ev.GameCode), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// EventChannel is the pub/sub channel carrying a game's events.
func EventChannel(code string) string {
	return "quiz:events:" + code
}
