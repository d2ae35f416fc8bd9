package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"live-quiz-service/internal/domain"
)

// Connect dials the NATS server, authenticating with token when one is set.
func Connect(url, token string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("live-quiz-service"),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// EventPublisher publishes committed game events on subject quiz.events.{code}.
type EventPublisher struct {
	conn *nats.Conn
}

func NewEventPublisher(conn *nats.Conn) *EventPublisher {
	return &EventPublisher{conn: conn}
}

func (p *EventPublisher) Publish(_ context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(ev.GameCode), body); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subject is the NATS subject carrying a game's events.
func Subject(code string) string {
	return "quiz.events." + code
}
