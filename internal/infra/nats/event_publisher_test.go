package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"

	"live-quiz-service/internal/domain"
)

func TestSubjectIsScopedPerGame(t *testing.T) {
	if got := Subject("AB12CD"); got != "quiz.events.AB12CD" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestPublishDeliversEventOnGameSubject(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.Authorization = "s3cret"
	srv := natsserver.RunServer(&opts)
	defer srv.Shutdown()

	if _, err := Connect(srv.ClientURL(), "wrong"); err == nil {
		t.Fatalf("expected connect with a bad token to fail")
	}
	conn, err := Connect(srv.ClientURL(), "s3cret")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	sub, err := conn.SubscribeSync(Subject("ABC123"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	other, err := conn.SubscribeSync(Subject("ZZZ999"))
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := domain.Event{
		GameCode: "ABC123",
		Type:     domain.EventParticipantJoined,
		Seq:      7,
		At:       at,
		Payload:  domain.ParticipantJoinedPayload{ParticipantCount: 2},
		Rooms:    domain.AllRooms,
	}
	if err := NewEventPublisher(conn).Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected event on %s: %v", Subject("ABC123"), err)
	}
	var got struct {
		GameCode string           `json:"gameCode"`
		Type     domain.EventType `json:"type"`
		Seq      uint64           `json:"seq"`
		At       time.Time        `json:"at"`
		Payload  struct {
			ParticipantCount int `json:"participantCount"`
		} `json:"payload"`
		Rooms any `json:"rooms"`
	}
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GameCode != "ABC123" || got.Type != domain.EventParticipantJoined || got.Seq != 7 || !got.At.Equal(at) {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Payload.ParticipantCount != 2 {
		t.Fatalf("unexpected payload %+v", got.Payload)
	}
	if got.Rooms != nil {
		t.Fatalf("expected rooms to stay off the wire, got %v", got.Rooms)
	}

	if _, err := other.NextMsg(100 * time.Millisecond); err == nil {
		t.Fatalf("expected no event on another game's subject")
	}
}
