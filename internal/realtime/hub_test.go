package realtime

import (
	"testing"

	"live-quiz-service/internal/domain"
)

func event(code string, seq uint64, rooms ...domain.Room) domain.Event {
	return domain.Event{GameCode: code, Type: domain.EventAnswerSubmitted, Seq: seq, Rooms: rooms}
}

func TestHubRoutesByGameAndRoom(t *testing.T) {
	hub := NewHub(4)
	players := hub.Subscribe("ABC123", domain.RoomParticipants, nil)
	host := hub.Subscribe("ABC123", domain.RoomOrganizer, nil)
	elsewhere := hub.Subscribe("ZZZ999", domain.RoomOrganizer, nil)
	defer players.Close()
	defer host.Close()
	defer elsewhere.Close()

	hub.Notify(event("ABC123", 1, domain.RoomOrganizer))

	select {
	case ev := <-host.C:
		if ev.Seq != 1 {
			t.Fatalf("seq = %d", ev.Seq)
		}
	default:
		t.Fatalf("organizer did not receive the event")
	}
	if len(players.C) != 0 || len(elsewhere.C) != 0 {
		t.Fatalf("event leaked to other rooms: players=%d elsewhere=%d", len(players.C), len(elsewhere.C))
	}
}

func TestHubQueuesSnapshotFirst(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("ABC123", domain.RoomPublicViewers, func() (domain.Event, bool) {
		return domain.Event{GameCode: "ABC123", Type: domain.EventSnapshot, Seq: 7}, true
	})
	defer sub.Close()
	hub.Notify(event("ABC123", 8, domain.AllRooms...))

	first, second := <-sub.C, <-sub.C
	if first.Type != domain.EventSnapshot || second.Seq != 8 {
		t.Fatalf("unexpected order: %v then %v", first, second)
	}
}

func TestHubDropsOldestForSlowSubscriber(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe("ABC123", domain.RoomParticipants, nil)
	defer sub.Close()

	for seq := uint64(1); seq <= 5; seq++ {
		hub.Notify(event("ABC123", seq, domain.RoomParticipants))
	}
	a, b := <-sub.C, <-sub.C
	if a.Seq != 4 || b.Seq != 5 {
		t.Fatalf("expected the newest events 4 and 5, got %d and %d", a.Seq, b.Seq)
	}
}

func TestHubCloseGameEndsSubscriptions(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe("ABC123", domain.RoomOrganizer, nil)
	hub.CloseGame("ABC123")

	if _, ok := <-sub.C; ok {
		t.Fatalf("channel should be closed")
	}
	if hub.Count("ABC123") != 0 {
		t.Fatalf("count = %d", hub.Count("ABC123"))
	}
	sub.Close()
}
