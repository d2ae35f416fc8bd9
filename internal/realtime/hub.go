package realtime

import (
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const defaultBuffer = 16

// Hub routes committed game events to the subscribers of each game's rooms. Sends never
// block: a subscriber whose buffer is full loses its oldest queued event.
type Hub struct {
	buffer int

	mu    sync.Mutex
	rooms map[string]map[domain.Room]map[*Subscription]struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		buffer: buffer,
		rooms:  make(map[string]map[domain.Room]map[*Subscription]struct{}),
	}
}

// Subscription is one consumer of a game room.
type Subscription struct {
	C <-chan domain.Event

	ch     chan domain.Event
	hub    *Hub
	code   string
	room   domain.Room
	closed bool
}

// Subscribe registers a consumer for room of game code. When snapshot is non-nil its
// result is queued first, taken while no event for the game can slip in between.
func (h *Hub) Subscribe(code string, room domain.Room, snapshot func() (domain.Event, bool)) *Subscription {
	ch := make(chan domain.Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, code: code, room: room}

	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.rooms[code]
	if !ok {
		rooms = make(map[domain.Room]map[*Subscription]struct{})
		h.rooms[code] = rooms
	}
	members, ok := rooms[room]
	if !ok {
		members = make(map[*Subscription]struct{})
		rooms[room] = members
	}
	members[sub] = struct{}{}
	if snapshot != nil {
		if ev, ok := snapshot(); ok {
			ch <- ev
		}
	}
	return sub
}

// Close unregisters the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if rooms, ok := h.rooms[s.code]; ok {
		if members, ok := rooms[s.room]; ok {
			delete(members, s)
			if len(members) == 0 {
				delete(rooms, s.room)
			}
		}
		if len(rooms) == 0 {
			delete(h.rooms, s.code)
		}
	}
	close(s.ch)
}

// Notify delivers ev to every subscriber of the event's rooms.
func (h *Hub) Notify(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.rooms[ev.GameCode]
	if !ok {
		return
	}
	for _, room := range ev.Rooms {
		for sub := range rooms[room] {
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
					metrics.EventsDropped.WithLabelValues("ws").Inc()
				default:
				}
				sub.ch <- ev
			}
			metrics.EventsDelivered.WithLabelValues("ws").Inc()
		}
	}
}

// CloseGame ends every subscription of a retired game.
func (h *Hub) CloseGame(code string) {
	h.mu.Lock()
	rooms := h.rooms[code]
	delete(h.rooms, code)
	h.mu.Unlock()

	for _, members := range rooms {
		for sub := range members {
			h.mu.Lock()
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			h.mu.Unlock()
		}
	}
}

// Count reports the subscribers of a game across all rooms.
func (h *Hub) Count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, members := range h.rooms[code] {
		n += len(members)
	}
	return n
}
