// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"sync"
	"time"
)

// Event types published after successful engine operations.
const (
	TypeCallInitiated      = "call.initiated"
	TypeCallStatus         = "call.status"
	TypeParticipantUpdated = "participant.updated"
	TypeBroadcastSent      = "broadcast.sent"
	TypeDeliveryUpdated    = "delivery.updated"
	TypePollCreated        = "poll.created"
	TypePollVoted          = "poll.voted"
	TypePollClosed         = "poll.closed"
)

// Event is a signaling notification fanned out to room subscribers. It
// carries metadata only — never media or message payloads beyond what the
// REST surface already exposes.
type Event struct {
	Type    string    `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

const subscriberBuffer = 16

// Hub is an in-process fan-out of engine events to room subscribers.
// Publishing never blocks; a subscriber that cannot keep up has the event
// dropped rather than stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]bool)}
}

// Subscribe registers a listener for one room's events and returns its
// channel. The caller must Unsubscribe when done.
func (h *Hub) Subscribe(roomID string) chan Event {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[chan Event]bool)
	}
	h.subs[roomID][ch] = true
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (h *Hub) Unsubscribe(roomID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[roomID]; ok && subs[ch] {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subs, roomID)
		}
	}
}

// Publish fans the event out to the room's subscribers without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.RoomID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop the event rather than stall.
		}
	}
}

// SubscriberCount reports the number of live subscribers for a room.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[roomID])
}
