// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/rooms"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	hub   *events.Hub
	rooms *rooms.Service
}

func NewEventsHandler(hub *events.Hub, rooms *rooms.Service) *EventsHandler {
	return &EventsHandler{hub: hub, rooms: rooms}
}

// ServeWS handles GET /ws/rooms/{id}: upgrades the connection and streams
// the room's engine events until the client goes away.
func (h *EventsHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "room id is required")
		return
	}
	exists, err := h.rooms.Exists(roomID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err, "room_id", roomID)
		return
	}

	ch := h.hub.Subscribe(roomID)
	slog.Info("event subscriber connected", "room_id", roomID)

	// Reader: only used to notice the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.hub.Unsubscribe(roomID, ch)
		conn.Close()
		slog.Info("event subscriber disconnected", "room_id", roomID)
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
