// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/famlink-chat/broadcast"
	"github.com/danielhkuo/famlink-chat/calls"
	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/handlers"
	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/polls"
	"github.com/danielhkuo/famlink-chat/rooms"
)

func NewRouter(db *sql.DB, hub *events.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// Wire engines on the shared persistence gateway
	roomService := rooms.NewService(db)
	callHandler := handlers.NewCallHandler(calls.NewEngine(db, roomService), hub)
	broadcastHandler := handlers.NewBroadcastHandler(broadcast.NewEngine(db), hub)
	pollHandler := handlers.NewPollHandler(polls.NewEngine(db, roomService), hub)
	roomHandler := handlers.NewRoomHandler(roomService)
	eventsHandler := handlers.NewEventsHandler(hub, roomService)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Call session lifecycle
	mux.HandleFunc("POST /calls", middleware.WithLogging(callHandler.InitiateCall))
	mux.HandleFunc("GET /calls/{id}", middleware.WithLogging(callHandler.GetCall))
	mux.HandleFunc("POST /calls/{id}/status", middleware.WithLogging(callHandler.UpdateCallStatus))
	mux.HandleFunc("POST /calls/{id}/join", middleware.WithLogging(callHandler.JoinCall))
	mux.HandleFunc("POST /calls/{id}/leave", middleware.WithLogging(callHandler.LeaveCall))
	mux.HandleFunc("POST /calls/{id}/decline", middleware.WithLogging(callHandler.DeclineCall))
	mux.HandleFunc("PATCH /calls/{id}/participant", middleware.WithLogging(callHandler.UpdateParticipantState))
	mux.HandleFunc("GET /rooms/{id}/active-call", middleware.WithLogging(callHandler.GetActiveCall))
	mux.HandleFunc("GET /users/{id}/calls", middleware.WithLogging(callHandler.GetCallHistory))
	mux.HandleFunc("GET /users/{id}/missed-calls", middleware.WithLogging(callHandler.GetMissedCallCount))

	// Broadcast fan-out
	mux.HandleFunc("POST /broadcast-lists", middleware.WithLogging(broadcastHandler.CreateList))
	mux.HandleFunc("GET /broadcast-lists/{id}", middleware.WithLogging(broadcastHandler.GetList))
	mux.HandleFunc("PATCH /broadcast-lists/{id}", middleware.WithLogging(broadcastHandler.UpdateList))
	mux.HandleFunc("DELETE /broadcast-lists/{id}", middleware.WithLogging(broadcastHandler.DeleteList))
	mux.HandleFunc("POST /broadcast-lists/{id}/recipients", middleware.WithLogging(broadcastHandler.AddRecipients))
	mux.HandleFunc("POST /broadcast-lists/{id}/messages", middleware.WithLogging(broadcastHandler.SendBroadcast))
	mux.HandleFunc("POST /broadcast-messages/{id}/delivery", middleware.WithLogging(broadcastHandler.UpdateDeliveryStatus))
	mux.HandleFunc("GET /broadcast-messages/{id}/stats", middleware.WithLogging(broadcastHandler.GetDeliveryStats))

	// Poll voting
	mux.HandleFunc("POST /polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(pollHandler.GetPoll))
	mux.HandleFunc("POST /polls/{id}/votes", middleware.WithLogging(pollHandler.Vote))
	mux.HandleFunc("DELETE /polls/{id}/votes", middleware.WithLogging(pollHandler.RetractVote))
	mux.HandleFunc("POST /polls/{id}/options", middleware.WithLogging(pollHandler.AddOption))
	mux.HandleFunc("POST /polls/{id}/close", middleware.WithLogging(pollHandler.ClosePoll))

	// Chat room context
	mux.HandleFunc("POST /rooms", middleware.WithLogging(roomHandler.CreateRoom))
	mux.HandleFunc("POST /rooms/{id}/members", middleware.WithLogging(roomHandler.AddMember))
	mux.HandleFunc("GET /rooms/{id}/members", middleware.WithLogging(roomHandler.GetMembers))

	// Event feed
	mux.HandleFunc("GET /ws/rooms/{id}", eventsHandler.ServeWS)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("famlink-chat API v1"))
	})

	return mux
}
