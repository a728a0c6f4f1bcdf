// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the FamLink Chat API.

# Handler Types

Each handler is a struct with its engine and event hub dependencies:

  - CallHandler: Call lifecycle, participant transitions, history
  - BroadcastHandler: List management, fan-out sends, delivery tracking
  - PollHandler: Poll creation, voting, closing
  - RoomHandler: Room and membership management
  - EventsHandler: WebSocket event feed per room

Handlers are created via constructor functions:

	callHandler := handlers.NewCallHandler(engine, hub)

# Call Lifecycle

Calls progress through initiated/ringing/ongoing into exactly one of the
terminal states ended, missed, declined, or failed:

	POST /calls                  → InitiateCall
	POST /calls/{id}/status      → UpdateCallStatus
	POST /calls/{id}/join        → JoinCall
	POST /calls/{id}/leave       → LeaveCall (last leave ends the call)
	POST /calls/{id}/decline     → DeclineCall (all declines decline it)
	PATCH /calls/{id}/participant → UpdateParticipantState

# Broadcast Flow

One authored message fans out into per-recipient delivery rows:

	POST /broadcast-lists/{id}/messages    → SendBroadcast
	POST /broadcast-messages/{id}/delivery → UpdateDeliveryStatus
	GET  /broadcast-messages/{id}/stats    → GetDeliveryStats

Delivery status only moves forward: pending → delivered → read, with
failed as a dead end from pending.

# Error Mapping

Handlers validate input themselves (400) and delegate every engine
failure to middleware.DomainErrorResponse, which maps the shared error
kinds to 404, 409, and 403.

# Events

Mutating handlers publish an event to the room's hub channel after the
database write commits. GET /ws/rooms/{id} streams those events over a
WebSocket with ping/pong keepalive.
*/
package handlers
