// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the FamLink Chat API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, hub)

# Endpoints

Health:

	GET /health

Call lifecycle:

	POST  /calls                   - Initiate a call
	GET   /calls/{id}              - Call with participants
	POST  /calls/{id}/status       - Transition call status
	POST  /calls/{id}/join         - Join as participant
	POST  /calls/{id}/leave        - Leave (last leave auto-ends)
	POST  /calls/{id}/decline      - Decline (all declines auto-decline)
	PATCH /calls/{id}/participant  - Mute / video / screen-share flags
	GET   /rooms/{id}/active-call  - Newest live call in a room
	GET   /users/{id}/calls        - Call history (limit, offset, kind)
	GET   /users/{id}/missed-calls - Missed count (window_hours)

Broadcast fan-out:

	POST   /broadcast-lists                 - Create list
	GET    /broadcast-lists/{id}            - List with recipient count
	PATCH  /broadcast-lists/{id}            - Partial update (owner only)
	DELETE /broadcast-lists/{id}            - Delete (owner only)
	POST   /broadcast-lists/{id}/recipients - Batch add recipients
	POST   /broadcast-lists/{id}/messages   - Send to current recipients
	POST   /broadcast-messages/{id}/delivery - Advance one delivery
	GET    /broadcast-messages/{id}/stats    - Per-status delivery counts

Polls:

	POST   /polls              - Create poll with options
	GET    /polls/{id}         - Poll view (viewer_id for own votes)
	POST   /polls/{id}/votes   - Vote
	DELETE /polls/{id}/votes   - Retract vote(s)
	POST   /polls/{id}/options - Add option
	POST   /polls/{id}/close   - Close (creator only)

Rooms:

	POST /rooms               - Create room
	POST /rooms/{id}/members  - Add member
	GET  /rooms/{id}/members  - Membership

Events:

	GET /ws/rooms/{id} - WebSocket feed of room events

# Middleware

All REST routes are wrapped with middleware.WithLogging. The WebSocket
route is registered bare since the hijacked connection outlives the
request/response cycle.
*/
package router
