// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/famlink-chat/calls"
	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/models"
)

type CallHandler struct {
	engine *calls.Engine
	hub    *events.Hub
}

func NewCallHandler(engine *calls.Engine, hub *events.Hub) *CallHandler {
	return &CallHandler{engine: engine, hub: hub}
}

// InitiateCall handles POST /calls
func (h *CallHandler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateCallRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.InitiatorID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "initiator_id is required")
		return
	}
	if !models.IsValidCallKind(req.Kind) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kind must be voice, video, or screen_share")
		return
	}

	call, err := h.engine.InitiateCall(req.InitiatorID, req.Kind, req.RoomID, req.InviteeIDs)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("call initiated", "call_id", call.Call.ID, "initiator", req.InitiatorID, "kind", req.Kind)
	h.publish(events.TypeCallInitiated, call.Call.RoomID, call)

	middleware.JSONResponse(w, http.StatusCreated, call)
}

// GetCall handles GET /calls/{id}
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	if callID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "call id is required")
		return
	}

	call, err := h.engine.GetCall(callID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, call)
}

// UpdateCallStatus handles POST /calls/{id}/status
func (h *CallHandler) UpdateCallStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	if callID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "call id is required")
		return
	}

	var req models.UpdateCallStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !models.IsValidCallStatus(req.Status) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown call status")
		return
	}

	call, err := h.engine.UpdateCallStatus(callID, req.Status, req.EndReason)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("call status updated", "call_id", callID, "status", req.Status)
	h.publish(events.TypeCallStatus, call.RoomID, call)

	middleware.JSONResponse(w, http.StatusOK, call)
}

// JoinCall handles POST /calls/{id}/join
func (h *CallHandler) JoinCall(w http.ResponseWriter, r *http.Request) {
	h.participantTransition(w, r, h.engine.JoinCall, events.TypeParticipantUpdated)
}

// LeaveCall handles POST /calls/{id}/leave
func (h *CallHandler) LeaveCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	userID, ok := h.parseParticipantRequest(w, r)
	if !ok {
		return
	}

	call, err := h.engine.LeaveCall(callID, userID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("participant left", "call_id", callID, "user_id", userID, "call_status", call.Call.Status)
	h.publish(events.TypeCallStatus, call.Call.RoomID, call)

	middleware.JSONResponse(w, http.StatusOK, call)
}

// DeclineCall handles POST /calls/{id}/decline
func (h *CallHandler) DeclineCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	userID, ok := h.parseParticipantRequest(w, r)
	if !ok {
		return
	}

	call, err := h.engine.DeclineCall(callID, userID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("participant declined", "call_id", callID, "user_id", userID, "call_status", call.Call.Status)
	h.publish(events.TypeCallStatus, call.Call.RoomID, call)

	middleware.JSONResponse(w, http.StatusOK, call)
}

// UpdateParticipantState handles PATCH /calls/{id}/participant
func (h *CallHandler) UpdateParticipantState(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	var req models.UpdateParticipantStateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	participant, err := h.engine.UpdateParticipantState(callID, req.UserID, req.Muted, req.VideoOff, req.ScreenSharing)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	roomID, _ := h.engine.CallRoom(callID)
	h.publish(events.TypeParticipantUpdated, roomID, participant)
	middleware.JSONResponse(w, http.StatusOK, participant)
}

// GetActiveCall handles GET /rooms/{id}/active-call
func (h *CallHandler) GetActiveCall(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "room id is required")
		return
	}

	call, err := h.engine.GetActiveCall(roomID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, call)
}

// GetCallHistory handles GET /users/{id}/calls
func (h *CallHandler) GetCallHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	kind := r.URL.Query().Get("kind")
	if kind != "" && !models.IsValidCallKind(kind) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown call kind")
		return
	}

	history, err := h.engine.GetCallHistory(userID, limit, offset, kind)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, history)
}

// GetMissedCallCount handles GET /users/{id}/missed-calls
func (h *CallHandler) GetMissedCallCount(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user id is required")
		return
	}

	// Trailing window in hours, default one week.
	hours, _ := strconv.Atoi(r.URL.Query().Get("window_hours"))
	if hours <= 0 {
		hours = 24 * 7
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	count, err := h.engine.CountMissedCalls(userID, since)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]int{"missed": count})
}

func (h *CallHandler) participantTransition(w http.ResponseWriter, r *http.Request,
	fn func(callID, userID string) (models.CallParticipant, error), eventType string) {

	callID := r.PathValue("id")
	userID, ok := h.parseParticipantRequest(w, r)
	if !ok {
		return
	}

	participant, err := fn(callID, userID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("participant transition", "call_id", callID, "user_id", userID, "status", participant.Status)

	// Room subscribers only see events published under their room ID, so
	// the call's room has to be resolved before publishing. Direct calls
	// have no room and therefore no feed.
	roomID, _ := h.engine.CallRoom(callID)
	h.publish(eventType, roomID, participant)

	middleware.JSONResponse(w, http.StatusOK, participant)
}

func (h *CallHandler) parseParticipantRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.PathValue("id") == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "call id is required")
		return "", false
	}
	var req models.CallParticipantRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return "", false
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return req.UserID, true
}

func (h *CallHandler) publish(eventType string, roomID *string, payload any) {
	room := ""
	if roomID != nil {
		room = *roomID
	}
	h.hub.Publish(events.Event{Type: eventType, RoomID: room, Payload: payload})
}
