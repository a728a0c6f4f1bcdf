// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/polls"
)

type PollHandler struct {
	engine *polls.Engine
	hub    *events.Hub
}

func NewPollHandler(engine *polls.Engine, hub *events.Hub) *PollHandler {
	return &PollHandler{engine: engine, hub: hub}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.RoomID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "room_id is required")
		return
	}
	if req.CreatorID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "creator_id is required")
		return
	}
	if req.Question == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "question is required")
		return
	}
	if len(req.Options) < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll must have at least 2 options")
		return
	}
	if req.Kind == "" {
		req.Kind = models.PollSingle
	}
	if !models.IsValidPollKind(req.Kind) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kind must be single, multiple, or quiz")
		return
	}

	view, err := h.engine.CreatePoll(req)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("poll created", "poll_id", view.Poll.ID, "room_id", req.RoomID, "creator", req.CreatorID)
	h.hub.Publish(events.Event{Type: events.TypePollCreated, RoomID: req.RoomID, Payload: view})

	middleware.JSONResponse(w, http.StatusCreated, view)
}

// GetPoll handles GET /polls/{id}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	var viewerID *string
	if viewer := r.URL.Query().Get("viewer_id"); viewer != "" {
		viewerID = &viewer
	}

	view, err := h.engine.GetPoll(pollID, viewerID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// Vote handles POST /polls/{id}/votes
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.OptionIDs) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_ids cannot be empty")
		return
	}

	view, err := h.engine.Vote(pollID, req.UserID, req.OptionIDs)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("vote recorded", "poll_id", pollID, "user_id", req.UserID)
	h.hub.Publish(events.Event{Type: events.TypePollVoted, RoomID: view.Poll.RoomID, Payload: view})

	middleware.JSONResponse(w, http.StatusOK, view)
}

// RetractVote handles DELETE /polls/{id}/votes
func (h *PollHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	var req models.RetractVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	view, err := h.engine.RetractVote(pollID, req.UserID, req.OptionID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	h.hub.Publish(events.Event{Type: events.TypePollVoted, RoomID: view.Poll.RoomID, Payload: view})
	middleware.JSONResponse(w, http.StatusOK, view)
}

// AddOption handles POST /polls/{id}/options
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	var req models.AddPollOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Text == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	option, err := h.engine.AddOption(pollID, req.UserID, req.Text)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("poll option added", "poll_id", pollID, "option_id", option.ID, "added_by", req.UserID)
	middleware.JSONResponse(w, http.StatusCreated, option)
}

// ClosePoll handles POST /polls/{id}/close
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	var req models.ClosePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	view, err := h.engine.ClosePoll(pollID, req.UserID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("poll closed", "poll_id", pollID, "closed_by", req.UserID)
	h.hub.Publish(events.Event{Type: events.TypePollClosed, RoomID: view.Poll.RoomID, Payload: view})

	middleware.JSONResponse(w, http.StatusOK, view)
}
