// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/rooms"
)

type RoomHandler struct {
	service *rooms.Service
}

func NewRoomHandler(service *rooms.Service) *RoomHandler {
	return &RoomHandler{service: service}
}

// CreateRoom handles POST /rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.CreatedBy == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "created_by is required")
		return
	}

	room, err := h.service.CreateRoom(req.Name, req.CreatedBy)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("room created", "room_id", room.ID, "created_by", req.CreatedBy)
	middleware.JSONResponse(w, http.StatusCreated, room)
}

// AddMember handles POST /rooms/{id}/members
func (h *RoomHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	var req models.AddMemberRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.service.AddMember(roomID, req.UserID, req.DisplayName); err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMembers handles GET /rooms/{id}/members
func (h *RoomHandler) GetMembers(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "room id is required")
		return
	}

	if _, err := h.service.GetRoom(roomID); err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	members, err := h.service.Members(roomID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, members)
}
