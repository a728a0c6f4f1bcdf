// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/famlink-chat/broadcast"
	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/middleware"
	"github.com/danielhkuo/famlink-chat/models"
)

type BroadcastHandler struct {
	engine *broadcast.Engine
	hub    *events.Hub
}

func NewBroadcastHandler(engine *broadcast.Engine, hub *events.Hub) *BroadcastHandler {
	return &BroadcastHandler{engine: engine, hub: hub}
}

// CreateList handles POST /broadcast-lists
func (h *BroadcastHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req models.CreateListRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OwnerID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	list, err := h.engine.CreateList(req.OwnerID, req.Name, req.Description)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("broadcast list created", "list_id", list.ID, "owner", req.OwnerID)
	middleware.JSONResponse(w, http.StatusCreated, list)
}

// GetList handles GET /broadcast-lists/{id}
func (h *BroadcastHandler) GetList(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	if listID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "list id is required")
		return
	}

	list, err := h.engine.GetList(listID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// UpdateList handles PATCH /broadcast-lists/{id}
func (h *BroadcastHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	var req models.UpdateListRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OwnerID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	list, err := h.engine.UpdateList(listID, req.OwnerID, req.Name, req.Description, req.Active)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// DeleteList handles DELETE /broadcast-lists/{id}
func (h *BroadcastHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	if err := h.engine.DeleteList(listID, ownerID); err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("broadcast list deleted", "list_id", listID, "owner", ownerID)
	w.WriteHeader(http.StatusNoContent)
}

// AddRecipients handles POST /broadcast-lists/{id}/recipients
func (h *BroadcastHandler) AddRecipients(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	var req models.AddRecipientsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.UserIDs) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_ids cannot be empty")
		return
	}

	added, err := h.engine.AddRecipients(listID, req.UserIDs)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("recipients added", "list_id", listID, "requested", len(req.UserIDs), "added", len(added))
	middleware.JSONResponse(w, http.StatusOK, models.AddRecipientsResponse{Added: added})
}

// SendBroadcast handles POST /broadcast-lists/{id}/messages
func (h *BroadcastHandler) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	var req models.SendBroadcastRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SenderID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "sender_id is required")
		return
	}
	if req.Content == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Kind == "" {
		req.Kind = "text"
	}

	msg, err := h.engine.SendBroadcast(listID, req.SenderID, req.Content, req.Kind, req.Attachments)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	slog.Info("broadcast sent", "message_id", msg.ID, "list_id", listID, "sender", req.SenderID)
	h.hub.Publish(events.Event{Type: events.TypeBroadcastSent, Payload: msg})

	middleware.JSONResponse(w, http.StatusCreated, msg)
}

// UpdateDeliveryStatus handles POST /broadcast-messages/{id}/delivery
func (h *BroadcastHandler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	var req models.UpdateDeliveryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.RecipientID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	if !models.IsValidDeliveryStatus(req.Status) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown delivery status")
		return
	}

	err := h.engine.UpdateDeliveryStatus(messageID, req.RecipientID, req.Status, req.ChatMessageID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}

	h.hub.Publish(events.Event{Type: events.TypeDeliveryUpdated, Payload: map[string]string{
		"message_id":   messageID,
		"recipient_id": req.RecipientID,
		"status":       req.Status,
	}})
	w.WriteHeader(http.StatusNoContent)
}

// GetDeliveryStats handles GET /broadcast-messages/{id}/stats
func (h *BroadcastHandler) GetDeliveryStats(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	if messageID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "message id is required")
		return
	}

	stats, err := h.engine.GetDeliveryStats(messageID)
	if err != nil {
		middleware.DomainErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stats)
}
