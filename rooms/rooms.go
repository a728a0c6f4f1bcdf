// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rooms

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/famlink-chat/models"
)

// Service is the chat room context the engines attach to: room membership,
// display names, and chat message persistence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateRoom creates a new room and adds the creator as its first member.
func (s *Service) CreateRoom(name, createdBy string) (models.Room, error) {
	room := models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.Room{}, fmt.Errorf("begin create room: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO room (id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, room.ID, room.Name, room.CreatedBy, room.CreatedAt)
	if err != nil {
		return models.Room{}, fmt.Errorf("insert room: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO room_member (room_id, user_id, display_name, joined_at)
		VALUES ($1, $2, $3, $4)
	`, room.ID, createdBy, createdBy, room.CreatedAt)
	if err != nil {
		return models.Room{}, fmt.Errorf("insert room creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Room{}, fmt.Errorf("commit create room: %w", err)
	}
	return room, nil
}

// GetRoom returns the room or models.ErrNotFound.
func (s *Service) GetRoom(roomID string) (models.Room, error) {
	var room models.Room
	err := s.db.QueryRow(`
		SELECT id, name, created_by, created_at FROM room WHERE id = $1
	`, roomID).Scan(&room.ID, &room.Name, &room.CreatedBy, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Room{}, models.ErrNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// Exists reports whether the room is known.
func (s *Service) Exists(roomID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM room WHERE id = $1)
	`, roomID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query room existence: %w", err)
	}
	return exists, nil
}

// AddMember adds a user to a room. Duplicate adds are no-ops.
// Returns models.ErrNotFound if the room does not exist.
func (s *Service) AddMember(roomID, userID, displayName string) error {
	exists, err := s.Exists(roomID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrNotFound
	}

	if displayName == "" {
		displayName = userID
	}
	_, err = s.db.Exec(`
		INSERT INTO room_member (room_id, user_id, display_name, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, roomID, userID, displayName, time.Now())
	if err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// Members returns the room's membership, oldest join first.
func (s *Service) Members(roomID string) ([]models.RoomMember, error) {
	rows, err := s.db.Query(`
		SELECT room_id, user_id, display_name, joined_at
		FROM room_member
		WHERE room_id = $1
		ORDER BY joined_at, user_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room members: %w", err)
	}
	defer rows.Close()

	members := []models.RoomMember{}
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DisplayName resolves a user's display name from their most recent room
// membership. Falls back to the raw user ID for users without one, so
// callers can always render something.
func (s *Service) DisplayName(userID string) (string, error) {
	var name string
	err := s.db.QueryRow(`
		SELECT display_name FROM room_member
		WHERE user_id = $1
		ORDER BY joined_at DESC
		LIMIT 1
	`, userID).Scan(&name)
	if err == sql.ErrNoRows || (err == nil && name == "") {
		return userID, nil
	}
	if err != nil {
		return "", fmt.Errorf("query display name: %w", err)
	}
	return name, nil
}

// SaveMessage persists a chat message in a room. This is the hook used to
// materialize broadcast deliveries and poll attachments into the room feed.
func (s *Service) SaveMessage(roomID, senderID, content, kind string) (models.ChatMessage, error) {
	exists, err := s.Exists(roomID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if !exists {
		return models.ChatMessage{}, models.ErrNotFound
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO chat_message (id, room_id, sender_id, content, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Kind, msg.CreatedAt)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}
