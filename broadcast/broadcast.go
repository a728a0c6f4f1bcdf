// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/sqlutil"
)

// Engine turns one authored message into independently trackable
// per-recipient deliveries and keeps delivery aggregates consistent.
type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// forward holds the supported delivery-status transitions. Anything not
// listed (and not a same-status no-op) is a regression and is rejected.
var forward = map[string]map[string]bool{
	models.DeliveryPending: {
		models.DeliveryDelivered: true,
		models.DeliveryRead:      true,
		models.DeliveryFailed:    true,
	},
	models.DeliveryDelivered: {
		models.DeliveryRead: true,
	},
}

// CreateList creates a named, owner-scoped distribution list.
func (e *Engine) CreateList(ownerID, name, description string) (models.BroadcastList, error) {
	list := models.BroadcastList{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	_, err := e.db.Exec(`
		INSERT INTO broadcast_list (id, owner_id, name, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, list.ID, list.OwnerID, list.Name, list.Description, list.Active, list.CreatedAt)
	if err != nil {
		return models.BroadcastList{}, fmt.Errorf("insert broadcast list: %w", err)
	}
	return list, nil
}

// GetList returns the list with its derived recipient count.
func (e *Engine) GetList(listID string) (models.BroadcastList, error) {
	return getList(e.db, listID)
}

// UpdateList applies a partial update. Only the owner may update a list.
func (e *Engine) UpdateList(listID, ownerID string, name, description *string, active *bool) (models.BroadcastList, error) {
	list, err := getList(e.db, listID)
	if err != nil {
		return models.BroadcastList{}, err
	}
	if list.OwnerID != ownerID {
		return models.BroadcastList{}, models.ErrPermissionDenied
	}

	_, err = e.db.Exec(`
		UPDATE broadcast_list
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    active = COALESCE($3, active)
		WHERE id = $4
	`, name, description, active, listID)
	if err != nil {
		return models.BroadcastList{}, fmt.Errorf("update broadcast list: %w", err)
	}
	return getList(e.db, listID)
}

// DeleteList removes the list and, via cascade, its recipients, messages,
// and deliveries. Only the owner may delete a list.
func (e *Engine) DeleteList(listID, ownerID string) error {
	list, err := getList(e.db, listID)
	if err != nil {
		return err
	}
	if list.OwnerID != ownerID {
		return models.ErrPermissionDenied
	}

	_, err = e.db.Exec(`DELETE FROM broadcast_list WHERE id = $1`, listID)
	if err != nil {
		return fmt.Errorf("delete broadcast list: %w", err)
	}
	return nil
}

// AddRecipient adds one user to the list. Duplicate adds are no-ops, not
// errors. Reports whether the row was actually inserted.
func (e *Engine) AddRecipient(listID, userID string) (bool, error) {
	added, err := e.AddRecipients(listID, []string{userID})
	if err != nil {
		return false, err
	}
	return len(added) == 1, nil
}

// AddRecipients adds a batch of users and returns only the user IDs that
// were actually inserted; duplicates are silently skipped.
func (e *Engine) AddRecipients(listID string, userIDs []string) ([]string, error) {
	if _, err := getList(e.db, listID); err != nil {
		return nil, err
	}

	now := time.Now()
	added := []string{}
	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		for _, userID := range userIDs {
			res, err := tx.Exec(`
				INSERT INTO broadcast_recipient (list_id, user_id, added_at)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, listID, userID, now)
			if err != nil {
				return fmt.Errorf("insert recipient: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("recipient rows affected: %w", err)
			}
			if n > 0 {
				added = append(added, userID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveRecipient removes a user from the list. Already-sent messages keep
// their delivery rows; membership changes are never retroactive.
func (e *Engine) RemoveRecipient(listID, userID string) error {
	if _, err := getList(e.db, listID); err != nil {
		return err
	}
	_, err := e.db.Exec(`
		DELETE FROM broadcast_recipient WHERE list_id = $1 AND user_id = $2
	`, listID, userID)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	return nil
}

// SendBroadcast persists the message, snapshots the current recipient set,
// and creates one pending delivery row per recipient — all in one atomic
// unit, so a racing AddRecipient lands fully before or fully after the send,
// never partially. Sending to an empty list succeeds with zero deliveries.
func (e *Engine) SendBroadcast(listID, senderID, content, kind string, attachments []string) (models.BroadcastMessage, error) {
	if _, err := getList(e.db, listID); err != nil {
		return models.BroadcastMessage{}, err
	}

	if attachments == nil {
		attachments = []string{}
	}
	attachJSON, err := json.Marshal(attachments)
	if err != nil {
		return models.BroadcastMessage{}, fmt.Errorf("marshal attachments: %w", err)
	}

	msg := models.BroadcastMessage{
		ID:          uuid.NewString(),
		ListID:      listID,
		SenderID:    senderID,
		Content:     content,
		Kind:        kind,
		Attachments: attachments,
		SentAt:      time.Now(),
	}

	err = sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO broadcast_message (id, list_id, sender_id, content, kind, attachments, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, msg.ID, msg.ListID, msg.SenderID, msg.Content, msg.Kind, string(attachJSON), msg.SentAt)
		if err != nil {
			return fmt.Errorf("insert broadcast message: %w", err)
		}

		// Recipient snapshot taken inside the same transaction as the
		// message insert.
		rows, err := tx.Query(`
			SELECT user_id FROM broadcast_recipient WHERE list_id = $1
		`, listID)
		if err != nil {
			return fmt.Errorf("query recipient snapshot: %w", err)
		}
		recipients := []string{}
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				rows.Close()
				return fmt.Errorf("scan recipient: %w", err)
			}
			recipients = append(recipients, userID)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("close recipient snapshot: %w", err)
		}

		for _, userID := range recipients {
			_, err = tx.Exec(`
				INSERT INTO broadcast_delivery (message_id, recipient_id, status)
				VALUES ($1, $2, $3)
			`, msg.ID, userID, models.DeliveryPending)
			if err != nil {
				return fmt.Errorf("insert delivery: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.BroadcastMessage{}, err
	}

	return msg, nil
}

// UpdateDeliveryStatus advances one recipient's delivery. Progression is
// enforced forward-only: pending → delivered → read, or pending → failed.
// Re-applying the current status is an idempotent success; a regression
// returns models.ErrInvalidState.
func (e *Engine) UpdateDeliveryStatus(messageID, recipientID, status string, chatMessageID *string) error {
	if !models.IsValidDeliveryStatus(status) {
		return fmt.Errorf("unknown delivery status %q: %w", status, models.ErrInvalidState)
	}

	now := time.Now()
	return sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow(`
			SELECT status FROM broadcast_delivery
			WHERE message_id = $1 AND recipient_id = $2
		`, messageID, recipientID).Scan(&current)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("query delivery: %w", err)
		}

		if current != status && !forward[current][status] {
			return models.ErrInvalidState
		}

		var deliveredAt, readAt *time.Time
		switch status {
		case models.DeliveryDelivered:
			deliveredAt = &now
		case models.DeliveryRead:
			readAt = &now
		}

		_, err = tx.Exec(`
			UPDATE broadcast_delivery
			SET status = $1,
			    delivered_at = COALESCE(delivered_at, $2),
			    read_at = COALESCE(read_at, $3),
			    chat_message_id = COALESCE($4, chat_message_id)
			WHERE message_id = $5 AND recipient_id = $6
		`, status, deliveredAt, readAt, chatMessageID, messageID, recipientID)
		if err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		return nil
	})
}

// GetDeliveryStats returns per-status counts, computed fresh from delivery
// rows on every call so it is safe to run concurrently with in-flight
// status updates.
func (e *Engine) GetDeliveryStats(messageID string) (models.DeliveryStats, error) {
	rows, err := e.db.Query(`
		SELECT status, COUNT(*) FROM broadcast_delivery
		WHERE message_id = $1
		GROUP BY status
	`, messageID)
	if err != nil {
		return models.DeliveryStats{}, fmt.Errorf("query delivery stats: %w", err)
	}
	defer rows.Close()

	var stats models.DeliveryStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.DeliveryStats{}, fmt.Errorf("scan delivery stats: %w", err)
		}
		stats.Total += count
		switch status {
		case models.DeliveryPending:
			stats.Pending = count
		case models.DeliveryDelivered:
			stats.Delivered = count
		case models.DeliveryRead:
			stats.Read = count
		case models.DeliveryFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// GetMessage returns one broadcast message or models.ErrNotFound.
func (e *Engine) GetMessage(messageID string) (models.BroadcastMessage, error) {
	var msg models.BroadcastMessage
	var attachJSON string
	err := e.db.QueryRow(`
		SELECT id, list_id, sender_id, content, kind, attachments, sent_at
		FROM broadcast_message WHERE id = $1
	`, messageID).Scan(&msg.ID, &msg.ListID, &msg.SenderID, &msg.Content, &msg.Kind, &attachJSON, &msg.SentAt)
	if err == sql.ErrNoRows {
		return models.BroadcastMessage{}, models.ErrNotFound
	}
	if err != nil {
		return models.BroadcastMessage{}, fmt.Errorf("query broadcast message: %w", err)
	}
	if err := json.Unmarshal([]byte(attachJSON), &msg.Attachments); err != nil {
		return models.BroadcastMessage{}, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return msg, nil
}

func getList(q sqlutil.Querier, listID string) (models.BroadcastList, error) {
	var list models.BroadcastList
	err := q.QueryRow(`
		SELECT l.id, l.owner_id, l.name, l.description, l.active, l.created_at,
		       (SELECT COUNT(*) FROM broadcast_recipient r WHERE r.list_id = l.id)
		FROM broadcast_list l WHERE l.id = $1
	`, listID).Scan(&list.ID, &list.OwnerID, &list.Name, &list.Description,
		&list.Active, &list.CreatedAt, &list.RecipientCount)
	if err == sql.ErrNoRows {
		return models.BroadcastList{}, models.ErrNotFound
	}
	if err != nil {
		return models.BroadcastList{}, fmt.Errorf("query broadcast list: %w", err)
	}
	return list, nil
}
