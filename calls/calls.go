// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package calls

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/rooms"
	"github.com/danielhkuo/famlink-chat/sqlutil"
)

// Engine owns the lifecycle of calls and their participant sets.
// All state lives in the database; the engine never caches across calls.
type Engine struct {
	db    *sql.DB
	rooms *rooms.Service
}

func NewEngine(db *sql.DB, rooms *rooms.Service) *Engine {
	return &Engine{db: db, rooms: rooms}
}

// InitiateCall creates a call in "initiated" with the initiator joined and
// every invitee invited. Returns models.ErrNotFound if a room reference is
// given but does not resolve.
func (e *Engine) InitiateCall(initiatorID, kind string, roomID *string, inviteeIDs []string) (models.CallWithParticipants, error) {
	if !models.IsValidCallKind(kind) {
		return models.CallWithParticipants{}, fmt.Errorf("unsupported call kind %q: %w", kind, models.ErrInvalidState)
	}
	if roomID != nil {
		exists, err := e.rooms.Exists(*roomID)
		if err != nil {
			return models.CallWithParticipants{}, err
		}
		if !exists {
			return models.CallWithParticipants{}, models.ErrNotFound
		}
	}

	now := time.Now()
	callID := uuid.NewString()

	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO call (id, initiator_id, kind, status, room_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, callID, initiatorID, kind, models.CallInitiated, roomID, now)
		if err != nil {
			return fmt.Errorf("insert call: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO call_participant (id, call_id, user_id, status, invited_at, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.NewString(), callID, initiatorID, models.ParticipantJoined, now, now)
		if err != nil {
			return fmt.Errorf("insert initiator participant: %w", err)
		}

		seen := map[string]bool{initiatorID: true}
		for _, userID := range inviteeIDs {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			_, err = tx.Exec(`
				INSERT INTO call_participant (id, call_id, user_id, status, invited_at)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.NewString(), callID, userID, models.ParticipantInvited, now)
			if err != nil {
				return fmt.Errorf("insert invitee participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.CallWithParticipants{}, err
	}

	return e.GetCall(callID)
}

// UpdateCallStatus transitions the call. Transition into the state the call
// is already in is a no-op. Entering "ongoing" stamps the start time once;
// entering a terminal state stamps the end time, computes duration, and
// records endReason. Transitions out of a terminal state return
// models.ErrInvalidState.
func (e *Engine) UpdateCallStatus(callID, status string, endReason *string) (models.Call, error) {
	if !models.IsValidCallStatus(status) {
		return models.Call{}, fmt.Errorf("unknown call status %q: %w", status, models.ErrInvalidState)
	}

	now := time.Now()
	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		call, err := getCall(tx, callID)
		if err != nil {
			return err
		}
		if call.Status == status {
			return nil // idempotent
		}
		if models.IsTerminalCallStatus(call.Status) {
			return models.ErrInvalidState
		}

		if models.IsTerminalCallStatus(status) {
			return endCall(tx, call, status, endReason, now)
		}

		if status == models.CallOngoing && call.StartedAt == nil {
			_, err = tx.Exec(`
				UPDATE call SET status = $1, started_at = $2 WHERE id = $3
			`, status, now, callID)
		} else {
			_, err = tx.Exec(`UPDATE call SET status = $1 WHERE id = $2`, status, callID)
		}
		if err != nil {
			return fmt.Errorf("update call status: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Call{}, err
	}

	return getCall(e.db, callID)
}

// JoinCall transitions the user's participant to "joined", creating a fresh
// participant row for self-invited joins (e.g. a late room member joining an
// ongoing group call). Returns models.ErrInvalidState if the call is terminal.
func (e *Engine) JoinCall(callID, userID string) (models.CallParticipant, error) {
	now := time.Now()
	var participantID string

	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		call, err := getCall(tx, callID)
		if err != nil {
			return err
		}
		if models.IsTerminalCallStatus(call.Status) {
			return models.ErrInvalidState
		}

		existing, err := latestParticipant(tx, callID, userID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == sql.ErrNoRows {
			participantID = uuid.NewString()
			_, err = tx.Exec(`
				INSERT INTO call_participant (id, call_id, user_id, status, invited_at, joined_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, participantID, callID, userID, models.ParticipantJoined, now, now)
			if err != nil {
				return fmt.Errorf("insert participant: %w", err)
			}
			return nil
		}

		participantID = existing.ID
		_, err = tx.Exec(`
			UPDATE call_participant SET status = $1, joined_at = $2 WHERE id = $3
		`, models.ParticipantJoined, now, participantID)
		if err != nil {
			return fmt.Errorf("update participant to joined: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.CallParticipant{}, err
	}

	return e.getParticipantByID(participantID)
}

// LeaveCall transitions the user's participant to "left". If no participant
// remains joined afterwards, the call is auto-ended with reason "all_left".
// The remaining-joined count is re-read after the leave write, inside the
// same transaction, to avoid the stale-count race.
func (e *Engine) LeaveCall(callID, userID string) (models.CallWithParticipants, error) {
	now := time.Now()

	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		call, err := getCall(tx, callID)
		if err != nil {
			return err
		}
		if models.IsTerminalCallStatus(call.Status) {
			return models.ErrInvalidState
		}

		existing, err := latestParticipant(tx, callID, userID)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE call_participant SET status = $1, left_at = $2 WHERE id = $3
		`, models.ParticipantLeft, now, existing.ID)
		if err != nil {
			return fmt.Errorf("update participant to left: %w", err)
		}

		var joined int
		err = tx.QueryRow(`
			SELECT COUNT(*) FROM call_participant WHERE call_id = $1 AND status = $2
		`, callID, models.ParticipantJoined).Scan(&joined)
		if err != nil {
			return fmt.Errorf("count joined participants: %w", err)
		}
		if joined == 0 {
			reason := models.EndReasonAllLeft
			return endCall(tx, call, models.CallEnded, &reason, now)
		}
		return nil
	})
	if err != nil {
		return models.CallWithParticipants{}, err
	}

	return e.GetCall(callID)
}

// DeclineCall transitions the user's participant to "declined". The
// initiator's own leg does not count as answerable; once every other
// participant is out of invited, ringing, and joined, the call is
// auto-declined with reason "all_declined" even while the initiator
// is still waiting on the line.
func (e *Engine) DeclineCall(callID, userID string) (models.CallWithParticipants, error) {
	now := time.Now()

	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		call, err := getCall(tx, callID)
		if err != nil {
			return err
		}
		if models.IsTerminalCallStatus(call.Status) {
			return models.ErrInvalidState
		}

		existing, err := latestParticipant(tx, callID, userID)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE call_participant SET status = $1 WHERE id = $2
		`, models.ParticipantDeclined, existing.ID)
		if err != nil {
			return fmt.Errorf("update participant to declined: %w", err)
		}

		var answerable int
		err = tx.QueryRow(`
			SELECT COUNT(*) FROM call_participant
			WHERE call_id = $1 AND user_id != $2 AND status IN ($3, $4, $5)
		`, callID, call.InitiatorID, models.ParticipantInvited, models.ParticipantRinging, models.ParticipantJoined).Scan(&answerable)
		if err != nil {
			return fmt.Errorf("count answerable participants: %w", err)
		}
		if answerable == 0 {
			reason := models.EndReasonAllDeclined
			return endCall(tx, call, models.CallDeclined, &reason, now)
		}
		return nil
	})
	if err != nil {
		return models.CallWithParticipants{}, err
	}

	return e.GetCall(callID)
}

// UpdateParticipantState partially updates media flags. Nil fields are left
// untouched. Lifecycle state is unaffected.
func (e *Engine) UpdateParticipantState(callID, userID string, muted, videoOff, screenSharing *bool) (models.CallParticipant, error) {
	existing, err := latestParticipant(e.db, callID, userID)
	if err == sql.ErrNoRows {
		return models.CallParticipant{}, models.ErrNotFound
	}
	if err != nil {
		return models.CallParticipant{}, err
	}

	_, err = e.db.Exec(`
		UPDATE call_participant
		SET muted = COALESCE($1, muted),
		    video_off = COALESCE($2, video_off),
		    screen_sharing = COALESCE($3, screen_sharing)
		WHERE id = $4
	`, muted, videoOff, screenSharing, existing.ID)
	if err != nil {
		return models.CallParticipant{}, fmt.Errorf("update participant state: %w", err)
	}

	return e.getParticipantByID(existing.ID)
}

// GetCall returns the call with its full participant list.
func (e *Engine) GetCall(callID string) (models.CallWithParticipants, error) {
	call, err := getCall(e.db, callID)
	if err != nil {
		return models.CallWithParticipants{}, err
	}
	participants, err := getParticipants(e.db, callID)
	if err != nil {
		return models.CallWithParticipants{}, err
	}
	return models.CallWithParticipants{Call: call, Participants: participants}, nil
}

// CallRoom returns the room the call is attached to, nil for direct calls.
func (e *Engine) CallRoom(callID string) (*string, error) {
	call, err := getCall(e.db, callID)
	if err != nil {
		return nil, err
	}
	return call.RoomID, nil
}

// GetActiveCall returns the newest non-terminal call attached to the room.
// At most one call per room should be active at a time; a racing second
// initiate resolves last-writer-wins, so the newest row is authoritative.
func (e *Engine) GetActiveCall(roomID string) (models.CallWithParticipants, error) {
	var callID string
	err := e.db.QueryRow(`
		SELECT id FROM call
		WHERE room_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`, roomID, models.CallInitiated, models.CallRinging, models.CallOngoing).Scan(&callID)
	if err == sql.ErrNoRows {
		return models.CallWithParticipants{}, models.ErrNotFound
	}
	if err != nil {
		return models.CallWithParticipants{}, fmt.Errorf("query active call: %w", err)
	}
	return e.GetCall(callID)
}

// GetCallHistory returns the user's calls, newest first. kind filters when
// non-empty. Pagination is plain limit/offset.
func (e *Engine) GetCallHistory(userID string, limit, offset int, kind string) ([]models.Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := e.db.Query(`
		SELECT DISTINCT c.id, c.initiator_id, c.kind, c.status, c.room_id,
		       c.started_at, c.ended_at, c.duration_secs, c.end_reason,
		       c.recording_url, c.metadata, c.created_at
		FROM call c
		JOIN call_participant p ON p.call_id = c.id
		WHERE p.user_id = $1 AND ($2 = '' OR c.kind = $2)
		ORDER BY c.created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query call history: %w", err)
	}
	defer rows.Close()

	history := []models.Call{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, call)
	}
	return history, rows.Err()
}

// CountMissedCalls counts calls that went missed while the user was still
// invited or ringing, over a trailing window starting at since.
func (e *Engine) CountMissedCalls(userID string, since time.Time) (int, error) {
	var count int
	err := e.db.QueryRow(`
		SELECT COUNT(DISTINCT c.id)
		FROM call c
		JOIN call_participant p ON p.call_id = c.id
		WHERE p.user_id = $1
		  AND p.status IN ($2, $3)
		  AND c.status = $4
		  AND c.created_at >= $5
	`, userID, models.ParticipantInvited, models.ParticipantRinging, models.CallMissed, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count missed calls: %w", err)
	}
	return count, nil
}

// endCall stamps the terminal status, end time, duration, and reason.
// Duration counts from the start time, or from creation if the call never
// reached "ongoing".
func endCall(tx *sql.Tx, call models.Call, status string, reason *string, now time.Time) error {
	from := call.CreatedAt
	if call.StartedAt != nil {
		from = *call.StartedAt
	}
	duration := int64(now.Sub(from) / time.Second)
	if duration < 0 {
		duration = 0
	}

	_, err := tx.Exec(`
		UPDATE call
		SET status = $1, ended_at = $2, duration_secs = $3, end_reason = COALESCE($4, end_reason)
		WHERE id = $5
	`, status, now, duration, reason, call.ID)
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(s scanner) (models.Call, error) {
	var c models.Call
	err := s.Scan(
		&c.ID, &c.InitiatorID, &c.Kind, &c.Status, &c.RoomID,
		&c.StartedAt, &c.EndedAt, &c.DurationSecs, &c.EndReason,
		&c.RecordingURL, &c.Metadata, &c.CreatedAt,
	)
	if err != nil {
		return models.Call{}, fmt.Errorf("scan call: %w", err)
	}
	return c, nil
}

func getCall(q sqlutil.Querier, callID string) (models.Call, error) {
	row := q.QueryRow(`
		SELECT id, initiator_id, kind, status, room_id,
		       started_at, ended_at, duration_secs, end_reason,
		       recording_url, metadata, created_at
		FROM call WHERE id = $1
	`, callID)

	var c models.Call
	err := row.Scan(
		&c.ID, &c.InitiatorID, &c.Kind, &c.Status, &c.RoomID,
		&c.StartedAt, &c.EndedAt, &c.DurationSecs, &c.EndReason,
		&c.RecordingURL, &c.Metadata, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Call{}, models.ErrNotFound
	}
	if err != nil {
		return models.Call{}, fmt.Errorf("query call: %w", err)
	}
	return c, nil
}

func getParticipants(q sqlutil.Querier, callID string) ([]models.CallParticipant, error) {
	rows, err := q.Query(`
		SELECT id, call_id, user_id, status, invited_at, joined_at, left_at,
		       muted, video_off, screen_sharing
		FROM call_participant
		WHERE call_id = $1
		ORDER BY invited_at, user_id
	`, callID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := []models.CallParticipant{}
	for rows.Next() {
		var p models.CallParticipant
		err := rows.Scan(&p.ID, &p.CallID, &p.UserID, &p.Status, &p.InvitedAt,
			&p.JoinedAt, &p.LeftAt, &p.Muted, &p.VideoOff, &p.ScreenSharing)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// latestParticipant returns the user's most recent participant row in the
// call. Re-invites create fresh rows, so only the newest one is live.
// Returns sql.ErrNoRows when the user has never been on the call.
func latestParticipant(q sqlutil.Querier, callID, userID string) (models.CallParticipant, error) {
	row := q.QueryRow(`
		SELECT id, call_id, user_id, status, invited_at, joined_at, left_at,
		       muted, video_off, screen_sharing
		FROM call_participant
		WHERE call_id = $1 AND user_id = $2
		ORDER BY invited_at DESC, id DESC
		LIMIT 1
	`, callID, userID)

	var p models.CallParticipant
	err := row.Scan(&p.ID, &p.CallID, &p.UserID, &p.Status, &p.InvitedAt,
		&p.JoinedAt, &p.LeftAt, &p.Muted, &p.VideoOff, &p.ScreenSharing)
	if err == sql.ErrNoRows {
		return models.CallParticipant{}, sql.ErrNoRows
	}
	if err != nil {
		return models.CallParticipant{}, fmt.Errorf("query participant: %w", err)
	}
	return p, nil
}

func (e *Engine) getParticipantByID(id string) (models.CallParticipant, error) {
	row := e.db.QueryRow(`
		SELECT id, call_id, user_id, status, invited_at, joined_at, left_at,
		       muted, video_off, screen_sharing
		FROM call_participant WHERE id = $1
	`, id)

	var p models.CallParticipant
	err := row.Scan(&p.ID, &p.CallID, &p.UserID, &p.Status, &p.InvitedAt,
		&p.JoinedAt, &p.LeftAt, &p.Muted, &p.VideoOff, &p.ScreenSharing)
	if err == sql.ErrNoRows {
		return models.CallParticipant{}, models.ErrNotFound
	}
	if err != nil {
		return models.CallParticipant{}, fmt.Errorf("query participant: %w", err)
	}
	return p, nil
}
