// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/rooms"
	"github.com/danielhkuo/famlink-chat/sqlutil"
)

// Engine maintains consistent, mode-correct voting state under concurrent
// voters. Vote counts are always derived from vote rows at read time.
type Engine struct {
	db    *sql.DB
	rooms *rooms.Service
}

func NewEngine(db *sql.DB, rooms *rooms.Service) *Engine {
	return &Engine{db: db, rooms: rooms}
}

// CreatePoll atomically creates the poll and every option in input order
// (display order = input order). For quiz polls, one option is marked
// correct by reference so it survives later reordering.
func (e *Engine) CreatePoll(req models.CreatePollRequest) (models.PollView, error) {
	if !models.IsValidPollKind(req.Kind) {
		return models.PollView{}, fmt.Errorf("unsupported poll kind %q: %w", req.Kind, models.ErrInvalidState)
	}
	exists, err := e.rooms.Exists(req.RoomID)
	if err != nil {
		return models.PollView{}, err
	}
	if !exists {
		return models.PollView{}, models.ErrNotFound
	}
	if req.Kind == models.PollQuiz {
		if req.CorrectOptionIndex == nil || *req.CorrectOptionIndex < 0 || *req.CorrectOptionIndex >= len(req.Options) {
			return models.PollView{}, fmt.Errorf("quiz poll needs a correct option index in range: %w", models.ErrInvalidState)
		}
	}

	now := time.Now()
	pollID := uuid.NewString()

	optionIDs := make([]string, len(req.Options))
	for i := range req.Options {
		optionIDs[i] = uuid.NewString()
	}
	var correctOptionID *string
	if req.CorrectOptionIndex != nil {
		correctOptionID = &optionIDs[*req.CorrectOptionIndex]
	}

	err = sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO poll (id, room_id, message_id, creator_id, question, kind,
			                  anonymous, allow_add_options, closes_at, closed,
			                  correct_option_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, pollID, req.RoomID, req.MessageID, req.CreatorID, req.Question, req.Kind,
			req.Anonymous, req.AllowAddOptions, req.ClosesAt, false, correctOptionID, now)
		if err != nil {
			return fmt.Errorf("insert poll: %w", err)
		}

		for i, text := range req.Options {
			_, err = tx.Exec(`
				INSERT INTO poll_option (id, poll_id, text, added_by, display_order)
				VALUES ($1, $2, $3, $4, $5)
			`, optionIDs[i], pollID, text, req.CreatorID, i)
			if err != nil {
				return fmt.Errorf("insert poll option: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.PollView{}, err
	}

	return e.GetPoll(pollID, nil)
}

// Vote records the user's selection. Fails with models.ErrInvalidState on a
// closed poll or one past its close time, and models.ErrNotFound for unknown
// option IDs. For single and quiz polls all prior votes by the user are
// retracted in the same transaction as the new insert, so the user is never
// observable with two simultaneous single-choice votes. For multiple polls
// votes are additive and idempotent per option.
func (e *Engine) Vote(pollID, userID string, optionIDs []string) (models.PollView, error) {
	if len(optionIDs) == 0 {
		return models.PollView{}, fmt.Errorf("no options given: %w", models.ErrNotFound)
	}

	now := time.Now()
	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		poll, err := getPoll(tx, pollID)
		if err != nil {
			return err
		}
		if poll.Closed || (poll.ClosesAt != nil && now.After(*poll.ClosesAt)) {
			return models.ErrInvalidState
		}
		if poll.Kind != models.PollMultiple && len(optionIDs) > 1 {
			return fmt.Errorf("%s poll accepts one option per vote: %w", poll.Kind, models.ErrInvalidState)
		}

		valid, err := validOptionIDs(tx, pollID)
		if err != nil {
			return err
		}
		for _, optionID := range optionIDs {
			if !valid[optionID] {
				return models.ErrNotFound
			}
		}

		if poll.Kind != models.PollMultiple {
			// Retract-then-insert is one atomic unit.
			_, err = tx.Exec(`
				DELETE FROM poll_vote WHERE poll_id = $1 AND user_id = $2
			`, pollID, userID)
			if err != nil {
				return fmt.Errorf("retract prior votes: %w", err)
			}
		}

		for _, optionID := range optionIDs {
			_, err = tx.Exec(`
				INSERT INTO poll_vote (poll_id, option_id, user_id, voted_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING
			`, pollID, optionID, userID, now)
			if err != nil {
				return fmt.Errorf("insert vote: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.PollView{}, err
	}

	return e.GetPoll(pollID, &userID)
}

// RetractVote removes one vote, or all of the user's votes on the poll when
// no option is given. Retracting from a closed poll is rejected.
func (e *Engine) RetractVote(pollID, userID string, optionID *string) (models.PollView, error) {
	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		poll, err := getPoll(tx, pollID)
		if err != nil {
			return err
		}
		if poll.Closed {
			return models.ErrInvalidState
		}

		if optionID != nil {
			_, err = tx.Exec(`
				DELETE FROM poll_vote WHERE poll_id = $1 AND user_id = $2 AND option_id = $3
			`, pollID, userID, *optionID)
		} else {
			_, err = tx.Exec(`
				DELETE FROM poll_vote WHERE poll_id = $1 AND user_id = $2
			`, pollID, userID)
		}
		if err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PollView{}, err
	}

	return e.GetPoll(pollID, &userID)
}

// AddOption appends a new option with display order max(existing) + 1.
// The creator may always add; anyone else needs allow_add_options.
func (e *Engine) AddOption(pollID, userID, text string) (models.PollOption, error) {
	var optionID string

	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		poll, err := getPoll(tx, pollID)
		if err != nil {
			return err
		}
		if poll.Closed {
			return models.ErrInvalidState
		}
		if userID != poll.CreatorID && !poll.AllowAddOptions {
			return models.ErrPermissionDenied
		}

		var maxOrder sql.NullInt64
		err = tx.QueryRow(`
			SELECT MAX(display_order) FROM poll_option WHERE poll_id = $1
		`, pollID).Scan(&maxOrder)
		if err != nil {
			return fmt.Errorf("query max display order: %w", err)
		}
		order := int64(0)
		if maxOrder.Valid {
			order = maxOrder.Int64 + 1
		}

		optionID = uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO poll_option (id, poll_id, text, added_by, display_order)
			VALUES ($1, $2, $3, $4, $5)
		`, optionID, pollID, text, userID, order)
		if err != nil {
			return fmt.Errorf("insert poll option: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PollOption{}, err
	}

	var opt models.PollOption
	err = e.db.QueryRow(`
		SELECT id, poll_id, text, added_by, display_order
		FROM poll_option WHERE id = $1
	`, optionID).Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.AddedBy, &opt.DisplayOrder)
	if err != nil {
		return models.PollOption{}, fmt.Errorf("query poll option: %w", err)
	}
	return opt, nil
}

// ClosePoll closes the poll. Creator only; closing is terminal, and closing
// an already-closed poll is an idempotent success.
func (e *Engine) ClosePoll(pollID, userID string) (models.PollView, error) {
	err := sqlutil.InTx(e.db, func(tx *sql.Tx) error {
		poll, err := getPoll(tx, pollID)
		if err != nil {
			return err
		}
		if userID != poll.CreatorID {
			return models.ErrPermissionDenied
		}
		if poll.Closed {
			return nil // idempotent
		}

		_, err = tx.Exec(`UPDATE poll SET closed = TRUE WHERE id = $1`, pollID)
		if err != nil {
			return fmt.Errorf("close poll: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PollView{}, err
	}

	return e.GetPoll(pollID, &userID)
}

// GetPoll returns the poll, its options with derived vote counts, voter
// display names per option when the poll is not anonymous, and — when a
// viewer is supplied — that viewer's own current vote set. Anonymity is
// enforced here at read time; votes are always stored with identity.
func (e *Engine) GetPoll(pollID string, viewerID *string) (models.PollView, error) {
	poll, err := getPoll(e.db, pollID)
	if err != nil {
		return models.PollView{}, err
	}

	rows, err := e.db.Query(`
		SELECT o.id, o.poll_id, o.text, o.added_by, o.display_order,
		       (SELECT COUNT(*) FROM poll_vote v WHERE v.option_id = o.id)
		FROM poll_option o
		WHERE o.poll_id = $1
		ORDER BY o.display_order
	`, pollID)
	if err != nil {
		return models.PollView{}, fmt.Errorf("query poll options: %w", err)
	}
	defer rows.Close()

	view := models.PollView{Poll: poll, Options: []models.PollOption{}}
	for rows.Next() {
		var opt models.PollOption
		err := rows.Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.AddedBy, &opt.DisplayOrder, &opt.VoteCount)
		if err != nil {
			return models.PollView{}, fmt.Errorf("scan poll option: %w", err)
		}
		view.TotalVotes += opt.VoteCount
		view.Options = append(view.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return models.PollView{}, err
	}

	if !poll.Anonymous {
		for i := range view.Options {
			voters, err := e.optionVoters(view.Options[i].ID)
			if err != nil {
				return models.PollView{}, err
			}
			view.Options[i].Voters = voters
		}
	}

	if viewerID != nil {
		viewerRows, err := e.db.Query(`
			SELECT option_id FROM poll_vote WHERE poll_id = $1 AND user_id = $2
		`, pollID, *viewerID)
		if err != nil {
			return models.PollView{}, fmt.Errorf("query viewer votes: %w", err)
		}
		defer viewerRows.Close()
		for viewerRows.Next() {
			var optionID string
			if err := viewerRows.Scan(&optionID); err != nil {
				return models.PollView{}, fmt.Errorf("scan viewer vote: %w", err)
			}
			view.ViewerVotes = append(view.ViewerVotes, optionID)
		}
		if err := viewerRows.Err(); err != nil {
			return models.PollView{}, err
		}
	}

	return view, nil
}

func (e *Engine) optionVoters(optionID string) ([]string, error) {
	rows, err := e.db.Query(`
		SELECT user_id FROM poll_vote WHERE option_id = $1 ORDER BY voted_at, user_id
	`, optionID)
	if err != nil {
		return nil, fmt.Errorf("query option voters: %w", err)
	}
	defer rows.Close()

	userIDs := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Name resolution happens after the rows are drained so it does not
	// pin a second connection.
	voters := []string{}
	for _, userID := range userIDs {
		name, err := e.rooms.DisplayName(userID)
		if err != nil {
			return nil, err
		}
		voters = append(voters, name)
	}
	return voters, nil
}

func validOptionIDs(q sqlutil.Querier, pollID string) (map[string]bool, error) {
	rows, err := q.Query(`SELECT id FROM poll_option WHERE poll_id = $1`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query option ids: %w", err)
	}
	defer rows.Close()

	valid := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan option id: %w", err)
		}
		valid[id] = true
	}
	return valid, rows.Err()
}

func getPoll(q sqlutil.Querier, pollID string) (models.Poll, error) {
	var p models.Poll
	err := q.QueryRow(`
		SELECT id, room_id, message_id, creator_id, question, kind,
		       anonymous, allow_add_options, closes_at, closed,
		       correct_option_id, created_at
		FROM poll WHERE id = $1
	`, pollID).Scan(&p.ID, &p.RoomID, &p.MessageID, &p.CreatorID, &p.Question, &p.Kind,
		&p.Anonymous, &p.AllowAddOptions, &p.ClosesAt, &p.Closed,
		&p.CorrectOptionID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Poll{}, models.ErrNotFound
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("query poll: %w", err)
	}
	return p, nil
}
