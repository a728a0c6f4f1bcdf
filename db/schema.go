// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Rooms (chat room context)
CREATE TABLE IF NOT EXISTS room (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS room_member (
    room_id TEXT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS chat_message (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'text',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_message_room ON chat_message(room_id);

-- Calls
CREATE TABLE IF NOT EXISTS call (
    id TEXT PRIMARY KEY,
    initiator_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('voice', 'video', 'screen_share')),
    status TEXT NOT NULL DEFAULT 'initiated'
        CHECK (status IN ('initiated', 'ringing', 'ongoing', 'ended', 'missed', 'declined', 'failed')),
    room_id TEXT REFERENCES room(id),
    started_at TIMESTAMP,
    ended_at TIMESTAMP,
    duration_secs BIGINT,
    end_reason TEXT,
    recording_url TEXT,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_call_room ON call(room_id);
CREATE INDEX IF NOT EXISTS idx_call_status ON call(status);

CREATE TABLE IF NOT EXISTS call_participant (
    id TEXT PRIMARY KEY,
    call_id TEXT NOT NULL REFERENCES call(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'invited'
        CHECK (status IN ('invited', 'ringing', 'joined', 'left', 'declined', 'missed')),
    invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
    joined_at TIMESTAMP,
    left_at TIMESTAMP,
    muted BOOLEAN NOT NULL DEFAULT FALSE,
    video_off BOOLEAN NOT NULL DEFAULT FALSE,
    screen_sharing BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_call_participant_call ON call_participant(call_id);
CREATE INDEX IF NOT EXISTS idx_call_participant_user ON call_participant(user_id);

-- Broadcast lists
CREATE TABLE IF NOT EXISTS broadcast_list (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_broadcast_list_owner ON broadcast_list(owner_id);

CREATE TABLE IF NOT EXISTS broadcast_recipient (
    list_id TEXT NOT NULL REFERENCES broadcast_list(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    added_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (list_id, user_id)
);

CREATE TABLE IF NOT EXISTS broadcast_message (
    id TEXT PRIMARY KEY,
    list_id TEXT NOT NULL REFERENCES broadcast_list(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'text',
    attachments TEXT NOT NULL DEFAULT '[]',
    sent_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_broadcast_message_list ON broadcast_message(list_id);

CREATE TABLE IF NOT EXISTS broadcast_delivery (
    message_id TEXT NOT NULL REFERENCES broadcast_message(id) ON DELETE CASCADE,
    recipient_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'delivered', 'read', 'failed')),
    delivered_at TIMESTAMP,
    read_at TIMESTAMP,
    chat_message_id TEXT,
    PRIMARY KEY (message_id, recipient_id)
);

CREATE INDEX IF NOT EXISTS idx_broadcast_delivery_status ON broadcast_delivery(message_id, status);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES room(id),
    message_id TEXT,
    creator_id TEXT NOT NULL,
    question TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'single' CHECK (kind IN ('single', 'multiple', 'quiz')),
    anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    allow_add_options BOOLEAN NOT NULL DEFAULT FALSE,
    closes_at TIMESTAMP,
    closed BOOLEAN NOT NULL DEFAULT FALSE,
    correct_option_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_poll_room ON poll(room_id);

CREATE TABLE IF NOT EXISTS poll_option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    added_by TEXT NOT NULL,
    display_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_option_poll ON poll_option(poll_id);

CREATE TABLE IF NOT EXISTS poll_vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES poll_option(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    voted_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (poll_id, option_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_poll_vote_user ON poll_vote(poll_id, user_id);
`
