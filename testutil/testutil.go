// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var dbCounter atomic.Int64

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// Each call gets its own database, so tests can run in parallel.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the in-memory database alive across connections,
	// the unique name isolates it from other tests.
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbCounter.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// modernc sqlite serializes on a single connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db
}

// CreateTestRoom inserts a room with its creator as the first member
// and returns the room ID.
func CreateTestRoom(t *testing.T, db *sql.DB, creatorID string) string {
	t.Helper()

	roomID := uuid.NewString()
	_, err := db.Exec(`INSERT INTO room (id, name, created_by, created_at) VALUES ($1, 'Test Room', $2, $3)`,
		roomID, creatorID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}
	_, err = db.Exec(`INSERT INTO room_member (room_id, user_id, display_name, joined_at) VALUES ($1, $2, $2, $3)`,
		roomID, creatorID, time.Now())
	if err != nil {
		t.Fatalf("Failed to add test room creator: %v", err)
	}

	return roomID
}

// AddTestMember adds a user to a room.
func AddTestMember(t *testing.T, db *sql.DB, roomID, userID string) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO room_member (room_id, user_id, display_name, joined_at) VALUES ($1, $2, $2, $3)`,
		roomID, userID, time.Now())
	if err != nil {
		t.Fatalf("Failed to add test member: %v", err)
	}
}

// CreateTestList inserts a broadcast list and returns its ID.
func CreateTestList(t *testing.T, db *sql.DB, ownerID string) string {
	t.Helper()

	listID := uuid.NewString()
	_, err := db.Exec(`INSERT INTO broadcast_list (id, owner_id, name, created_at) VALUES ($1, $2, 'Test List', $3)`,
		listID, ownerID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test list: %v", err)
	}

	return listID
}

// AddTestRecipients adds recipients to a broadcast list.
func AddTestRecipients(t *testing.T, db *sql.DB, listID string, userIDs ...string) {
	t.Helper()

	for _, userID := range userIDs {
		_, err := db.Exec(`INSERT INTO broadcast_recipient (list_id, user_id, added_at) VALUES ($1, $2, $3)`,
			listID, userID, time.Now())
		if err != nil {
			t.Fatalf("Failed to add test recipient: %v", err)
		}
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// testSchema mirrors db.CreateSchema in SQLite flavor. TIMESTAMP decltypes
// let the driver scan into time.Time; defaults use CURRENT_TIMESTAMP.
const testSchema = `
CREATE TABLE room (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE room_member (
    room_id TEXT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (room_id, user_id)
);

CREATE TABLE chat_message (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'text',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE call (
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
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE call_participant (
    id TEXT PRIMARY KEY,
    call_id TEXT NOT NULL REFERENCES call(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'invited'
        CHECK (status IN ('invited', 'ringing', 'joined', 'left', 'declined', 'missed')),
    invited_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    joined_at TIMESTAMP,
    left_at TIMESTAMP,
    muted BOOLEAN NOT NULL DEFAULT FALSE,
    video_off BOOLEAN NOT NULL DEFAULT FALSE,
    screen_sharing BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE broadcast_list (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE broadcast_recipient (
    list_id TEXT NOT NULL REFERENCES broadcast_list(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (list_id, user_id)
);

CREATE TABLE broadcast_message (
    id TEXT PRIMARY KEY,
    list_id TEXT NOT NULL REFERENCES broadcast_list(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'text',
    attachments TEXT NOT NULL DEFAULT '[]',
    sent_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE broadcast_delivery (
    message_id TEXT NOT NULL REFERENCES broadcast_message(id) ON DELETE CASCADE,
    recipient_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'delivered', 'read', 'failed')),
    delivered_at TIMESTAMP,
    read_at TIMESTAMP,
    chat_message_id TEXT,
    PRIMARY KEY (message_id, recipient_id)
);

CREATE TABLE poll (
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
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE poll_option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    added_by TEXT NOT NULL,
    display_order INTEGER NOT NULL
);

CREATE TABLE poll_vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES poll_option(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    voted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, option_id, user_id)
);
`
