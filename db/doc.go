// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation for the chat collaboration core.

# Schema

CreateSchema creates all tables using IF NOT EXISTS (idempotent):

	if err := db.CreateSchema(dbConn); err != nil {
		log.Fatal(err)
	}

# Tables

  - room, room_member, chat_message: chat room context
  - call, call_participant: call session lifecycle
  - broadcast_list, broadcast_recipient: distribution lists
  - broadcast_message, broadcast_delivery: fan-out messages and per-recipient progress
  - poll, poll_option, poll_vote: collective voting

# Invariants Enforced In-Schema

  - broadcast_recipient: PRIMARY KEY (list_id, user_id) — duplicate adds conflict
  - broadcast_delivery: PRIMARY KEY (message_id, recipient_id) — one delivery per pair
  - poll_vote: PRIMARY KEY (poll_id, option_id, user_id) — re-votes conflict

The engines rely on these keys plus INSERT ... ON CONFLICT DO NOTHING for
idempotent adds. Aggregate counts are never stored; they are computed with
COUNT(*) over detail rows at read time.
*/
package db
