// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the chat
collaboration core, plus the error kinds shared by all three engines.

# Domain Types

  - Call / CallParticipant: one communication session and its membership
  - BroadcastList / BroadcastRecipient: named fan-out distribution list
  - BroadcastMessage / BroadcastDelivery: authored message and per-recipient progress
  - Poll / PollOption / PollView: voting instance, choices, read-side aggregate
  - Room / RoomMember / ChatMessage: chat room context the engines attach to

All aggregate counts (RecipientCount, DeliveryStats, VoteCount, TotalVotes)
are derived view state computed from detail rows at read time; they are never
independently authoritative.

# Error Kinds

	ErrNotFound         → referenced row does not exist
	ErrInvalidState     → terminal call / closed poll / regressive transition
	ErrPermissionDenied → creator- or owner-only operation

Handlers map these to 404, 409, and 403; unclassified persistence errors
become 500.

# Constants

Call lifecycle:

	initiated → ringing → ongoing → {ended | missed | declined | failed}

Participant lifecycle:

	invited → {ringing → joined → left} | declined | missed

Delivery progression (forward-only):

	pending → delivered → read, or pending → failed

Poll kinds:

	single | multiple | quiz
*/
package models
