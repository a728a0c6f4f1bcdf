// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Call lifecycle statuses
const (
	CallInitiated = "initiated"
	CallRinging   = "ringing"
	CallOngoing   = "ongoing"
	CallEnded     = "ended"
	CallMissed    = "missed"
	CallDeclined  = "declined"
	CallFailed    = "failed"
)

// Call kinds
const (
	CallKindVoice       = "voice"
	CallKindVideo       = "video"
	CallKindScreenShare = "screen_share"
)

// Participant statuses
const (
	ParticipantInvited  = "invited"
	ParticipantRinging  = "ringing"
	ParticipantJoined   = "joined"
	ParticipantLeft     = "left"
	ParticipantDeclined = "declined"
	ParticipantMissed   = "missed"
)

// Call end reasons set by auto-transitions
const (
	EndReasonAllLeft     = "all_left"
	EndReasonAllDeclined = "all_declined"
)

// Broadcast delivery statuses
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
	DeliveryFailed    = "failed"
)

// Poll kinds
const (
	PollSingle   = "single"
	PollMultiple = "multiple"
	PollQuiz     = "quiz"
)

// IsTerminalCallStatus reports whether a call status has no outgoing transitions.
func IsTerminalCallStatus(status string) bool {
	switch status {
	case CallEnded, CallMissed, CallDeclined, CallFailed:
		return true
	}
	return false
}

// IsValidCallStatus reports whether status is a known call lifecycle status.
func IsValidCallStatus(status string) bool {
	switch status {
	case CallInitiated, CallRinging, CallOngoing, CallEnded, CallMissed, CallDeclined, CallFailed:
		return true
	}
	return false
}

// IsValidCallKind reports whether kind is a supported call kind.
func IsValidCallKind(kind string) bool {
	switch kind {
	case CallKindVoice, CallKindVideo, CallKindScreenShare:
		return true
	}
	return false
}

// IsValidDeliveryStatus reports whether status is a known delivery status.
func IsValidDeliveryStatus(status string) bool {
	switch status {
	case DeliveryPending, DeliveryDelivered, DeliveryRead, DeliveryFailed:
		return true
	}
	return false
}

// IsValidPollKind reports whether kind is a supported poll kind.
func IsValidPollKind(kind string) bool {
	switch kind {
	case PollSingle, PollMultiple, PollQuiz:
		return true
	}
	return false
}

// Domain types

type Call struct {
	ID           string     `json:"id"`
	InitiatorID  string     `json:"initiator_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	RoomID       *string    `json:"room_id,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	DurationSecs *int64     `json:"duration_secs,omitempty"`
	EndReason    *string    `json:"end_reason,omitempty"`
	RecordingURL *string    `json:"recording_url,omitempty"`
	Metadata     *string    `json:"metadata,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type CallParticipant struct {
	ID            string     `json:"id"`
	CallID        string     `json:"call_id"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	InvitedAt     time.Time  `json:"invited_at"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
	Muted         bool       `json:"muted"`
	VideoOff      bool       `json:"video_off"`
	ScreenSharing bool       `json:"screen_sharing"`
}

type CallWithParticipants struct {
	Call         Call              `json:"call"`
	Participants []CallParticipant `json:"participants"`
}

type BroadcastList struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Active         bool      `json:"active"`
	RecipientCount int       `json:"recipient_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type BroadcastRecipient struct {
	ListID  string    `json:"list_id"`
	UserID  string    `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}

type BroadcastMessage struct {
	ID          string    `json:"id"`
	ListID      string    `json:"list_id"`
	SenderID    string    `json:"sender_id"`
	Content     string    `json:"content"`
	Kind        string    `json:"kind"`
	Attachments []string  `json:"attachments"`
	SentAt      time.Time `json:"sent_at"`
}

type BroadcastDelivery struct {
	MessageID     string     `json:"message_id"`
	RecipientID   string     `json:"recipient_id"`
	Status        string     `json:"status"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	ChatMessageID *string    `json:"chat_message_id,omitempty"`
}

// DeliveryStats is computed fresh from delivery rows, never cached.
type DeliveryStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
}

type Poll struct {
	ID              string     `json:"id"`
	RoomID          string     `json:"room_id"`
	MessageID       *string    `json:"message_id,omitempty"`
	CreatorID       string     `json:"creator_id"`
	Question        string     `json:"question"`
	Kind            string     `json:"kind"`
	Anonymous       bool       `json:"anonymous"`
	AllowAddOptions bool       `json:"allow_add_options"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	Closed          bool       `json:"closed"`
	CorrectOptionID *string    `json:"correct_option_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type PollOption struct {
	ID           string   `json:"id"`
	PollID       string   `json:"poll_id"`
	Text         string   `json:"text"`
	AddedBy      string   `json:"added_by"`
	DisplayOrder int      `json:"display_order"`
	VoteCount    int      `json:"vote_count"`
	Voters       []string `json:"voters,omitempty"`
}

// PollView is the read-side aggregate returned by GetPoll. Voters are
// populated per option only when the poll is not anonymous. ViewerVotes
// holds the option IDs currently held by the requesting viewer.
type PollView struct {
	Poll        Poll         `json:"poll"`
	Options     []PollOption `json:"options"`
	TotalVotes  int          `json:"total_votes"`
	ViewerVotes []string     `json:"viewer_votes,omitempty"`
}

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomMember struct {
	RoomID      string    `json:"room_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Request types

type InitiateCallRequest struct {
	InitiatorID string   `json:"initiator_id"`
	Kind        string   `json:"kind"`
	RoomID      *string  `json:"room_id,omitempty"`
	InviteeIDs  []string `json:"invitee_ids"`
}

type UpdateCallStatusRequest struct {
	Status    string  `json:"status"`
	EndReason *string `json:"end_reason,omitempty"`
}

type CallParticipantRequest struct {
	UserID string `json:"user_id"`
}

type UpdateParticipantStateRequest struct {
	UserID        string `json:"user_id"`
	Muted         *bool  `json:"muted,omitempty"`
	VideoOff      *bool  `json:"video_off,omitempty"`
	ScreenSharing *bool  `json:"screen_sharing,omitempty"`
}

type CreateListRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateListRequest struct {
	OwnerID     string  `json:"owner_id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type AddRecipientsRequest struct {
	UserIDs []string `json:"user_ids"`
}

type AddRecipientsResponse struct {
	Added []string `json:"added"`
}

type SendBroadcastRequest struct {
	SenderID    string   `json:"sender_id"`
	Content     string   `json:"content"`
	Kind        string   `json:"kind"`
	Attachments []string `json:"attachments,omitempty"`
}

type UpdateDeliveryRequest struct {
	RecipientID   string  `json:"recipient_id"`
	Status        string  `json:"status"`
	ChatMessageID *string `json:"chat_message_id,omitempty"`
}

type CreatePollRequest struct {
	RoomID             string     `json:"room_id"`
	MessageID          *string    `json:"message_id,omitempty"`
	CreatorID          string     `json:"creator_id"`
	Question           string     `json:"question"`
	Options            []string   `json:"options"`
	Kind               string     `json:"kind"`
	Anonymous          bool       `json:"anonymous"`
	AllowAddOptions    bool       `json:"allow_add_options"`
	ClosesAt           *time.Time `json:"closes_at,omitempty"`
	CorrectOptionIndex *int       `json:"correct_option_index,omitempty"`
}

type VoteRequest struct {
	UserID    string   `json:"user_id"`
	OptionIDs []string `json:"option_ids"`
}

type RetractVoteRequest struct {
	UserID   string  `json:"user_id"`
	OptionID *string `json:"option_id,omitempty"`
}

type AddPollOptionRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ClosePollRequest struct {
	UserID string `json:"user_id"`
}

type CreateRoomRequest struct {
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

type AddMemberRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
