// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/famlink-chat/broadcast"
	"github.com/danielhkuo/famlink-chat/calls"
	"github.com/danielhkuo/famlink-chat/events"
	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/polls"
	"github.com/danielhkuo/famlink-chat/rooms"
	"github.com/danielhkuo/famlink-chat/testutil"
)

type testEnv struct {
	db        *sql.DB
	hub       *events.Hub
	rooms     *rooms.Service
	calls     *CallHandler
	broadcast *BroadcastHandler
	polls     *PollHandler
	roomAPI   *RoomHandler
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	hub := events.NewHub()
	roomService := rooms.NewService(db)
	return testEnv{
		db:        db,
		hub:       hub,
		rooms:     roomService,
		calls:     NewCallHandler(calls.NewEngine(db, roomService), hub),
		broadcast: NewBroadcastHandler(broadcast.NewEngine(db), hub),
		polls:     NewPollHandler(polls.NewEngine(db, roomService), hub),
		roomAPI:   NewRoomHandler(roomService),
	}
}

func TestCreateRoomHandler(t *testing.T) {
	env := setupEnv(t)

	req := testutil.MakeRequest("POST", "/rooms", models.CreateRoomRequest{
		Name:      "Family",
		CreatedBy: "alice",
	}, nil)
	w := httptest.NewRecorder()
	env.roomAPI.CreateRoom(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)

	var room models.Room
	testutil.AssertJSON(t, w, &room)
	if room.Name != "Family" {
		t.Errorf("unexpected room: %+v", room)
	}
}

func TestCreateRoomHandler_Validation(t *testing.T) {
	env := setupEnv(t)

	req := testutil.MakeRequest("POST", "/rooms", models.CreateRoomRequest{Name: "Family"}, nil)
	w := httptest.NewRecorder()
	env.roomAPI.CreateRoom(w, req)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestInitiateCallHandler(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice",
		Kind:        models.CallKindVideo,
		RoomID:      &roomID,
		InviteeIDs:  []string{"bob"},
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)

	var result models.CallWithParticipants
	testutil.AssertJSON(t, w, &result)
	if result.Call.Status != models.CallInitiated {
		t.Errorf("expected initiated, got %s", result.Call.Status)
	}
	if len(result.Participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(result.Participants))
	}
}

func TestInitiateCallHandler_UnknownRoom(t *testing.T) {
	env := setupEnv(t)

	roomID := "no-such-room"
	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice",
		Kind:        models.CallKindVoice,
		RoomID:      &roomID,
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)

	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestUpdateCallStatusHandler_Conflict(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice", Kind: models.CallKindVoice, RoomID: &roomID,
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)
	var created models.CallWithParticipants
	testutil.AssertJSON(t, w, &created)

	// End the call, then try to resurrect it
	req = testutil.MakeRequest("POST", "/calls/"+created.Call.ID+"/status", models.UpdateCallStatusRequest{
		Status: models.CallEnded,
	}, nil)
	req.SetPathValue("id", created.Call.ID)
	w = httptest.NewRecorder()
	env.calls.UpdateCallStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	req = testutil.MakeRequest("POST", "/calls/"+created.Call.ID+"/status", models.UpdateCallStatusRequest{
		Status: models.CallOngoing,
	}, nil)
	req.SetPathValue("id", created.Call.ID)
	w = httptest.NewRecorder()
	env.calls.UpdateCallStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestDeliveryHandler_StatusMapping(t *testing.T) {
	env := setupEnv(t)

	w := httptest.NewRecorder()
	req := testutil.MakeRequest("POST", "/broadcast-lists", models.CreateListRequest{
		OwnerID: "alice", Name: "Family",
	}, nil)
	env.broadcast.CreateList(w, req)
	var list models.BroadcastList
	testutil.AssertJSON(t, w, &list)

	req = testutil.MakeRequest("POST", "/broadcast-lists/"+list.ID+"/recipients", models.AddRecipientsRequest{
		UserIDs: []string{"bob"},
	}, nil)
	req.SetPathValue("id", list.ID)
	w = httptest.NewRecorder()
	env.broadcast.AddRecipients(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	req = testutil.MakeRequest("POST", "/broadcast-lists/"+list.ID+"/messages", models.SendBroadcastRequest{
		SenderID: "alice", Content: "hi",
	}, nil)
	req.SetPathValue("id", list.ID)
	w = httptest.NewRecorder()
	env.broadcast.SendBroadcast(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var msg models.BroadcastMessage
	testutil.AssertJSON(t, w, &msg)

	// read then regress to delivered: 409
	req = testutil.MakeRequest("POST", "/broadcast-messages/"+msg.ID+"/delivery", models.UpdateDeliveryRequest{
		RecipientID: "bob", Status: models.DeliveryRead,
	}, nil)
	req.SetPathValue("id", msg.ID)
	w = httptest.NewRecorder()
	env.broadcast.UpdateDeliveryStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	req = testutil.MakeRequest("POST", "/broadcast-messages/"+msg.ID+"/delivery", models.UpdateDeliveryRequest{
		RecipientID: "bob", Status: models.DeliveryDelivered,
	}, nil)
	req.SetPathValue("id", msg.ID)
	w = httptest.NewRecorder()
	env.broadcast.UpdateDeliveryStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)

	// unknown recipient: 404
	req = testutil.MakeRequest("POST", "/broadcast-messages/"+msg.ID+"/delivery", models.UpdateDeliveryRequest{
		RecipientID: "ghost", Status: models.DeliveryDelivered,
	}, nil)
	req.SetPathValue("id", msg.ID)
	w = httptest.NewRecorder()
	env.broadcast.UpdateDeliveryStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestPollHandler_PermissionMapping(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/polls", models.CreatePollRequest{
		RoomID:    roomID,
		CreatorID: "alice",
		Question:  "Pizza?",
		Options:   []string{"Yes", "No"},
	}, nil)
	w := httptest.NewRecorder()
	env.polls.CreatePoll(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var view models.PollView
	testutil.AssertJSON(t, w, &view)

	// Non-creator close: 403
	req = testutil.MakeRequest("POST", "/polls/"+view.Poll.ID+"/close", models.ClosePollRequest{UserID: "bob"}, nil)
	req.SetPathValue("id", view.Poll.ID)
	w = httptest.NewRecorder()
	env.polls.ClosePoll(w, req)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	// Too few options: 400
	req = testutil.MakeRequest("POST", "/polls", models.CreatePollRequest{
		RoomID:    roomID,
		CreatorID: "alice",
		Question:  "Pizza?",
		Options:   []string{"Yes"},
	}, nil)
	w = httptest.NewRecorder()
	env.polls.CreatePoll(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestPollHandler_PublishesEvents(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	ch := env.hub.Subscribe(roomID)
	defer env.hub.Unsubscribe(roomID, ch)

	req := testutil.MakeRequest("POST", "/polls", models.CreatePollRequest{
		RoomID:    roomID,
		CreatorID: "alice",
		Question:  "Pizza?",
		Options:   []string{"Yes", "No"},
	}, nil)
	w := httptest.NewRecorder()
	env.polls.CreatePoll(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	select {
	case ev := <-ch:
		if ev.Type != events.TypePollCreated {
			t.Errorf("expected poll.created event, got %s", ev.Type)
		}
	default:
		t.Error("expected an event on the room channel")
	}
}

func TestJoinCallHandler_PublishesToRoom(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice", Kind: models.CallKindVideo, RoomID: &roomID, InviteeIDs: []string{"bob"},
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)
	var created models.CallWithParticipants
	testutil.AssertJSON(t, w, &created)

	ch := env.hub.Subscribe(roomID)
	defer env.hub.Unsubscribe(roomID, ch)

	req = testutil.MakeRequest("POST", "/calls/"+created.Call.ID+"/join", models.CallParticipantRequest{
		UserID: "bob",
	}, nil)
	req.SetPathValue("id", created.Call.ID)
	w = httptest.NewRecorder()
	env.calls.JoinCall(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	select {
	case ev := <-ch:
		if ev.Type != events.TypeParticipantUpdated {
			t.Errorf("expected participant.updated event, got %s", ev.Type)
		}
		if ev.RoomID != roomID {
			t.Errorf("expected event for room %s, got %q", roomID, ev.RoomID)
		}
	default:
		t.Error("expected a join event on the room channel")
	}
}

func TestGetMissedCallCountHandler(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice", Kind: models.CallKindVoice, RoomID: &roomID, InviteeIDs: []string{"bob"},
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)
	var created models.CallWithParticipants
	testutil.AssertJSON(t, w, &created)

	req = testutil.MakeRequest("POST", "/calls/"+created.Call.ID+"/status", models.UpdateCallStatusRequest{
		Status: models.CallMissed,
	}, nil)
	req.SetPathValue("id", created.Call.ID)
	w = httptest.NewRecorder()
	env.calls.UpdateCallStatus(w, req)

	req = testutil.MakeRequest("GET", "/users/bob/missed-calls", nil, nil)
	req.SetPathValue("id", "bob")
	w = httptest.NewRecorder()
	env.calls.GetMissedCallCount(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var result map[string]int
	testutil.AssertJSON(t, w, &result)
	if result["missed"] != 1 {
		t.Errorf("expected 1 missed call, got %d", result["missed"])
	}
}
