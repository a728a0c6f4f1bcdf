// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/testutil"
)

// TestConcurrentVotes verifies that simultaneous votes from different users
// are all recorded without corruption.
func TestConcurrentVotes(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	req := testutil.MakeRequest("POST", "/polls", models.CreatePollRequest{
		RoomID:    roomID,
		CreatorID: "alice",
		Question:  "Movie night?",
		Options:   []string{"Friday", "Saturday"},
	}, nil)
	w := httptest.NewRecorder()
	env.polls.CreatePoll(w, req)
	var view models.PollView
	testutil.AssertJSON(t, w, &view)

	numVoters := 10
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			option := view.Options[voterIdx%2].ID
			voteReq := testutil.MakeRequest("POST", "/polls/"+view.Poll.ID+"/votes", models.VoteRequest{
				UserID:    fmt.Sprintf("voter%d", voterIdx),
				OptionIDs: []string{option},
			}, nil)
			voteReq.SetPathValue("id", view.Poll.ID)
			rec := httptest.NewRecorder()

			env.polls.Vote(rec, voteReq)

			if rec.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	// Verify the database holds exactly one vote per voter
	var voteCount int
	err := env.db.QueryRow("SELECT COUNT(*) FROM poll_vote WHERE poll_id = $1", view.Poll.ID).Scan(&voteCount)
	if err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if voteCount != numVoters {
		t.Errorf("Expected %d votes in database, got %d", numVoters, voteCount)
	}
}

// TestConcurrentLeaves verifies that when every participant leaves at once,
// the call ends exactly once with the all_left reason.
func TestConcurrentLeaves(t *testing.T) {
	env := setupEnv(t)
	roomID := testutil.CreateTestRoom(t, env.db, "alice")

	users := []string{"alice", "bob", "carol", "dave"}
	req := testutil.MakeRequest("POST", "/calls", models.InitiateCallRequest{
		InitiatorID: "alice",
		Kind:        models.CallKindVoice,
		RoomID:      &roomID,
		InviteeIDs:  users[1:],
	}, nil)
	w := httptest.NewRecorder()
	env.calls.InitiateCall(w, req)
	var created models.CallWithParticipants
	testutil.AssertJSON(t, w, &created)
	callID := created.Call.ID

	for _, u := range users[1:] {
		joinReq := testutil.MakeRequest("POST", "/calls/"+callID+"/join", models.CallParticipantRequest{UserID: u}, nil)
		joinReq.SetPathValue("id", callID)
		rec := httptest.NewRecorder()
		env.calls.JoinCall(rec, joinReq)
		testutil.AssertStatus(t, rec, http.StatusOK)
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			leaveReq := testutil.MakeRequest("POST", "/calls/"+callID+"/leave", models.CallParticipantRequest{UserID: user}, nil)
			leaveReq.SetPathValue("id", callID)
			rec := httptest.NewRecorder()
			env.calls.LeaveCall(rec, leaveReq)
			if rec.Code != http.StatusOK {
				t.Errorf("leave %s: status %d body %s", user, rec.Code, rec.Body.String())
			}
		}(u)
	}
	wg.Wait()

	getReq := testutil.MakeRequest("GET", "/calls/"+callID, nil, nil)
	getReq.SetPathValue("id", callID)
	w = httptest.NewRecorder()
	env.calls.GetCall(w, getReq)
	var after models.CallWithParticipants
	testutil.AssertJSON(t, w, &after)

	if after.Call.Status != models.CallEnded {
		t.Errorf("Expected ended call, got %s", after.Call.Status)
	}
	if after.Call.EndReason == nil || *after.Call.EndReason != models.EndReasonAllLeft {
		t.Errorf("Expected all_left reason, got %v", after.Call.EndReason)
	}
}

// TestConcurrentRecipientAdds verifies duplicate adds across goroutines
// produce exactly one membership row.
func TestConcurrentRecipientAdds(t *testing.T) {
	env := setupEnv(t)

	req := testutil.MakeRequest("POST", "/broadcast-lists", models.CreateListRequest{
		OwnerID: "alice", Name: "Family",
	}, nil)
	w := httptest.NewRecorder()
	env.broadcast.CreateList(w, req)
	var list models.BroadcastList
	testutil.AssertJSON(t, w, &list)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addReq := testutil.MakeRequest("POST", "/broadcast-lists/"+list.ID+"/recipients", models.AddRecipientsRequest{
				UserIDs: []string{"bob"},
			}, nil)
			addReq.SetPathValue("id", list.ID)
			rec := httptest.NewRecorder()
			env.broadcast.AddRecipients(rec, addReq)
			if rec.Code != http.StatusOK {
				t.Errorf("add recipients: status %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	var count int
	err := env.db.QueryRow("SELECT COUNT(*) FROM broadcast_recipient WHERE list_id = $1", list.ID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count recipients: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 recipient row, got %d", count)
	}
}
