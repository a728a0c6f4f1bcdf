// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/famlink-chat/models"
	"github.com/danielhkuo/famlink-chat/rooms"
	"github.com/danielhkuo/famlink-chat/testutil"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	roomService := rooms.NewService(db)
	roomID := testutil.CreateTestRoom(t, db, "alice")
	testutil.AddTestMember(t, db, roomID, "bob")
	testutil.AddTestMember(t, db, roomID, "carol")
	return NewEngine(db, roomService), roomID
}

func basicPoll(roomID, kind string) models.CreatePollRequest {
	return models.CreatePollRequest{
		RoomID:    roomID,
		CreatorID: "alice",
		Question:  "Pizza or tacos?",
		Options:   []string{"Pizza", "Tacos"},
		Kind:      kind,
	}
}

func TestCreatePoll(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, err := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	if err != nil {
		t.Fatal(err)
	}

	if view.Poll.Question != "Pizza or tacos?" {
		t.Errorf("unexpected question: %s", view.Poll.Question)
	}
	if len(view.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(view.Options))
	}
	if view.Options[0].Text != "Pizza" || view.Options[1].Text != "Tacos" {
		t.Errorf("options out of order: %+v", view.Options)
	}
	if view.Options[0].DisplayOrder != 0 || view.Options[1].DisplayOrder != 1 {
		t.Errorf("display order should follow input order: %+v", view.Options)
	}
	if view.TotalVotes != 0 {
		t.Errorf("new poll should have no votes, got %d", view.TotalVotes)
	}
}

func TestCreatePoll_UnknownRoom(t *testing.T) {
	engine, _ := newTestEngine(t)

	req := basicPoll("no-such-room", models.PollSingle)
	if _, err := engine.CreatePoll(req); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePoll_QuizNeedsCorrectOption(t *testing.T) {
	engine, roomID := newTestEngine(t)

	req := basicPoll(roomID, models.PollQuiz)
	if _, err := engine.CreatePoll(req); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("quiz without correct option should fail, got %v", err)
	}

	outOfRange := 5
	req.CorrectOptionIndex = &outOfRange
	if _, err := engine.CreatePoll(req); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("out-of-range correct option should fail, got %v", err)
	}

	idx := 1
	req.CorrectOptionIndex = &idx
	view, err := engine.CreatePoll(req)
	if err != nil {
		t.Fatal(err)
	}
	if view.Poll.CorrectOptionID == nil || *view.Poll.CorrectOptionID != view.Options[1].ID {
		t.Errorf("correct option should reference the second option, got %v", view.Poll.CorrectOptionID)
	}
}

func TestVote_SingleChoiceRevote(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	pizza, tacos := view.Options[0].ID, view.Options[1].ID

	after, err := engine.Vote(view.Poll.ID, "bob", []string{pizza})
	if err != nil {
		t.Fatal(err)
	}
	if after.Options[0].VoteCount != 1 || after.TotalVotes != 1 {
		t.Errorf("expected 1 vote on pizza, got %+v", after.Options)
	}

	// Changing the vote moves it, never doubles it
	after, err = engine.Vote(view.Poll.ID, "bob", []string{tacos})
	if err != nil {
		t.Fatal(err)
	}
	if after.Options[0].VoteCount != 0 || after.Options[1].VoteCount != 1 {
		t.Errorf("revote should move the vote, got %+v", after.Options)
	}
	if after.TotalVotes != 1 {
		t.Errorf("total should stay 1 after revote, got %d", after.TotalVotes)
	}
	if len(after.ViewerVotes) != 1 || after.ViewerVotes[0] != tacos {
		t.Errorf("viewer votes should show tacos, got %v", after.ViewerVotes)
	}
}

func TestVote_SingleChoiceRejectsMultipleOptions(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	ids := []string{view.Options[0].ID, view.Options[1].ID}

	if _, err := engine.Vote(view.Poll.ID, "bob", ids); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("single poll must reject multi-option votes, got %v", err)
	}
}

func TestVote_MultipleChoice(t *testing.T) {
	engine, roomID := newTestEngine(t)

	req := basicPoll(roomID, models.PollMultiple)
	req.Options = []string{"Mon", "Tue", "Wed"}
	view, _ := engine.CreatePoll(req)

	after, err := engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID, view.Options[2].ID})
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalVotes != 2 {
		t.Errorf("expected 2 votes, got %d", after.TotalVotes)
	}

	// Voting the same option again is idempotent and additive votes survive
	after, err = engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalVotes != 2 {
		t.Errorf("duplicate multi vote should be idempotent, got %d total", after.TotalVotes)
	}
}

func TestVote_UnknownOption(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	if _, err := engine.Vote(view.Poll.ID, "bob", []string{"bogus"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVote_ClosedPoll(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	if _, err := engine.ClosePoll(view.Poll.ID, "alice"); err != nil {
		t.Fatal(err)
	}

	_, err := engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on closed poll, got %v", err)
	}
}

func TestVote_PastDeadline(t *testing.T) {
	engine, roomID := newTestEngine(t)

	req := basicPoll(roomID, models.PollSingle)
	past := time.Now().Add(-time.Minute)
	req.ClosesAt = &past
	view, _ := engine.CreatePoll(req)

	_, err := engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState past deadline, got %v", err)
	}
}

func TestRetractVote(t *testing.T) {
	engine, roomID := newTestEngine(t)

	req := basicPoll(roomID, models.PollMultiple)
	req.Options = []string{"Mon", "Tue", "Wed"}
	view, _ := engine.CreatePoll(req)

	engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID, view.Options[1].ID})

	// Retract one option
	after, err := engine.RetractVote(view.Poll.ID, "bob", &view.Options[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalVotes != 1 {
		t.Errorf("expected 1 vote after single retract, got %d", after.TotalVotes)
	}

	// Retract everything
	after, err = engine.RetractVote(view.Poll.ID, "bob", nil)
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalVotes != 0 {
		t.Errorf("expected 0 votes after full retract, got %d", after.TotalVotes)
	}
}

func TestRetractVote_ClosedPoll(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	engine.Vote(view.Poll.ID, "bob", []string{view.Options[0].ID})
	engine.ClosePoll(view.Poll.ID, "alice")

	if _, err := engine.RetractVote(view.Poll.ID, "bob", nil); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestAddOption_Permissions(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))

	// Creator may always add
	opt, err := engine.AddOption(view.Poll.ID, "alice", "Sushi")
	if err != nil {
		t.Fatal(err)
	}
	if opt.DisplayOrder != 2 {
		t.Errorf("new option should append, got order %d", opt.DisplayOrder)
	}

	// Others may not unless the poll allows it
	if _, err := engine.AddOption(view.Poll.ID, "bob", "Salad"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}

	open := basicPoll(roomID, models.PollSingle)
	open.AllowAddOptions = true
	openView, _ := engine.CreatePoll(open)
	if _, err := engine.AddOption(openView.Poll.ID, "bob", "Salad"); err != nil {
		t.Errorf("allow_add_options poll should accept bob's option, got %v", err)
	}
}

func TestAddOption_ClosedPoll(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	engine.ClosePoll(view.Poll.ID, "alice")

	if _, err := engine.AddOption(view.Poll.ID, "alice", "Late"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestClosePoll(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))

	if _, err := engine.ClosePoll(view.Poll.ID, "bob"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Errorf("only the creator may close, got %v", err)
	}

	after, err := engine.ClosePoll(view.Poll.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !after.Poll.Closed {
		t.Error("poll should be closed")
	}

	// Closing again is an idempotent success
	if _, err := engine.ClosePoll(view.Poll.ID, "alice"); err != nil {
		t.Errorf("re-close should succeed, got %v", err)
	}
}

func TestGetPoll_Anonymity(t *testing.T) {
	engine, roomID := newTestEngine(t)

	// Named poll exposes voter display names
	named, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	engine.Vote(named.Poll.ID, "bob", []string{named.Options[0].ID})

	view, _ := engine.GetPoll(named.Poll.ID, nil)
	if len(view.Options[0].Voters) != 1 || view.Options[0].Voters[0] != "bob" {
		t.Errorf("expected voter bob listed, got %v", view.Options[0].Voters)
	}

	// Anonymous poll hides voters but still counts them
	req := basicPoll(roomID, models.PollSingle)
	req.Anonymous = true
	anon, _ := engine.CreatePoll(req)
	engine.Vote(anon.Poll.ID, "bob", []string{anon.Options[0].ID})

	view, _ = engine.GetPoll(anon.Poll.ID, nil)
	if len(view.Options[0].Voters) != 0 {
		t.Errorf("anonymous poll must not expose voters, got %v", view.Options[0].Voters)
	}
	if view.Options[0].VoteCount != 1 {
		t.Errorf("anonymous poll should still count votes, got %d", view.Options[0].VoteCount)
	}

	// The viewer still sees their own vote
	view, _ = engine.GetPoll(anon.Poll.ID, strptr("bob"))
	if len(view.ViewerVotes) != 1 {
		t.Errorf("viewer should see own vote on anonymous poll, got %v", view.ViewerVotes)
	}
}

func TestVote_ConcurrentSingleChoice(t *testing.T) {
	engine, roomID := newTestEngine(t)

	view, _ := engine.CreatePoll(basicPoll(roomID, models.PollSingle))
	pizza, tacos := view.Options[0].ID, view.Options[1].ID

	// The same user flips between the two options concurrently. Whatever
	// wins, the user must end with exactly one vote.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		option := pizza
		if i%2 == 1 {
			option = tacos
		}
		go func(opt string) {
			defer wg.Done()
			if _, err := engine.Vote(view.Poll.ID, "bob", []string{opt}); err != nil {
				t.Errorf("vote: %v", err)
			}
		}(option)
	}
	wg.Wait()

	after, err := engine.GetPoll(view.Poll.ID, strptr("bob"))
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalVotes != 1 {
		t.Errorf("single-choice poll must hold exactly 1 vote for bob, got %d", after.TotalVotes)
	}
	if len(after.ViewerVotes) != 1 {
		t.Errorf("expected exactly 1 viewer vote, got %v", after.ViewerVotes)
	}
}

func strptr(s string) *string { return &s }
