package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/chorewheel/internal/model"
)

// runFullCycle pushes one chore through assign, accept, submit, approve.
func (e *testEnv) runFullCycle(t *testing.T, c model.Chore) {
	t.Helper()
	rec := e.do(t, e.chores.Assign, e.parent, nil, idParam(c))
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body)
	}
	assigned := decodeBody[model.Chore](t, rec)
	var assignee *model.User
	for i := range e.children {
		if e.children[i].ID == *assigned.CurrentAssignee {
			assignee = &e.children[i]
		}
	}
	if assignee == nil {
		t.Fatalf("assignee %d not among children", *assigned.CurrentAssignee)
	}

	if rec := e.do(t, e.chores.Accept, assignee, nil, idParam(c)); rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, e.chores.Submit, assignee, map[string]any{}, idParam(c))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	sub := decodeBody[model.Submission](t, rec)

	params := idParam(c)
	params["submission_id"] = fmt.Sprint(sub.ID)
	if rec := e.do(t, e.chores.Approve, e.parent, nil, params); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body)
	}
}

func TestMyChores(t *testing.T) {
	e := newTestEnv(t, 1)
	child := &e.children[0]

	c := e.createChore(t, map[string]any{"reward": "10"})
	e.do(t, e.chores.Assign, e.parent, nil, idParam(c))

	rec := e.do(t, e.users.MyChores, child, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my chores: %d %s", rec.Code, rec.Body)
	}
	mine := decodeBody[[]model.Chore](t, rec)
	if len(mine) != 1 || mine[0].ID != c.ID {
		t.Errorf("my chores = %v, want the one offered chore", mine)
	}

	// The parent holds no chores.
	rec = e.do(t, e.users.MyChores, e.parent, nil, nil)
	empty := decodeBody[[]model.Chore](t, rec)
	if len(empty) != 0 {
		t.Errorf("parent chores = %d, want 0", len(empty))
	}
}

func TestEarningsEndpoint(t *testing.T) {
	e := newTestEnv(t, 1)
	child := &e.children[0]

	c := e.createChore(t, map[string]any{"reward": "6.50"})
	e.runFullCycle(t, c)
	e.runFullCycle(t, c)

	rec := e.do(t, e.users.Earnings, child, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("earnings: %d %s", rec.Code, rec.Body)
	}
	body := decodeBody[struct {
		Summary model.EarningsSummary `json:"summary"`
		History []model.EarningsEntry `json:"history"`
	}](t, rec)

	if body.Summary.TasksCompleted != 2 {
		t.Errorf("tasks = %d, want 2", body.Summary.TasksCompleted)
	}
	if !body.Summary.Balance.Equal(decimal.NewFromInt(13)) {
		t.Errorf("balance = %s, want 13", body.Summary.Balance)
	}
	if len(body.History) != 2 {
		t.Errorf("history = %d entries, want 2", len(body.History))
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	e := newTestEnv(t, 2)

	c := e.createChore(t, map[string]any{"reward": "10"})
	e.runFullCycle(t, c)

	rec := e.do(t, e.users.Leaderboard, e.parent, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard: %d %s", rec.Code, rec.Body)
	}
	board := decodeBody[[]model.LeaderboardEntry](t, rec)
	if len(board) != 2 {
		t.Fatalf("board = %d entries, want 2", len(board))
	}
	if board[0].Rank != 1 || board[0].TasksCompleted != 1 {
		t.Errorf("rank 1 = %+v, want one completed task", board[0])
	}
}
