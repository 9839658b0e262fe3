package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/chore"
)

func TestAssignRotatesThroughChildren(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 3)
	cs := NewChoreStore(db)

	// Three fresh chores get offered to the three children in id order.
	for i := 0; i < 3; i++ {
		c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
			Title:  "Chore",
			Reward: mustDecimal(t, "10"),
		})
		got, err := cs.Assign(fam.ID, c.ID)
		if err != nil {
			t.Fatalf("assign #%d: %v", i, err)
		}
		if got.Status != chore.StatusPendingAcceptance {
			t.Errorf("assign #%d: status = %s, want pending_acceptance", i, got.Status)
		}
		if got.CurrentAssignee == nil || *got.CurrentAssignee != children[i].ID {
			t.Errorf("assign #%d: assignee = %v, want %d", i, got.CurrentAssignee, children[i].ID)
		}
		if got.FirstAssigneeID == nil || *got.FirstAssigneeID != children[i].ID {
			t.Errorf("assign #%d: first assignee = %v, want %d", i, got.FirstAssigneeID, children[i].ID)
		}
		if got.AssignmentStartTime == nil {
			t.Errorf("assign #%d: assignment_start_time not set", i)
		}
	}

	// Fourth assignment wraps back to the first child.
	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Title: "Wrap", Reward: mustDecimal(t, "5")})
	got, err := cs.Assign(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("assign wrap: %v", err)
	}
	if *got.CurrentAssignee != children[0].ID {
		t.Errorf("wrap assignee = %d, want %d", *got.CurrentAssignee, children[0].ID)
	}
}

func TestAssignPreconditions(t *testing.T) {
	db := newTestDB(t)
	fam, parent, _ := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "10")})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := cs.Assign(fam.ID, c.ID); !errors.Is(err, chore.ErrPreconditionFailed) {
		t.Errorf("assign non-available chore: err = %v, want ErrPreconditionFailed", err)
	}

	if _, err := cs.Assign(fam.ID, 9999); !errors.Is(err, chore.ErrNotFound) {
		t.Errorf("assign missing chore: err = %v, want ErrNotFound", err)
	}

	// A second family cannot see the first family's chore.
	fam2, _, _ := seedFamily(t, db, 1)
	if _, err := cs.Assign(fam2.ID, c.ID); !errors.Is(err, chore.ErrNotFound) {
		t.Errorf("cross-family assign: err = %v, want ErrNotFound", err)
	}
}

func TestAssignNoChildren(t *testing.T) {
	db := newTestDB(t)
	fam, parent, _ := seedFamily(t, db, 0)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "10")})
	if _, err := cs.Assign(fam.ID, c.ID); !errors.Is(err, chore.ErrNoEligibleAssignee) {
		t.Errorf("err = %v, want ErrNoEligibleAssignee", err)
	}
}

func TestAcceptOpensCompletionWindow(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	timed := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Title:                   "Timed",
		Reward:                  mustDecimal(t, "10"),
		CompletionTimerEnabled:  true,
		CompletionTimerDuration: 60,
		CompletionTimerPenalty:  mustDecimal(t, "2"),
	})
	if _, err := cs.Assign(fam.ID, timed.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := cs.Accept(fam.ID, timed.ID, children[0].ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != chore.StatusAssigned {
		t.Errorf("status = %s, want assigned", got.Status)
	}
	if got.AssignmentStartTime != nil {
		t.Error("assignment_start_time should clear on accept")
	}
	if got.CompletionStartTime == nil {
		t.Error("completion_start_time should open when the timer is enabled")
	}

	untimed := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Title: "Untimed", Reward: mustDecimal(t, "10")})
	if _, err := cs.Assign(fam.ID, untimed.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err = cs.Accept(fam.ID, untimed.ID, children[0].ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.CompletionStartTime != nil {
		t.Error("completion_start_time should stay empty without a timer")
	}
}

func TestAcceptWrongUser(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 2)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "10")})
	got, err := cs.Assign(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	other := children[0].ID
	if *got.CurrentAssignee == other {
		other = children[1].ID
	}
	if _, err := cs.Accept(fam.ID, c.ID, other); !errors.Is(err, chore.ErrNotFound) {
		t.Errorf("accept by non-assignee: err = %v, want ErrNotFound", err)
	}
}

func TestDeclineCascade(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 3)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Title:            "Trash",
		Reward:           mustDecimal(t, "50"),
		ReductionEnabled: true,
		ReductionAmount:  mustDecimal(t, "20"),
	})
	got, err := cs.Assign(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	first := *got.CurrentAssignee
	if first != children[0].ID {
		t.Fatalf("first offer to %d, want %d", first, children[0].ID)
	}

	// First decline re-offers to the next unoffered child; reward intact.
	got, err = cs.Decline(fam.ID, c.ID, children[0].ID)
	if err != nil {
		t.Fatalf("decline 1: %v", err)
	}
	if got.Status != chore.StatusPendingAcceptance {
		t.Errorf("after decline 1: status = %s, want pending_acceptance", got.Status)
	}
	if *got.CurrentAssignee != children[1].ID {
		t.Errorf("after decline 1: assignee = %d, want %d", *got.CurrentAssignee, children[1].ID)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "50")) {
		t.Errorf("after decline 1: reward = %s, want 50", got.CurrentReward)
	}

	got, err = cs.Decline(fam.ID, c.ID, children[1].ID)
	if err != nil {
		t.Fatalf("decline 2: %v", err)
	}
	if *got.CurrentAssignee != children[2].ID {
		t.Errorf("after decline 2: assignee = %d, want %d", *got.CurrentAssignee, children[2].ID)
	}

	// Third decline exhausts the cycle: back to the first offeree,
	// auto-accepted, reward decayed 50 - 20 = 30.
	got, err = cs.Decline(fam.ID, c.ID, children[2].ID)
	if err != nil {
		t.Fatalf("decline 3: %v", err)
	}
	if got.Status != chore.StatusAutoAccepted {
		t.Errorf("after exhaustion: status = %s, want auto_accepted", got.Status)
	}
	if *got.CurrentAssignee != first {
		t.Errorf("after exhaustion: assignee = %d, want first offeree %d", *got.CurrentAssignee, first)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "30")) {
		t.Errorf("after exhaustion: reward = %s, want 30", got.CurrentReward)
	}
}

func TestDeclineRewardFloor(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	// One child: a single decline exhausts the cycle immediately. The
	// reduction would take 49.99 below 10% of the original; the floor
	// holds at ceil(49.99 * 0.1) = 5.
	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Reward:           mustDecimal(t, "49.99"),
		ReductionEnabled: true,
		ReductionAmount:  mustDecimal(t, "48"),
	})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := cs.Decline(fam.ID, c.ID, children[0].ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.Status != chore.StatusAutoAccepted {
		t.Fatalf("status = %s, want auto_accepted", got.Status)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "5")) {
		t.Errorf("reward = %s, want floor 5", got.CurrentReward)
	}
}

func TestSubmitRequiresPhoto(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Reward:        mustDecimal(t, "10"),
		RequiresPhoto: true,
	})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	var verr *chore.ValidationError
	_, err := cs.Submit(fam.ID, c.ID, children[0].ID, "done", nil)
	if !errors.As(err, &verr) {
		t.Fatalf("submit without photo: err = %v, want ValidationError", err)
	}

	photo := "https://photos.example/1.jpg"
	sub, err := cs.Submit(fam.ID, c.ID, children[0].ID, "done", &photo)
	if err != nil {
		t.Fatalf("submit with photo: %v", err)
	}
	if sub.Status != chore.SubmissionPending {
		t.Errorf("submission status = %s, want pending", sub.Status)
	}
	if sub.PhotoURL == nil || *sub.PhotoURL != photo {
		t.Errorf("photo url = %v, want %s", sub.PhotoURL, photo)
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.Status != chore.StatusPendingApproval {
		t.Errorf("chore status = %s, want pending_approval", got.Status)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "10")})

	// Not yet assigned.
	if _, err := cs.Submit(fam.ID, c.ID, children[0].ID, "", nil); !errors.Is(err, chore.ErrPreconditionFailed) {
		t.Errorf("submit available chore: err = %v, want ErrPreconditionFailed", err)
	}

	// Offered but not accepted.
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Submit(fam.ID, c.ID, children[0].ID, "", nil); !errors.Is(err, chore.ErrPreconditionFailed) {
		t.Errorf("submit unaccepted chore: err = %v, want ErrPreconditionFailed", err)
	}
}

func TestApproveCreditsAndResets(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)
	fs := NewFamilyStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "12.50")})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	sub, err := cs.Submit(fam.ID, c.ID, children[0].ID, "all clean", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task, err := cs.Approve(fam.ID, c.ID, sub.ID, parent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !task.RewardEarned.Equal(mustDecimal(t, "12.50")) {
		t.Errorf("reward earned = %s, want 12.50", task.RewardEarned)
	}
	if task.UserID != children[0].ID || task.ApprovedBy != parent.ID {
		t.Errorf("ledger row user=%d approver=%d, want %d/%d", task.UserID, task.ApprovedBy, children[0].ID, parent.ID)
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.Status != chore.StatusAvailable {
		t.Errorf("chore status = %s, want available", got.Status)
	}
	if got.CurrentAssignee != nil || got.FirstAssigneeID != nil {
		t.Error("assignee fields should clear on approval")
	}

	u, err := fs.GetUser(children[0].ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.Earnings.Equal(mustDecimal(t, "12.50")) {
		t.Errorf("earnings = %s, want 12.50", u.Earnings)
	}

	// A second approval of the same submission fails and leaves exactly
	// one ledger row.
	if _, err := cs.Approve(fam.ID, c.ID, sub.ID, parent.ID); !errors.Is(err, chore.ErrPreconditionFailed) {
		t.Errorf("double approve: err = %v, want ErrPreconditionFailed", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM completed_tasks WHERE submission_id = ?`, sub.ID).Scan(&n); err != nil {
		t.Fatalf("count ledger rows: %v", err)
	}
	if n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}
}

func TestRejectReturnsChoreToAssignee(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{Reward: mustDecimal(t, "10")})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	sub, err := cs.Submit(fam.ID, c.ID, children[0].ID, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var verr *chore.ValidationError
	if _, err := cs.Reject(fam.ID, c.ID, sub.ID, parent.ID, ""); !errors.As(err, &verr) {
		t.Errorf("reject without reason: err = %v, want ValidationError", err)
	}

	rejected, err := cs.Reject(fam.ID, c.ID, sub.ID, parent.ID, "still dirty")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != chore.SubmissionRejected {
		t.Errorf("submission status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "still dirty" {
		t.Errorf("rejection reason = %v, want %q", rejected.RejectionReason, "still dirty")
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.Status != chore.StatusAssigned {
		t.Errorf("chore status = %s, want assigned", got.Status)
	}
	if *got.CurrentAssignee != children[0].ID {
		t.Error("assignee should survive a rejection")
	}

	// The child can resubmit after fixing the work.
	if _, err := cs.Submit(fam.ID, c.ID, children[0].ID, "fixed", nil); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestApplyCompletionPenalty(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Reward:                  mustDecimal(t, "20"),
		CompletionTimerEnabled:  true,
		CompletionTimerDuration: 30,
		CompletionTimerPenalty:  mustDecimal(t, "25"),
	})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Penalty 25 would go below the floor ceil(20 * 0.1) = 2.
	got, err := cs.ApplyCompletionPenalty(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("apply penalty: %v", err)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "2")) {
		t.Errorf("reward = %s, want floor 2", got.CurrentReward)
	}
	if !got.PenaltyApplied {
		t.Error("penalty_applied should be set")
	}

	// Charged at most once per offer.
	if _, err := cs.ApplyCompletionPenalty(fam.ID, c.ID); !errors.Is(err, chore.ErrPreconditionFailed) {
		t.Errorf("second penalty: err = %v, want ErrPreconditionFailed", err)
	}
}

func TestListAcceptanceExpired(t *testing.T) {
	db := newTestDB(t)
	fam, parent, _ := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Reward:          mustDecimal(t, "10"),
		AcceptanceTimer: 5,
	})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	fresh, err := cs.ListAcceptanceExpired(time.Now().UTC())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("fresh offer reported expired: %d chores", len(fresh))
	}

	later := time.Now().UTC().Add(10 * time.Minute)
	expired, err := cs.ListAcceptanceExpired(later)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != c.ID {
		t.Errorf("expired = %v, want the one offered chore", expired)
	}
}

func TestListCompletionOverdue(t *testing.T) {
	db := newTestDB(t)
	fam, parent, children := seedFamily(t, db, 1)
	cs := NewChoreStore(db)

	c := seedChore(t, db, fam.ID, parent.ID, CreateChoreParams{
		Reward:                  mustDecimal(t, "10"),
		CompletionTimerEnabled:  true,
		CompletionTimerDuration: 60,
		CompletionTimerPenalty:  mustDecimal(t, "1"),
	})
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	overdue, err := cs.ListCompletionOverdue(time.Now().UTC().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != c.ID {
		t.Fatalf("overdue = %v, want the one accepted chore", overdue)
	}

	// Once the penalty is charged the chore drops out of the sweep.
	if _, err := cs.ApplyCompletionPenalty(fam.ID, c.ID); err != nil {
		t.Fatalf("apply penalty: %v", err)
	}
	overdue, err = cs.ListCompletionOverdue(time.Now().UTC().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("penalized chore still reported overdue")
	}
}
