package sweep

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

func setup(t *testing.T, nChildren int) (*Sweeper, *store.ChoreStore, *model.Family, *model.User, []model.User) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fs := store.NewFamilyStore(db)
	cs := store.NewChoreStore(db)

	fam, err := fs.Create("Testers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	parent, err := fs.AddMember(fam.ID, "Pat", model.RoleParent)
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	var children []model.User
	names := []string{"Ann", "Ben", "Cleo"}
	for i := 0; i < nChildren; i++ {
		c, err := fs.AddMember(fam.ID, names[i], model.RoleChild)
		if err != nil {
			t.Fatalf("add child: %v", err)
		}
		children = append(children, *c)
	}

	sw := New(cs, nil, slog.Default(), time.Minute)
	return sw, cs, fam, parent, children
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestSweepExpiredOfferReassigns(t *testing.T) {
	sw, cs, fam, parent, children := setup(t, 2)

	c, err := cs.Create(fam.ID, parent.ID, store.CreateChoreParams{
		Title:           "Dishes",
		RewardType:      chore.RewardMoney,
		Reward:          mustDecimal(t, "10"),
		AcceptanceTimer: 5,
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Before the deadline nothing happens.
	expired, penalized, err := sw.SweepOnce(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 0 || penalized != 0 {
		t.Errorf("early sweep acted: expired=%d penalized=%d", expired, penalized)
	}

	// Past the deadline the lapsed offer counts as a decline and moves on.
	expired, _, err = sw.SweepOnce(context.Background(), time.Now().UTC().Add(10*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.Status != chore.StatusPendingAcceptance {
		t.Errorf("status = %s, want pending_acceptance", got.Status)
	}
	if *got.CurrentAssignee != children[1].ID {
		t.Errorf("assignee = %d, want next child %d", *got.CurrentAssignee, children[1].ID)
	}
}

func TestSweepExhaustionAutoAccepts(t *testing.T) {
	sw, cs, fam, parent, children := setup(t, 1)

	c, err := cs.Create(fam.ID, parent.ID, store.CreateChoreParams{
		Title:            "Trash",
		RewardType:       chore.RewardMoney,
		Reward:           mustDecimal(t, "50"),
		AcceptanceTimer:  5,
		ReductionEnabled: true,
		ReductionAmount:  mustDecimal(t, "20"),
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	expired, _, err := sw.SweepOnce(context.Background(), time.Now().UTC().Add(10*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.Status != chore.StatusAutoAccepted {
		t.Errorf("status = %s, want auto_accepted", got.Status)
	}
	if *got.CurrentAssignee != children[0].ID {
		t.Errorf("assignee = %d, want %d", *got.CurrentAssignee, children[0].ID)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "30")) {
		t.Errorf("reward = %s, want 30 after decay", got.CurrentReward)
	}
}

func TestSweepChargesPenaltyOnce(t *testing.T) {
	sw, cs, fam, parent, children := setup(t, 1)

	c, err := cs.Create(fam.ID, parent.ID, store.CreateChoreParams{
		Title:                   "Lawn",
		RewardType:              chore.RewardMoney,
		Reward:                  mustDecimal(t, "20"),
		AcceptanceTimer:         5,
		CompletionTimerEnabled:  true,
		CompletionTimerDuration: 30,
		CompletionTimerPenalty:  mustDecimal(t, "5"),
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := cs.Assign(fam.ID, c.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := cs.Accept(fam.ID, c.ID, children[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	later := time.Now().UTC().Add(2 * time.Hour)
	_, penalized, err := sw.SweepOnce(context.Background(), later)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if penalized != 1 {
		t.Fatalf("penalized = %d, want 1", penalized)
	}

	got, err := cs.GetByID(fam.ID, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if !got.CurrentReward.Equal(mustDecimal(t, "15")) {
		t.Errorf("reward = %s, want 15 after penalty", got.CurrentReward)
	}

	// A second sweep finds nothing to charge.
	_, penalized, err = sw.SweepOnce(context.Background(), later)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if penalized != 0 {
		t.Errorf("second sweep penalized = %d, want 0", penalized)
	}
}
