package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family with one parent and n children, returning
// them in creation order so children[0] has the lowest id.
func seedFamily(t *testing.T, db *sql.DB, nChildren int) (*model.Family, *model.User, []model.User) {
	t.Helper()
	fs := NewFamilyStore(db)

	fam, err := fs.Create("Testers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	parent, err := fs.AddMember(fam.ID, "Pat", model.RoleParent)
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	names := []string{"Ann", "Ben", "Cleo", "Dev", "Eli"}
	var children []model.User
	for i := 0; i < nChildren; i++ {
		c, err := fs.AddMember(fam.ID, names[i%len(names)], model.RoleChild)
		if err != nil {
			t.Fatalf("add child: %v", err)
		}
		children = append(children, *c)
	}
	return fam, parent, children
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func seedChore(t *testing.T, db *sql.DB, familyID, createdBy int64, p CreateChoreParams) *model.Chore {
	t.Helper()
	if p.Title == "" {
		p.Title = "Dishes"
	}
	if p.RewardType == "" {
		p.RewardType = chore.RewardMoney
	}
	if p.AcceptanceTimer == 0 {
		p.AcceptanceTimer = 5
	}
	c, err := NewChoreStore(db).Create(familyID, createdBy, p)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return c
}
