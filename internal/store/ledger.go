package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/shopspring/decimal"
)

// LedgerStore reads the completed_tasks payout ledger. It never writes:
// rows are appended by ChoreStore.Approve and are immutable after that.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// ListCompletedByUser returns the user's payout history, newest first.
func (s *LedgerStore) ListCompletedByUser(userID int64, limit, offset int) ([]model.EarningsEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT ct.id, c.title, c.reward_type, ct.reward_earned, p.name, ct.completed_at
		 FROM completed_tasks ct
		 JOIN chores c ON ct.chore_id = c.id
		 LEFT JOIN users p ON ct.approved_by = p.id
		 WHERE ct.user_id = ?
		 ORDER BY ct.completed_at DESC, ct.id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	defer rows.Close()

	var entries []model.EarningsEntry
	for rows.Next() {
		var e model.EarningsEntry
		var approver sql.NullString
		if err := rows.Scan(&e.ID, &e.ChoreTitle, &e.RewardType, &e.RewardEarned, &approver, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan earnings entry: %w", err)
		}
		if approver.Valid {
			e.ApprovedByName = &approver.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EarningsSummary totals the user's ledger and pairs it with the running
// balance kept on the user row. The two agree by construction since
// Approve writes both in one transaction.
func (s *LedgerStore) EarningsSummary(userID int64) (*model.EarningsSummary, error) {
	var sum model.EarningsSummary

	err := s.db.QueryRow(`SELECT earnings FROM users WHERE id = ?`, userID).Scan(&sum.Balance)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	rows, err := s.db.Query(`SELECT reward_earned FROM completed_tasks WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	count := 0
	for rows.Next() {
		var earned decimal.Decimal
		if err := rows.Scan(&earned); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		total = total.Add(earned)
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sum.TotalEarned = total
	sum.TasksCompleted = count
	return &sum, nil
}

// Leaderboard ranks a family's active children by total earned, ties
// broken by task count then name. Rewards are stored as decimal text, so
// the summing happens here rather than in SQL.
func (s *LedgerStore) Leaderboard(familyID int64) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.name, ct.reward_earned
		 FROM users u
		 LEFT JOIN completed_tasks ct ON ct.user_id = u.id
		 WHERE u.family_id = ? AND u.role = 'child' AND u.is_active = 1`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	byUser := make(map[int64]*model.LeaderboardEntry)
	var order []int64
	for rows.Next() {
		var (
			id     int64
			name   string
			earned sql.NullString
		)
		if err := rows.Scan(&id, &name, &earned); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entry, ok := byUser[id]
		if !ok {
			entry = &model.LeaderboardEntry{UserID: id, Name: name, TotalEarned: decimal.Zero}
			byUser[id] = entry
			order = append(order, id)
		}
		if earned.Valid {
			amount, err := decimal.NewFromString(earned.String)
			if err != nil {
				return nil, fmt.Errorf("parse reward %q: %w", earned.String, err)
			}
			entry.TotalEarned = entry.TotalEarned.Add(amount)
			entry.TasksCompleted++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byUser[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].TotalEarned.Cmp(entries[j].TotalEarned); c != 0 {
			return c > 0
		}
		if entries[i].TasksCompleted != entries[j].TasksCompleted {
			return entries[i].TasksCompleted > entries[j].TasksCompleted
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
