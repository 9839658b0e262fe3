package model

import (
	"time"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/shopspring/decimal"
)

type Chore struct {
	ID                      int64             `json:"id"`
	FamilyID                int64             `json:"family_id"`
	Title                   string            `json:"title"`
	Description             string            `json:"description"`
	RewardType              chore.RewardType  `json:"reward_type"`
	OriginalReward          decimal.Decimal   `json:"original_reward"`
	CurrentReward           decimal.Decimal   `json:"current_reward"`
	RequiresPhoto           bool              `json:"requires_photo"`
	Status                  chore.Status      `json:"status"`
	CurrentAssignee         *int64            `json:"current_assignee"`
	FirstAssigneeID         *int64            `json:"first_assignee_id"`
	AssignmentStartTime     *time.Time        `json:"assignment_start_time"`
	CompletionStartTime     *time.Time        `json:"completion_start_time"`
	AcceptanceTimer         int               `json:"acceptance_timer"`
	CompletionTimerEnabled  bool              `json:"completion_timer_enabled"`
	CompletionTimerDuration int               `json:"completion_timer_duration"`
	CompletionTimerPenalty  decimal.Decimal   `json:"completion_timer_penalty"`
	PenaltyApplied          bool              `json:"penalty_applied"`
	ReductionEnabled        bool              `json:"reduction_enabled"`
	ReductionAmount         decimal.Decimal   `json:"reduction_amount"`
	CreatedBy               int64             `json:"created_by"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// ChoreSummary is a Chore annotated with list-view extras.
type ChoreSummary struct {
	Chore
	CreatedByName   *string `json:"created_by_name"`
	AssigneeName    *string `json:"assignee_name"`
	SubmissionCount int     `json:"submission_count"`
	CompletionCount int     `json:"completion_count"`
}

type Assignment struct {
	ID          int64                  `json:"id"`
	ChoreID     int64                  `json:"chore_id"`
	UserID      int64                  `json:"user_id"`
	Status      chore.AssignmentStatus `json:"status"`
	AssignedAt  time.Time              `json:"assigned_at"`
	RespondedAt *time.Time             `json:"responded_at"`
	CompletedAt *time.Time             `json:"completed_at"`
}

type Submission struct {
	ID              int64                  `json:"id"`
	ChoreID         int64                  `json:"chore_id"`
	UserID          int64                  `json:"user_id"`
	AssignmentID    int64                  `json:"assignment_id"`
	PhotoURL        *string                `json:"photo_url"`
	Notes           string                 `json:"notes"`
	Status          chore.SubmissionStatus `json:"status"`
	SubmittedAt     time.Time              `json:"submitted_at"`
	ReviewedBy      *int64                 `json:"reviewed_by"`
	ReviewedAt      *time.Time             `json:"reviewed_at"`
	RejectionReason *string                `json:"rejection_reason"`
}

// CompletedTask is the append-only payout ledger. Rows are never updated
// or deleted; reward_earned is a copy of the chore's current reward at
// approval time.
type CompletedTask struct {
	ID           int64           `json:"id"`
	ChoreID      int64           `json:"chore_id"`
	UserID       int64           `json:"user_id"`
	AssignmentID int64           `json:"assignment_id"`
	SubmissionID int64           `json:"submission_id"`
	RewardEarned decimal.Decimal `json:"reward_earned"`
	ApprovedBy   int64           `json:"approved_by"`
	CompletedAt  time.Time       `json:"completed_at"`
}

type EarningsEntry struct {
	ID             int64           `json:"id"`
	ChoreTitle     string          `json:"chore_title"`
	RewardType     string          `json:"reward_type"`
	RewardEarned   decimal.Decimal `json:"reward_earned"`
	ApprovedByName *string         `json:"approved_by_name"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// EarningsSummary pairs the running balance on the user row with totals
// recomputed from the ledger.
type EarningsSummary struct {
	Balance        decimal.Decimal `json:"balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TasksCompleted int             `json:"tasks_completed"`
}

type LeaderboardEntry struct {
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TasksCompleted int             `json:"tasks_completed"`
	Rank           int             `json:"rank"`
}
