package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/shopspring/decimal"
)

// ChoreStore owns all chore, assignment, and submission persistence,
// including the lifecycle transitions in lifecycle.go. It is the only
// component that mutates chore status, assignee, reward, and timer fields.
type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

const choreCols = `id, family_id, title, description, reward_type, original_reward, current_reward,
	requires_photo, status, current_assignee, first_assignee_id,
	assignment_start_time, completion_start_time,
	acceptance_timer, completion_timer_enabled, completion_timer_duration, completion_timer_penalty,
	penalty_applied, reduction_enabled, reduction_amount, created_by, created_at, updated_at`

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var status, rewardType string
	var assignee, firstAssignee sql.NullInt64
	var assignStart, completionStart sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.FamilyID, &c.Title, &c.Description, &rewardType, &c.OriginalReward, &c.CurrentReward,
		&c.RequiresPhoto, &status, &assignee, &firstAssignee,
		&assignStart, &completionStart,
		&c.AcceptanceTimer, &c.CompletionTimerEnabled, &c.CompletionTimerDuration, &c.CompletionTimerPenalty,
		&c.PenaltyApplied, &c.ReductionEnabled, &c.ReductionAmount, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status, err = chore.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	c.RewardType, err = chore.ParseRewardType(rewardType)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		c.CurrentAssignee = &assignee.Int64
	}
	if firstAssignee.Valid {
		c.FirstAssigneeID = &firstAssignee.Int64
	}
	if assignStart.Valid {
		c.AssignmentStartTime = &assignStart.Time
	}
	if completionStart.Valid {
		c.CompletionStartTime = &completionStart.Time
	}
	return &c, nil
}

// CreateChoreParams carries the parent-supplied chore definition. Both
// reward copies are seeded from Reward; current_reward resets to the
// original at every fresh assignment.
type CreateChoreParams struct {
	Title                   string
	Description             string
	RewardType              chore.RewardType
	Reward                  decimal.Decimal
	RequiresPhoto           bool
	AcceptanceTimer         int
	CompletionTimerEnabled  bool
	CompletionTimerDuration int
	CompletionTimerPenalty  decimal.Decimal
	ReductionEnabled        bool
	ReductionAmount         decimal.Decimal
}

func (s *ChoreStore) Create(familyID, createdBy int64, p CreateChoreParams) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (
			family_id, title, description, reward_type, original_reward, current_reward,
			requires_photo, acceptance_timer,
			completion_timer_enabled, completion_timer_duration, completion_timer_penalty,
			reduction_enabled, reduction_amount, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		familyID, p.Title, p.Description, string(p.RewardType), p.Reward, p.Reward,
		p.RequiresPhoto, p.AcceptanceTimer,
		p.CompletionTimerEnabled, p.CompletionTimerDuration, p.CompletionTimerPenalty,
		p.ReductionEnabled, p.ReductionAmount, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(familyID, id)
}

// GetByID is family-scoped: a chore outside the caller's family reads as
// absent.
func (s *ChoreStore) GetByID(familyID, id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ? AND family_id = ?`, id, familyID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListFilter narrows List. Nil fields match everything.
type ListFilter struct {
	Status   *chore.Status
	Assignee *int64
}

func (s *ChoreStore) List(familyID int64, filter ListFilter) ([]model.ChoreSummary, error) {
	query := `SELECT ` + prefixCols("c", choreCols) + `,
		u1.name, u2.name,
		(SELECT COUNT(*) FROM chore_submissions cs WHERE cs.chore_id = c.id),
		(SELECT COUNT(*) FROM completed_tasks ct WHERE ct.chore_id = c.id)
	 FROM chores c
	 LEFT JOIN users u1 ON c.created_by = u1.id
	 LEFT JOIN users u2 ON c.current_assignee = u2.id
	 WHERE c.family_id = ?`
	args := []any{familyID}

	if filter.Status != nil {
		query += ` AND c.status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.Assignee != nil {
		query += ` AND c.current_assignee = ?`
		args = append(args, *filter.Assignee)
	}
	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.ChoreSummary
	for rows.Next() {
		cs, err := scanChoreSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore summary: %w", err)
		}
		chores = append(chores, *cs)
	}
	return chores, rows.Err()
}

func scanChoreSummary(scanner interface{ Scan(...any) error }) (*model.ChoreSummary, error) {
	var cs model.ChoreSummary
	var status, rewardType string
	var assignee, firstAssignee sql.NullInt64
	var assignStart, completionStart sql.NullTime
	var createdByName, assigneeName sql.NullString

	err := scanner.Scan(
		&cs.ID, &cs.FamilyID, &cs.Title, &cs.Description, &rewardType, &cs.OriginalReward, &cs.CurrentReward,
		&cs.RequiresPhoto, &status, &assignee, &firstAssignee,
		&assignStart, &completionStart,
		&cs.AcceptanceTimer, &cs.CompletionTimerEnabled, &cs.CompletionTimerDuration, &cs.CompletionTimerPenalty,
		&cs.PenaltyApplied, &cs.ReductionEnabled, &cs.ReductionAmount, &cs.CreatedBy, &cs.CreatedAt, &cs.UpdatedAt,
		&createdByName, &assigneeName, &cs.SubmissionCount, &cs.CompletionCount,
	)
	if err != nil {
		return nil, err
	}

	cs.Status, err = chore.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	cs.RewardType, err = chore.ParseRewardType(rewardType)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		cs.CurrentAssignee = &assignee.Int64
	}
	if firstAssignee.Valid {
		cs.FirstAssigneeID = &firstAssignee.Int64
	}
	if assignStart.Valid {
		cs.AssignmentStartTime = &assignStart.Time
	}
	if completionStart.Valid {
		cs.CompletionStartTime = &completionStart.Time
	}
	if createdByName.Valid {
		cs.CreatedByName = &createdByName.String
	}
	if assigneeName.Valid {
		cs.AssigneeName = &assigneeName.String
	}
	return &cs, nil
}

// prefixCols qualifies a comma-separated column list with a table alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ListByAssignee returns the chores currently sitting with a child,
// newest offer first.
func (s *ChoreStore) ListByAssignee(userID int64, status *chore.Status) ([]model.Chore, error) {
	query := `SELECT ` + choreCols + ` FROM chores WHERE current_assignee = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	} else {
		query += ` AND status IN ('pending_acceptance', 'assigned', 'auto_accepted')`
	}
	query += ` ORDER BY assignment_start_time DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores by assignee: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// --- Assignment and submission reads ---

const assignmentCols = `id, chore_id, user_id, status, assigned_at, responded_at, completed_at`

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var status string
	var responded, completed sql.NullTime

	err := scanner.Scan(&a.ID, &a.ChoreID, &a.UserID, &status, &a.AssignedAt, &responded, &completed)
	if err != nil {
		return nil, err
	}
	a.Status = chore.AssignmentStatus(status)
	if !a.Status.Valid() {
		return nil, fmt.Errorf("unknown assignment status %q", status)
	}
	if responded.Valid {
		a.RespondedAt = &responded.Time
	}
	if completed.Valid {
		a.CompletedAt = &completed.Time
	}
	return &a, nil
}

func (s *ChoreStore) ListAssignmentsByChore(choreID int64) ([]model.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE chore_id = ? ORDER BY assigned_at DESC, id DESC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

const submissionCols = `id, chore_id, user_id, assignment_id, photo_url, notes, status, submitted_at, reviewed_by, reviewed_at, rejection_reason`

func scanSubmission(scanner interface{ Scan(...any) error }) (*model.Submission, error) {
	var sub model.Submission
	var status string
	var photo, reason sql.NullString
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime

	err := scanner.Scan(
		&sub.ID, &sub.ChoreID, &sub.UserID, &sub.AssignmentID, &photo, &sub.Notes,
		&status, &sub.SubmittedAt, &reviewedBy, &reviewedAt, &reason,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = chore.SubmissionStatus(status)
	if !sub.Status.Valid() {
		return nil, fmt.Errorf("unknown submission status %q", status)
	}
	if photo.Valid {
		sub.PhotoURL = &photo.String
	}
	if reviewedBy.Valid {
		sub.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		sub.ReviewedAt = &reviewedAt.Time
	}
	if reason.Valid {
		sub.RejectionReason = &reason.String
	}
	return &sub, nil
}

func (s *ChoreStore) GetSubmission(id int64) (*model.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionCols+` FROM chore_submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *ChoreStore) ListSubmissionsByChore(choreID int64) ([]model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionCols+` FROM chore_submissions WHERE chore_id = ? ORDER BY submitted_at DESC, id DESC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
