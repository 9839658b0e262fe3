package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
)

// Lifecycle transitions. Every multi-statement transition runs in a single
// transaction and re-checks its precondition with a guarded UPDATE
// (WHERE id = ? AND status = ?). Zero rows affected means another request
// won the race; the transaction rolls back and the caller gets ErrConflict.
// SQLite gives no row locks, so the guard is the optimistic check the
// concurrency contract asks for.

func getChoreTx(tx *sql.Tx, familyID, choreID int64) (*model.Chore, error) {
	row := tx.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ? AND family_id = ?`, choreID, familyID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore in tx: %w", err)
	}
	return c, nil
}

// Assign opens a fresh rotation cycle on an available chore. The next
// child comes from family-wide round-robin; the family's rotation index
// advances inside the same transaction as the chore write.
func (s *ChoreStore) Assign(familyID, choreID int64) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := getChoreTx(tx, familyID, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, chore.ErrNotFound
	}
	if c.Status != chore.StatusAvailable {
		return nil, fmt.Errorf("chore is %s: %w", c.Status, chore.ErrPreconditionFailed)
	}

	children, err := listActiveChildrenTx(tx, familyID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, chore.ErrNoEligibleAssignee
	}

	var lastIndex int
	if err := tx.QueryRow(`SELECT last_assigned_child_index FROM families WHERE id = ?`, familyID).Scan(&lastIndex); err != nil {
		return nil, fmt.Errorf("read rotation index: %w", err)
	}

	idx := chore.NextIndex(lastIndex, len(children))
	next := children[idx]
	now := time.Now().UTC()

	result, err := tx.Exec(
		`UPDATE chores SET
			current_assignee = ?, first_assignee_id = ?,
			assignment_start_time = ?, completion_start_time = NULL,
			current_reward = original_reward, penalty_applied = 0,
			status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		next.ID, next.ID, now, string(chore.StatusPendingAcceptance), now,
		choreID, string(chore.StatusAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("assign chore: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	if _, err := tx.Exec(`UPDATE families SET last_assigned_child_index = ? WHERE id = ?`, idx, familyID); err != nil {
		return nil, fmt.Errorf("advance rotation index: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO chore_assignments (chore_id, user_id, status) VALUES (?, ?, ?)`,
		choreID, next.ID, string(chore.AssignmentPending),
	); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assign: %w", err)
	}
	return s.GetByID(familyID, choreID)
}

func listActiveChildrenTx(tx *sql.Tx, familyID int64) ([]model.User, error) {
	rows, err := tx.Query(
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND role = 'child' AND is_active = 1 ORDER BY id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children in tx: %w", err)
	}
	defer rows.Close()

	var children []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *u)
	}
	return children, rows.Err()
}

// Accept moves a pending offer to assigned. Only the current assignee may
// accept; the acceptance window closes and, when configured, the
// completion window opens.
func (s *ChoreStore) Accept(familyID, choreID, userID int64) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := requirePendingOffer(tx, familyID, choreID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var completionStart any
	if c.CompletionTimerEnabled {
		completionStart = now
	}

	result, err := tx.Exec(
		`UPDATE chores SET status = ?, assignment_start_time = NULL, completion_start_time = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND current_assignee = ?`,
		string(chore.StatusAssigned), completionStart, now,
		choreID, string(chore.StatusPendingAcceptance), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("accept chore: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	if _, err := tx.Exec(
		`UPDATE chore_assignments SET status = ?, responded_at = ? WHERE chore_id = ? AND user_id = ? AND status = ?`,
		string(chore.AssignmentAccepted), now, choreID, userID, string(chore.AssignmentPending),
	); err != nil {
		return nil, fmt.Errorf("mark assignment accepted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}
	return s.GetByID(familyID, choreID)
}

// Decline records the refusal and performs exactly one reassignment step:
// the offer moves to the lowest-id child not yet offered this cycle, or —
// when every child has been offered — auto-accepts back to the first
// offeree with the reward decayed.
func (s *ChoreStore) Decline(familyID, choreID, userID int64) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := requirePendingOffer(tx, familyID, choreID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	result, err := tx.Exec(
		`UPDATE chore_assignments SET status = ?, responded_at = ? WHERE chore_id = ? AND user_id = ? AND status = ?`,
		string(chore.AssignmentDeclined), now, choreID, userID, string(chore.AssignmentPending),
	)
	if err != nil {
		return nil, fmt.Errorf("mark assignment declined: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	children, err := listActiveChildrenTx(tx, familyID)
	if err != nil {
		return nil, err
	}
	childIDs := make([]int64, len(children))
	for i, ch := range children {
		childIDs[i] = ch.ID
	}

	offered, err := offeredThisCycleTx(tx, choreID)
	if err != nil {
		return nil, err
	}

	if nextID, ok := chore.NextUnoffered(childIDs, offered); ok {
		result, err := tx.Exec(
			`UPDATE chores SET current_assignee = ?, assignment_start_time = ?, penalty_applied = 0, updated_at = ?
			 WHERE id = ? AND status = ?`,
			nextID, now, now, choreID, string(chore.StatusPendingAcceptance),
		)
		if err != nil {
			return nil, fmt.Errorf("reassign chore: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, chore.ErrConflict
		}
		if _, err := tx.Exec(
			`INSERT INTO chore_assignments (chore_id, user_id, status) VALUES (?, ?, ?)`,
			choreID, nextID, string(chore.AssignmentPending),
		); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
	} else {
		// Cycle exhausted: fall back to the original offeree.
		if c.FirstAssigneeID == nil {
			return nil, chore.ErrConflict
		}
		newReward := chore.DecayedReward(c.CurrentReward, c.OriginalReward, c.ReductionAmount, c.ReductionEnabled)

		var completionStart any
		if c.CompletionTimerEnabled {
			completionStart = now
		}

		result, err := tx.Exec(
			`UPDATE chores SET
				current_assignee = ?, status = ?, current_reward = ?,
				assignment_start_time = NULL, completion_start_time = ?, penalty_applied = 0, updated_at = ?
			 WHERE id = ? AND status = ?`,
			*c.FirstAssigneeID, string(chore.StatusAutoAccepted), newReward,
			completionStart, now,
			choreID, string(chore.StatusPendingAcceptance),
		)
		if err != nil {
			return nil, fmt.Errorf("auto-accept chore: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, chore.ErrConflict
		}
		if _, err := tx.Exec(
			`INSERT INTO chore_assignments (chore_id, user_id, status, responded_at) VALUES (?, ?, ?, ?)`,
			choreID, *c.FirstAssigneeID, string(chore.AssignmentAccepted), now,
		); err != nil {
			return nil, fmt.Errorf("insert auto-accept assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decline: %w", err)
	}
	return s.GetByID(familyID, choreID)
}

// requirePendingOffer loads the chore and checks it is a live offer held
// by userID.
func requirePendingOffer(tx *sql.Tx, familyID, choreID, userID int64) (*model.Chore, error) {
	c, err := getChoreTx(tx, familyID, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, chore.ErrNotFound
	}
	if c.Status != chore.StatusPendingAcceptance {
		return nil, fmt.Errorf("chore is %s: %w", c.Status, chore.ErrPreconditionFailed)
	}
	if c.CurrentAssignee == nil || *c.CurrentAssignee != userID {
		return nil, chore.ErrNotFound
	}
	return c, nil
}

// offeredThisCycleTx returns the ids of children already offered the chore
// in the current rotation cycle. Completed assignments belong to prior
// cycles and do not count.
func offeredThisCycleTx(tx *sql.Tx, choreID int64) (map[int64]bool, error) {
	rows, err := tx.Query(
		`SELECT DISTINCT user_id FROM chore_assignments
		 WHERE chore_id = ? AND status IN (?, ?, ?)`,
		choreID,
		string(chore.AssignmentPending), string(chore.AssignmentAccepted), string(chore.AssignmentDeclined),
	)
	if err != nil {
		return nil, fmt.Errorf("list offered children: %w", err)
	}
	defer rows.Close()

	offered := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan offered child: %w", err)
		}
		offered[id] = true
	}
	return offered, rows.Err()
}

// Submit records a completion attempt and parks the chore for review.
func (s *ChoreStore) Submit(familyID, choreID, userID int64, notes string, photoURL *string) (*model.Submission, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := getChoreTx(tx, familyID, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, chore.ErrNotFound
	}
	if !c.Status.CanSubmit() {
		return nil, fmt.Errorf("chore is %s: %w", c.Status, chore.ErrPreconditionFailed)
	}
	if c.CurrentAssignee == nil || *c.CurrentAssignee != userID {
		return nil, chore.ErrNotFound
	}
	if c.RequiresPhoto && photoURL == nil {
		return nil, chore.ErrPhotoRequired
	}

	var assignmentID int64
	err = tx.QueryRow(
		`SELECT id FROM chore_assignments WHERE chore_id = ? AND user_id = ? AND status = ?
		 ORDER BY assigned_at DESC, id DESC LIMIT 1`,
		choreID, userID, string(chore.AssignmentAccepted),
	).Scan(&assignmentID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active assignment: %w", chore.ErrPreconditionFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("find accepted assignment: %w", err)
	}

	now := time.Now().UTC()

	var photo any
	if photoURL != nil {
		photo = *photoURL
	}
	result, err := tx.Exec(
		`INSERT INTO chore_submissions (chore_id, user_id, assignment_id, photo_url, notes) VALUES (?, ?, ?, ?, ?)`,
		choreID, userID, assignmentID, photo, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	submissionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	guard, err := tx.Exec(
		`UPDATE chores SET status = ?, completion_start_time = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND current_assignee = ?`,
		string(chore.StatusPendingApproval), now, choreID, string(c.Status), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("submit chore: %w", err)
	}
	if n, _ := guard.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}
	return s.GetSubmission(submissionID)
}

// Approve finalizes payment. Submission review, ledger append, assignment
// completion, earnings credit, and chore reset all commit or roll back
// together; a partial payout is never observable.
func (s *ChoreStore) Approve(familyID, choreID, submissionID, approverID int64) (*model.CompletedTask, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sub, c, err := requirePendingSubmission(tx, familyID, choreID, submissionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	result, err := tx.Exec(
		`UPDATE chore_submissions SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ? AND status = ?`,
		string(chore.SubmissionApproved), approverID, now, submissionID, string(chore.SubmissionPending),
	)
	if err != nil {
		return nil, fmt.Errorf("approve submission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	ledger, err := tx.Exec(
		`INSERT INTO completed_tasks (chore_id, user_id, assignment_id, submission_id, reward_earned, approved_by, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		choreID, sub.UserID, sub.AssignmentID, submissionID, c.CurrentReward, approverID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completed task: %w", err)
	}
	taskID, err := ledger.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE chore_assignments SET status = ?, completed_at = ? WHERE id = ?`,
		string(chore.AssignmentCompleted), now, sub.AssignmentID,
	); err != nil {
		return nil, fmt.Errorf("complete assignment: %w", err)
	}

	guard, err := tx.Exec(
		`UPDATE chores SET
			status = ?, current_assignee = NULL, first_assignee_id = NULL,
			assignment_start_time = NULL, completion_start_time = NULL, penalty_applied = 0, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(chore.StatusAvailable), now, choreID, string(chore.StatusPendingApproval),
	)
	if err != nil {
		return nil, fmt.Errorf("reset chore: %w", err)
	}
	if n, _ := guard.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	// Keep the running balance in step with the ledger.
	var u model.User
	if err := tx.QueryRow(`SELECT earnings FROM users WHERE id = ?`, sub.UserID).Scan(&u.Earnings); err != nil {
		return nil, fmt.Errorf("read earnings: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE users SET earnings = ? WHERE id = ?`,
		u.Earnings.Add(c.CurrentReward), sub.UserID,
	); err != nil {
		return nil, fmt.Errorf("credit earnings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT id, chore_id, user_id, assignment_id, submission_id, reward_earned, approved_by, completed_at
		 FROM completed_tasks WHERE id = ?`, taskID)
	var task model.CompletedTask
	if err := row.Scan(&task.ID, &task.ChoreID, &task.UserID, &task.AssignmentID, &task.SubmissionID,
		&task.RewardEarned, &task.ApprovedBy, &task.CompletedAt); err != nil {
		return nil, fmt.Errorf("get completed task: %w", err)
	}
	return &task, nil
}

// Reject sends the submission back with a reason. The assignee keeps the
// chore and may resubmit; the reward is untouched.
func (s *ChoreStore) Reject(familyID, choreID, submissionID, reviewerID int64, reason string) (*model.Submission, error) {
	if reason == "" {
		return nil, &chore.ValidationError{Field: "reason", Reason: "rejection reason is required"}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, _, err = requirePendingSubmission(tx, familyID, choreID, submissionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	result, err := tx.Exec(
		`UPDATE chore_submissions SET status = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?
		 WHERE id = ? AND status = ?`,
		string(chore.SubmissionRejected), reviewerID, now, reason, submissionID, string(chore.SubmissionPending),
	)
	if err != nil {
		return nil, fmt.Errorf("reject submission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	guard, err := tx.Exec(
		`UPDATE chores SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(chore.StatusAssigned), now, choreID, string(chore.StatusPendingApproval),
	)
	if err != nil {
		return nil, fmt.Errorf("return chore to assignee: %w", err)
	}
	if n, _ := guard.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reject: %w", err)
	}
	return s.GetSubmission(submissionID)
}

func requirePendingSubmission(tx *sql.Tx, familyID, choreID, submissionID int64) (*model.Submission, *model.Chore, error) {
	c, err := getChoreTx(tx, familyID, choreID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, chore.ErrNotFound
	}

	row := tx.QueryRow(
		`SELECT `+submissionCols+` FROM chore_submissions WHERE id = ? AND chore_id = ?`,
		submissionID, choreID,
	)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil, chore.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get submission in tx: %w", err)
	}
	if sub.Status != chore.SubmissionPending {
		return nil, nil, fmt.Errorf("submission is %s: %w", sub.Status, chore.ErrPreconditionFailed)
	}
	return sub, c, nil
}

// --- Timer reconciliation support ---

// ListAcceptanceExpired returns pending offers whose acceptance window has
// lapsed as of now.
func (s *ChoreStore) ListAcceptanceExpired(now time.Time) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores
		 WHERE status = ? AND assignment_start_time IS NOT NULL`,
		string(chore.StatusPendingAcceptance),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending offers: %w", err)
	}
	defer rows.Close()

	var expired []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		if chore.AcceptanceExpired(c.AssignmentStartTime, c.AcceptanceTimer, now) {
			expired = append(expired, *c)
		}
	}
	return expired, rows.Err()
}

// ListCompletionOverdue returns accepted chores whose completion window
// has lapsed and whose penalty has not yet been charged.
func (s *ChoreStore) ListCompletionOverdue(now time.Time) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores
		 WHERE status IN (?, ?) AND completion_timer_enabled = 1 AND penalty_applied = 0
		   AND completion_start_time IS NOT NULL`,
		string(chore.StatusAssigned), string(chore.StatusAutoAccepted),
	)
	if err != nil {
		return nil, fmt.Errorf("list accepted chores: %w", err)
	}
	defer rows.Close()

	var overdue []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		if chore.CompletionOverdue(c.CompletionStartTime, c.CompletionTimerDuration, c.CompletionTimerEnabled, now) {
			overdue = append(overdue, *c)
		}
	}
	return overdue, rows.Err()
}

// ApplyCompletionPenalty charges the completion-timer penalty at most once
// per offer. The penalty_applied flag resets whenever the chore changes
// hands or is submitted.
func (s *ChoreStore) ApplyCompletionPenalty(familyID, choreID int64) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := getChoreTx(tx, familyID, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, chore.ErrNotFound
	}
	if !c.Status.CanSubmit() || c.PenaltyApplied {
		return nil, fmt.Errorf("penalty not applicable: %w", chore.ErrPreconditionFailed)
	}

	newReward := chore.PenalizedReward(c.CurrentReward, c.OriginalReward, c.CompletionTimerPenalty)
	now := time.Now().UTC()

	result, err := tx.Exec(
		`UPDATE chores SET current_reward = ?, penalty_applied = 1, updated_at = ?
		 WHERE id = ? AND status = ? AND penalty_applied = 0`,
		newReward, now, choreID, string(c.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("apply penalty: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, chore.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit penalty: %w", err)
	}
	return s.GetByID(familyID, choreID)
}
