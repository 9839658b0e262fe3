package chore

import (
	"errors"
	"fmt"
)

// Failure kinds for lifecycle operations. Stores and handlers test these
// with errors.Is; anything that doesn't match is treated as a transient
// store failure and is safe to retry with backoff.
var (
	// ErrNotFound covers an absent entity and a caller outside its scope
	// (wrong family, not the current assignee).
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed means the chore or submission is not in the
	// status the operation requires. Retrying will not help.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict means a concurrent mutation was detected at commit time.
	// The transaction was rolled back; an immediate retry is safe.
	ErrConflict = errors.New("conflict")

	// ErrNoEligibleAssignee means the family has no active children.
	ErrNoEligibleAssignee = errors.New("no eligible assignee")
)

// ValidationError reports malformed input on a lifecycle operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ErrPhotoRequired is returned by Submit when the chore requires photo
// proof and none was supplied.
var ErrPhotoRequired = &ValidationError{Field: "photo", Reason: "photo is required for this chore"}
