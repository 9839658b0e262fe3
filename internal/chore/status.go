package chore

import "fmt"

// Status is the lifecycle state of a chore. A chore is reusable: approval
// returns it to StatusAvailable and a fresh rotation cycle begins.
type Status string

const (
	StatusAvailable         Status = "available"
	StatusPendingAcceptance Status = "pending_acceptance"
	StatusAssigned          Status = "assigned"
	StatusAutoAccepted      Status = "auto_accepted"
	StatusPendingApproval   Status = "pending_approval"
)

// transitions maps each status to the statuses it may move to.
// pending_acceptance -> pending_acceptance covers a decline that re-offers
// the chore to the next child.
var transitions = map[Status][]Status{
	StatusAvailable:         {StatusPendingAcceptance},
	StatusPendingAcceptance: {StatusPendingAcceptance, StatusAssigned, StatusAutoAccepted},
	StatusAssigned:          {StatusPendingApproval},
	StatusAutoAccepted:      {StatusPendingApproval},
	StatusPendingApproval:   {StatusAvailable, StatusAssigned},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanSubmit reports whether a chore in this status may receive a submission.
func (s Status) CanSubmit() bool {
	return s == StatusAssigned || s == StatusAutoAccepted
}

// CanTransition reports whether the state machine allows moving from s to next.
func CanTransition(s, next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseStatus rejects unknown status strings at the boundary.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown chore status %q", raw)
	}
	return s, nil
}

// AssignmentStatus is the state of a single offer of a chore to a child.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentDeclined, AssignmentCompleted:
		return true
	}
	return false
}

// SubmissionStatus is the review state of a completion attempt.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// RewardType is what a chore pays out in.
type RewardType string

const (
	RewardMoney      RewardType = "money"
	RewardScreenTime RewardType = "screen_time"
)

func ParseRewardType(raw string) (RewardType, error) {
	switch t := RewardType(raw); t {
	case RewardMoney, RewardScreenTime:
		return t, nil
	}
	return "", fmt.Errorf("unknown reward type %q", raw)
}
