package chore

import "time"

// Timers are advisory fields evaluated lazily; the sweep package turns them
// into enforced consequences. Both timers are configured in minutes.

// Deadline returns when a timer that started at start runs out.
func Deadline(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

// AcceptanceExpired reports whether a pending-acceptance window has lapsed.
// A nil start means no window is open.
func AcceptanceExpired(assignmentStart *time.Time, timerMinutes int, now time.Time) bool {
	if assignmentStart == nil || timerMinutes <= 0 {
		return false
	}
	return now.After(Deadline(*assignmentStart, timerMinutes))
}

// CompletionOverdue reports whether an accepted chore has blown its
// completion window and the penalty should apply.
func CompletionOverdue(completionStart *time.Time, durationMinutes int, enabled bool, now time.Time) bool {
	if !enabled || completionStart == nil || durationMinutes <= 0 {
		return false
	}
	return now.After(Deadline(*completionStart, durationMinutes))
}
