package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/chorewheel/internal/chore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func parseQueryID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized
// is treated as a transient storage failure.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *chore.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason, "field": verr.Field})
	case errors.Is(err, chore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, chore.ErrNoEligibleAssignee):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no active children to assign"})
	case errors.Is(err, chore.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflicting update, try again"})
	case errors.Is(err, chore.ErrPreconditionFailed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error("storage failure", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
	}
}

// withConflictRetry reruns fn a couple of times when two requests race on
// the same chore. Genuine precondition failures pass through untouched.
func withConflictRetry(ctx context.Context, fn func() error) error {
	b := retry.WithMaxRetries(2, retry.NewConstant(25*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn()
		if errors.Is(err, chore.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
