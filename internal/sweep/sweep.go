package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

// Sweeper enforces timer deadlines that no request happens to trip over:
// acceptance windows that lapsed are treated as declines, and overdue
// completion windows get their one-shot penalty. Timer expiry is decided
// here, not at read time, so every observer sees the same state.
type Sweeper struct {
	chores   *store.ChoreStore
	hub      *websocket.Hub
	logger   *slog.Logger
	interval time.Duration
}

func New(cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{chores: cs, hub: hub, logger: logger, interval: interval}
}

// Run sweeps on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, penalized, err := s.SweepOnce(ctx, time.Now().UTC())
			if err != nil {
				s.logger.Error("sweep failed", "error", err)
				continue
			}
			if expired > 0 || penalized > 0 {
				s.logger.Info("sweep", "expired_offers", expired, "penalties", penalized)
			}
		}
	}
}

// SweepOnce runs one enforcement pass as of now. It returns how many
// lapsed offers were declined and how many penalties were charged.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, int, error) {
	expired, err := s.listExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	declined := 0
	for _, c := range expired {
		if c.CurrentAssignee == nil {
			continue
		}
		assignee := *c.CurrentAssignee
		updated, err := s.chores.Decline(c.FamilyID, c.ID, assignee)
		if err != nil {
			// A request beat the sweep to it; nothing to enforce.
			if errors.Is(err, chore.ErrConflict) || errors.Is(err, chore.ErrPreconditionFailed) || errors.Is(err, chore.ErrNotFound) {
				s.logger.Debug("expired offer already handled", "chore_id", c.ID, "error", err)
				continue
			}
			return declined, 0, err
		}
		declined++
		s.broadcast(c.FamilyID, websocket.NewEvent(websocket.EventOfferExpired, c.ID, updated.Status, assignee))
	}

	overdue, err := s.listOverdue(ctx, now)
	if err != nil {
		return declined, 0, err
	}

	penalized := 0
	for _, c := range overdue {
		updated, err := s.chores.ApplyCompletionPenalty(c.FamilyID, c.ID)
		if err != nil {
			if errors.Is(err, chore.ErrConflict) || errors.Is(err, chore.ErrPreconditionFailed) || errors.Is(err, chore.ErrNotFound) {
				s.logger.Debug("penalty already handled", "chore_id", c.ID, "error", err)
				continue
			}
			return declined, penalized, err
		}
		penalized++
		var actor int64
		if updated.CurrentAssignee != nil {
			actor = *updated.CurrentAssignee
		}
		s.broadcast(c.FamilyID, websocket.NewEvent(websocket.EventChorePenalized, c.ID, updated.Status, actor))
	}

	return declined, penalized, nil
}

// listExpired retries transient read failures with a short backoff; a busy
// SQLite file under checkpoint can bounce the first attempt.
func (s *Sweeper) listExpired(ctx context.Context, now time.Time) ([]model.Chore, error) {
	var chores []model.Chore
	b := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		chores, err = s.chores.ListAcceptanceExpired(now)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return chores, err
}

func (s *Sweeper) listOverdue(ctx context.Context, now time.Time) ([]model.Chore, error) {
	var chores []model.Chore
	b := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		chores, err = s.chores.ListCompletionOverdue(now)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return chores, err
}

func (s *Sweeper) broadcast(familyID int64, ev websocket.Event) {
	if s.hub != nil {
		s.hub.Broadcast(familyID, ev)
	}
}
