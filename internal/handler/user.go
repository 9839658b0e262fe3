package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

type UserHandler struct {
	chores *store.ChoreStore
	ledger *store.LedgerStore
	logger *slog.Logger
}

func NewUserHandler(cs *store.ChoreStore, ls *store.LedgerStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{chores: cs, ledger: ls, logger: logger}
}

// MyChores lists the chores currently sitting with the caller: offers
// awaiting a response plus accepted work not yet submitted.
func (h *UserHandler) MyChores(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var status *chore.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := chore.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status filter"})
			return
		}
		status = &s
	}

	chores, err := h.chores.ListByAssignee(userID, status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

// Earnings returns the caller's balance, lifetime totals, and payout
// history.
func (h *UserHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit, offset := 50, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	summary, err := h.ledger.EarningsSummary(userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	history, err := h.ledger.ListCompletedByUser(userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if history == nil {
		history = []model.EarningsEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"history": history,
	})
}

// Leaderboard ranks the family's children by total earned.
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	board, err := h.ledger.Leaderboard(familyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if board == nil {
		board = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, board)
}
