package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

type ChoreHandler struct {
	chores *store.ChoreStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: cs, hub: hub, logger: logger}
}

func (h *ChoreHandler) broadcast(familyID int64, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, ev)
	}
}

type createChoreRequest struct {
	Title                   string          `json:"title"`
	Description             string          `json:"description"`
	RewardType              string          `json:"reward_type"`
	Reward                  decimal.Decimal `json:"reward"`
	RequiresPhoto           bool            `json:"requires_photo"`
	AcceptanceTimer         int             `json:"acceptance_timer"`
	CompletionTimerEnabled  bool            `json:"completion_timer_enabled"`
	CompletionTimerDuration int             `json:"completion_timer_duration"`
	CompletionTimerPenalty  decimal.Decimal `json:"completion_timer_penalty"`
	ReductionEnabled        bool            `json:"reduction_enabled"`
	ReductionAmount         decimal.Decimal `json:"reduction_amount"`
}

func (r *createChoreRequest) validate() (store.CreateChoreParams, *chore.ValidationError) {
	var p store.CreateChoreParams

	r.Title = strings.TrimSpace(r.Title)
	if len(r.Title) < 2 {
		return p, &chore.ValidationError{Field: "title", Reason: "title must be at least 2 characters"}
	}

	rewardType, err := chore.ParseRewardType(r.RewardType)
	if err != nil {
		return p, &chore.ValidationError{Field: "reward_type", Reason: "must be money or screen_time"}
	}
	if r.Reward.IsNegative() {
		return p, &chore.ValidationError{Field: "reward", Reason: "reward cannot be negative"}
	}

	if r.AcceptanceTimer == 0 {
		r.AcceptanceTimer = 5
	}
	if r.AcceptanceTimer < 1 || r.AcceptanceTimer > 60 {
		return p, &chore.ValidationError{Field: "acceptance_timer", Reason: "must be between 1 and 60 minutes"}
	}

	if r.CompletionTimerEnabled {
		if r.CompletionTimerDuration < 1 {
			return p, &chore.ValidationError{Field: "completion_timer_duration", Reason: "must be at least 1 minute"}
		}
		if r.CompletionTimerPenalty.IsNegative() {
			return p, &chore.ValidationError{Field: "completion_timer_penalty", Reason: "penalty cannot be negative"}
		}
	}
	if r.ReductionEnabled && r.ReductionAmount.IsNegative() {
		return p, &chore.ValidationError{Field: "reduction_amount", Reason: "reduction cannot be negative"}
	}

	p = store.CreateChoreParams{
		Title:                   r.Title,
		Description:             strings.TrimSpace(r.Description),
		RewardType:              rewardType,
		Reward:                  r.Reward,
		RequiresPhoto:           r.RequiresPhoto,
		AcceptanceTimer:         r.AcceptanceTimer,
		CompletionTimerEnabled:  r.CompletionTimerEnabled,
		CompletionTimerDuration: r.CompletionTimerDuration,
		CompletionTimerPenalty:  r.CompletionTimerPenalty,
		ReductionEnabled:        r.ReductionEnabled,
		ReductionAmount:         r.ReductionAmount,
	}
	return p, nil
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	params, verr := req.validate()
	if verr != nil {
		writeError(w, h.logger, verr)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	c, err := h.chores.Create(ac.FamilyID, ac.UserID, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreCreated, c.ID, c.Status, ac.UserID))
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var filter store.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := chore.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status filter"})
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("assignee"); raw != "" {
		id, err := parseQueryID(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assignee filter"})
			return
		}
		filter.Assignee = &id
	}

	chores, err := h.chores.List(familyID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if chores == nil {
		chores = []model.ChoreSummary{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	familyID := auth.FamilyID(r.Context())
	c, err := h.chores.GetByID(familyID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if c == nil {
		writeError(w, h.logger, chore.ErrNotFound)
		return
	}

	assignments, err := h.chores.ListAssignmentsByChore(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	submissions, err := h.chores.ListSubmissionsByChore(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	if submissions == nil {
		submissions = []model.Submission{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chore":       c,
		"assignments": assignments,
		"submissions": submissions,
	})
}

func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var c *model.Chore
	err = withConflictRetry(r.Context(), func() error {
		var err error
		c, err = h.chores.Assign(ac.FamilyID, id)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreAssigned, c.ID, c.Status, ac.UserID))
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var c *model.Chore
	err = withConflictRetry(r.Context(), func() error {
		var err error
		c, err = h.chores.Accept(ac.FamilyID, id, ac.UserID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreAccepted, c.ID, c.Status, ac.UserID))
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var c *model.Chore
	err = withConflictRetry(r.Context(), func() error {
		var err error
		c, err = h.chores.Decline(ac.FamilyID, id, ac.UserID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreDeclined, c.ID, c.Status, ac.UserID))
	writeJSON(w, http.StatusOK, c)
}

type submitRequest struct {
	Notes    string  `json:"notes"`
	PhotoURL *string `json:"photo_url"`
}

func (h *ChoreHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PhotoURL != nil && strings.TrimSpace(*req.PhotoURL) == "" {
		req.PhotoURL = nil
	}

	ac, _ := auth.FromContext(r.Context())
	var sub *model.Submission
	err = withConflictRetry(r.Context(), func() error {
		var err error
		sub, err = h.chores.Submit(ac.FamilyID, id, ac.UserID, strings.TrimSpace(req.Notes), req.PhotoURL)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreSubmitted, id, chore.StatusPendingApproval, ac.UserID))
	writeJSON(w, http.StatusCreated, sub)
}

func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	choreID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	submissionID, err := parseIDParam(r, "submission_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid submission id"})
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var task *model.CompletedTask
	err = withConflictRetry(r.Context(), func() error {
		var err error
		task, err = h.chores.Approve(ac.FamilyID, choreID, submissionID, ac.UserID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreApproved, choreID, chore.StatusAvailable, ac.UserID))
	writeJSON(w, http.StatusOK, task)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *ChoreHandler) Reject(w http.ResponseWriter, r *http.Request) {
	choreID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	submissionID, err := parseIDParam(r, "submission_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid submission id"})
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var sub *model.Submission
	err = withConflictRetry(r.Context(), func() error {
		var err error
		sub, err = h.chores.Reject(ac.FamilyID, choreID, submissionID, ac.UserID, strings.TrimSpace(req.Reason))
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(ac.FamilyID, websocket.NewEvent(websocket.EventChoreRejected, choreID, chore.StatusAssigned, ac.UserID))
	writeJSON(w, http.StatusOK, sub)
}
