package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

type FamilyHandler struct {
	families *store.FamilyStore
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, logger: logger}
}

type createFamilyRequest struct {
	Name       string `json:"name"`
	ParentName string `json:"parent_name"`
}

// Create bootstraps a family with its first parent. This is the only
// unauthenticated write: everything after it goes through the identity
// middleware.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.ParentName = strings.TrimSpace(req.ParentName)
	if req.Name == "" {
		writeError(w, h.logger, &chore.ValidationError{Field: "name", Reason: "family name is required"})
		return
	}
	if req.ParentName == "" {
		writeError(w, h.logger, &chore.ValidationError{Field: "parent_name", Reason: "parent name is required"})
		return
	}

	fam, err := h.families.Create(req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	parent, err := h.families.AddMember(fam.ID, req.ParentName, model.RoleParent)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"family": fam,
		"parent": parent,
	})
}

// Lookup resolves a family join code. Used by new devices joining an
// existing family.
func (h *FamilyHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid code"})
		return
	}

	fam, err := h.families.GetByCode(code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if fam == nil {
		writeError(w, h.logger, chore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, fam)
}

type addMemberRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// AddMember adds a member to the caller's family. Parent-only.
func (h *FamilyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, &chore.ValidationError{Field: "name", Reason: "name is required"})
		return
	}
	if req.Role != model.RoleParent && req.Role != model.RoleChild {
		writeError(w, h.logger, &chore.ValidationError{Field: "role", Reason: "role must be parent or child"})
		return
	}

	familyID := auth.FamilyID(r.Context())
	member, err := h.families.AddMember(familyID, req.Name, req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// ListMembers returns the caller's family roster.
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	members, err := h.families.ListMembers(familyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeJSON(w, http.StatusOK, members)
}

// RemoveMember deactivates a member of the caller's family. Parent-only.
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	familyID := auth.FamilyID(r.Context())
	member, err := h.families.GetUser(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if member == nil || member.FamilyID != familyID {
		writeError(w, h.logger, chore.ErrNotFound)
		return
	}
	if member.ID == auth.UserID(r.Context()) {
		writeError(w, h.logger, &chore.ValidationError{Field: "id", Reason: "cannot remove yourself"})
		return
	}

	if err := h.families.DeactivateMember(id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
