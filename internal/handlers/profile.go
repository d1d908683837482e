package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/crucial707/licitasis/internal/repo"
)

const minPasswordLength = 8

// ProfileHandler serves the signed-in user's own history and profile.
type ProfileHandler struct {
	UserRepo *repo.UserRepo
	Audit    *audit.Recorder
	Resolver audit.ClientResolver
}

// History returns the caller's own events. Query: limit (default 50), action.
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeHistory(w, r, h.Audit, actor.ID)
}

// UpdateProfile changes the caller's display name.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		JSONValidationError(w, "validation failed", map[string]string{"name": "required"}, http.StatusBadRequest)
		return
	}

	user, err := h.UserRepo.Update(r.Context(), actor.ID, name, "")
	if errors.Is(err, repo.ErrUserNotFound) {
		JSONError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("update profile", "user_id", actor.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	recordID := int64(actor.ID)
	h.Audit.Append(r.Context(), actor, h.Resolver.Client(r), models.ActionProfileUpdate, audit.TableUsers, &recordID, map[string]any{
		"old_name": actor.Name,
		"new_name": user.Name,
	})

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		JSONValidationError(w, "validation failed", map[string]string{"new_password": "must have at least 8 characters"}, http.StatusBadRequest)
		return
	}

	user, err := h.UserRepo.GetByID(r.Context(), actor.ID)
	if err != nil {
		JSONError(w, "user not found", http.StatusNotFound)
		return
	}
	if !repo.CheckPassword(user, input.CurrentPassword) {
		JSONValidationError(w, "validation failed", map[string]string{"current_password": "incorrect"}, http.StatusBadRequest)
		return
	}

	if err := h.UserRepo.UpdatePassword(r.Context(), actor.ID, input.NewPassword); err != nil {
		slog.Error("change password", "user_id", actor.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	recordID := int64(actor.ID)
	h.Audit.Append(r.Context(), actor, h.Resolver.Client(r), models.ActionPasswordChange, audit.TableUsers, &recordID, nil)

	w.WriteHeader(http.StatusNoContent)
}
