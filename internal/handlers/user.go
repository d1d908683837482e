package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/crucial707/licitasis/internal/repo"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
)

// ==========================
// UserHandler (administrators manage accounts; every change is audited)
// ==========================
type UserHandler struct {
	Repo     *repo.UserRepo
	Audit    *audit.Recorder
	Resolver audit.ClientResolver
}

func (h *UserHandler) record(r *http.Request, action models.Action, userID int, details map[string]any) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return
	}
	recordID := int64(userID)
	h.Audit.Append(r.Context(), actor, h.Resolver.Client(r), action, audit.TableUsers, &recordID, details)
}

// ==========================
// Create User (permission defaults to Usuario_Nivel_1)
// ==========================
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Permission string `json:"permission"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	fields := make(map[string]string)
	if input.Name == "" {
		fields["name"] = "required"
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if len(input.Password) < minPasswordLength {
		fields["password"] = "must have at least 8 characters"
	}
	if input.Permission == "" {
		input.Permission = models.PermissionLevel1
	}
	if !models.ValidPermission(input.Permission) {
		fields["permission"] = "unknown permission"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	user, err := h.Repo.Create(r.Context(), input.Name, input.Email, input.Password, input.Permission)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			JSONError(w, "email already registered", http.StatusConflict)
			return
		}
		slog.Error("create user", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.record(r, models.ActionCreate, user.ID, map[string]any{
		"email":      user.Email,
		"permission": user.Permission,
	})

	writeJSON(w, http.StatusCreated, user)
}

// ==========================
// List Users
// ==========================
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50, 1, 200)
	if !ok {
		limit = 50
	}
	offset, ok := queryInt(r, "offset", 0, 0, 1<<31-1)
	if !ok {
		offset = 0
	}

	users, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// ==========================
// Update User (name and permission)
// ==========================
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var input struct {
		Name       string `json:"name"`
		Permission string `json:"permission"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	fields := make(map[string]string)
	if input.Name == "" {
		fields["name"] = "required"
	}
	if input.Permission != "" && !models.ValidPermission(input.Permission) {
		fields["permission"] = "unknown permission"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	user, err := h.Repo.Update(r.Context(), id, input.Name, input.Permission)
	if errors.Is(err, repo.ErrUserNotFound) {
		JSONError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("update user", "user_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.record(r, models.ActionUpdate, id, map[string]any{
		"name":       user.Name,
		"permission": user.Permission,
	})

	writeJSON(w, http.StatusOK, user)
}

// ==========================
// Delete User (past audit events keep the user's id and name)
// ==========================
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			JSONError(w, "user not found", http.StatusNotFound)
			return
		}
		slog.Error("delete user", "user_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.record(r, models.ActionDelete, id, nil)

	w.WriteHeader(http.StatusNoContent)
}
