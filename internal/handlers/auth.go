package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/repo"
)

// Failure reasons recorded with failed login attempts.
const (
	loginErrEmptyFields = "empty fields"
	loginErrBlocked     = "blocked: too many failed attempts"
	loginErrUnknownUser = "user not found"
	loginErrBadPassword = "wrong password"
)

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	UserRepo *repo.UserRepo
	Audit    *audit.Recorder
	Resolver audit.ClientResolver
	Secret   []byte

	// TokenTTL defaults to 24h.
	TokenTTL time.Duration
	// SuspiciousWindow is the failed-login lookback in seconds (default 300).
	SuspiciousWindow int
}

// ==========================
// Login (email + password; every attempt is audited)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(input.Email)
	ctx := r.Context()
	client := h.Resolver.Client(r)

	if email == "" || input.Password == "" {
		h.Audit.LogLoginAttempt(ctx, nil, client, email, false, loginErrEmptyFields)
		JSONValidationError(w, "email and password are required", map[string]string{
			"email":    "required",
			"password": "required",
		}, http.StatusBadRequest)
		return
	}

	if h.Audit.CheckSuspiciousActivity(ctx, email, h.SuspiciousWindow) {
		h.Audit.LogLoginAttempt(ctx, nil, client, email, false, loginErrBlocked)
		JSONError(w, "too many failed login attempts, try again later", http.StatusTooManyRequests)
		return
	}

	user, err := h.UserRepo.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		h.Audit.LogLoginAttempt(ctx, nil, client, email, false, loginErrUnknownUser)
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("login: load user", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if !repo.CheckPassword(user, input.Password) {
		h.Audit.LogLoginAttempt(ctx, nil, client, email, false, loginErrBadPassword)
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	signed, actor, err := middleware.IssueToken(h.Secret, user, ttl)
	if err != nil {
		slog.Error("login: sign token", "error", err)
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	if err := h.UserRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("login: update last login", "user_id", user.ID, "error", err)
	}
	h.Audit.LogLoginAttempt(ctx, actor, client, email, true, "")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": signed,
		"user":  user,
	})
}

// ==========================
// Logout (token is stateless; the session end is audited)
// ==========================
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.Audit.LogLogout(r.Context(), actor, h.Resolver.Client(r))
	w.WriteHeader(http.StatusNoContent)
}
