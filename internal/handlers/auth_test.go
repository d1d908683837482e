package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/crucial707/licitasis/internal/repo"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func loginRequest(t *testing.T, email, password string) *http.Request {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "200.147.67.142:51000"
	return req
}

func expectFailedLogin(mock sqlmock.Sqlmock, reason string) {
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(nil, sqlmock.AnyArg(), "ACCESS_DENIED", "users", nil, detailsHas{"error_message", reason}, sqlmock.AnyArg(), "200.147.67.142", "test-agent").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
}

func TestAuthHandler_Login(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log`).
		WithArgs("alice@example.com", 300).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "Alice", "alice@example.com", hashPassword(t, "s3cret-pass"), models.PermissionLevel1, nil))
	mock.ExpectExec(`UPDATE users SET last_login = NOW\(\)`).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(2, "Alice", "LOGIN", "users", nil, detailsHas{"success", true}, "alice@example.com", "200.147.67.142", "test-agent").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest(t, "alice@example.com", "s3cret-pass"))

	if rr.Code != http.StatusOK {
		t.Fatalf("Login status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID           int    `json:"id"`
			Email        string `json:"email"`
			PasswordHash string `json:"password_hash"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Token == "" || out.User.ID != 2 || out.User.Email != "alice@example.com" {
		t.Errorf("unexpected response: %+v", out)
	}
	if out.User.PasswordHash != "" {
		t.Error("password hash must not be exposed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log`).
		WithArgs("alice@example.com", 300).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "Alice", "alice@example.com", hashPassword(t, "s3cret-pass"), models.PermissionLevel1, nil))
	expectFailedLogin(mock, loginErrBadPassword)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest(t, "alice@example.com", "guess"))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Login status: got %d, want 401", rr.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["error"] != "invalid credentials" {
		t.Errorf("unexpected error: %v", out["error"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log`).
		WithArgs("nobody@example.com", 300).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)
	expectFailedLogin(mock, loginErrUnknownUser)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest(t, "nobody@example.com", "whatever"))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Login status: got %d, want 401", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_EmptyFields(t *testing.T) {
	db, mock, rec := newMockDB(t)

	expectFailedLogin(mock, loginErrEmptyFields)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest(t, "alice@example.com", ""))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Login status: got %d, want 400", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_BlockedAfterRepeatedFailures(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_log`).
		WithArgs("alice@example.com", 60).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	expectFailedLogin(mock, loginErrBlocked)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret"), SuspiciousWindow: 60}
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest(t, "Alice@Example.com ", "s3cret-pass"))

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Login status: got %d, want 429", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	db, mock, rec := newMockDB(t)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Login status: got %d, want 400", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(2, "Alice", "LOGOUT", "users", nil, detailsHas{"session_duration", float64(60)}, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	actor := userActor()
	actor.LoginTime = time.Now().Add(-60 * time.Second)
	req := withActor(httptest.NewRequest("POST", "/auth/logout", nil), actor)
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Logout status: got %d, want 204", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Logout_NoSession(t *testing.T) {
	db, _, rec := newMockDB(t)

	h := &AuthHandler{UserRepo: repo.NewUserRepo(db), Audit: rec, Secret: []byte("test-secret")}
	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest("POST", "/auth/logout", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Logout status: got %d, want 401", rr.Code)
	}
}
