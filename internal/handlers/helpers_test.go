package handlers

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/crucial707/licitasis/internal/repo"
)

var (
	userCols  = []string{"id", "name", "email", "password_hash", "permission", "last_login"}
	auditCols = []string{
		"id", "user_id", "user_name", "action", "table_name", "record_id",
		"details", "subject_email", "ip_address", "user_agent", "created_at",
	}
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *audit.Recorder) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	rec := audit.NewRecorder(repo.NewAuditRepo(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return db, mock, rec
}

// expectAudit expects one audit_log insert of action by userID (nil for failed logins).
func expectAudit(mock sqlmock.Sqlmock, userID any, action models.Action, table any) {
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(userID, sqlmock.AnyArg(), string(action), table, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
}

func withActor(r *http.Request, actor *models.Actor) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), actor))
}

func adminActor() *models.Actor {
	return &models.Actor{ID: 1, Name: "Admin", Email: "admin@example.com", Permission: models.PermissionAdmin, LoginTime: time.Now().Add(-time.Hour)}
}

func userActor() *models.Actor {
	return &models.Actor{ID: 2, Name: "Alice", Email: "alice@example.com", Permission: models.PermissionLevel1, LoginTime: time.Now().Add(-time.Minute)}
}

// detailsHas matches an encoded details argument whose key holds want.
type detailsHas struct {
	key  string
	want any
}

func (d detailsHas) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return false
	}
	return m[d.key] == d.want
}
