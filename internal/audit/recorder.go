package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/crucial707/licitasis/internal/metrics"
	"github.com/crucial707/licitasis/internal/models"
)

const (
	DefaultHistoryLimit        = 50
	DefaultStatsDays           = 30
	DefaultSuspiciousWindow    = 300 // seconds
	DefaultSuspiciousThreshold = 5
	DefaultRetentionDays       = 365

	// Target tables used by the pre-filled entry points.
	TableUsers         = "users"
	TableAccessControl = "access_control"
	TableAuditLog      = "audit_log"

	timestampLayout = "2006-01-02 15:04:05"
)

// Store is the persistence the Recorder needs. *repo.AuditRepo implements it.
type Store interface {
	Insert(ctx context.Context, e *models.AuditEvent) error
	ListByUser(ctx context.Context, userID int, action models.Action, limit int) ([]models.AuditEvent, error)
	Stats(ctx context.Context, days int) ([]models.ActionStat, error)
	CountFailedLogins(ctx context.Context, email string, windowSeconds int) (int, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	Report(ctx context.Context, start, end time.Time, userID *int) ([]models.ReportRow, error)
}

// Recorder records user-attributable events and answers queries over them.
//
// Recording is best-effort: storage failures are logged and reported as false or an
// empty result, never returned to the caller, so the action being audited always
// proceeds.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// SuspiciousThreshold is the number of failed logins inside the window that flags an email.
	SuspiciousThreshold int
}

// NewRecorder returns a Recorder backed by store. A nil logger uses slog.Default().
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:               store,
		logger:              logger.With("component", "audit"),
		now:                 time.Now,
		SuspiciousThreshold: DefaultSuspiciousThreshold,
	}
}

// NormalizeEmail is the form stored in subject_email and used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Append records one event attributed to actor. It returns false without writing when
// actor is nil or action is not in the closed set, and when the write fails.
func (r *Recorder) Append(ctx context.Context, actor *models.Actor, client Client, action models.Action, table string, recordID *int64, details map[string]any) bool {
	if actor == nil {
		r.logger.Warn("audit event without actor dropped", "action", string(action), "table", table)
		metrics.IncAuditEvent(metricAction(action), "rejected")
		return false
	}
	if !action.Valid() {
		r.logger.Warn("audit event with unknown action dropped", "action", string(action), "table", table)
		metrics.IncAuditEvent(metricAction(action), "rejected")
		return false
	}

	id := actor.ID
	e := &models.AuditEvent{
		ActorID:        &id,
		ActorName:      actor.Name,
		Action:         action,
		TargetTable:    optional(table),
		TargetRecordID: recordID,
		Details:        details,
	}
	return r.insert(ctx, e, client)
}

// LogLoginAttempt records a login. Successful logins are LOGIN events attributed to actor;
// failures are ACCESS_DENIED events with no actor id, named after the attempted email.
func (r *Recorder) LogLoginAttempt(ctx context.Context, actor *models.Actor, client Client, email string, success bool, errMsg string) bool {
	details := map[string]any{
		"email":         email,
		"success":       success,
		"error_message": nil,
		"timestamp":     r.now().Format(timestampLayout),
	}
	if errMsg != "" {
		details["error_message"] = errMsg
	}

	e := &models.AuditEvent{
		TargetTable: optional(TableUsers),
		Details:     details,
	}
	if normalized := NormalizeEmail(email); normalized != "" {
		e.SubjectEmail = &normalized
	}

	if success {
		if actor == nil {
			r.logger.Warn("successful login without actor dropped", "email", email)
			metrics.IncAuditEvent(string(models.ActionLogin), "rejected")
			return false
		}
		id := actor.ID
		e.ActorID = &id
		e.ActorName = actor.Name
		e.Action = models.ActionLogin
		if actor.SessionID != "" {
			details["session_id"] = actor.SessionID
		}
	} else {
		e.ActorName = email
		if e.ActorName == "" {
			e.ActorName = Unknown
		}
		e.Action = models.ActionAccessDenied
	}

	return r.insert(ctx, e, client)
}

// LogLogout records the end of actor's session.
func (r *Recorder) LogLogout(ctx context.Context, actor *models.Actor, client Client) bool {
	if actor == nil {
		return false
	}
	now := r.now()
	details := map[string]any{
		"logout_time":      now.Format(timestampLayout),
		"session_duration": nil,
	}
	if !actor.LoginTime.IsZero() {
		details["session_duration"] = int64(now.Sub(actor.LoginTime).Seconds())
	}
	if actor.SessionID != "" {
		details["session_id"] = actor.SessionID
	}
	return r.Append(ctx, actor, client, models.ActionLogout, TableUsers, nil, details)
}

// LogAccessDenied records that actor tried to reach page without requiredPermission.
func (r *Recorder) LogAccessDenied(ctx context.Context, actor *models.Actor, client Client, page, requiredPermission string) bool {
	if actor == nil {
		return false
	}
	details := map[string]any{
		"page":                page,
		"required_permission": requiredPermission,
		"user_permission":     actor.Permission,
		"timestamp":           r.now().Format(timestampLayout),
	}
	return r.Append(ctx, actor, client, models.ActionAccessDenied, TableAccessControl, nil, details)
}

// History returns actorID's events, newest first, at most limit (default 50).
func (r *Recorder) History(ctx context.Context, actorID, limit int) []models.AuditEvent {
	return r.HistoryByAction(ctx, actorID, "", limit)
}

// HistoryByAction is History restricted to one action. An empty action matches all.
func (r *Recorder) HistoryByAction(ctx context.Context, actorID int, action models.Action, limit int) []models.AuditEvent {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	events, err := r.store.ListByUser(ctx, actorID, action, limit)
	if err != nil {
		r.logger.Error("load audit history", "actor_id", actorID, "error", err)
		return []models.AuditEvent{}
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events
}

// Stats aggregates events of the trailing windowDays (default 30) by action.
func (r *Recorder) Stats(ctx context.Context, windowDays int) []models.ActionStat {
	if windowDays <= 0 {
		windowDays = DefaultStatsDays
	}
	stats, err := r.store.Stats(ctx, windowDays)
	if err != nil {
		r.logger.Error("load audit stats", "days", windowDays, "error", err)
		return []models.ActionStat{}
	}
	if stats == nil {
		stats = []models.ActionStat{}
	}
	return stats
}

// CheckSuspiciousActivity reports whether email had at least SuspiciousThreshold failed
// logins in the trailing windowSeconds (default 300).
func (r *Recorder) CheckSuspiciousActivity(ctx context.Context, email string, windowSeconds int) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	if windowSeconds <= 0 {
		windowSeconds = DefaultSuspiciousWindow
	}
	threshold := r.SuspiciousThreshold
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}

	n, err := r.store.CountFailedLogins(ctx, email, windowSeconds)
	if err != nil {
		r.logger.Error("check suspicious activity", "email", email, "error", err)
		return false
	}
	if n >= threshold {
		metrics.IncSuspiciousLogin()
		r.logger.Warn("suspicious login activity", "email", email, "failed_attempts", n, "window_seconds", windowSeconds)
		return true
	}
	return false
}

// Cleanup deletes events older than retentionDays (default 365) and records the cleanup
// itself as a DELETE event on audit_log. ok is false when the delete failed.
func (r *Recorder) Cleanup(ctx context.Context, actor *models.Actor, client Client, retentionDays int) (deleted int64, ok bool) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	deleted, err := r.store.DeleteOlderThan(ctx, retentionDays)
	if err != nil {
		r.logger.Error("clean old audit events", "retention_days", retentionDays, "error", err)
		return 0, false
	}
	metrics.AddAuditDeleted(deleted)
	r.logger.Info("old audit events removed", "retention_days", retentionDays, "deleted", deleted)

	r.Append(ctx, actor, client, models.ActionDelete, TableAuditLog, nil, map[string]any{
		"action":       "cleanup_old_logs",
		"days_kept":    retentionDays,
		"deleted_rows": deleted,
	})
	return deleted, true
}

// Report returns events created between start and end, newest first, optionally for one
// actor, enriched with the actor's current name and permission.
func (r *Recorder) Report(ctx context.Context, start, end time.Time, actorID *int) []models.ReportRow {
	if end.Before(start) {
		r.logger.Warn("audit report with inverted range", "start", start, "end", end)
		return []models.ReportRow{}
	}
	rows, err := r.store.Report(ctx, start, end, actorID)
	if err != nil {
		r.logger.Error("generate audit report", "start", start, "end", end, "error", err)
		return []models.ReportRow{}
	}
	if rows == nil {
		rows = []models.ReportRow{}
	}
	return rows
}

func (r *Recorder) insert(ctx context.Context, e *models.AuditEvent, client Client) bool {
	e.SourceIP = client.IP
	if e.SourceIP == "" {
		e.SourceIP = Unknown
	}
	e.UserAgent = client.UserAgent
	if e.UserAgent == "" {
		e.UserAgent = Unknown
	}

	if err := r.store.Insert(ctx, e); err != nil {
		r.logger.Error("write audit event",
			"action", string(e.Action),
			"table", deref(e.TargetTable),
			"actor", e.ActorName,
			"error", err)
		metrics.IncAuditEvent(string(e.Action), "error")
		return false
	}
	metrics.IncAuditEvent(string(e.Action), "ok")
	return true
}

func metricAction(a models.Action) string {
	if a.Valid() {
		return string(a)
	}
	return "invalid"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
