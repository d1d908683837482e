package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crucial707/licitasis/internal/models"
	"github.com/goccy/go-json"
)

// AuditRepo persists audit log events. Rows are only ever inserted or deleted by retention.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

const auditColumns = `id, user_id, user_name, action, table_name, record_id, details, subject_email, ip_address, user_agent, created_at`

// Insert records e. ID and CreatedAt are assigned by the database and written back into e.
func (r *AuditRepo) Insert(ctx context.Context, e *models.AuditEvent) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		details = b
	}

	return r.db.QueryRowContext(ctx,
		`INSERT INTO audit_log (user_id, user_name, action, table_name, record_id, details, subject_email, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		e.ActorID, e.ActorName, string(e.Action), e.TargetTable, e.TargetRecordID, details, e.SubjectEmail, e.SourceIP, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListByUser returns events for one actor, newest first. An empty action matches all actions.
func (r *AuditRepo) ListByUser(ctx context.Context, userID int, action models.Action, limit int) ([]models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE user_id = $1`
	args := []any{userID}
	if action != "" {
		query += ` AND action = $2`
		args = append(args, string(action))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.AuditEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Stats groups events from the trailing window by action, highest count first.
func (r *AuditRepo) Stats(ctx context.Context, days int) ([]models.ActionStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT action, COUNT(*) AS count, COUNT(DISTINCT user_id) AS unique_users
		 FROM audit_log
		 WHERE created_at >= NOW() - make_interval(days => $1)
		 GROUP BY action
		 ORDER BY count DESC, action`,
		days,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.ActionStat{}
	for rows.Next() {
		var s models.ActionStat
		var action string
		if err := rows.Scan(&action, &s.Count, &s.DistinctActors); err != nil {
			return nil, err
		}
		s.Action = models.Action(action)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CountFailedLogins counts failed login events for email inside the trailing window.
// email must already be normalized (see audit.NormalizeEmail).
func (r *AuditRepo) CountFailedLogins(ctx context.Context, email string, windowSeconds int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log
		 WHERE action = 'ACCESS_DENIED'
		   AND table_name = 'users'
		   AND subject_email = $1
		   AND created_at >= NOW() - make_interval(secs => $2)`,
		email, windowSeconds,
	).Scan(&n)
	return n, err
}

// DeleteOlderThan removes events created more than days ago and returns how many were removed.
func (r *AuditRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < NOW() - make_interval(days => $1)`,
		days,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Report returns events created in [start, end], newest first, joined with the actor's
// current name and permission. Events of deleted users are kept with nil user fields.
func (r *AuditRepo) Report(ctx context.Context, start, end time.Time, userID *int) ([]models.ReportRow, error) {
	query := `
		SELECT al.id, al.user_id, al.user_name, al.action, al.table_name, al.record_id, al.details,
		       al.subject_email, al.ip_address, al.user_agent, al.created_at,
		       u.name AS user_full_name, u.permission AS user_permission
		FROM audit_log al
		LEFT JOIN users u ON al.user_id = u.id
		WHERE al.created_at BETWEEN $1 AND $2`
	args := []any{start, end}
	if userID != nil {
		query += ` AND al.user_id = $3`
		args = append(args, *userID)
	}
	query += ` ORDER BY al.created_at DESC, al.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := []models.ReportRow{}
	for rows.Next() {
		var row models.ReportRow
		var fullName, permission sql.NullString
		e, err := scanEvent(rows, &fullName, &permission)
		if err != nil {
			return nil, err
		}
		row.AuditEvent = *e
		if fullName.Valid {
			row.ActorFullName = &fullName.String
		}
		if permission.Valid {
			row.ActorPermission = &permission.String
		}
		report = append(report, row)
	}
	return report, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent scans the auditColumns in order, followed by any extra destinations.
func scanEvent(s rowScanner, extra ...any) (*models.AuditEvent, error) {
	var (
		e            models.AuditEvent
		action       string
		userID       sql.NullInt64
		tableName    sql.NullString
		recordID     sql.NullInt64
		details      []byte
		subjectEmail sql.NullString
	)
	dest := []any{&e.ID, &userID, &e.ActorName, &action, &tableName, &recordID, &details, &subjectEmail, &e.SourceIP, &e.UserAgent, &e.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	e.Action = models.Action(action)
	if userID.Valid {
		id := int(userID.Int64)
		e.ActorID = &id
	}
	if tableName.Valid {
		e.TargetTable = &tableName.String
	}
	if recordID.Valid {
		e.TargetRecordID = &recordID.Int64
	}
	if subjectEmail.Valid {
		e.SubjectEmail = &subjectEmail.String
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode details of event %d: %w", e.ID, err)
		}
	}
	return &e, nil
}
