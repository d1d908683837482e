package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/go-chi/chi/v5"
)

const maxHistoryLimit = 500

// eventView is an audit event as rendered to clients, with its display label and icon.
type eventView struct {
	models.AuditEvent
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type reportView struct {
	models.ReportRow
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

func eventViews(events []models.AuditEvent) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{AuditEvent: e, Label: e.Action.Label(), Icon: e.Action.Icon()})
	}
	return out
}

// AuditHandler serves the administrative audit endpoints.
type AuditHandler struct {
	Audit    *audit.Recorder
	Resolver audit.ClientResolver
}

// Stats returns per-action counts for the trailing window. Query: days (default 30).
func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", audit.DefaultStatsDays, 1, 3650)
	if !ok {
		JSONValidationError(w, "validation failed", map[string]string{"days": "must be between 1 and 3650"}, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":  days,
		"items": h.Audit.Stats(r.Context(), days),
	})
}

// UserHistory returns one user's events, newest first. Query: limit (default 50), action.
func (h *AuditHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	writeHistory(w, r, h.Audit, id)
}

// Report returns events between start and end (YYYY-MM-DD or RFC 3339), optionally for one user.
func (h *AuditHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := make(map[string]string)

	start, err := parseReportTime(q.Get("start"), false)
	if err != nil {
		fields["start"] = "required, YYYY-MM-DD or RFC 3339"
	}
	end, err := parseReportTime(q.Get("end"), true)
	if err != nil {
		fields["end"] = "required, YYYY-MM-DD or RFC 3339"
	}
	if len(fields) == 0 && end.Before(start) {
		fields["end"] = "must not be before start"
	}

	var userID *int
	if s := q.Get("user_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id < 0 {
			fields["user_id"] = "must be a user id"
		} else {
			userID = &id
		}
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	rows := h.Audit.Report(r.Context(), start, end, userID)
	items := make([]reportView, 0, len(rows))
	for _, row := range rows {
		items = append(items, reportView{ReportRow: row, Label: row.Action.Label(), Icon: row.Action.Icon()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start": start,
		"end":   end,
		"items": items,
	})
}

// Cleanup removes events older than the retention window. Query: days (default 365).
func (h *AuditHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", audit.DefaultRetentionDays, 1, 36500)
	if !ok {
		JSONValidationError(w, "validation failed", map[string]string{"days": "must be a positive number of days"}, http.StatusBadRequest)
		return
	}
	actor, _ := middleware.ActorFromContext(r.Context())

	deleted, ok := h.Audit.Cleanup(r.Context(), actor, h.Resolver.Client(r), days)
	if !ok {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days_kept":    days,
		"deleted_rows": deleted,
	})
}

// writeHistory renders the history of userID honouring the limit and action query parameters.
func writeHistory(w http.ResponseWriter, r *http.Request, rec *audit.Recorder, userID int) {
	fields := make(map[string]string)
	limit, ok := queryInt(r, "limit", audit.DefaultHistoryLimit, 1, maxHistoryLimit)
	if !ok {
		fields["limit"] = "must be between 1 and " + strconv.Itoa(maxHistoryLimit)
	}
	var action models.Action
	if s := r.URL.Query().Get("action"); s != "" {
		a, err := models.ParseAction(s)
		if err != nil {
			fields["action"] = "unknown action"
		}
		action = a
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	events := rec.HistoryByAction(r.Context(), userID, action, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
		"items":   eventViews(events),
	})
}

// parseReportTime accepts a date or an RFC 3339 timestamp. A bare date used as the end
// of a range covers the whole day.
func parseReportTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
