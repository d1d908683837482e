package models

import (
	"fmt"
	"strings"
	"time"
)

// Action is the closed set of audit event tags.
type Action string

const (
	ActionCreate         Action = "CREATE"
	ActionRead           Action = "READ"
	ActionUpdate         Action = "UPDATE"
	ActionDelete         Action = "DELETE"
	ActionLogin          Action = "LOGIN"
	ActionLogout         Action = "LOGOUT"
	ActionAccessDenied   Action = "ACCESS_DENIED"
	ActionProfileUpdate  Action = "PROFILE_UPDATE"
	ActionPasswordChange Action = "PASSWORD_CHANGE"
)

// Actions lists every valid Action in display order.
var Actions = []Action{
	ActionCreate,
	ActionRead,
	ActionUpdate,
	ActionDelete,
	ActionLogin,
	ActionLogout,
	ActionAccessDenied,
	ActionProfileUpdate,
	ActionPasswordChange,
}

var actionLabels = map[Action]string{
	ActionCreate:         "Criação",
	ActionRead:           "Consulta",
	ActionUpdate:         "Atualização",
	ActionDelete:         "Exclusão",
	ActionLogin:          "Login",
	ActionLogout:         "Logout",
	ActionAccessDenied:   "Acesso Negado",
	ActionProfileUpdate:  "Atualização de Perfil",
	ActionPasswordChange: "Alteração de Senha",
}

var actionIcons = map[Action]string{
	ActionCreate:         "fas fa-plus-circle text-success",
	ActionRead:           "fas fa-eye text-info",
	ActionUpdate:         "fas fa-edit text-warning",
	ActionDelete:         "fas fa-trash text-danger",
	ActionLogin:          "fas fa-sign-in-alt text-success",
	ActionLogout:         "fas fa-sign-out-alt text-secondary",
	ActionAccessDenied:   "fas fa-ban text-danger",
	ActionProfileUpdate:  "fas fa-user-edit text-info",
	ActionPasswordChange: "fas fa-key text-warning",
}

// ParseAction converts s (case-insensitive) to an Action. Unknown values are rejected.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown audit action %q", s)
	}
	return a, nil
}

// Valid reports whether a is one of the closed set.
func (a Action) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

// Label returns the display label, or the raw tag for unknown actions.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// Icon returns the display icon class.
func (a Action) Icon() string {
	if i, ok := actionIcons[a]; ok {
		return i
	}
	return "fas fa-question-circle text-muted"
}

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	ID             int64          `json:"id"`
	ActorID        *int           `json:"actor_id"` // nil only for failed logins
	ActorName      string         `json:"actor_name"`
	Action         Action         `json:"action"`
	TargetTable    *string        `json:"target_table,omitempty"`
	TargetRecordID *int64         `json:"target_record_id,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	SubjectEmail   *string        `json:"subject_email,omitempty"`
	SourceIP       string         `json:"source_ip"`
	UserAgent      string         `json:"user_agent"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ActionStat aggregates events of one action inside a time window.
type ActionStat struct {
	Action         Action `json:"action"`
	Count          int    `json:"count"`
	DistinctActors int    `json:"distinct_actors"`
}

// ReportRow is an AuditEvent joined with the actor's current user record.
// ActorFullName and ActorPermission are nil when the user no longer exists.
type ReportRow struct {
	AuditEvent
	ActorFullName   *string `json:"actor_full_name"`
	ActorPermission *string `json:"actor_permission"`
}
