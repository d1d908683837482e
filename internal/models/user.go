package models

import "time"

// Permission levels. Administrador is the only level with access to audit reports.
const (
	PermissionAdmin    = "Administrador"
	PermissionLevel1   = "Usuario_Nivel_1"
	PermissionLevel2   = "Usuario_Nivel_2"
	PermissionLevel3   = "Usuario_Nivel_3"
	PermissionInvestor = "Investidor"
)

// ValidPermission reports whether p is a known permission level.
func ValidPermission(p string) bool {
	switch p {
	case PermissionAdmin, PermissionLevel1, PermissionLevel2, PermissionLevel3, PermissionInvestor:
		return true
	}
	return false
}

type User struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Permission   string     `json:"permission"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Actor is the session-bound identity an audit event is attributed to.
type Actor struct {
	ID         int
	Name       string
	Email      string
	Permission string
	LoginTime  time.Time
	SessionID  string
}

// SystemActor attributes work done by the server itself, e.g. scheduled retention cleanup.
var SystemActor = &Actor{ID: 0, Name: "system", Permission: PermissionAdmin}
