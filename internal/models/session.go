package models

import "time"

// SessionUser is the user snapshot captured when a session is created.
// It is never refreshed from the users table.
type SessionUser struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// IsAdmin reports whether the snapshot holds the admin role.
func (u SessionUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is the server-side record stored under an opaque token.
type Session struct {
	User         SessionUser `json:"user"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActivity time.Time   `json:"last_activity"`
}
