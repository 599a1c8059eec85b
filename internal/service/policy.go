package service

import (
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

// Action names a guarded operation.
type Action int

const (
	ActionCreatePaper Action = iota + 1
	ActionUpdatePaper
	ActionDeletePaper
	ActionCreateStrand
	ActionUpdateStrand
	ActionDeleteStrand
	ActionReadDashboard
	ActionListUsers
	ActionCreateUser
	ActionListSessions
	ActionReadActivityLogs
	ActionDeleteActivityLogs
	ActionExportActivityLogs
)

// adminOnly lists the actions reserved for the admin role. Any other action only
// needs an authenticated caller.
var adminOnly = map[Action]bool{
	ActionDeletePaper:        true,
	ActionCreateUser:         true,
	ActionReadActivityLogs:   true,
	ActionDeleteActivityLogs: true,
	ActionExportActivityLogs: true,
}

// IsAuthenticated reports whether a session snapshot is present.
func IsAuthenticated(caller *models.SessionUser) bool {
	return caller != nil && caller.ID != ""
}

// HasRole reports whether the caller holds one of roles.
func HasRole(caller *models.SessionUser, roles ...models.UserRole) bool {
	if !IsAuthenticated(caller) {
		return false
	}
	for _, role := range roles {
		if caller.Role == role {
			return true
		}
	}
	return false
}

// Authorize checks a role-based action. It returns ErrUnauthorized without a session and
// ErrForbidden when the role is insufficient.
func Authorize(caller *models.SessionUser, action Action) error {
	if !IsAuthenticated(caller) {
		return appErrors.ErrUnauthorized
	}
	if adminOnly[action] && !caller.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	return nil
}

// CanMutateUser allows update, delete and kick on targetID for the user themself or an admin.
func CanMutateUser(caller *models.SessionUser, targetID string) error {
	if !IsAuthenticated(caller) {
		return appErrors.ErrUnauthorized
	}
	if models.SameUserID(caller.ID, targetID) || caller.IsAdmin() {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you can only manage your own account")
}

// UserFieldGrant lists the profile fields a caller may change on a target.
type UserFieldGrant struct {
	FullName bool
	Username bool
	Password bool
	Role     bool
}

// EditableUserFields applies the field restriction: an admin editing someone else only
// changes the full name, and only admins may change a role, including their own.
func EditableUserFields(caller *models.SessionUser, targetID string) UserFieldGrant {
	if !IsAuthenticated(caller) {
		return UserFieldGrant{}
	}
	if !models.SameUserID(caller.ID, targetID) {
		return UserFieldGrant{FullName: caller.IsAdmin()}
	}
	return UserFieldGrant{FullName: true, Username: true, Password: true, Role: caller.IsAdmin()}
}
