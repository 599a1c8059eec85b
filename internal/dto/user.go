package dto

import "github.com/noah-isme/research-library-api/internal/models"

// CreateUserRequest is submitted by an admin to add an account.
type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=64"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=admin editor viewer"`
}

// UpdateUserRequest carries optional profile changes. Nil fields are left untouched.
type UpdateUserRequest struct {
	FullName        *string          `json:"full_name" validate:"omitempty,min=1"`
	Username        *string          `json:"username" validate:"omitempty,min=3,max=64"`
	Role            *models.UserRole `json:"role" validate:"omitempty,oneof=admin editor viewer"`
	Password        *string          `json:"password" validate:"omitempty,min=6"`
	CurrentPassword string           `json:"currentPassword"`
}

// DeleteUserRequest carries the actor's password for re-authentication.
type DeleteUserRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

// UserResponse is the public profile returned after mutations.
type UserResponse struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	FullName string          `json:"full_name"`
	Role     models.UserRole `json:"role"`
}

// NewUserResponse strips credentials from u.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}

// KickResponse reports how many sessions were destroyed.
type KickResponse struct {
	DeletedCount int `json:"deletedCount"`
}
