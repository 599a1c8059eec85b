package models

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	DeviceID  string `json:"deviceId" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the session token and profile snapshot.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      SessionUser `json:"user"`
}

// ExpiryReport carries client hints for a session that timed out.
type ExpiryReport struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}
