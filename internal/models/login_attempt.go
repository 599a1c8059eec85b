package models

import "time"

// LoginAttempt counts failed logins for a (device, username) pair.
type LoginAttempt struct {
	DeviceID    string    `db:"device_id" json:"device_id"`
	Username    string    `db:"username" json:"username"`
	Attempts    int       `db:"attempts" json:"attempts"`
	LastAttempt time.Time `db:"last_attempt" json:"last_attempt"`
}
