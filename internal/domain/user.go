package domain

import "time"

// User represents an account allowed to log in and upload images.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
