package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Active       bool
	Verified     bool
	// Enrolled is true while the user owns at least one active template.
	Enrolled    bool
	CreatedAt   time.Time
	LastLoginAt *time.Time
}
