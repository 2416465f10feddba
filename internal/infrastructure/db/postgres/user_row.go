package postgres

import (
	"database/sql"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

const userColumns = `id, username, email, password_hash, full_name, phone, is_active, is_verified, is_enrolled, created_at, last_login_at`

type userRow struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Active       bool
	Verified     bool
	Enrolled     bool
	CreatedAt    time.Time
	LastLoginAt  sql.NullTime
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (userRow, error) {
	var ur userRow
	err := s.Scan(
		&ur.ID,
		&ur.Username,
		&ur.Email,
		&ur.PasswordHash,
		&ur.FullName,
		&ur.Phone,
		&ur.Active,
		&ur.Verified,
		&ur.Enrolled,
		&ur.CreatedAt,
		&ur.LastLoginAt,
	)
	return ur, err
}

func (ur userRow) toDomain() domain.User {
	u := domain.User{
		ID:           ur.ID,
		Username:     ur.Username,
		Email:        ur.Email,
		PasswordHash: ur.PasswordHash,
		FullName:     ur.FullName,
		Phone:        ur.Phone,
		Active:       ur.Active,
		Verified:     ur.Verified,
		Enrolled:     ur.Enrolled,
		CreatedAt:    ur.CreatedAt,
	}
	if ur.LastLoginAt.Valid {
		at := ur.LastLoginAt.Time
		u.LastLoginAt = &at
	}
	return u
}
