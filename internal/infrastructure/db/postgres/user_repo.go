package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) GetByLogin(ctx context.Context, identifier string) (domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}

	const q = `
SELECT ` + userColumns + `
FROM users
WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
LIMIT 1;
`
	ur, err := scanUser(r.db.QueryRowContext(ctx, q, identifier))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return ur.toDomain(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrUserNotFound()
	}

	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;
`
	ur, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return ur.toDomain(), nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" || u.PasswordHash == "" {
		return domain.User{}, domain.ErrInternal(nil)
	}

	const q = `
INSERT INTO users (id, username, email, password_hash, full_name, phone, is_active, is_verified)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING ` + userColumns + `;
`
	ur, err := scanUser(r.db.QueryRowContext(ctx, q,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Active, u.Verified,
	))
	if err != nil {
		code, constraint := pgCode(err)
		if code == pgUniqueViolation {
			if strings.Contains(constraint, "username") {
				return domain.User{}, domain.ErrUsernameAlreadyExists()
			}
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return ur.toDomain(), nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	const q = `
UPDATE users
SET last_login_at = $2
WHERE id = $1;
`
	res, err := r.db.ExecContext(ctx, q, userID, at.UTC())
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// SetActive toggles login eligibility (operator tooling).
func (r *UserRepo) SetActive(ctx context.Context, userID string, active bool) error {
	const q = `
UPDATE users
SET is_active = $2
WHERE id = $1;
`
	res, err := r.db.ExecContext(ctx, q, userID, active)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}
