package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/baechuer/biometric-auth/internal/domain"
)

const templateColumns = `id, user_id, modality, payload, quality, is_active, is_primary, created_at, deactivated_at`

// TemplateRepo stores sealed templates. Replacement and status changes run
// in SERIALIZABLE transactions; the partial unique index on
// (user_id, modality) WHERE is_active AND is_primary is the final guard.
type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

func scanTemplate(s scanner) (domain.Template, error) {
	var (
		t           domain.Template
		modality    string
		deactivated sql.NullTime
	)
	err := s.Scan(&t.ID, &t.UserID, &modality, &t.Payload, &t.Quality, &t.Active, &t.Primary, &t.CreatedAt, &deactivated)
	if err != nil {
		return domain.Template{}, err
	}
	t.Modality = domain.Modality(modality)
	if deactivated.Valid {
		at := deactivated.Time
		t.DeactivatedAt = &at
	}
	return t, nil
}

func (r *TemplateRepo) ActivePrimary(ctx context.Context, userID string, m domain.Modality) (domain.Template, error) {
	const q = `
SELECT ` + templateColumns + `
FROM biometric_templates
WHERE user_id = $1 AND modality = $2 AND is_active AND is_primary;
`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, userID, string(m)))
	if err != nil {
		if isNoRows(err) {
			return domain.Template{}, domain.ErrNotEnrolled(m)
		}
		return domain.Template{}, domain.ErrDBUnavailable(err)
	}
	return t, nil
}

func (r *TemplateRepo) Enroll(ctx context.Context, t domain.Template, replace bool) (domain.Template, error) {
	err := withTx(ctx, r.db, serializable, func(ctx context.Context, tx DBTX) error {
		const sel = `
SELECT id
FROM biometric_templates
WHERE user_id = $1 AND modality = $2 AND is_active AND is_primary
FOR UPDATE;
`
		var current string
		err := tx.QueryRowContext(ctx, sel, t.UserID, string(t.Modality)).Scan(&current)
		switch {
		case err == nil:
			if !replace {
				return domain.ErrAlreadyEnrolled(t.Modality)
			}
			if err := demote(ctx, tx, current); err != nil {
				return err
			}
		case !isNoRows(err):
			return err
		}

		const ins = `
INSERT INTO biometric_templates (id, user_id, modality, payload, quality, is_active, is_primary, created_at)
VALUES ($1,$2,$3,$4,$5,TRUE,TRUE,$6)
RETURNING created_at;
`
		if err := tx.QueryRowContext(ctx, ins,
			t.ID, t.UserID, string(t.Modality), t.Payload, t.Quality, t.CreatedAt,
		).Scan(&t.CreatedAt); err != nil {
			return err
		}
		return setEnrolled(ctx, tx, t.UserID)
	})
	if err != nil {
		return domain.Template{}, enrollErr(err)
	}
	t.Active, t.Primary, t.DeactivatedAt = true, true, nil
	return t, nil
}

func (r *TemplateRepo) ListByUser(ctx context.Context, userID string) ([]domain.Template, error) {
	const q = `
SELECT ` + templateColumns + `
FROM biometric_templates
WHERE user_id = $1
ORDER BY created_at DESC, id;
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, domain.ErrDBUnavailable(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	return out, nil
}

func (r *TemplateRepo) Deactivate(ctx context.Context, userID, templateID string) error {
	err := withTx(ctx, r.db, serializable, func(ctx context.Context, tx DBTX) error {
		const q = `
UPDATE biometric_templates
SET is_active = FALSE, is_primary = FALSE, deactivated_at = NOW()
WHERE id = $1 AND user_id = $2 AND is_active;
`
		res, err := tx.ExecContext(ctx, q, templateID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrTemplateNotFound()
		}
		return setEnrolled(ctx, tx, userID)
	})
	return enrollErr(err)
}

func (r *TemplateRepo) SetPrimary(ctx context.Context, userID, templateID string) error {
	err := withTx(ctx, r.db, serializable, func(ctx context.Context, tx DBTX) error {
		const sel = `
SELECT modality, is_active, is_primary
FROM biometric_templates
WHERE id = $1 AND user_id = $2
FOR UPDATE;
`
		var (
			modality        string
			active, primary bool
		)
		if err := tx.QueryRowContext(ctx, sel, templateID, userID).Scan(&modality, &active, &primary); err != nil {
			if isNoRows(err) {
				return domain.ErrTemplateNotFound()
			}
			return err
		}
		if !active {
			return domain.ErrTemplateInactive()
		}
		if primary {
			return nil
		}

		// Only the primary flag moves; both rows stay active.
		const clearCurrent = `
UPDATE biometric_templates
SET is_primary = FALSE
WHERE user_id = $1 AND modality = $2 AND is_active AND is_primary;
`
		if _, err := tx.ExecContext(ctx, clearCurrent, userID, modality); err != nil {
			return err
		}

		const promote = `
UPDATE biometric_templates
SET is_primary = TRUE
WHERE id = $1 AND is_active;
`
		_, err := tx.ExecContext(ctx, promote, templateID)
		return err
	})
	return enrollErr(err)
}

func demote(ctx context.Context, tx DBTX, templateID string) error {
	const q = `
UPDATE biometric_templates
SET is_active = FALSE, is_primary = FALSE, deactivated_at = NOW()
WHERE id = $1;
`
	_, err := tx.ExecContext(ctx, q, templateID)
	return err
}

// setEnrolled recomputes users.is_enrolled from the active templates.
func setEnrolled(ctx context.Context, tx DBTX, userID string) error {
	const q = `
UPDATE users
SET is_enrolled = EXISTS (
    SELECT 1 FROM biometric_templates WHERE user_id = $1 AND is_active
)
WHERE id = $1;
`
	_, err := tx.ExecContext(ctx, q, userID)
	return err
}

// enrollErr maps transaction failures: domain errors pass through, lost
// races become enroll_conflict, anything else is an outage.
func enrollErr(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	switch code, _ := pgCode(err); code {
	case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
		return domain.ErrEnrollConflict(err)
	}
	return domain.ErrDBUnavailable(err)
}
