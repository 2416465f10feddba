package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// AttemptRepo appends to auth_attempts. The table rejects UPDATE and
// DELETE through a trigger.
type AttemptRepo struct {
	db *sql.DB
}

func NewAttemptRepo(db *sql.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

func (r *AttemptRepo) Insert(ctx context.Context, a domain.AuthAttempt) error {
	const q = `
INSERT INTO auth_attempts
    (id, user_id, identifier, method, modality, outcome, reason, score, threshold, latency_ms, ip, user_agent, request_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID,
		nullString(a.UserID),
		a.Identifier,
		string(a.Method),
		string(a.Modality),
		string(a.Outcome),
		a.Reason,
		nullFloat(a.Score),
		nullFloat(a.Threshold),
		a.Latency.Milliseconds(),
		a.IP,
		a.UserAgent,
		a.RequestID,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *AttemptRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AuthAttempt, error) {
	const q = `
SELECT id, identifier, method, modality, outcome, reason, score, threshold, latency_ms, ip, user_agent, request_id, created_at
FROM auth_attempts
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	var out []domain.AuthAttempt
	for rows.Next() {
		var (
			a                      domain.AuthAttempt
			method, modal, outcome string
			score, threshold       sql.NullFloat64
			latencyMS              int64
		)
		if err := rows.Scan(&a.ID, &a.Identifier, &method, &modal, &outcome, &a.Reason,
			&score, &threshold, &latencyMS, &a.IP, &a.UserAgent, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, domain.ErrDBUnavailable(err)
		}
		a.UserID = userID
		a.Method = domain.AttemptMethod(method)
		a.Modality = domain.Modality(modal)
		a.Outcome = domain.AttemptOutcome(outcome)
		a.Latency = time.Duration(latencyMS) * time.Millisecond
		if score.Valid {
			v := score.Float64
			a.Score = &v
		}
		if threshold.Valid {
			v := threshold.Float64
			a.Threshold = &v
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
