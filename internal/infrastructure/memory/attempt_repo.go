package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// AttemptRepo is an append-only in-process audit trail.
type AttemptRepo struct {
	mu   sync.RWMutex
	rows []domain.AuthAttempt
}

func NewAttemptRepo() *AttemptRepo { return &AttemptRepo{} }

func (r *AttemptRepo) Insert(ctx context.Context, a domain.AuthAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, a)
	return nil
}

// ListByUser returns the newest attempts first.
func (r *AttemptRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AuthAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AuthAttempt, 0, limit)
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].UserID == userID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

func (r *AttemptRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
