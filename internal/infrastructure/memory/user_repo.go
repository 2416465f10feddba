package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type UserRepo struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byEmail    map[string]string // lower(email) -> userID
	byUsername map[string]string // lower(username) -> userID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:       make(map[string]domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *UserRepo) GetByLogin(ctx context.Context, identifier string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := fold(identifier)
	id, ok := r.byUsername[key]
	if !ok {
		id, ok = r.byEmail[key]
	}
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[fold(u.Username)]; exists {
		return domain.User{}, domain.ErrUsernameAlreadyExists()
	}
	if _, exists := r.byEmail[fold(u.Email)]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	if u.ID == "" {
		return domain.User{}, domain.ErrInternal(nil)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.byID[u.ID] = u
	r.byEmail[fold(u.Email)] = u.ID
	r.byUsername[fold(u.Username)] = u.ID
	return u, nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	at = at.UTC()
	u.LastLoginAt = &at
	r.byID[userID] = u
	return nil
}

// SetActive toggles login eligibility. Used by seeding and tests.
func (r *UserRepo) SetActive(userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Active = active
	r.byID[userID] = u
	return nil
}

func (r *UserRepo) setEnrolled(userID string, enrolled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byID[userID]; ok {
		u.Enrolled = enrolled
		r.byID[userID] = u
	}
}
