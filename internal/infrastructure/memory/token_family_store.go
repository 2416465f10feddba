package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	"github.com/baechuer/biometric-auth/internal/domain"
)

// TokenFamilyStore is the single-process counterpart of the Redis store.
type TokenFamilyStore struct {
	mu     sync.Mutex
	byID   map[string]domain.TokenFamily
	byUser map[string]map[string]struct{}
	now    func() time.Time
}

func NewTokenFamilyStore() *TokenFamilyStore {
	return &TokenFamilyStore{
		byID:   make(map[string]domain.TokenFamily),
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (s *TokenFamilyStore) Create(ctx context.Context, fam domain.TokenFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fam.State == "" {
		fam.State = domain.FamilyActive
	}
	s.byID[fam.ID] = fam
	set, ok := s.byUser[fam.UserID]
	if !ok {
		set = make(map[string]struct{})
		s.byUser[fam.UserID] = set
	}
	set[fam.ID] = struct{}{}
	return nil
}

// live returns the family if it has not expired. Caller holds mu.
func (s *TokenFamilyStore) live(id string) (domain.TokenFamily, bool) {
	fam, ok := s.byID[id]
	if !ok {
		return fam, false
	}
	if !fam.ExpiresAt.IsZero() && !s.now().Before(fam.ExpiresAt) {
		delete(s.byID, id)
		delete(s.byUser[fam.UserID], id)
		return fam, false
	}
	return fam, true
}

func (s *TokenFamilyStore) Rotate(ctx context.Context, familyID, presented, next string, ttl time.Duration) (auth.RotateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fam, ok := s.live(familyID)
	switch {
	case !ok:
		return auth.RotateUnknown, nil
	case fam.State == domain.FamilyReused:
		return auth.RotateReused, nil
	case fam.State != domain.FamilyActive:
		return auth.RotateRevoked, nil
	case fam.CurrentJTI != presented:
		fam.State = domain.FamilyReused
		s.byID[familyID] = fam
		return auth.RotateReused, nil
	}

	fam.CurrentJTI = next
	fam.ExpiresAt = s.now().Add(ttl)
	s.byID[familyID] = fam
	return auth.RotateOK, nil
}

func (s *TokenFamilyStore) Revoke(ctx context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fam, ok := s.live(familyID); ok && fam.State == domain.FamilyActive {
		fam.State = domain.FamilyRevoked
		s.byID[familyID] = fam
	}
	return nil
}

func (s *TokenFamilyStore) RevokeUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byUser[userID] {
		if fam, ok := s.live(id); ok && fam.State == domain.FamilyActive {
			fam.State = domain.FamilyRevoked
			s.byID[id] = fam
		}
	}
	return nil
}

func (s *TokenFamilyStore) IsActive(ctx context.Context, familyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fam, ok := s.live(familyID)
	return ok && fam.State == domain.FamilyActive, nil
}
