package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID map[string]domain.User

	// injected errors (if set, method returns error)
	createErr error
	touchErr  error
	getErr    error

	touched []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]domain.User{}}
}

func (f *fakeUserRepo) GetByLogin(_ context.Context, identifier string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) failLookups(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *fakeUserRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	for _, other := range f.byID {
		if strings.EqualFold(other.Username, u.Username) {
			return domain.User{}, domain.ErrUsernameAlreadyExists()
		}
		if strings.EqualFold(other.Email, u.Email) {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.touchErr != nil {
		return f.touchErr
	}
	u := f.byID[userID]
	u.LastLoginAt = &at
	f.byID[userID] = u
	f.touched = append(f.touched, userID)
	return nil
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

// fakeHasher is a transparent "hash" that counts comparisons.
type fakeHasher struct {
	mu       sync.Mutex
	hashErr  error
	compares int
}

func (h *fakeHasher) Hash(pw string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + pw, nil
}

func (h *fakeHasher) Compare(hash, pw string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	if hash != "hashed:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

// fakeSigner keeps claims in memory keyed by opaque token strings.
type fakeSigner struct {
	mu      sync.Mutex
	n       int
	now     func() time.Time
	access  map[string]AccessClaims
	refresh map[string]RefreshClaims
}

func newFakeSigner(now func() time.Time) *fakeSigner {
	return &fakeSigner{now: now, access: map[string]AccessClaims{}, refresh: map[string]RefreshClaims{}}
}

func (s *fakeSigner) SignAccess(c AccessClaims) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	tok := fmt.Sprintf("access-%d", s.n)
	s.access[tok] = c
	return tok, nil
}

func (s *fakeSigner) SignRefresh(c RefreshClaims) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	tok := fmt.Sprintf("refresh-%d", s.n)
	s.refresh[tok] = c
	return tok, nil
}

func (s *fakeSigner) VerifyAccess(tok string) (AccessClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.access[tok]
	if !ok {
		return AccessClaims{}, domain.ErrTokenInvalid()
	}
	if !s.now().Before(c.ExpiresAt) {
		return AccessClaims{}, domain.ErrTokenExpired()
	}
	return c, nil
}

func (s *fakeSigner) VerifyRefresh(tok string) (RefreshClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.refresh[tok]
	if !ok {
		return RefreshClaims{}, domain.ErrTokenInvalid()
	}
	if !s.now().Before(c.ExpiresAt) {
		return RefreshClaims{}, domain.ErrTokenExpired()
	}
	return c, nil
}

// fakeFamilies mirrors the production rotation rules under one mutex.
type fakeFamilies struct {
	mu        sync.Mutex
	fams      map[string]domain.TokenFamily
	createErr error
	activeErr error
}

func newFakeFamilies() *fakeFamilies {
	return &fakeFamilies{fams: map[string]domain.TokenFamily{}}
}

func (f *fakeFamilies) Create(_ context.Context, fam domain.TokenFamily) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.fams[fam.ID] = fam
	return nil
}

func (f *fakeFamilies) Rotate(_ context.Context, id, presented, next string, _ time.Duration) (RotateOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fam, ok := f.fams[id]
	switch {
	case !ok:
		return RotateUnknown, nil
	case fam.State == domain.FamilyReused:
		return RotateReused, nil
	case fam.State == domain.FamilyRevoked:
		return RotateRevoked, nil
	case fam.CurrentJTI != presented:
		fam.State = domain.FamilyReused
		f.fams[id] = fam
		return RotateReused, nil
	}
	fam.CurrentJTI = next
	f.fams[id] = fam
	return RotateOK, nil
}

func (f *fakeFamilies) Revoke(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fam, ok := f.fams[id]; ok && fam.State == domain.FamilyActive {
		fam.State = domain.FamilyRevoked
		f.fams[id] = fam
	}
	return nil
}

func (f *fakeFamilies) RevokeUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	var ids []string
	for id, fam := range f.fams {
		if fam.UserID == userID {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()
	for _, id := range ids {
		_ = f.Revoke(ctx, id)
	}
	return nil
}

func (f *fakeFamilies) IsActive(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return false, f.activeErr
	}
	return f.fams[id].State == domain.FamilyActive, nil
}

func (f *fakeFamilies) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fams)
}

type fakeMatcher struct {
	mu    sync.Mutex
	match domain.Match
	err   error
	calls int
}

func (m *fakeMatcher) Match(_ context.Context, _ string, _ domain.Modality, _ domain.Evidence, _ *float64) (domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.match, m.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []domain.AuthAttempt
}

func (r *fakeRecorder) Record(_ context.Context, a domain.AuthAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *fakeRecorder) ListByUser(_ context.Context, userID string, limit int) ([]domain.AuthAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuthAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].UserID == userID {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

func (r *fakeRecorder) all() []domain.AuthAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthAttempt(nil), r.attempts...)
}

/*
Harness
*/

type harness struct {
	svc      *Service
	users    *fakeUserRepo
	hasher   *fakeHasher
	signer   *fakeSigner
	families *fakeFamilies
	matcher  *fakeMatcher
	audit    *fakeRecorder
	clock    *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		users:    newFakeUserRepo(),
		hasher:   &fakeHasher{},
		families: newFakeFamilies(),
		matcher:  &fakeMatcher{},
		audit:    &fakeRecorder{},
		clock:    &now,
	}
	clock := func() time.Time { return *h.clock }
	h.signer = newFakeSigner(clock)

	issuer := NewTokenIssuer(h.signer, h.families, TokenConfig{AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour})
	issuer.now = clock

	h.svc = NewService(h.users, h.hasher, issuer, h.matcher, h.audit, h.audit)
	h.svc.now = clock

	ids := 0
	h.svc.newID = func() string { ids++; return fmt.Sprintf("user-%d", ids) }
	return h
}

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

func (h *harness) seedUser(t *testing.T, username, password string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           "u-" + username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed:" + password,
		Active:       true,
	}
	h.users.put(u)
	return u
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}
