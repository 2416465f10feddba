package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/logger"
)

type Service struct {
	users      UserRepo
	hasher     PasswordHasher
	creds      *CredentialStore
	tokens     *TokenIssuer
	biometrics BiometricMatcher
	attempts   AttemptRecorder
	history    AttemptReader

	now   func() time.Time
	newID func() string
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	biometrics BiometricMatcher,
	attempts AttemptRecorder,
	history AttemptReader,
) *Service {
	return &Service{
		users:      users,
		hasher:     hasher,
		creds:      NewCredentialStore(users, hasher),
		tokens:     tokens,
		biometrics: biometrics,
		attempts:   attempts,
		history:    history,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Tokens exposes the issuer for access-token validation in middleware.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Me returns the profile of an authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

const (
	defaultAttemptPage = 20
	maxAttemptPage     = 100
)

// Attempts lists the caller's own audit trail, newest first.
func (s *Service) Attempts(ctx context.Context, userID string, limit int) ([]domain.AuthAttempt, error) {
	if limit <= 0 {
		limit = defaultAttemptPage
	}
	limit = min(limit, maxAttemptPage)
	out, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}
	return out, nil
}

// Refresh rotates a refresh token. Tokens of deleted or disabled accounts
// are revoked instead of rotated. A failed user lookup leaves the family
// untouched and is returned as retryable.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.tokens.Inspect(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil && !domain.Is(err, domain.CodeUserNotFound) {
		var de *domain.Error
		if errors.As(err, &de) && de.Retryable() {
			return domain.TokenPair{}, de
		}
		return domain.TokenPair{}, domain.ErrDBUnavailable(err)
	}
	if err != nil || !u.Active {
		if rerr := s.tokens.RevokeUser(ctx, claims.UserID); rerr != nil {
			logger.WithCtx(ctx).Warn().Err(rerr).Str("user_id", claims.UserID).Msg("revoke on refresh failed")
		}
		return domain.TokenPair{}, domain.ErrTokenInvalid()
	}
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the family of the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}
