package auth

import (
	"context"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

/*
UserRepo
--------
Persistence port for users.
Only describes WHAT the auth service needs, not HOW it's stored.
*/
type UserRepo interface {
	// GetByLogin resolves a username or email, case-insensitively.
	GetByLogin(ctx context.Context, identifier string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	// Create fails with username_already_exists / email_already_exists.
	Create(ctx context.Context, u domain.User) (domain.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

/*
PasswordHasher
--------------
Abstracts bcrypt / argon2.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenSigner
-----------
Mints and verifies self-contained signed tokens. Access and refresh tokens
are distinct token types; a verifier must never accept one as the other.
*/
type AccessClaims struct {
	UserID    string
	FamilyID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type RefreshClaims struct {
	UserID    string
	FamilyID  string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenSigner interface {
	SignAccess(c AccessClaims) (string, error)
	SignRefresh(c RefreshClaims) (string, error)
	// Verify* return token_expired or token_invalid.
	VerifyAccess(token string) (AccessClaims, error)
	VerifyRefresh(token string) (RefreshClaims, error)
}

/*
TokenFamilyStore
----------------
Shared record of refresh-token lineages. Rotate must be atomic per family:
two concurrent rotations presenting the same jti can never both succeed.
*/
type RotateOutcome int

const (
	RotateOK RotateOutcome = iota
	// RotateReused: the presented jti is stale, or the family was already
	// burned by an earlier reuse. The family is (now) in state reused.
	RotateReused
	// RotateRevoked: family was revoked by logout or a user-wide revocation.
	RotateRevoked
	// RotateUnknown: family expired or never existed.
	RotateUnknown
)

type TokenFamilyStore interface {
	Create(ctx context.Context, fam domain.TokenFamily) error
	Rotate(ctx context.Context, familyID, presentedJTI, nextJTI string, ttl time.Duration) (RotateOutcome, error)
	Revoke(ctx context.Context, familyID string) error
	RevokeUser(ctx context.Context, userID string) error
	IsActive(ctx context.Context, familyID string) (bool, error)
}

/*
BiometricMatcher
----------------
One-shot comparison against the user's primary template. Implementations do
not write audit records; the login flow records its own single attempt.
*/
type BiometricMatcher interface {
	Match(ctx context.Context, userID string, m domain.Modality, ev domain.Evidence, threshold *float64) (domain.Match, error)
}

/*
AttemptRecorder / AttemptReader
-------------------------------
Append-only audit trail. Record never fails from the caller's point of view.
*/
type AttemptRecorder interface {
	Record(ctx context.Context, a domain.AuthAttempt)
}

type AttemptReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.AuthAttempt, error)
}
