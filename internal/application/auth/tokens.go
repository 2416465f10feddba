package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer mints signed token pairs, rotates refresh tokens within their
// family and answers revocation questions for access tokens.
type TokenIssuer struct {
	signer     TokenSigner
	families   TokenFamilyStore
	accessTTL  time.Duration
	refreshTTL time.Duration

	now   func() time.Time
	newID func() string
}

func NewTokenIssuer(signer TokenSigner, families TokenFamilyStore, cfg TokenConfig) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		signer:     signer,
		families:   families,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Issue starts a new token family for userID.
func (t *TokenIssuer) Issue(ctx context.Context, userID string) (domain.TokenPair, error) {
	now := t.now()
	fam := domain.TokenFamily{
		ID:         t.newID(),
		UserID:     userID,
		CurrentJTI: t.newID(),
		State:      domain.FamilyActive,
		ExpiresAt:  now.Add(t.refreshTTL),
	}
	if err := t.families.Create(ctx, fam); err != nil {
		return domain.TokenPair{}, storeErr(err)
	}
	return t.mint(now, userID, fam.ID, fam.CurrentJTI)
}

// Inspect verifies a refresh token's signature and expiry without touching
// the family.
func (t *TokenIssuer) Inspect(refreshToken string) (RefreshClaims, error) {
	if refreshToken == "" {
		return RefreshClaims{}, domain.ErrTokenInvalid()
	}
	return t.signer.VerifyRefresh(refreshToken)
}

// Refresh exchanges a refresh token for a new pair in the same family. The
// presented token is single use: presenting it again burns the family.
func (t *TokenIssuer) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := t.Inspect(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	next := t.newID()
	outcome, err := t.families.Rotate(ctx, claims.FamilyID, claims.JTI, next, t.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, storeErr(err)
	}
	switch outcome {
	case RotateOK:
		return t.mint(t.now(), claims.UserID, claims.FamilyID, next)
	case RotateReused:
		return domain.TokenPair{}, domain.ErrTokenReused()
	default:
		return domain.TokenPair{}, domain.ErrTokenInvalid()
	}
}

// Revoke ends the family of the given refresh token. Tokens that are
// already expired are accepted silently.
func (t *TokenIssuer) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := t.Inspect(refreshToken)
	if err != nil {
		if domain.Is(err, domain.CodeTokenExpired) {
			return nil
		}
		return err
	}
	return t.RevokeFamily(ctx, claims.FamilyID)
}

func (t *TokenIssuer) RevokeFamily(ctx context.Context, familyID string) error {
	if err := t.families.Revoke(ctx, familyID); err != nil {
		return storeErr(err)
	}
	return nil
}

// RevokeUser ends every family of userID (password change, account disable).
func (t *TokenIssuer) RevokeUser(ctx context.Context, userID string) error {
	if err := t.families.RevokeUser(ctx, userID); err != nil {
		return storeErr(err)
	}
	return nil
}

// ValidateAccess checks signature, expiry and family revocation. It fails
// closed when the family store cannot answer.
func (t *TokenIssuer) ValidateAccess(ctx context.Context, accessToken string) (AccessClaims, error) {
	if accessToken == "" {
		return AccessClaims{}, domain.ErrTokenMissing()
	}
	claims, err := t.signer.VerifyAccess(accessToken)
	if err != nil {
		return AccessClaims{}, err
	}
	ok, err := t.families.IsActive(ctx, claims.FamilyID)
	if err != nil {
		return AccessClaims{}, storeErr(err)
	}
	if !ok {
		return AccessClaims{}, domain.ErrTokenInvalid()
	}
	return claims, nil
}

func (t *TokenIssuer) mint(now time.Time, userID, familyID, jti string) (domain.TokenPair, error) {
	access, err := t.signer.SignAccess(AccessClaims{
		UserID:    userID,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.accessTTL),
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := t.signer.SignRefresh(RefreshClaims{
		UserID:    userID,
		FamilyID:  familyID,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.refreshTTL),
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        t.accessTTL,
		RefreshExpiresIn: t.refreshTTL,
	}, nil
}

func storeErr(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrRedisUnavailable(err)
}
