package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	"github.com/baechuer/biometric-auth/internal/domain"
)

const (
	typAccess  = "access"
	typRefresh = "refresh"
)

type JWTSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTSigner(secret string, issuer string) *JWTSigner {
	return &JWTSigner{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// tokenClaims is shared by both token types; Typ keeps them apart.
type tokenClaims struct {
	Typ      string `json:"typ"`
	UserID   string `json:"uid"`
	FamilyID string `json:"fid"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) SignAccess(c auth.AccessClaims) (string, error) {
	return s.sign(tokenClaims{
		Typ:              typAccess,
		UserID:           c.UserID,
		FamilyID:         c.FamilyID,
		RegisteredClaims: s.registered(c.UserID, "", c.IssuedAt, c.ExpiresAt),
	})
}

func (s *JWTSigner) SignRefresh(c auth.RefreshClaims) (string, error) {
	return s.sign(tokenClaims{
		Typ:              typRefresh,
		UserID:           c.UserID,
		FamilyID:         c.FamilyID,
		RegisteredClaims: s.registered(c.UserID, c.JTI, c.IssuedAt, c.ExpiresAt),
	})
}

func (s *JWTSigner) VerifyAccess(token string) (auth.AccessClaims, error) {
	c, err := s.verify(token, typAccess)
	if err != nil {
		return auth.AccessClaims{}, err
	}
	return auth.AccessClaims{
		UserID:    c.UserID,
		FamilyID:  c.FamilyID,
		IssuedAt:  numericTime(c.IssuedAt),
		ExpiresAt: numericTime(c.ExpiresAt),
	}, nil
}

func (s *JWTSigner) VerifyRefresh(token string) (auth.RefreshClaims, error) {
	c, err := s.verify(token, typRefresh)
	if err != nil {
		return auth.RefreshClaims{}, err
	}
	if c.ID == "" {
		return auth.RefreshClaims{}, domain.ErrTokenInvalid()
	}
	return auth.RefreshClaims{
		UserID:    c.UserID,
		FamilyID:  c.FamilyID,
		JTI:       c.ID,
		IssuedAt:  numericTime(c.IssuedAt),
		ExpiresAt: numericTime(c.ExpiresAt),
	}, nil
}

func (s *JWTSigner) registered(sub, jti string, iat, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   sub,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (s *JWTSigner) sign(c tokenClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *JWTSigner) verify(token, typ string) (*tokenClaims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired()
		}
		return nil, domain.ErrTokenInvalid()
	}
	if !parsed.Valid || claims.Typ != typ || claims.UserID == "" || claims.FamilyID == "" {
		return nil, domain.ErrTokenInvalid()
	}
	return &claims, nil
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
