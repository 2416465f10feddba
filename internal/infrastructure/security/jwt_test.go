package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	"github.com/baechuer/biometric-auth/internal/domain"
)

func accessFor(uid string, ttl time.Duration) auth.AccessClaims {
	now := time.Now()
	return auth.AccessClaims{UserID: uid, FamilyID: "fam-1", IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

func refreshFor(uid, jti string, ttl time.Duration) auth.RefreshClaims {
	now := time.Now()
	return auth.RefreshClaims{UserID: uid, FamilyID: "fam-1", JTI: jti, IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestJWTSigner_SignAndVerify_Success(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	tok, err := s.SignAccess(accessFor("u1", 2*time.Minute))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected jwt with 3 segments, got %q", tok)
	}

	claims, err := s.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if claims.UserID != "u1" || claims.FamilyID != "fam-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.IsZero() || claims.IssuedAt.IsZero() {
		t.Fatalf("expected iat/exp to be set")
	}
}

func TestJWTSigner_Refresh_CarriesJTI(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	tok, err := s.SignRefresh(refreshFor("u1", "jti-7", time.Hour))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}
	claims, err := s.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if claims.JTI != "jti-7" || claims.UserID != "u1" || claims.FamilyID != "fam-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTSigner_TokenTypesAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	access, _ := s.SignAccess(accessFor("u1", time.Minute))
	refresh, _ := s.SignRefresh(refreshFor("u1", "j1", time.Minute))

	if _, err := s.VerifyRefresh(access); !domain.Is(err, "token_invalid") {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := s.VerifyAccess(refresh); !domain.Is(err, "token_invalid") {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestJWTSigner_Verify_Expired_ReturnsTokenExpired(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	tok, err := s.SignAccess(accessFor("u1", -time.Second)) // already expired
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	_, verr := s.VerifyAccess(tok)
	if !domain.Is(verr, "token_expired") {
		t.Fatalf("expected token_expired, got %v", verr)
	}
}

func TestJWTSigner_Verify_UsesInjectedClock(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	tok, _ := s.SignRefresh(refreshFor("u1", "j1", time.Hour))

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.VerifyRefresh(tok); !domain.Is(err, "token_expired") {
		t.Fatalf("expected token_expired, got %v", err)
	}
}

func TestJWTSigner_Verify_WrongSecretOrIssuer_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	s1 := NewJWTSigner("secret1", "biometric-auth")
	s2 := NewJWTSigner("secret2", "biometric-auth")
	s3 := NewJWTSigner("secret1", "someone-else")

	tok, err := s1.SignAccess(accessFor("u1", time.Minute))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	if _, verr := s2.VerifyAccess(tok); !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
	if _, verr := s3.VerifyAccess(tok); !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid for foreign issuer, got %v", verr)
	}
}

func TestJWTSigner_Verify_AlgConfusion_Rejected(t *testing.T) {
	t.Parallel()

	// Create a token with "none" alg (unsigned). Verify should reject.
	claims := jwt.MapClaims{
		"typ": "access",
		"uid": "u1",
		"fid": "fam-1",
		"iss": "biometric-auth",
		"sub": "u1",
		"exp": time.Now().Add(time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)

	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected signing err: %v", err)
	}

	s := NewJWTSigner("secret", "biometric-auth")
	if _, verr := s.VerifyAccess(unsigned); !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTSigner_Verify_MissingExpiry_Rejected(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{"typ": "access", "uid": "u1", "fid": "fam-1", "iss": "biometric-auth"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign err: %v", err)
	}

	s := NewJWTSigner("secret", "biometric-auth")
	if _, verr := s.VerifyAccess(tok); !domain.Is(verr, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", verr)
	}
}

func TestJWTSigner_Verify_Garbage_ReturnsTokenInvalid(t *testing.T) {
	t.Parallel()

	s := NewJWTSigner("secret", "biometric-auth")
	if _, err := s.VerifyAccess("not.a.jwt"); !domain.Is(err, "token_invalid") {
		t.Fatalf("expected token_invalid, got %v", err)
	}
}
