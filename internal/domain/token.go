package domain

import "time"

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

type FamilyState string

const (
	FamilyActive  FamilyState = "active"
	FamilyRevoked FamilyState = "revoked"
	FamilyReused  FamilyState = "reused"
)

// TokenFamily is the lineage of refresh tokens started by one login.
// Only CurrentJTI may be exchanged.
type TokenFamily struct {
	ID         string
	UserID     string
	CurrentJTI string
	State      FamilyState
	ExpiresAt  time.Time
}
