package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// CredentialStore validates password guesses without revealing whether the
// identifier exists.
type CredentialStore struct {
	users  UserRepo
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(users UserRepo, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{users: users, hasher: hasher}
}

// VerifyPassword reports whether candidate is the password of the user named
// by identifier (username or email). Unknown identifiers still pay for one
// hash comparison so both failure paths cost the same.
func (c *CredentialStore) VerifyPassword(ctx context.Context, identifier, candidate string) (domain.User, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || candidate == "" {
		c.burn(candidate)
		return domain.User{}, false
	}

	u, err := c.users.GetByLogin(ctx, identifier)
	if err != nil {
		c.burn(candidate)
		return domain.User{}, false
	}
	if err := c.hasher.Compare(u.PasswordHash, candidate); err != nil {
		return domain.User{}, false
	}
	if !u.Active {
		return domain.User{}, false
	}
	return u, true
}

func (c *CredentialStore) burn(candidate string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash("timing-equaliser")
	})
	if c.dummyHash != "" {
		_ = c.hasher.Compare(c.dummyHash, candidate)
	}
}
