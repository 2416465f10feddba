package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/logger"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

type SeederRepo interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
}

type SeedUser struct {
	Username string
	Email    string
	FullName string
	Password string
}

// DevSeeds are the accounts created when running with ENV=dev.
var DevSeeds = []SeedUser{
	{Username: "demo", Email: "demo@example.com", FullName: "Demo User", Password: "DemoPassword123!"},
	{Username: "operator", Email: "operator@example.com", FullName: "Operator", Password: "OperatorPassword123!"},
}

// SeedUsers creates the given accounts and returns how many were created.
// Existing accounts are skipped so it is safe on restart.
func SeedUsers(ctx context.Context, repo SeederRepo, hasher SeederHasher, seeds []SeedUser) int {
	created := 0
	for _, s := range seeds {
		hash, err := hasher.Hash(s.Password)
		if err != nil {
			logger.Logger.Warn().Err(err).Str("username", s.Username).Msg("[seed] hash failed")
			continue
		}

		_, err = repo.Create(ctx, domain.User{
			ID:           uuid.NewString(),
			Username:     s.Username,
			Email:        s.Email,
			PasswordHash: hash,
			FullName:     s.FullName,
			Active:       true,
			Verified:     true,
		})
		if err != nil {
			// ignore duplicates (restart safe)
			continue
		}
		created++
	}

	logger.Logger.Info().Int("created", created).Msg("[seed] users seeded")
	return created
}
