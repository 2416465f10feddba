package auth

import (
	"context"
	"strings"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Phone    string
}

// Register creates an active, not yet enrolled user. No tokens are issued;
// the client logs in afterwards.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := domain.ValidateUsername(in.Username); err != nil {
		return domain.User{}, err
	}
	if !strings.Contains(in.Email, "@") {
		return domain.User{}, domain.ErrValidation(map[string]string{"email": "must be a valid email address"})
	}
	if err := domain.CheckPasswordStrength(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.users.Create(ctx, domain.User{
		ID:           s.newID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Phone:        in.Phone,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
