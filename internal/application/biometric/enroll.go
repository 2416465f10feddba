package biometric

import (
	"context"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
)

type EnrollInput struct {
	UserID          string
	Modality        domain.Modality
	Evidence        domain.Evidence
	ReplaceExisting bool
}

type EnrollResult struct {
	Template domain.Template
	Replaced bool
}

// Enroll extracts an embedding from evidence, seals it and stores it as the
// user's primary template for the modality. A replaced template is
// deactivated, never overwritten.
func (s *Service) Enroll(ctx context.Context, in EnrollInput) (res EnrollResult, err error) {
	started := s.now()
	att := s.newAttempt(ctx, in.UserID, domain.MethodBiometricEnroll, in.Modality)
	defer func() { s.record(ctx, att, started, err) }()

	c, err := s.registry.Lookup(in.Modality)
	if err != nil {
		return EnrollResult{}, err
	}

	// Cheap pre-check so a duplicate enrollment skips extraction; the
	// repository re-checks inside its transaction.
	replaced := false
	if _, perr := s.templates.ActivePrimary(ctx, in.UserID, in.Modality); perr == nil {
		if !in.ReplaceExisting {
			return EnrollResult{}, domain.ErrAlreadyEnrolled(in.Modality)
		}
		replaced = true
	} else if !domain.Is(perr, domain.CodeNotEnrolled) {
		return EnrollResult{}, repoErr(perr)
	}

	ex, err := s.extract(ctx, c, in.Evidence)
	if err != nil {
		return EnrollResult{}, err
	}
	if floor := s.policy.MinQuality[in.Modality]; ex.Quality < floor {
		return EnrollResult{}, domain.ErrQualityTooLow(in.Modality, ex.Quality, floor)
	}

	sealed, err := s.sealer.Seal(engine.EncodeEmbedding(ex.Embedding), sealAAD(in.UserID, in.Modality))
	if err != nil {
		return EnrollResult{}, domain.ErrInternal(err)
	}

	tpl, err := s.templates.Enroll(ctx, domain.Template{
		ID:        s.newID(),
		UserID:    in.UserID,
		Modality:  in.Modality,
		Payload:   sealed,
		Quality:   ex.Quality,
		Active:    true,
		Primary:   true,
		CreatedAt: s.now().UTC(),
	}, in.ReplaceExisting)
	if err != nil {
		return EnrollResult{}, repoErr(err)
	}
	tpl.Payload = nil
	return EnrollResult{Template: tpl, Replaced: replaced}, nil
}
