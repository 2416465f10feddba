package biometric

import (
	"context"
	"errors"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
)

type VerifyInput struct {
	UserID    string
	Modality  domain.Modality
	Evidence  domain.Evidence
	Threshold *float64
}

// Match compares evidence against the user's primary template. It records
// nothing; the caller owns the audit record. A modality without a template
// fails with not_enrolled before any evidence is processed.
func (s *Service) Match(ctx context.Context, userID string, m domain.Modality, ev domain.Evidence, threshold *float64) (domain.Match, error) {
	thr, err := s.threshold(m, threshold)
	if err != nil {
		return domain.Match{}, err
	}
	c, err := s.registry.Lookup(m)
	if err != nil {
		return domain.Match{}, err
	}

	tpl, err := s.templates.ActivePrimary(ctx, userID, m)
	if err != nil {
		return domain.Match{}, repoErr(err)
	}

	ex, err := s.extract(ctx, c, ev)
	if err != nil {
		return domain.Match{}, err
	}

	stored, err := s.openTemplate(tpl, m)
	if err != nil {
		return domain.Match{}, err
	}
	score, err := s.scorer.Score(m, stored, ex.Embedding)
	if err != nil {
		return domain.Match{}, domain.ErrTemplateCorrupt(err)
	}

	res := domain.Match{Matched: score >= thr, Score: score, Threshold: thr}
	s.observer.ObserveScore(m, score, res.Matched)
	return res, nil
}

// Verify is the standalone verification operation: Match plus an audit
// record. A non-match is a result, not an error.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (domain.Match, error) {
	started := s.now()
	att := s.newAttempt(ctx, in.UserID, domain.MethodBiometricVerify, in.Modality)

	res, err := s.Match(ctx, in.UserID, in.Modality, in.Evidence, in.Threshold)
	outcome := err
	if err == nil {
		score, thr := res.Score, res.Threshold
		att.Score, att.Threshold = &score, &thr
		if !res.Matched {
			outcome = domain.ErrBiometricMismatch()
		}
	}
	s.record(ctx, att, started, outcome)
	return res, err
}

func (s *Service) openTemplate(tpl domain.Template, m domain.Modality) (engine.Embedding, error) {
	if tpl.Modality != m {
		return nil, domain.ErrTemplateCorrupt(errors.New("modality mismatch"))
	}
	plain, err := s.sealer.Open(tpl.Payload, sealAAD(tpl.UserID, tpl.Modality))
	if err != nil {
		return nil, domain.ErrTemplateCorrupt(err)
	}
	emb, err := engine.DecodeEmbedding(plain)
	if err != nil {
		return nil, domain.ErrTemplateCorrupt(err)
	}
	return emb, nil
}
