package biometric

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
	appctx "github.com/baechuer/biometric-auth/internal/pkg/context"
)

// Policy holds per-modality thresholds and limits.
type Policy struct {
	Thresholds        map[domain.Modality]float64
	MinQuality        map[domain.Modality]float64
	MaxEvidenceBytes  int
	MaxEvidencePixels int
	ExtractionTimeout time.Duration
}

type Service struct {
	templates TemplateRepo
	registry  *engine.Registry
	scorer    *engine.SimilarityScorer
	sealer    Sealer
	attempts  AttemptRecorder
	observer  Observer
	policy    Policy

	now   func() time.Time
	newID func() string
}

func NewService(templates TemplateRepo, registry *engine.Registry, sealer Sealer, attempts AttemptRecorder, policy Policy) *Service {
	return &Service{
		templates: templates,
		registry:  registry,
		scorer:    engine.NewSimilarityScorer(registry),
		sealer:    sealer,
		attempts:  attempts,
		observer:  nopObserver{},
		policy:    policy,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// threshold resolves the effective threshold; overrides must lie in [0,1].
func (s *Service) threshold(m domain.Modality, override *float64) (float64, error) {
	if override != nil {
		v := *override
		if math.IsNaN(v) || v < 0 || v > 1 {
			return 0, domain.ErrInvalidThreshold(v)
		}
		return v, nil
	}
	if v, ok := s.policy.Thresholds[m]; ok {
		return v, nil
	}
	return 0.8, nil
}

// extract validates evidence and runs the modality's extractor under the
// configured deadline.
func (s *Service) extract(ctx context.Context, c engine.Capability, ev domain.Evidence) (engine.Extraction, error) {
	format, err := engine.CheckEvidence(ev, engine.Limits{
		MaxBytes:  s.policy.MaxEvidenceBytes,
		MaxPixels: s.policy.MaxEvidencePixels,
	}, c.Extractor.Formats())
	if err != nil {
		return engine.Extraction{}, err
	}
	ev.Format = format

	started := time.Now()
	out, err := engine.ExtractBounded(ctx, s.policy.ExtractionTimeout, c.Extractor, ev)
	s.observer.ObserveExtraction(c.Extractor.Modality(), time.Since(started), err)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return engine.Extraction{}, err
		}
		return engine.Extraction{}, domain.ErrInternal(err)
	}
	return out, nil
}

func sealAAD(userID string, m domain.Modality) []byte {
	return []byte(userID + "|" + string(m))
}

func (s *Service) newAttempt(ctx context.Context, userID string, method domain.AttemptMethod, m domain.Modality) domain.AuthAttempt {
	ci := appctx.GetClientInfo(ctx)
	return domain.AuthAttempt{
		UserID:    userID,
		Method:    method,
		Modality:  m,
		IP:        ci.IP,
		UserAgent: ci.UserAgent,
		RequestID: appctx.GetRequestID(ctx),
	}
}

func (s *Service) record(ctx context.Context, att domain.AuthAttempt, started time.Time, err error) {
	if s.attempts == nil {
		return
	}
	att.Finish(err, s.now().Sub(started))
	s.attempts.Record(ctx, att)
}

func repoErr(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrDBUnavailable(err)
}
