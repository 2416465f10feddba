package biometric

import (
	"context"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type ModalityStatus struct {
	Modality   domain.Modality
	TemplateID string
	Quality    float64
	EnrolledAt time.Time
	History    int
}

type Status struct {
	Enrolled   bool
	Modalities []ModalityStatus
}

// Status reports the active primary per modality, in registry order.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	all, err := s.templates.ListByUser(ctx, userID)
	if err != nil {
		return Status{}, repoErr(err)
	}
	history := make(map[domain.Modality]int)
	primary := make(map[domain.Modality]domain.Template)
	for _, t := range all {
		history[t.Modality]++
		if t.Active && t.Primary {
			primary[t.Modality] = t
		}
	}

	var st Status
	for _, m := range domain.Modalities {
		t, ok := primary[m]
		if !ok {
			continue
		}
		st.Modalities = append(st.Modalities, ModalityStatus{
			Modality:   m,
			TemplateID: t.ID,
			Quality:    t.Quality,
			EnrolledAt: t.CreatedAt,
			History:    history[m],
		})
	}
	st.Enrolled = len(st.Modalities) > 0
	return st, nil
}

// Templates lists the user's templates including history. Payloads are
// stripped.
func (s *Service) Templates(ctx context.Context, userID string) ([]domain.Template, error) {
	all, err := s.templates.ListByUser(ctx, userID)
	if err != nil {
		return nil, repoErr(err)
	}
	out := make([]domain.Template, len(all))
	for i, t := range all {
		t.Payload = nil
		out[i] = t
	}
	return out, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	if err := s.templates.Deactivate(ctx, userID, templateID); err != nil {
		return repoErr(err)
	}
	return nil
}

func (s *Service) SetPrimary(ctx context.Context, userID, templateID string) error {
	if err := s.templates.SetPrimary(ctx, userID, templateID); err != nil {
		return repoErr(err)
	}
	return nil
}
