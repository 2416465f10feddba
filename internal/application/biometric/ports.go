package biometric

import (
	"context"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

/*
TemplateRepo
------------
Template persistence. Every method that changes active/primary flags is a
single atomic transaction; a concurrent reader sees either the old or the
new primary, never both and never none.
*/
type TemplateRepo interface {
	// ActivePrimary returns not_enrolled when the user has no primary
	// template for m.
	ActivePrimary(ctx context.Context, userID string, m domain.Modality) (domain.Template, error)
	// Enroll inserts t as the active primary. With replace=false an existing
	// primary yields already_enrolled; with replace=true the old primary is
	// deactivated in the same transaction. The user's enrolled flag is set.
	Enroll(ctx context.Context, t domain.Template, replace bool) (domain.Template, error)
	// ListByUser returns all templates including deactivated history,
	// newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Template, error)
	// Deactivate logically deletes a template and recomputes the enrolled
	// flag.
	Deactivate(ctx context.Context, userID, templateID string) error
	// SetPrimary moves the primary flag of a modality to another active
	// template of the user. Inactive templates yield template_inactive.
	SetPrimary(ctx context.Context, userID, templateID string) error
}

// Sealer encrypts embeddings at rest. aad binds a ciphertext to its owner.
type Sealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}

type AttemptRecorder interface {
	Record(ctx context.Context, a domain.AuthAttempt)
}

// Observer receives engine measurements (metrics). Optional.
type Observer interface {
	ObserveExtraction(m domain.Modality, d time.Duration, err error)
	ObserveScore(m domain.Modality, score float64, matched bool)
}

type nopObserver struct{}

func (nopObserver) ObserveExtraction(domain.Modality, time.Duration, error) {}
func (nopObserver) ObserveScore(domain.Modality, float64, bool)            {}
