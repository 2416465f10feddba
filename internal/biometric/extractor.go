// Package biometric holds the per-modality capabilities of the engine:
// feature extraction from raw evidence and the distance metric used to
// compare two embeddings of the same modality.
package biometric

import (
	"context"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// Embedding is a fixed-length feature vector. Extractors return unit-length
// vectors.
type Embedding []float64

// Extraction is the result of running a FeatureExtractor on evidence.
type Extraction struct {
	Embedding Embedding
	// Quality in [0,1]; higher is better.
	Quality float64
	// Frames is the number of frames inspected (1 for still images).
	Frames int
}

// FeatureExtractor turns raw evidence into an embedding. It returns
// domain.ErrNoSignalDetected when the evidence holds no usable signal and
// must honour ctx cancellation.
type FeatureExtractor interface {
	Modality() domain.Modality
	Formats() []string
	Extract(ctx context.Context, ev domain.Evidence) (Extraction, error)
}

// Metric maps two embeddings to a similarity in [0,1].
type Metric interface {
	Name() string
	Similarity(a, b Embedding) float64
}

// Capability is the full capability set of one modality.
type Capability struct {
	Extractor FeatureExtractor
	Metric    Metric
}

// Registry dispatches capabilities by explicit modality tag.
type Registry struct {
	caps map[domain.Modality]Capability
}

func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{caps: make(map[domain.Modality]Capability, len(caps))}
	for _, c := range caps {
		r.caps[c.Extractor.Modality()] = c
	}
	return r
}

// DefaultRegistry wires the built-in face and fingerprint capabilities.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Capability{Extractor: NewFaceExtractor(), Metric: Cosine{}},
		Capability{Extractor: NewFingerprintExtractor(), Metric: Euclidean{}},
	)
}

func (r *Registry) Lookup(m domain.Modality) (Capability, error) {
	c, ok := r.caps[m]
	if !ok {
		return Capability{}, domain.ErrUnsupportedModality(string(m))
	}
	return c, nil
}
