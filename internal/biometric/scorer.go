package biometric

import (
	"fmt"
	"math"
	"slices"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// Cosine is the face metric: cosine similarity with negative correlation
// clamped to zero.
type Cosine struct{}

func (Cosine) Name() string { return "cosine" }

func (Cosine) Similarity(a, b Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Euclidean is the fingerprint metric: 1 - d/2 for unit vectors, so opposite
// orientation fields score 0 and identical ones score 1.
type Euclidean struct{}

func (Euclidean) Name() string { return "euclidean" }

func (Euclidean) Similarity(a, b Embedding) float64 {
	var d float64
	for i := range a {
		x := a[i] - b[i]
		d += x * x
	}
	return clamp01(1 - math.Sqrt(d)/2)
}

// SimilarityScorer compares embeddings with the metric registered for their
// modality.
type SimilarityScorer struct {
	reg *Registry
}

func NewSimilarityScorer(reg *Registry) *SimilarityScorer {
	return &SimilarityScorer{reg: reg}
}

// Score returns a similarity in [0,1]. Embeddings of different dimension
// were not produced by the same extractor and are rejected.
func (s *SimilarityScorer) Score(m domain.Modality, a, b Embedding) (float64, error) {
	c, err := s.reg.Lookup(m)
	if err != nil {
		return 0, err
	}
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("biometric: embedding dimension mismatch %d != %d", len(a), len(b))
	}
	if slices.Equal(a, b) {
		return 1, nil
	}
	return c.Metric.Similarity(a, b), nil
}
