package biometric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baechuer/biometric-auth/internal/domain"
)

func TestCosine(t *testing.T) {
	c := Cosine{}
	require.InDelta(t, 1.0, c.Similarity(Embedding{1, 0}, Embedding{2, 0}), 1e-12)
	require.InDelta(t, 0.0, c.Similarity(Embedding{1, 0}, Embedding{0, 1}), 1e-12)
	require.Equal(t, 0.0, c.Similarity(Embedding{1, 0}, Embedding{-1, 0}), "negative correlation clamps to zero")
	require.Equal(t, 0.0, c.Similarity(Embedding{0, 0}, Embedding{1, 0}))
}

func TestEuclidean(t *testing.T) {
	e := Euclidean{}
	require.Equal(t, 1.0, e.Similarity(Embedding{1, 0}, Embedding{1, 0}))
	require.InDelta(t, 0.0, e.Similarity(Embedding{1, 0}, Embedding{-1, 0}), 1e-12)
	require.InDelta(t, 1-math.Sqrt2/2, e.Similarity(Embedding{1, 0}, Embedding{0, 1}), 1e-12)
}

func TestSimilarityScorer(t *testing.T) {
	s := NewSimilarityScorer(DefaultRegistry())

	_, err := s.Score(domain.ModalityFace, Embedding{1, 0}, Embedding{1, 0, 0})
	require.Error(t, err)

	_, err = s.Score(domain.ModalityFace, nil, nil)
	require.Error(t, err)

	_, err = s.Score("retina", Embedding{1}, Embedding{1})
	require.True(t, domain.Is(err, domain.CodeUnsupportedModality))

	v, err := s.Score(domain.ModalityFingerprint, Embedding{0.6, 0.8}, Embedding{0.6, 0.8})
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
}

func TestEmbeddingCodec(t *testing.T) {
	in := Embedding{0.25, -1, math.SmallestNonzeroFloat64, 0}
	out, err := DecodeEmbedding(EncodeEmbedding(in))
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = DecodeEmbedding([]byte{9, 0, 0, 0, 0})
	require.Error(t, err)

	enc := EncodeEmbedding(in)
	_, err = DecodeEmbedding(enc[:len(enc)-1])
	require.Error(t, err)
}
