package biometric

import (
	"context"
	"errors"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// ExtractBounded runs the extractor under a deadline. When the deadline
// passes first the caller receives a retryable ExtractionTimeout and the
// late result is discarded.
func ExtractBounded(ctx context.Context, timeout time.Duration, ex FeatureExtractor, ev domain.Evidence) (Extraction, error) {
	if timeout <= 0 {
		return ex.Extract(ctx, ev)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out Extraction
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := ex.Extract(ctx, ev)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return Extraction{}, domain.ErrExtractionTimeout(ex.Modality())
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Extraction{}, domain.ErrExtractionTimeout(ex.Modality())
		}
		return Extraction{}, ctx.Err()
	}
}
