package biometric

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
)

// pngStub is a real 8x8 PNG; evidence checks only read its header.
var pngStub = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// sample builds evidence that passes container checks; the label appended
// after the image selects what the stub extractor returns.
func sample(label string) domain.Evidence {
	data := append(append([]byte{}, pngStub...), []byte("    "+label)...)
	return domain.Evidence{Data: data}
}

type stubExtractor struct {
	modality domain.Modality
	mu       sync.Mutex
	byLabel  map[string]engine.Extraction
	calls    int
	delay    time.Duration
}

func newStubExtractor(m domain.Modality) *stubExtractor {
	return &stubExtractor{modality: m, byLabel: map[string]engine.Extraction{}}
}

func (s *stubExtractor) set(label string, emb engine.Embedding, quality float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLabel[label] = engine.Extraction{Embedding: emb, Quality: quality, Frames: 1}
}

func (s *stubExtractor) Modality() domain.Modality { return s.modality }
func (s *stubExtractor) Formats() []string         { return []string{engine.FormatPNG} }

func (s *stubExtractor) Extract(ctx context.Context, ev domain.Evidence) (engine.Extraction, error) {
	s.mu.Lock()
	s.calls++
	delay := s.delay
	label := string(bytes.TrimSpace(ev.Data[len(pngStub):]))
	out, ok := s.byLabel[label]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return engine.Extraction{}, ctx.Err()
		}
	}
	if !ok {
		return engine.Extraction{}, domain.ErrNoSignalDetected(s.modality)
	}
	return out, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeSealer struct{}

func (fakeSealer) Seal(plain, aad []byte) ([]byte, error) {
	return append(append(append([]byte{}, aad...), '#'), plain...), nil
}

func (fakeSealer) Open(sealed, aad []byte) ([]byte, error) {
	prefix := append(append([]byte{}, aad...), '#')
	if !bytes.HasPrefix(sealed, prefix) {
		return nil, errors.New("authentication failed")
	}
	return sealed[len(prefix):], nil
}

type fakeTemplates struct {
	mu   sync.Mutex
	rows []domain.Template

	listErr error
}

func (f *fakeTemplates) ActivePrimary(_ context.Context, userID string, m domain.Modality) (domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.UserID == userID && t.Modality == m && t.Active && t.Primary {
			return t, nil
		}
	}
	return domain.Template{}, domain.ErrNotEnrolled(m)
}

func (f *fakeTemplates) Enroll(_ context.Context, t domain.Template, replace bool) (domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.rows {
		if cur.UserID == t.UserID && cur.Modality == t.Modality && cur.Active && cur.Primary {
			if !replace {
				return domain.Template{}, domain.ErrAlreadyEnrolled(t.Modality)
			}
			now := t.CreatedAt
			f.rows[i].Active, f.rows[i].Primary, f.rows[i].DeactivatedAt = false, false, &now
		}
	}
	f.rows = append(f.rows, t)
	return t, nil
}

func (f *fakeTemplates) ListByUser(_ context.Context, userID string) ([]domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Template
	for _, t := range f.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTemplates) Deactivate(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.rows {
		if t.ID == id && t.UserID == userID {
			f.rows[i].Active, f.rows[i].Primary = false, false
			return nil
		}
	}
	return domain.ErrTemplateNotFound()
}

func (f *fakeTemplates) SetPrimary(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	for i, t := range f.rows {
		if t.ID == id && t.UserID == userID {
			idx = i
		}
	}
	if idx < 0 {
		return domain.ErrTemplateNotFound()
	}
	if !f.rows[idx].Active {
		return domain.ErrTemplateInactive()
	}
	for i, t := range f.rows {
		if t.UserID == userID && t.Modality == f.rows[idx].Modality && i != idx {
			f.rows[i].Primary = false
		}
	}
	f.rows[idx].Primary = true
	return nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []domain.AuthAttempt
}

func (f *fakeRecorder) Record(_ context.Context, a domain.AuthAttempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, a)
}

func (f *fakeRecorder) all() []domain.AuthAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AuthAttempt(nil), f.recs...)
}

type harness struct {
	svc       *Service
	face      *stubExtractor
	finger    *stubExtractor
	templates *fakeTemplates
	attempts  *fakeRecorder
	clock     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		face:      newStubExtractor(domain.ModalityFace),
		finger:    newStubExtractor(domain.ModalityFingerprint),
		templates: &fakeTemplates{},
		attempts:  &fakeRecorder{},
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	reg := engine.NewRegistry(
		engine.Capability{Extractor: h.face, Metric: engine.Cosine{}},
		engine.Capability{Extractor: h.finger, Metric: engine.Euclidean{}},
	)
	h.svc = NewService(h.templates, reg, fakeSealer{}, h.attempts, Policy{
		Thresholds: map[domain.Modality]float64{
			domain.ModalityFace:        0.80,
			domain.ModalityFingerprint: 0.75,
		},
		MinQuality: map[domain.Modality]float64{
			domain.ModalityFace:        0.50,
			domain.ModalityFingerprint: 0.40,
		},
		MaxEvidenceBytes:  1 << 10,
		ExtractionTimeout: time.Second,
	})
	n := 0
	h.svc.now = func() time.Time { return h.clock }
	h.svc.newID = func() string { n++; return "tpl-" + string(rune('a'+n-1)) }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) enroll(t *testing.T, user string, m domain.Modality, label string, replace bool) EnrollResult {
	t.Helper()
	res, err := h.svc.Enroll(context.Background(), EnrollInput{
		UserID: user, Modality: m, Evidence: sample(label), ReplaceExisting: replace,
	})
	require.NoError(t, err)
	return res
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *domain.Error
	require.True(t, errors.As(err, &de), "expected *domain.Error, got %T: %v", err, err)
	require.Equal(t, code, de.Code)
}
