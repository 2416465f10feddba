package http_handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	appbio "github.com/baechuer/biometric-auth/internal/application/biometric"
	"github.com/baechuer/biometric-auth/internal/audit"
	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/infrastructure/memory"
	"github.com/baechuer/biometric-auth/internal/infrastructure/security"
	"github.com/baechuer/biometric-auth/internal/transport/http/middleware"
)

type testEnv struct {
	users    *memory.UserRepo
	attempts *memory.AttemptRepo
	authSvc  *auth.Service
	bioSvc   *appbio.Service
	auth     *AuthHandler
	bio      *BiometricHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUserRepo()
	attempts := memory.NewAttemptRepo()
	rec := audit.NewRecorder(attempts, memory.NewNoopPublisher(), zerolog.Nop())

	sealer, err := security.NewTemplateCipher(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("template cipher: %v", err)
	}
	bio := appbio.NewService(memory.NewTemplateRepo(users), engine.DefaultRegistry(), sealer, rec, appbio.Policy{
		Thresholds: map[domain.Modality]float64{
			domain.ModalityFace:        0.80,
			domain.ModalityFingerprint: 0.75,
		},
		MaxEvidenceBytes:  1 << 20,
		ExtractionTimeout: 5 * time.Second,
	})

	tokens := auth.NewTokenIssuer(
		security.NewJWTSigner("handler-test-secret-0123456789abcdef", "biometric-auth-test"),
		memory.NewTokenFamilyStore(),
		auth.TokenConfig{AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour},
	)
	svc := auth.NewService(users, security.NewBcryptHasher(bcrypt.MinCost), tokens, bio, rec, attempts)

	return &testEnv{
		users:    users,
		attempts: attempts,
		authSvc:  svc,
		bioSvc:   bio,
		auth:     NewAuthHandler(svc, rec.Logger()),
		bio:      NewBiometricHandler(bio, rec.Logger()),
	}
}

// register creates alice through the handler and returns her id.
func (e *testEnv) register(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	e.auth.Register(rr, jsonReq(t, http.MethodPost, "/auth/register", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Sx8!aaaa",
		"fullName": "Alice Example",
	}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	mustReadJSON(t, rr.Body, &out)
	return out.User.ID
}

func jsonReq(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, mustJSONBody(t, v))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// mustReadJSON decodes the {"data": ...} envelope into out.
func mustReadJSON(t *testing.T, r io.Reader, out any) {
	t.Helper()

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	wrapped := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped.Data) == 0 {
		t.Fatalf("decode json failed; body=%s", string(raw))
	}
	if err := json.Unmarshal(wrapped.Data, out); err != nil {
		t.Fatalf("decode wrapped.data failed; body=%s err=%v", string(raw), err)
	}
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body: %v body=%s", err, rr.Body.String())
	}
	return out.Error.Code
}

func withUserCtx(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, "fam-test"))
}

// withURLParam injects chi URL param (e.g. /template/{id}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

// faceCapture is a textured ramp; vertical and horizontal ramps belong to
// different people.
func faceCapture(t *testing.T, horizontal bool) string {
	t.Helper()
	const side = 200
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			pos := y
			if horizontal {
				pos = x
			}
			v := 20 + pos*200/side
			if (x+y)%2 == 0 {
				v += 20
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func faceBody(t *testing.T, horizontal bool) map[string]any {
	return map[string]any{
		"modality":       "face",
		"evidence":       faceCapture(t, horizontal),
		"evidenceFormat": "png",
	}
}
