package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/infrastructure/redis"
	appCtx "github.com/baechuer/biometric-auth/internal/pkg/context"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var gotID string
	var gotCI appCtx.ClientInfo
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = appCtx.GetRequestID(r.Context())
		gotCI = appCtx.GetClientInfo(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("User-Agent", "capture-app/1.0")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.NotEmpty(t, gotID)
	assert.Equal(t, gotID, rr.Header().Get(HeaderXRequestID))
	assert.Equal(t, "10.1.2.3", gotCI.IP)
	assert.Equal(t, "capture-app/1.0", gotCI.UserAgent)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderXRequestID, "client-rid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "client-rid", gotID)

	req.Header.Set(HeaderXRequestID, strings.Repeat("x", maxRequestIDLen+1))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, strings.Repeat("x", maxRequestIDLen+1), gotID)
}

func TestBodyLimit(t *testing.T) {
	we := &writeErrRecorder{}
	var readErr error
	h := BodyLimit(8, we.fn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 32)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, domain.Is(we.last, domain.CodeEvidenceTooLarge))

	// undeclared length: the reader enforces the cap
	we.last = nil
	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 32)))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, we.last)
	var mbe *http.MaxBytesError
	assert.ErrorAs(t, readErr, &mbe)
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(false)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	SecurityHeaders(true)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestAccessLogAndMetrics_PassThroughStatus(t *testing.T) {
	h := Metrics(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestLoginIdentity_PeeksAndRestoresBody(t *testing.T) {
	body := `{"username":" Alice ","password":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "1.2.3.4:999"

	assert.Equal(t, "id:alice|ip:1.2.3.4", LoginIdentity(req))

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`not json`))
	req.RemoteAddr = "1.2.3.4:999"
	assert.Equal(t, "ip:1.2.3.4", LoginIdentity(req))
}

func TestLoginIdentity_ReplaysSizeLimitError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"`+strings.Repeat("a", 64)+`"}`))
	req.Body = http.MaxBytesReader(rr, req.Body, 16)

	LoginIdentity(req)

	_, err := io.ReadAll(req.Body)
	var mbe *http.MaxBytesError
	assert.ErrorAs(t, err, &mbe)
}

func newLimiter(t *testing.T) *redis.FixedWindowLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return redis.NewFixedWindowLimiter(c)
}

func TestRateLimitFixedWindow_RedisCountsPerIdentity(t *testing.T) {
	we := &writeErrRecorder{}
	h := RateLimitFixedWindow(newLimiter(t), FixedWindowConfig{
		Route:    "login",
		Limit:    2,
		Window:   time.Minute,
		Identity: LoginIdentity,
	}, we.fn)(okHandler)

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"`+user+`"}`))
		req.RemoteAddr = "1.2.3.4:1000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send("alice").Code)
	rr := send("alice")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = send("alice")
	assert.True(t, domain.Is(we.last, domain.CodeRateLimited))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// another identifier from the same address has its own bucket
	we.last = nil
	assert.Equal(t, http.StatusOK, send("bob").Code)
	assert.Nil(t, we.last)
}

func TestRateLimitFixedWindow_FallbackByIPWithoutRedis(t *testing.T) {
	we := &writeErrRecorder{}
	h := RateLimitFixedWindow(nil, FixedWindowConfig{Route: "login", Limit: 1, Window: time.Minute}, we.fn)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "5.6.7.8:1"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, we.last)

	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, domain.Is(we.last, domain.CodeRateLimited))
}

func TestRateLimitFixedWindow_ZeroLimitDisabled(t *testing.T) {
	we := &writeErrRecorder{}
	h := RateLimitFixedWindow(nil, FixedWindowConfig{Route: "x"}, we.fn)(okHandler)
	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Equal(t, 0, we.calls)
}
