package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/infrastructure/redis"
	"github.com/baechuer/biometric-auth/internal/logger"
)

type RateLimiter interface {
	Allow(ctx context.Context, route, identity string, limit int, window time.Duration) (redis.Decision, error)
}

// IdentityFunc names the caller a request is counted against.
type IdentityFunc func(r *http.Request) string

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	Route    string
	Limit    int
	Window   time.Duration
	Identity IdentityFunc // userOrIP when nil
}

// RateLimitFixedWindow counts requests in Redis. Without a limiter it falls
// back to an in-process per-IP limiter. Limiter errors fail open.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Route == "" {
		cfg.Route = "unknown"
	}
	if cfg.Identity == nil {
		cfg.Identity = userOrIP
	}
	if cfg.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	if limiter == nil {
		return httprate.Limit(cfg.Limit, cfg.Window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeErr(w, r, domain.ErrRateLimited(cfg.Route))
			}),
		)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec, err := limiter.Allow(r.Context(), cfg.Route, cfg.Identity(r), cfg.Limit, cfg.Window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("route", cfg.Route).Msg("rate limiter unavailable; allowing")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					h.Set("Retry-After", strconv.Itoa(int(dec.RetryAfter.Seconds()+0.5)))
				}
				writeErr(w, r, domain.ErrRateLimited(cfg.Route))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

const maxPeekIdentifier = 254

// LoginIdentity counts login guesses per (identifier, IP). It peeks at the
// JSON "username" field and restores the body for the handler.
func LoginIdentity(r *http.Request) string {
	ip := "ip:" + clientIP(r)
	if r.Body == nil {
		return ip
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		// replay the read error (size limit) to the handler's decoder
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), failingReader{err}))
		return ip
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var peek struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(raw, &peek) != nil {
		return ip
	}
	id := strings.ToLower(strings.TrimSpace(peek.Username))
	if id == "" {
		return ip
	}
	if len(id) > maxPeekIdentifier {
		id = id[:maxPeekIdentifier]
	}
	return "id:" + id + "|" + ip
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

// userOrIP prefers the authenticated user; otherwise the client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + uid
	}
	return "ip:" + clientIP(r)
}

// clientIP reads RemoteAddr. Proxy headers are resolved earlier by
// chi's RealIP middleware, and only when the deployment trusts them.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
