package audit

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baechuer/biometric-auth/internal/domain"
	appctx "github.com/baechuer/biometric-auth/internal/pkg/context"
)

// Logger provides structured audit logging for auth business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Attempt logs one authentication attempt. Failures log at warn.
func (l *Logger) Attempt(ctx context.Context, a domain.AuthAttempt) {
	ev := l.log.Info()
	if a.Outcome != domain.OutcomeSuccess {
		ev = l.log.Warn()
	}
	ev = ev.
		Str("action", "auth_attempt").
		Str("method", string(a.Method)).
		Str("outcome", string(a.Outcome)).
		Str("reason", a.Reason).
		Str("user_id", a.UserID).
		Str("identifier", maskIdentifier(a.Identifier)).
		Str("ip", a.IP).
		Dur("latency", a.Latency).
		Str("request_id", requestID(ctx, a))
	if a.Modality != "" {
		ev = ev.Str("modality", string(a.Modality))
	}
	if a.Score != nil {
		ev = ev.Float64("score", *a.Score)
	}
	if a.Threshold != nil {
		ev = ev.Float64("threshold", *a.Threshold)
	}
	ev.Msg("Authentication attempt")
}

// Registered logs a new account
func (l *Logger) Registered(ctx context.Context, userID, email string) {
	l.log.Info().
		Str("action", "user_registered").
		Str("user_id", userID).
		Str("email", maskIdentifier(email)).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User registered")
}

// TokenRefreshed logs a token refresh
func (l *Logger) TokenRefreshed(ctx context.Context, userID string) {
	l.log.Info().
		Str("action", "token_refreshed").
		Str("user_id", userID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Access token refreshed")
}

// TokenReuseDetected logs a burned refresh family
func (l *Logger) TokenReuseDetected(ctx context.Context, ip string) {
	l.log.Warn().
		Str("action", "token_reuse_detected").
		Str("ip", ip).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Refresh token reuse detected; family revoked")
}

// Logout logs a user logout
func (l *Logger) Logout(ctx context.Context) {
	l.log.Info().
		Str("action", "logout").
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User logged out")
}

// TemplateChanged logs template lifecycle changes (deactivated, primary)
func (l *Logger) TemplateChanged(ctx context.Context, userID, templateID, change string) {
	l.log.Info().
		Str("action", "template_"+change).
		Str("user_id", userID).
		Str("template_id", templateID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Biometric template changed")
}

// maskIdentifier partially masks an email or username for privacy in logs
func maskIdentifier(id string) string {
	if id == "" {
		return ""
	}
	if len(id) < 5 {
		return "***"
	}
	at := strings.IndexByte(id, '@')
	switch {
	case at < 0:
		return id[:2] + "***"
	case at < 2:
		return id[:1] + "***" + id[at:]
	default:
		return id[:2] + "***" + id[at:]
	}
}

func requestID(ctx context.Context, a domain.AuthAttempt) string {
	if a.RequestID != "" {
		return a.RequestID
	}
	return appctx.GetRequestID(ctx)
}
