package auth

import (
	"context"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/logger"
	appctx "github.com/baechuer/biometric-auth/internal/pkg/context"
)

type LoginInput struct {
	Identifier string
	Password   string
	// Biometric is optional; when set the login is two-factor.
	Biometric *BiometricFactor
}

type BiometricFactor struct {
	Modality  domain.Modality
	Evidence  domain.Evidence
	Threshold *float64
	// Decode, when set, fills Modality and Evidence from the raw request.
	// It runs after the password check and its failure is audited like
	// any other biometric failure.
	Decode func() (domain.Modality, domain.Evidence, error)
}

type LoginResult struct {
	User   domain.User
	Tokens domain.TokenPair
	// Match is set for biometric logins.
	Match *domain.Match
}

type loginState int

const (
	stateStart loginState = iota
	statePasswordCheck
	stateBiometricCheck
	stateTokenIssue
	stateDone
	stateFailed
)

func (s loginState) String() string {
	switch s {
	case stateStart:
		return "START"
	case statePasswordCheck:
		return "PASSWORD_CHECK"
	case stateBiometricCheck:
		return "BIOMETRIC_CHECK"
	case stateTokenIssue:
		return "TOKEN_ISSUE"
	case stateDone:
		return "DONE"
	default:
		return "FAILED"
	}
}

const maxIdentifierLen = 128

// Login runs START -> PASSWORD_CHECK -> (BIOMETRIC_CHECK) -> TOKEN_ISSUE ->
// DONE, with FAILED reachable from every step. The password is always checked
// first so invalid credentials never pay for feature extraction. Both
// terminal states write exactly one audit record.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	started := s.now()
	att := s.loginAttempt(ctx, in)

	var (
		state = stateStart
		user  domain.User
		res   LoginResult
		err   error
	)
	for {
		switch state {
		case stateStart:
			state = statePasswordCheck

		case statePasswordCheck:
			u, ok := s.creds.VerifyPassword(ctx, in.Identifier, in.Password)
			if !ok {
				err = domain.ErrInvalidCredentials()
				state = stateFailed
				continue
			}
			user = u
			att.UserID = u.ID
			state = stateTokenIssue
			if in.Biometric != nil {
				state = stateBiometricCheck
			}

		case stateBiometricCheck:
			b := *in.Biometric
			if b.Decode != nil {
				bm, ev, derr := b.Decode()
				if derr != nil {
					err = derr
					state = stateFailed
					continue
				}
				b.Modality, b.Evidence = bm, ev
				att.Modality = bm
			}
			m, merr := s.biometrics.Match(ctx, user.ID, b.Modality, b.Evidence, b.Threshold)
			if merr != nil {
				err = domain.AsAuthFailure(merr)
				state = stateFailed
				continue
			}
			att.Score, att.Threshold = &m.Score, &m.Threshold
			if !m.Matched {
				err = domain.ErrBiometricMismatch()
				state = stateFailed
				continue
			}
			res.Match = &m
			state = stateTokenIssue

		case stateTokenIssue:
			pair, terr := s.tokens.Issue(ctx, user.ID)
			if terr != nil {
				err = terr
				state = stateFailed
				continue
			}
			res.User, res.Tokens = user, pair
			state = stateDone

		case stateDone:
			s.finishAttempt(ctx, att, started, nil)
			now := s.now().UTC()
			if terr := s.users.TouchLastLogin(ctx, user.ID, now); terr != nil {
				logger.WithCtx(ctx).Warn().Err(terr).Str("user_id", user.ID).Msg("last login update failed")
			} else {
				res.User.LastLoginAt = &now
			}
			return res, nil

		case stateFailed:
			s.finishAttempt(ctx, att, started, err)
			return LoginResult{}, err
		}
	}
}

// RejectLogin records the failed attempt of a login request refused before
// Login could run, such as a body that does not parse or validate.
func (s *Service) RejectLogin(ctx context.Context, in LoginInput, cause error) {
	s.finishAttempt(ctx, s.loginAttempt(ctx, in), s.now(), cause)
}

func (s *Service) loginAttempt(ctx context.Context, in LoginInput) domain.AuthAttempt {
	att := s.newAttempt(ctx, domain.MethodPassword)
	att.Identifier = truncate(in.Identifier, maxIdentifierLen)
	if in.Biometric != nil {
		att.Method = domain.MethodPasswordBiometric
		att.Modality = in.Biometric.Modality
	}
	return att
}

func (s *Service) newAttempt(ctx context.Context, method domain.AttemptMethod) domain.AuthAttempt {
	ci := appctx.GetClientInfo(ctx)
	return domain.AuthAttempt{
		Method:    method,
		IP:        ci.IP,
		UserAgent: ci.UserAgent,
		RequestID: appctx.GetRequestID(ctx),
	}
}

func (s *Service) finishAttempt(ctx context.Context, att domain.AuthAttempt, started time.Time, err error) {
	att.Finish(err, s.now().Sub(started))
	logger.WithCtx(ctx).Debug().
		Str("method", string(att.Method)).
		Str("reason", att.Reason).
		Dur("latency", att.Latency).
		Msg("login finished")
	s.attempts.Record(ctx, att)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
