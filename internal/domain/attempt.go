package domain

import "time"

type AttemptMethod string

const (
	MethodPassword          AttemptMethod = "password"
	MethodPasswordBiometric AttemptMethod = "password+biometric"
	MethodBiometricVerify   AttemptMethod = "biometric_verify"
	MethodBiometricEnroll   AttemptMethod = "biometric_enroll"
)

type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeFailure AttemptOutcome = "failure"
)

// AuthAttempt is an append-only audit record. UserID is empty when the
// identifier did not resolve to a user.
type AuthAttempt struct {
	ID         string
	UserID     string
	Identifier string
	Method     AttemptMethod
	Modality   Modality
	Outcome    AttemptOutcome
	Reason     string
	Score      *float64
	Threshold  *float64
	Latency    time.Duration
	IP         string
	UserAgent  string
	RequestID  string
	CreatedAt  time.Time
}

// Finish fills outcome and reason from the terminal error.
func (a *AuthAttempt) Finish(err error, latency time.Duration) {
	a.Latency = latency
	a.Reason = CodeOf(err)
	if err == nil {
		a.Outcome = OutcomeSuccess
		return
	}
	a.Outcome = OutcomeFailure
}
