package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindTooLarge       ErrKind = "too_large"      // 413
	KindUnprocessable  ErrKind = "unprocessable"  // 422
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindUnavailable    ErrKind = "unavailable"    // 503, retryable
	KindInfrastructure ErrKind = "infrastructure" // 503/500
	KindInternal       ErrKind = "internal"       // 500
)

// Stable machine codes. They double as audit reason codes.
const (
	CodeOK                  = "ok"
	CodeInvalidJSON         = "invalid_json"
	CodeValidationFailed    = "validation_failed"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeTokenMissing        = "token_missing"
	CodeTokenInvalid        = "token_invalid"
	CodeTokenExpired        = "token_expired"
	CodeTokenReused         = "token_reused"
	CodeNotEnrolled         = "not_enrolled"
	CodeNoSignalDetected    = "no_signal_detected"
	CodeQualityTooLow       = "quality_too_low"
	CodeBiometricMismatch   = "biometric_mismatch"
	CodeAlreadyEnrolled     = "already_enrolled"
	CodeEnrollConflict      = "enroll_conflict"
	CodeExtractionTimeout   = "extraction_timeout"
	CodeEvidenceTooLarge    = "evidence_too_large"
	CodeEvidenceMalformed   = "evidence_malformed"
	CodeUnsupportedFormat   = "unsupported_evidence_format"
	CodeUnsupportedModality = "unsupported_modality"
	CodeInvalidThreshold    = "invalid_threshold"
	CodeTemplateNotFound    = "template_not_found"
	CodeTemplateCorrupt     = "template_corrupt"
	CodeTemplateInactive    = "template_inactive"
	CodeUserNotFound        = "user_not_found"
	CodeEmailExists         = "email_already_exists"
	CodeUsernameExists      = "username_already_exists"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the caller may repeat the same request.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindInfrastructure || e.Code == CodeEnrollConflict
}

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the domain code carried by err, internal_error for foreign
// errors and ok for nil.
func CodeOf(err error) string {
	if err == nil {
		return CodeOK
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// AsAuthFailure re-labels a biometric enrollment or signal failure as an
// authentication failure while keeping its code and message. Other kinds
// (validation, retryable, internal) pass through unchanged.
func AsAuthFailure(err error) error {
	var de *Error
	if !errors.As(err, &de) {
		return ErrInternal(err)
	}
	if de.Kind != KindNotFound && de.Kind != KindUnprocessable {
		return de
	}
	cp := *de
	cp.Kind = KindAuth
	return &cp
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, CodeInvalidJSON, "invalid JSON body", cause)
}

func ErrValidation(fields map[string]string) *Error {
	return WithMeta(New(KindValidation, CodeValidationFailed, "request validation failed"), fields)
}

func ErrEvidenceMalformed(reason string) *Error {
	return WithMeta(New(KindValidation, CodeEvidenceMalformed, "evidence could not be decoded"), map[string]string{
		"reason": reason,
	})
}

func ErrUnsupportedEvidenceFormat(format string) *Error {
	return WithMeta(New(KindValidation, CodeUnsupportedFormat, "evidence format is not supported for this modality"), map[string]string{
		"format": format,
	})
}

func ErrUnsupportedModality(m string) *Error {
	return WithMeta(New(KindValidation, CodeUnsupportedModality, "unsupported biometric modality"), map[string]string{
		"modality": m,
	})
}

func ErrInvalidThreshold(v float64) *Error {
	return WithMeta(New(KindValidation, CodeInvalidThreshold, "threshold must be between 0 and 1"), map[string]string{
		"threshold": strconv.FormatFloat(v, 'f', -1, 64),
	})
}

// ----------------------
// Auth errors (401)
// ----------------------

// IMPORTANT: use this for login failures to avoid user enumeration.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, CodeInvalidCredentials, "invalid username or password")
}

func ErrBiometricMismatch() *Error {
	return New(KindAuth, CodeBiometricMismatch, "biometric verification failed")
}

func ErrTokenMissing() *Error {
	return New(KindAuth, CodeTokenMissing, "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, CodeTokenInvalid, "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, CodeTokenExpired, "token is expired")
}

// Detect refresh token rotation abuse (old token reused). The whole family is
// revoked when this is returned.
func ErrTokenReused() *Error {
	return New(KindAuth, CodeTokenReused, "refresh token reuse detected; please sign in again")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, CodeUserNotFound, "user not found")
}

func ErrNotEnrolled(m Modality) *Error {
	return WithMeta(New(KindNotFound, CodeNotEnrolled, "no active "+string(m)+" template; enroll first"), map[string]string{
		"modality": string(m),
	})
}

func ErrTemplateNotFound() *Error {
	return New(KindNotFound, CodeTemplateNotFound, "template not found")
}

// ErrTemplateInactive: deleted templates stay in history and cannot become
// the comparison baseline again.
func ErrTemplateInactive() *Error {
	return New(KindValidation, CodeTemplateInactive, "cannot set an inactive template as primary; enroll again instead")
}

// ----------------------
// Conflict (409)
// ----------------------

func ErrEmailAlreadyExists() *Error {
	return New(KindConflict, CodeEmailExists, "email already registered")
}

func ErrUsernameAlreadyExists() *Error {
	return New(KindConflict, CodeUsernameExists, "username already registered")
}

func ErrAlreadyEnrolled(m Modality) *Error {
	return WithMeta(New(KindConflict, CodeAlreadyEnrolled, "an active "+string(m)+" template exists; set replaceExisting to replace it"), map[string]string{
		"modality": string(m),
	})
}

func ErrEnrollConflict(cause error) *Error {
	return Wrap(KindConflict, CodeEnrollConflict, "concurrent enrollment in progress; retry", cause)
}

// ----------------------
// Evidence / extraction (413, 422, 503)
// ----------------------

func ErrEvidenceTooLarge(limit int) *Error {
	return WithMeta(New(KindTooLarge, CodeEvidenceTooLarge, "evidence exceeds the allowed size"), map[string]string{
		"limit_bytes": strconv.Itoa(limit),
	})
}

// ErrEvidencePixels rejects evidence whose declared dimensions exceed the
// decode budget.
func ErrEvidencePixels(width, height, limit int) *Error {
	return WithMeta(New(KindTooLarge, CodeEvidenceTooLarge, "evidence dimensions exceed the allowed size"), map[string]string{
		"width":        strconv.Itoa(width),
		"height":       strconv.Itoa(height),
		"limit_pixels": strconv.Itoa(limit),
	})
}

func ErrNoSignalDetected(m Modality) *Error {
	return WithMeta(New(KindUnprocessable, CodeNoSignalDetected, "no usable "+string(m)+" signal found in the evidence; capture again"), map[string]string{
		"modality": string(m),
	})
}

func ErrQualityTooLow(m Modality, quality, minimum float64) *Error {
	return WithMeta(New(KindUnprocessable, CodeQualityTooLow, "capture quality is too low; improve lighting or hold still and retry"), map[string]string{
		"modality": string(m),
		"quality":  strconv.FormatFloat(quality, 'f', 3, 64),
		"minimum":  strconv.FormatFloat(minimum, 'f', 3, 64),
	})
}

func ErrExtractionTimeout(m Modality) *Error {
	return WithMeta(New(KindUnavailable, CodeExtractionTimeout, "feature extraction timed out; retry"), map[string]string{
		"modality": string(m),
	})
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, CodeRateLimited, "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrTemplateCorrupt(cause error) *Error {
	return Wrap(KindInternal, CodeTemplateCorrupt, "stored template could not be opened", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, CodeInternal, "internal error", cause)
}
