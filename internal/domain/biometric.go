package domain

import (
	"strings"
	"time"
)

// Modality is the biometric channel a template or evidence belongs to.
type Modality string

const (
	ModalityFace        Modality = "face"
	ModalityFingerprint Modality = "fingerprint"
)

// Modalities lists every supported modality in a stable order.
var Modalities = []Modality{ModalityFace, ModalityFingerprint}

func ParseModality(s string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(s))); m {
	case ModalityFace, ModalityFingerprint:
		return m, nil
	default:
		return "", ErrUnsupportedModality(s)
	}
}

// Template is a stored biometric reference. Payload is always sealed; the
// plain embedding never leaves the biometric service.
type Template struct {
	ID            string
	UserID        string
	Modality      Modality
	Payload       []byte
	Quality       float64
	Active        bool
	Primary       bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// Evidence is raw captured material, already transport-decoded.
type Evidence struct {
	Data   []byte
	Format string
}

// Match is the only thing a verification reveals to callers.
type Match struct {
	Matched   bool
	Score     float64
	Threshold float64
}
