package dto

import (
	"encoding/base64"
	"strings"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// EvidenceFields is the capture payload shared by enrollment, verification
// and biometric login.
type EvidenceFields struct {
	Modality       string `json:"modality" validate:"required,modality"`
	Evidence       string `json:"evidence" validate:"required"`
	EvidenceFormat string `json:"evidenceFormat" validate:"required,evidence_format"`
}

// Decode parses the modality and base64 evidence. Standard and URL
// alphabets are accepted, padded or not.
func (f EvidenceFields) Decode() (domain.Modality, domain.Evidence, error) {
	m, err := domain.ParseModality(f.Modality)
	if err != nil {
		return "", domain.Evidence{}, err
	}
	data, err := decodeBase64(f.Evidence)
	if err != nil {
		return "", domain.Evidence{}, domain.ErrEvidenceMalformed("evidence is not valid base64")
	}
	return m, domain.Evidence{Data: data, Format: f.EvidenceFormat}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	// data URLs from browser capture: "data:image/png;base64,...."
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

type EnrollRequest struct {
	EvidenceFields
	ReplaceExisting bool `json:"replaceExisting"`
}

type VerifyRequest struct {
	EvidenceFields
	Threshold *float64 `json:"threshold,omitempty"`
}
