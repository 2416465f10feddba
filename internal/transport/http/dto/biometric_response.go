package dto

import (
	"time"

	appbio "github.com/baechuer/biometric-auth/internal/application/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
)

type EnrollData struct {
	TemplateID string  `json:"templateId"`
	Modality   string  `json:"modality"`
	Quality    float64 `json:"quality"`
	Replaced   bool    `json:"replaced"`
}

type VerifyData struct {
	Matched       bool    `json:"matched"`
	Score         float64 `json:"score"`
	ThresholdUsed float64 `json:"thresholdUsed"`
}

func NewVerifyData(m domain.Match) VerifyData {
	return VerifyData{Matched: m.Matched, Score: m.Score, ThresholdUsed: m.Threshold}
}

type ModalityStatusView struct {
	Modality     string    `json:"modality"`
	TemplateID   string    `json:"templateId"`
	Quality      float64   `json:"quality"`
	EnrolledAt   time.Time `json:"enrolledAt"`
	HistoryCount int       `json:"historyCount"`
}

type StatusData struct {
	IsEnrolled          bool                 `json:"isEnrolled"`
	TemplatesByModality []ModalityStatusView `json:"templatesByModality"`
}

func NewStatusData(st appbio.Status) StatusData {
	out := StatusData{
		IsEnrolled:          st.Enrolled,
		TemplatesByModality: make([]ModalityStatusView, 0, len(st.Modalities)),
	}
	for _, m := range st.Modalities {
		out.TemplatesByModality = append(out.TemplatesByModality, ModalityStatusView{
			Modality:     string(m.Modality),
			TemplateID:   m.TemplateID,
			Quality:      m.Quality,
			EnrolledAt:   m.EnrolledAt,
			HistoryCount: m.History,
		})
	}
	return out
}

type TemplateView struct {
	ID            string     `json:"id"`
	Modality      string     `json:"modality"`
	Quality       float64    `json:"quality"`
	IsActive      bool       `json:"isActive"`
	IsPrimary     bool       `json:"isPrimary"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

type TemplatesData struct {
	Templates []TemplateView `json:"templates"`
}

func NewTemplatesData(in []domain.Template) TemplatesData {
	out := make([]TemplateView, 0, len(in))
	for _, t := range in {
		out = append(out, TemplateView{
			ID:            t.ID,
			Modality:      string(t.Modality),
			Quality:       t.Quality,
			IsActive:      t.Active,
			IsPrimary:     t.Primary,
			CreatedAt:     t.CreatedAt,
			DeactivatedAt: t.DeactivatedAt,
		})
	}
	return TemplatesData{Templates: out}
}
