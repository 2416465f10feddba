package dto

import (
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

type UserView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Phone       string     `json:"phone,omitempty"`
	IsActive    bool       `json:"isActive"`
	IsVerified  bool       `json:"isVerified"`
	IsEnrolled  bool       `json:"isEnrolled"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func NewUserView(u domain.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		IsActive:    u.Active,
		IsVerified:  u.Verified,
		IsEnrolled:  u.Enrolled,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type TokenPairView struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int64  `json:"expiresIn"`        // seconds
	RefreshExpiresIn int64  `json:"refreshExpiresIn"` // seconds
}

func NewTokenPairView(p domain.TokenPair) TokenPairView {
	return TokenPairView{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        int64(p.ExpiresIn.Seconds()),
		RefreshExpiresIn: int64(p.RefreshExpiresIn.Seconds()),
	}
}

type UserData struct {
	User UserView `json:"user"`
}

type AuthData struct {
	User      UserView      `json:"user"`
	TokenPair TokenPairView `json:"tokenPair"`
	// Score is set by biometric login.
	Score *float64 `json:"score,omitempty"`
}

type RefreshData struct {
	TokenPair TokenPairView `json:"tokenPair"`
}

type AttemptView struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Modality   string    `json:"modality,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Score      *float64  `json:"score,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Identifier string    `json:"identifier,omitempty"`
}

type AttemptsData struct {
	Attempts []AttemptView `json:"attempts"`
}

func NewAttemptsData(in []domain.AuthAttempt) AttemptsData {
	out := make([]AttemptView, 0, len(in))
	for _, a := range in {
		out = append(out, AttemptView{
			ID:         a.ID,
			Method:     string(a.Method),
			Modality:   string(a.Modality),
			Outcome:    string(a.Outcome),
			Reason:     a.Reason,
			Score:      a.Score,
			Threshold:  a.Threshold,
			LatencyMS:  a.Latency.Milliseconds(),
			IP:         a.IP,
			UserAgent:  a.UserAgent,
			RequestID:  a.RequestID,
			CreatedAt:  a.CreatedAt,
			Identifier: a.Identifier,
		})
	}
	return AttemptsData{Attempts: out}
}
