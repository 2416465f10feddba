package http_handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	"github.com/baechuer/biometric-auth/internal/audit"
	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/logger"
	"github.com/baechuer/biometric-auth/internal/metrics"
	appctx "github.com/baechuer/biometric-auth/internal/pkg/context"
	"github.com/baechuer/biometric-auth/internal/transport/http/dto"
	"github.com/baechuer/biometric-auth/internal/transport/http/middleware"
	"github.com/baechuer/biometric-auth/internal/transport/http/response"
)

type AuthHandler struct {
	svc   *auth.Service
	audit *audit.Logger
}

func NewAuthHandler(svc *auth.Service, al *audit.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, audit: al}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	req.Normalize()
	if err := dto.Validate(&req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	u, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.audit.Registered(r.Context(), u.ID, u.Email)
	response.Created(w, dto.UserData{User: dto.NewUserView(u)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		h.rejectLogin(w, r, auth.LoginInput{Identifier: req.Username}, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := dto.Validate(&req); err != nil {
		h.rejectLogin(w, r, auth.LoginInput{Identifier: req.Username}, err)
		return
	}

	res, err := h.svc.Login(r.Context(), auth.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.AuthData{
		User:      dto.NewUserView(res.User),
		TokenPair: dto.NewTokenPairView(res.Tokens),
	})
}

// LoginBiometric is password plus a live capture matched against the
// primary template. Biometric failures surface as 401, malformed evidence
// as 400.
func (h *AuthHandler) LoginBiometric(w http.ResponseWriter, r *http.Request) {
	var req dto.BiometricLoginRequest
	factor := &auth.BiometricFactor{}
	if err := response.DecodeJSON(r, &req); err != nil {
		h.rejectLogin(w, r, auth.LoginInput{Identifier: req.Username, Biometric: factor}, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if m, err := domain.ParseModality(req.Modality); err == nil {
		factor.Modality = m
	}
	if err := dto.Validate(&req); err != nil {
		h.rejectLogin(w, r, auth.LoginInput{Identifier: req.Username, Biometric: factor}, err)
		return
	}
	// base64 and modality errors surface from Login, after the password
	factor.Threshold = req.Threshold
	factor.Decode = req.Decode

	res, err := h.svc.Login(r.Context(), auth.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
		Biometric:  factor,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	data := dto.AuthData{
		User:      dto.NewUserView(res.User),
		TokenPair: dto.NewTokenPairView(res.Tokens),
	}
	if res.Match != nil {
		score := res.Match.Score
		data.Score = &score
	}
	response.OK(w, data)
}

// rejectLogin answers a login request that never reached the orchestrator
// and still leaves its audit record.
func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, in auth.LoginInput, err error) {
	h.svc.RejectLogin(r.Context(), in, err)
	response.WriteError(w, r, err)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(&req); err != nil {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	metrics.ObserveRefresh(err)
	if err != nil {
		if domain.Is(err, domain.CodeTokenReused) {
			h.audit.TokenReuseDetected(r.Context(), appctx.GetClientInfo(r.Context()).IP)
		}
		response.WriteError(w, r, err)
		return
	}

	if claims, ierr := h.svc.Tokens().Inspect(pair.RefreshToken); ierr == nil {
		h.audit.TokenRefreshed(r.Context(), claims.UserID)
	}
	response.OK(w, dto.RefreshData{TokenPair: dto.NewTokenPairView(pair)})
}

// Logout is idempotent: unknown or already revoked tokens still get 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(&req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Retryable() {
			response.WriteError(w, r, err)
			return
		}
		logger.WithCtx(r.Context()).Debug().Err(err).Msg("logout with unusable token")
	}

	h.audit.Logout(r.Context())
	response.NoContent(w)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.UserData{User: dto.NewUserView(u)})
}

func (h *AuthHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.WriteError(w, r, domain.ErrValidation(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	out, err := h.svc.Attempts(r.Context(), userID, limit)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewAttemptsData(out))
}
