package http_handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appbio "github.com/baechuer/biometric-auth/internal/application/biometric"
	"github.com/baechuer/biometric-auth/internal/audit"
	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/transport/http/dto"
	"github.com/baechuer/biometric-auth/internal/transport/http/middleware"
	"github.com/baechuer/biometric-auth/internal/transport/http/response"
)

type BiometricHandler struct {
	svc   *appbio.Service
	audit *audit.Logger
}

func NewBiometricHandler(svc *appbio.Service, al *audit.Logger) *BiometricHandler {
	return &BiometricHandler{svc: svc, audit: al}
}

func (h *BiometricHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.EnrollRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(&req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	m, ev, err := req.Decode()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Enroll(r.Context(), appbio.EnrollInput{
		UserID:          userID,
		Modality:        m,
		Evidence:        ev,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.Created(w, dto.EnrollData{
		TemplateID: res.Template.ID,
		Modality:   string(res.Template.Modality),
		Quality:    res.Template.Quality,
		Replaced:   res.Replaced,
	})
}

// Verify returns 200 for both outcomes; matched=false is a result.
func (h *BiometricHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.VerifyRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := dto.Validate(&req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	m, ev, err := req.Decode()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Verify(r.Context(), appbio.VerifyInput{
		UserID:    userID,
		Modality:  m,
		Evidence:  ev,
		Threshold: req.Threshold,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewVerifyData(res))
}

func (h *BiometricHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	st, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewStatusData(st))
}

func (h *BiometricHandler) Templates(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	list, err := h.svc.Templates(r.Context(), userID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewTemplatesData(list))
}

func (h *BiometricHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	userID, templateID, ok := h.templateTarget(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteTemplate(r.Context(), userID, templateID); err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.audit.TemplateChanged(r.Context(), userID, templateID, "deactivated")
	response.NoContent(w)
}

func (h *BiometricHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	userID, templateID, ok := h.templateTarget(w, r)
	if !ok {
		return
	}

	if err := h.svc.SetPrimary(r.Context(), userID, templateID); err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.audit.TemplateChanged(r.Context(), userID, templateID, "primary")
	response.NoContent(w)
}

func (h *BiometricHandler) templateTarget(w http.ResponseWriter, r *http.Request) (userID, templateID string, ok bool) {
	userID, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return "", "", false
	}

	templateID = strings.TrimSpace(chi.URLParam(r, "id"))
	if templateID == "" {
		response.WriteError(w, r, domain.ErrValidation(map[string]string{"id": "is required"}))
		return "", "", false
	}
	return userID, templateID, true
}
