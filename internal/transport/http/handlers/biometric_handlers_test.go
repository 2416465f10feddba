package http_handlers

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/transport/http/dto"
)

func enrollFace(t *testing.T, e *testEnv, userID string, horizontal, replace bool) *httptest.ResponseRecorder {
	t.Helper()
	body := faceBody(t, horizontal)
	body["replaceExisting"] = replace
	rr := httptest.NewRecorder()
	e.bio.Enroll(rr, withUserCtx(jsonReq(t, http.MethodPost, "/biometric/enroll", body), userID))
	return rr
}

func verifyFace(t *testing.T, e *testEnv, userID string, horizontal bool) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.bio.Verify(rr, withUserCtx(jsonReq(t, http.MethodPost, "/biometric/verify", faceBody(t, horizontal)), userID))
	return rr
}

func TestEnroll_CreatedThenAlreadyEnrolled(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	rr := enrollFace(t, e, id, false, false)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out dto.EnrollData
	mustReadJSON(t, rr.Body, &out)
	assert.NotEmpty(t, out.TemplateID)
	assert.Equal(t, "face", out.Modality)
	assert.Greater(t, out.Quality, 0.0)
	assert.False(t, out.Replaced)

	rr = enrollFace(t, e, id, false, false)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, domain.CodeAlreadyEnrolled, errCode(t, rr))

	rr = enrollFace(t, e, id, true, true)
	require.Equal(t, http.StatusCreated, rr.Code)
	mustReadJSON(t, rr.Body, &out)
	assert.True(t, out.Replaced)
}

func TestEnroll_RequiresUser(t *testing.T) {
	e := newTestEnv(t)
	rr := httptest.NewRecorder()
	e.bio.Enroll(rr, jsonReq(t, http.MethodPost, "/biometric/enroll", faceBody(t, false)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEnroll_RejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"unknown modality", map[string]any{"modality": "iris", "evidence": "AAAA", "evidenceFormat": "png"}, domain.CodeUnsupportedModality},
		{"unknown format", map[string]any{"modality": "face", "evidence": "AAAA", "evidenceFormat": "tiff"}, domain.CodeUnsupportedFormat},
		{"missing evidence", map[string]any{"modality": "face", "evidenceFormat": "png"}, domain.CodeValidationFailed},
		{"bad base64", map[string]any{"modality": "face", "evidence": "%%%", "evidenceFormat": "png"}, domain.CodeEvidenceMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			e.bio.Enroll(rr, withUserCtx(jsonReq(t, http.MethodPost, "/biometric/enroll", tc.body), id))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.code, errCode(t, rr))
		})
	}
}

func TestEnroll_RejectsOversizedCanvasBeforeDecoding(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	// A few dozen bytes declaring an 8000x8000 screen.
	pal := color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}
	anim := &gif.GIF{Config: image.Config{Width: 8000, Height: 8000}}
	for i := 0; i < 2; i++ {
		anim.Image = append(anim.Image, image.NewPaletted(image.Rect(0, 0, 1, 1), pal))
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))

	body := map[string]any{
		"modality":       "face",
		"evidence":       base64.StdEncoding.EncodeToString(buf.Bytes()),
		"evidenceFormat": "gif",
	}
	rr := httptest.NewRecorder()
	e.bio.Enroll(rr, withUserCtx(jsonReq(t, http.MethodPost, "/biometric/enroll", body), id))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, domain.CodeEvidenceTooLarge, errCode(t, rr))
}

func TestVerify_MatchMismatchAndNotEnrolled(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	rr := verifyFace(t, e, id, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.CodeNotEnrolled, errCode(t, rr))
	assert.NotContains(t, rr.Body.String(), "score")

	require.Equal(t, http.StatusCreated, enrollFace(t, e, id, false, false).Code)

	rr = verifyFace(t, e, id, false)
	require.Equal(t, http.StatusOK, rr.Code)
	var out dto.VerifyData
	mustReadJSON(t, rr.Body, &out)
	assert.True(t, out.Matched)
	assert.InDelta(t, 1.0, out.Score, 1e-9)
	assert.Equal(t, 0.80, out.ThresholdUsed)

	rr = verifyFace(t, e, id, true)
	require.Equal(t, http.StatusOK, rr.Code)
	mustReadJSON(t, rr.Body, &out)
	assert.False(t, out.Matched)
	assert.Less(t, out.Score, out.ThresholdUsed)
}

func TestVerify_InvalidThreshold(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	body := faceBody(t, false)
	body["threshold"] = 1.5
	rr := httptest.NewRecorder()
	e.bio.Verify(rr, withUserCtx(jsonReq(t, http.MethodPost, "/biometric/verify", body), id))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeInvalidThreshold, errCode(t, rr))
}

func TestStatusTemplatesAndLifecycle(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	get := func(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, withUserCtx(httptest.NewRequest(http.MethodGet, target, nil), id))
		return rr
	}

	var st dto.StatusData
	mustReadJSON(t, get(e.bio.Status, "/biometric/status").Body, &st)
	assert.False(t, st.IsEnrolled)
	assert.Empty(t, st.TemplatesByModality)

	var first, second dto.EnrollData
	mustReadJSON(t, enrollFace(t, e, id, false, false).Body, &first)
	mustReadJSON(t, enrollFace(t, e, id, true, true).Body, &second)

	mustReadJSON(t, get(e.bio.Status, "/biometric/status").Body, &st)
	assert.True(t, st.IsEnrolled)
	require.Len(t, st.TemplatesByModality, 1)
	assert.Equal(t, second.TemplateID, st.TemplatesByModality[0].TemplateID)
	assert.Equal(t, 2, st.TemplatesByModality[0].HistoryCount)

	var list dto.TemplatesData
	mustReadJSON(t, get(e.bio.Templates, "/biometric/templates").Body, &list)
	require.Len(t, list.Templates, 2)
	active := 0
	for _, tpl := range list.Templates {
		if tpl.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	setPrimary := func(templateID string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		e.bio.SetPrimary(rr, withURLParam(withUserCtx(httptest.NewRequest(http.MethodPost, "/biometric/template/x/primary", nil), id), "id", templateID))
		return rr
	}

	// the replaced template stays history
	rr := setPrimary(first.TemplateID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeTemplateInactive, errCode(t, rr))
	require.Equal(t, http.StatusNoContent, setPrimary(second.TemplateID).Code)
	assert.Equal(t, http.StatusOK, verifyFace(t, e, id, true).Code)

	rr = httptest.NewRecorder()
	e.bio.DeleteTemplate(rr, withURLParam(withUserCtx(httptest.NewRequest(http.MethodDelete, "/biometric/template/x", nil), id), "id", second.TemplateID))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = verifyFace(t, e, id, true)
	assert.Equal(t, domain.CodeNotEnrolled, errCode(t, rr))

	// deletion is final
	rr = setPrimary(second.TemplateID)
	assert.Equal(t, domain.CodeTemplateInactive, errCode(t, rr))
	rr = verifyFace(t, e, id, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.CodeNotEnrolled, errCode(t, rr))

	rr = httptest.NewRecorder()
	e.bio.DeleteTemplate(rr, withURLParam(withUserCtx(httptest.NewRequest(http.MethodDelete, "/biometric/template/x", nil), id), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.CodeTemplateNotFound, errCode(t, rr))
}

func TestTemplates_OtherUsersTemplateIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t)

	var enrolled dto.EnrollData
	mustReadJSON(t, enrollFace(t, e, id, false, false).Body, &enrolled)

	rr := httptest.NewRecorder()
	e.bio.DeleteTemplate(rr, withURLParam(withUserCtx(httptest.NewRequest(http.MethodDelete, "/biometric/template/x", nil), "mallory"), "id", enrolled.TemplateID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
