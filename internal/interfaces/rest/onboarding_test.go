package rest

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/samba-client/internal/interfaces/rest/handler"
	"github.com/pot-code/samba-client/internal/session"
)

func upload(t *testing.T, app *echo.Echo, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestOnboardingFlow(t *testing.T) {
	app := newTestServer(t)
	res := signUp(t, app, "Participant")
	if res.Onboarding != session.OnboardingHealth || res.HealthDone || res.SettingsDone {
		t.Fatalf("new account onboarding = %q %+v", res.Onboarding, res.Profile)
	}

	rec := do(t, app, http.MethodPut, "/api/v1/user/health", `{"noHeartCondition":true,"notPregnant":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("partial declaration = %d %s", rec.Code, rec.Body)
	}
	rec = do(t, app, http.MethodPut, "/api/v1/user/health", `{"noHeartCondition":true,"notPregnant":true,"acceptTerms":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
	decode(t, rec, &res)
	if res.Onboarding != session.OnboardingSettings || !res.HealthDone {
		t.Errorf("after health onboarding = %q", res.Onboarding)
	}

	rec = do(t, app, http.MethodPut, "/api/v1/user/profile",
		`{"name":"Dana","age":"31","email":"dana@samba.dev","phone":"+972501234567","gender":"Female"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, app, http.MethodGet, "/api/v1/user/profile", "")
	decode(t, rec, &res)
	if res.Onboarding != session.OnboardingDone || res.Phone != "+972501234567" || res.Gender != "Female" {
		t.Errorf("profile after settings = %+v onboarding=%q", res.Profile, res.Onboarding)
	}
}

func TestHealthDeclarationNeedsSession(t *testing.T) {
	app := newTestServer(t)
	rec := do(t, app, http.MethodPut, "/api/v1/user/health", `{"noHeartCondition":true,"notPregnant":true,"acceptTerms":true}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("signed-out health = %d", rec.Code)
	}
	rec = do(t, app, http.MethodGet, "/api/v1/user/profile", "")
	var res handler.ProfileResponse
	decode(t, rec, &res)
	if res.Onboarding != "" {
		t.Errorf("signed-out onboarding = %q", res.Onboarding)
	}
}

func TestUploadedMediaNamesAreUnique(t *testing.T) {
	app := newTestServer(t)
	signUp(t, app, "Instructor")

	var first, second map[string]string
	rec := upload(t, app, "/api/v1/lesson/media", "video.mp4", "lesson A")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body)
	}
	decode(t, rec, &first)
	decode(t, upload(t, app, "/api/v1/lesson/media", "video.mp4", "lesson B"), &second)
	if first["videoPath"] == "" || first["videoPath"] == second["videoPath"] {
		t.Errorf("upload paths = %q, %q", first["videoPath"], second["videoPath"])
	}

	rec = do(t, app, http.MethodPost, "/api/v1/lesson/beginner",
		`{"title":"Frevo","time":"2026-10-20T18:00","videoPath":"`+first["videoPath"]+`"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("create with uploaded video = %d %s", rec.Code, rec.Body)
	}
}

func TestCreateRejectsForeignVideoPath(t *testing.T) {
	app := newTestServer(t)
	signUp(t, app, "Instructor")
	rec := do(t, app, http.MethodPost, "/api/v1/lesson/beginner",
		`{"title":"Frevo","time":"2026-10-20T18:00","videoPath":"/data/prefs.sqlite"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var ve handler.RESTValidationError
	decode(t, rec, &ve)
	if len(ve.InvalidParams) != 1 {
		t.Errorf("invalid params = %s", rec.Body)
	}
}
