package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/api/handler"
	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
)

// fakeAuth accepts the token "patient-token" and records registrations.
type fakeAuth struct {
	registered []ports.RegisterInput
}

func (f *fakeAuth) Register(_ context.Context, in ports.RegisterInput) error {
	f.registered = append(f.registered, in)
	return nil
}

func (f *fakeAuth) ResendRegistration(context.Context, string) error { return domain.ErrNoSuchAccount }

func (f *fakeAuth) VerifyRegistration(context.Context, string, string) (*ports.AuthResult, error) {
	return nil, domain.ErrInvalidCode
}

func (f *fakeAuth) RequestLogin(context.Context, string) error { return domain.ErrNotVerified }

func (f *fakeAuth) VerifyLogin(context.Context, string, string) (*ports.AuthResult, error) {
	return nil, domain.ErrTooManyAttempts
}

func (f *fakeAuth) CurrentUser(_ context.Context, token string) (*domain.Identity, error) {
	if token == "patient-token" {
		return &domain.Identity{
			ID:         "p1",
			Email:      "alice@x.com",
			Role:       domain.RolePatient,
			Profile:    domain.PatientProfile{FullName: "Alice"},
			IsVerified: true,
		}, nil
	}
	return nil, domain.ErrInvalidSession
}

func (f *fakeAuth) Logout(context.Context, string) error { return nil }

func (f *fakeAuth) UpdateProfile(context.Context, string, domain.ProfilePatch) error { return nil }

func (f *fakeAuth) Cleanup(context.Context) (ports.CleanupReport, error) {
	return ports.CleanupReport{}, nil
}

func newTestRouter(auth *fakeAuth) http.Handler {
	return NewRouter(Deps{
		Auth:     auth,
		Checks:   map[string]handler.Check{"mongodb": func(context.Context) error { return nil }},
		Log:      zerolog.Nop(),
		Registry: prometheus.NewRegistry(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRegister(t *testing.T) {
	auth := &fakeAuth{}
	rec := do(t, newTestRouter(auth), http.MethodPost, "/auth/register", `{"email":"alice@x.com","full_name":"Alice","role":"patient"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(auth.registered) != 1 {
		t.Fatalf("expected one registration, got %d", len(auth.registered))
	}
}

func TestRouter_FlowErrorStatuses(t *testing.T) {
	r := newTestRouter(&fakeAuth{})
	tests := []struct {
		path string
		body string
		want int
	}{
		{"/auth/register/resend", `{"email":"alice@x.com"}`, http.StatusNotFound},
		{"/auth/register/verify", `{"email":"alice@x.com","code":"123456"}`, http.StatusUnauthorized},
		{"/auth/otp", `{"email":"alice@x.com"}`, http.StatusForbidden},
		{"/auth/login/verify", `{"email":"alice@x.com","code":"123456"}`, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		rec := do(t, r, http.MethodPost, tt.path, tt.body, "")
		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: invalid json: %v", tt.path, err)
		}
		if resp["success"] != false || resp["message"] == "" {
			t.Fatalf("%s: unexpected envelope %v", tt.path, resp)
		}
	}
}

func TestRouter_MeRequiresSession(t *testing.T) {
	r := newTestRouter(&fakeAuth{})

	rec := do(t, r, http.MethodGet, "/auth/me", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "session invalid, please log in again" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/auth/me", "", "patient-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"role":"patient"`) {
		t.Fatalf("unexpected identity: %s", rec.Body.String())
	}
}

func TestRouter_PortalRoles(t *testing.T) {
	r := newTestRouter(&fakeAuth{})

	if rec := do(t, r, http.MethodGet, "/patient/profile", "", "patient-token"); rec.Code != http.StatusOK {
		t.Fatalf("patient portal: expected 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/doctor/profile", "", "patient-token"); rec.Code != http.StatusForbidden {
		t.Fatalf("doctor portal: expected 403, got %d", rec.Code)
	}
}

func TestRouter_ProbesAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeAuth{})

	for _, path := range []string{"/health", "/health/ready"} {
		if rec := do(t, r, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	rec := do(t, r, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthvault_requests_total") {
		t.Fatalf("expected http request metrics, got %s", rec.Body.String())
	}
}
