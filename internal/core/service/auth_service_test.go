package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
)

func register(t *testing.T, f *fixture, email string, role domain.Role) {
	t.Helper()
	err := f.svc.Register(context.Background(), ports.RegisterInput{Email: email, FullName: "Alice Doe", Role: role})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
}

func registerVerified(t *testing.T, f *fixture, email string, role domain.Role) *ports.AuthResult {
	t.Helper()
	register(t, f, email, role)
	res, err := f.svc.VerifyRegistration(context.Background(), email, f.notifier.lastCode(email, domain.PurposeRegistration))
	if err != nil {
		t.Fatalf("VerifyRegistration returned error: %v", err)
	}
	return res
}

func login(t *testing.T, f *fixture, email string) *ports.AuthResult {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.RequestLogin(ctx, email); err != nil {
		t.Fatalf("RequestLogin returned error: %v", err)
	}
	res, err := f.svc.VerifyLogin(ctx, email, f.notifier.lastCode(email, domain.PurposeLogin))
	if err != nil {
		t.Fatalf("VerifyLogin returned error: %v", err)
	}
	return res
}

func TestAuthService_Register_Success(t *testing.T) {
	f := newFixture()
	register(t, f, "  alice@x.com ", domain.RolePatient)

	user, err := f.users.FindByEmail(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("expected trimmed email to be stored: %v", err)
	}
	if user.IsVerified {
		t.Fatalf("new users must start unverified")
	}
	p, ok := user.Profile.(domain.PatientProfile)
	if !ok || p.FullName != "Alice Doe" {
		t.Fatalf("unexpected profile: %#v", user.Profile)
	}
	if code := f.notifier.lastCode("alice@x.com", domain.PurposeRegistration); len(code) != 6 {
		t.Fatalf("expected a registration code to be sent, got %q", code)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		in   ports.RegisterInput
	}{
		{name: "missing email", in: ports.RegisterInput{FullName: "A", Role: domain.RolePatient}},
		{name: "bad email", in: ports.RegisterInput{Email: "nope", FullName: "A", Role: domain.RolePatient}},
		{name: "bad role", in: ports.RegisterInput{Email: "a@x.com", FullName: "A", Role: "admin"}},
		{name: "missing name", in: ports.RegisterInput{Email: "a@x.com", Role: domain.RoleDoctor}},
		{name: "profile role mismatch", in: ports.RegisterInput{Email: "a@x.com", FullName: "A", Role: domain.RolePatient, Profile: domain.DoctorProfile{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.Register(ctx, tt.in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if f.users.count() != 0 {
		t.Fatalf("invalid input must not create users")
	}
}

func TestAuthService_Register_ProfileKeepsGivenFields(t *testing.T) {
	f := newFixture()
	err := f.svc.Register(context.Background(), ports.RegisterInput{
		Email:    "doc@x.com",
		FullName: "Dr. Bob",
		Role:     domain.RoleDoctor,
		Profile:  domain.DoctorProfile{Specialty: "cardiology", Experience: 12},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	user, _ := f.users.FindByEmail(context.Background(), "doc@x.com")
	d := user.Profile.(domain.DoctorProfile)
	if d.FullName != "Dr. Bob" || d.Specialty != "cardiology" || d.Experience != 12 {
		t.Fatalf("unexpected profile: %+v", d)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := newFixture()
	register(t, f, "alice@x.com", domain.RolePatient)

	err := f.svc.Register(context.Background(), ports.RegisterInput{Email: "alice@x.com", FullName: "Other", Role: domain.RoleDoctor})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if Message(err) != "User with this email already exists" {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if f.users.count() != 1 {
		t.Fatalf("expected exactly one user, got %d", f.users.count())
	}
}

func TestAuthService_Register_DeliveryFailureKeepsAccount(t *testing.T) {
	f := newFixture()
	f.notifier.fails = 1

	err := f.svc.Register(context.Background(), ports.RegisterInput{Email: "alice@x.com", FullName: "Alice", Role: domain.RolePatient})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if Message(err) != "Failed to send verification email" {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if f.users.count() != 1 {
		t.Fatalf("account must remain after a failed send")
	}

	if err := f.svc.ResendRegistration(context.Background(), "alice@x.com"); err != nil {
		t.Fatalf("ResendRegistration returned error: %v", err)
	}
	if _, err := f.svc.VerifyRegistration(context.Background(), "alice@x.com", f.notifier.lastCode("alice@x.com", domain.PurposeRegistration)); err != nil {
		t.Fatalf("expected resent code to verify, got %v", err)
	}
}

func TestAuthService_ResendRegistration_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.svc.ResendRegistration(ctx, "ghost@x.com"); !errors.Is(err, domain.ErrNoSuchAccount) {
		t.Fatalf("expected ErrNoSuchAccount, got %v", err)
	}
	registerVerified(t, f, "alice@x.com", domain.RolePatient)
	if err := f.svc.ResendRegistration(ctx, "alice@x.com"); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

// Register, burn the code with three wrong guesses, re-request, then verify.
func TestAuthService_RegistrationExhaustionScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	register(t, f, "alice@x.com", domain.RolePatient)

	first := f.notifier.lastCode("alice@x.com", domain.PurposeRegistration)
	bad := wrongCode(first)

	for i := 1; i <= 3; i++ {
		_, err := f.svc.VerifyRegistration(ctx, "alice@x.com", bad)
		if err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
		if i < 3 && !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
		if i == 3 && !errors.Is(err, domain.ErrTooManyAttempts) {
			t.Fatalf("third attempt must report exhaustion, got %v", err)
		}
	}

	if _, err := f.svc.VerifyRegistration(ctx, "alice@x.com", first); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("correct code after exhaustion must fail, got %v", err)
	}

	if err := f.svc.ResendRegistration(ctx, "alice@x.com"); err != nil {
		t.Fatalf("ResendRegistration returned error: %v", err)
	}
	res, err := f.svc.VerifyRegistration(ctx, "alice@x.com", f.notifier.lastCode("alice@x.com", domain.PurposeRegistration))
	if err != nil {
		t.Fatalf("expected fresh code to verify, got %v", err)
	}
	if res.Token == "" || !res.User.IsVerified {
		t.Fatalf("unexpected result: %+v", res)
	}

	id, err := f.svc.CurrentUser(ctx, res.Token)
	if err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if id.Role != domain.RolePatient {
		t.Fatalf("expected patient, got %s", id.Role)
	}
}

func TestAuthService_VerifyRegistration_MalformedCode(t *testing.T) {
	f := newFixture()
	register(t, f, "alice@x.com", domain.RolePatient)

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		if _, err := f.svc.VerifyRegistration(context.Background(), "alice@x.com", code); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("code %q: expected ErrValidation, got %v", code, err)
		}
	}
	rec, ok := f.otps.get("alice@x.com", domain.PurposeRegistration)
	if !ok || rec.Attempts != 0 {
		t.Fatalf("malformed codes must not spend attempts: %+v", rec)
	}
}

func TestAuthService_VerifyRegistration_Expired(t *testing.T) {
	f := newFixture()
	register(t, f, "alice@x.com", domain.RolePatient)
	code := f.notifier.lastCode("alice@x.com", domain.PurposeRegistration)

	f.clock.Advance(11 * time.Minute)
	_, expiredErr := f.svc.VerifyRegistration(context.Background(), "alice@x.com", code)
	_, missingErr := f.svc.VerifyRegistration(context.Background(), "nobody@x.com", code)
	if !errors.Is(expiredErr, domain.ErrInvalidCode) || !errors.Is(missingErr, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for both, got %v / %v", expiredErr, missingErr)
	}
	if Message(expiredErr) != Message(missingErr) {
		t.Fatalf("expired and missing codes must read the same: %q vs %q", Message(expiredErr), Message(missingErr))
	}
}

func TestAuthService_RequestLogin_Unverified(t *testing.T) {
	f := newFixture()
	register(t, f, "alice@x.com", domain.RolePatient)

	err := f.svc.RequestLogin(context.Background(), "alice@x.com")
	if !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if !strings.Contains(strings.ToLower(Message(err)), "verify") {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if _, ok := f.otps.get("alice@x.com", domain.PurposeLogin); ok {
		t.Fatalf("no login code may be issued for an unverified account")
	}
}

func TestAuthService_RequestLogin_NoAccount(t *testing.T) {
	f := newFixture()
	if err := f.svc.RequestLogin(context.Background(), "ghost@x.com"); !errors.Is(err, domain.ErrNoSuchAccount) {
		t.Fatalf("expected ErrNoSuchAccount, got %v", err)
	}
}

func TestAuthService_RequestLogin_RateLimited(t *testing.T) {
	f := newFixture()
	registerVerified(t, f, "alice@x.com", domain.RolePatient)
	f.engine.limiter = &stubLimiter{err: domain.ErrRateLimited}

	err := f.svc.RequestLogin(context.Background(), "alice@x.com")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAuthService_SingleActiveSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reg := registerVerified(t, f, "alice@x.com", domain.RolePatient)

	first := login(t, f, "alice@x.com")
	second := login(t, f, "alice@x.com")

	if n := f.sessions.countFor(reg.User.ID); n != 1 {
		t.Fatalf("expected exactly one session, got %d", n)
	}
	if _, err := f.svc.CurrentUser(ctx, first.Token); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("first token must be invalid after second login, got %v", err)
	}
	if _, err := f.svc.CurrentUser(ctx, reg.Token); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("registration token must be invalid after login, got %v", err)
	}
	if _, err := f.svc.CurrentUser(ctx, second.Token); err != nil {
		t.Fatalf("second token must be valid, got %v", err)
	}
}

func TestAuthService_VerifyLogin_UpdatesLastLogin(t *testing.T) {
	f := newFixture()
	registerVerified(t, f, "alice@x.com", domain.RolePatient)

	f.clock.Advance(time.Hour)
	res := login(t, f, "alice@x.com")

	user, _ := f.users.FindByID(context.Background(), res.User.ID)
	if user.LastLogin == nil || !user.LastLogin.Equal(f.clock.Now()) {
		t.Fatalf("expected last login %v, got %v", f.clock.Now(), user.LastLogin)
	}
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res := registerVerified(t, f, "alice@x.com", domain.RolePatient)

	if err := f.svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("first logout returned error: %v", err)
	}
	if err := f.svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("second logout returned error: %v", err)
	}
	if err := f.svc.Logout(ctx, ""); err != nil {
		t.Fatalf("empty logout returned error: %v", err)
	}
	if _, err := f.svc.CurrentUser(ctx, res.Token); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("token must be invalid after logout, got %v", err)
	}
}

func TestAuthService_UpdateProfile_MergesOnlyGivenFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "alice@x.com",
		FullName: "Alice",
		Role:     domain.RolePatient,
		Profile: domain.PatientProfile{
			Phone:      "111",
			Address:    "1 Main St",
			BloodGroup: "O+",
			Allergies:  []string{"penicillin"},
		},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	user, _ := f.users.FindByEmail(ctx, "alice@x.com")

	phone := "555"
	if err := f.svc.UpdateProfile(ctx, user.ID, domain.PatientPatch{Phone: &phone}); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	updated, _ := f.users.FindByID(ctx, user.ID)
	got := updated.Profile.(domain.PatientProfile)
	want := domain.PatientProfile{
		FullName:   "Alice",
		Phone:      "555",
		Address:    "1 Main St",
		BloodGroup: "O+",
		Allergies:  []string{"penicillin"},
	}
	if got.FullName != want.FullName || got.Phone != want.Phone || got.Address != want.Address ||
		got.BloodGroup != want.BloodGroup || len(got.Allergies) != 1 || got.Allergies[0] != "penicillin" {
		t.Fatalf("unexpected merge result: %+v", got)
	}
}

func TestAuthService_UpdateProfile_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res := registerVerified(t, f, "alice@x.com", domain.RolePatient)

	fee := 50.0
	if err := f.svc.UpdateProfile(ctx, res.User.ID, domain.DoctorPatch{ConsultationFee: &fee}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for role mismatch, got %v", err)
	}
	phone := "1"
	if err := f.svc.UpdateProfile(ctx, "missing", domain.PatientPatch{Phone: &phone}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_Cleanup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	registerVerified(t, f, "alice@x.com", domain.RolePatient)
	register(t, f, "bob@x.com", domain.RoleDoctor)

	f.clock.Advance(8 * 24 * time.Hour)
	report, err := f.svc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if report.OTPs != 1 || report.Sessions != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestAuthService_Cleanup_RunsBothOnFailure(t *testing.T) {
	f := newFixture()
	registerVerified(t, f, "alice@x.com", domain.RolePatient)
	f.otps.err = errors.New("mongo down")

	f.clock.Advance(8 * 24 * time.Hour)
	report, err := f.svc.Cleanup(context.Background())
	if err == nil {
		t.Fatalf("expected error from otp purge")
	}
	if report.Sessions != 1 {
		t.Fatalf("session purge must still run, got %+v", report)
	}
}

func TestAuthService_UnexpectedErrorMessage(t *testing.T) {
	f := newFixture()
	f.users.err = errors.New("connection refused")

	err := f.svc.Register(context.Background(), ports.RegisterInput{Email: "alice@x.com", FullName: "A", Role: domain.RolePatient})
	if err == nil {
		t.Fatalf("expected error")
	}
	if msg := Message(err); strings.Contains(msg, "connection refused") {
		t.Fatalf("store errors must not leak: %q", msg)
	}
}
