package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/pkg/metrics"
)

// AuthService implements registration, passwordless login and sessions.
type AuthService struct {
	users    ports.UserRepository
	sessions ports.SessionRepository
	otp      *OTPEngine
	tokens   *TokenIssuer
	notifier ports.Notifier
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	otp *OTPEngine,
	tokens *TokenIssuer,
	notifier ports.Notifier,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		otp:      otp,
		tokens:   tokens,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the clock used for timestamps, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register creates an unverified account and mails a registration code.
// The account is kept even when delivery fails; ResendRegistration
// recovers it.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) error {
	email, err := s.checkEmail(in.Email)
	if err != nil {
		return err
	}
	fullName := strings.TrimSpace(in.FullName)
	profile, err := buildProfile(in.Role, fullName, in.Profile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(profile.DisplayName()) == "" {
		return domain.Invalid("full name is required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return fail(domain.ErrDuplicateEmail, "User with this email already exists")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return s.unexpected("register", err, "Registration failed. Please try again.")
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, &domain.User{
		Email:     email,
		Role:      in.Role,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, domain.ErrDuplicateEmail) {
		return fail(domain.ErrDuplicateEmail, "User with this email already exists")
	}
	if err != nil {
		return s.unexpected("register", err, "Registration failed. Please try again.")
	}
	metrics.UsersRegisteredTotal.WithLabelValues(string(user.Role)).Inc()
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")

	return s.issueAndSend(ctx, email, domain.PurposeRegistration, "Failed to send verification email", "Registration failed. Please try again.")
}

// ResendRegistration issues a new registration code for an account that
// exists but was never verified.
func (s *AuthService) ResendRegistration(ctx context.Context, email string) error {
	email, err := s.checkEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return fail(domain.ErrNoSuchAccount, "No account found with this email address")
	}
	if err != nil {
		return s.unexpected("resend registration", err, "Could not resend the code. Please try again.")
	}
	if user.IsVerified {
		return fail(domain.ErrAlreadyVerified, "This email address is already verified. Please log in.")
	}
	return s.issueAndSend(ctx, email, domain.PurposeRegistration, "Failed to send verification email", "Could not resend the code. Please try again.")
}

// VerifyRegistration consumes the registration code, marks the account
// verified and opens its session.
func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) (*ports.AuthResult, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.checkCode(code); err != nil {
		return nil, err
	}
	if err := s.consume(ctx, email, code, domain.PurposeRegistration, "Invalid or expired verification code", "Verification failed. Please try again."); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fail(domain.ErrUserNotFound, "User not found after verification")
	}
	if err != nil {
		return nil, s.unexpected("verify registration", err, "Verification failed. Please try again.")
	}

	now := s.now().UTC()
	if err := s.users.MarkVerified(ctx, user.ID, now); err != nil {
		return nil, s.unexpected("verify registration", err, "Verification failed. Please try again.")
	}
	user.IsVerified = true
	user.LastLogin = &now

	return s.startSession(ctx, user, "registration", "Verification failed. Please try again.")
}

// RequestLogin mails a login code to a verified account.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	email, err := s.checkEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return fail(domain.ErrNoSuchAccount, "No account found with this email address")
	}
	if err != nil {
		return s.unexpected("request login", err, "Login failed. Please try again.")
	}
	if !user.IsVerified {
		return fail(domain.ErrNotVerified, "Please verify your email address first")
	}
	return s.issueAndSend(ctx, email, domain.PurposeLogin, "Failed to send login code", "Login failed. Please try again.")
}

// VerifyLogin consumes the login code and opens a session, replacing any
// session the user already had.
func (s *AuthService) VerifyLogin(ctx context.Context, email, code string) (*ports.AuthResult, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.checkCode(code); err != nil {
		return nil, err
	}
	if err := s.consume(ctx, email, code, domain.PurposeLogin, "Invalid or expired login code", "Login failed. Please try again."); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fail(domain.ErrUserNotFound, "User not found")
	}
	if err != nil {
		return nil, s.unexpected("verify login", err, "Login failed. Please try again.")
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, s.unexpected("verify login", err, "Login failed. Please try again.")
	}
	user.LastLogin = &now

	return s.startSession(ctx, user, "login", "Login failed. Please try again.")
}

// CurrentUser resolves a session token. Any failure is domain.ErrInvalidSession.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	return s.tokens.Validate(ctx, token)
}

// Logout deletes the session behind token. Unknown or empty tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashToken(token)); err != nil {
		return s.unexpected("logout", err, "Logout failed. Please try again.")
	}
	return nil
}

// UpdateProfile merges patch into the user's stored profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return fail(domain.ErrUserNotFound, "User not found")
	}
	if err != nil {
		return s.unexpected("update profile", err, "Failed to update profile")
	}

	merged, err := domain.MergeProfile(user.Profile, patch)
	if err != nil {
		return err
	}
	if err := s.users.UpdateProfile(ctx, user.ID, merged, s.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fail(domain.ErrUserNotFound, "User not found")
		}
		return s.unexpected("update profile", err, "Failed to update profile")
	}
	return nil
}

// Cleanup removes expired passcodes and sessions. Both purges run even if
// one of them fails.
func (s *AuthService) Cleanup(ctx context.Context) (ports.CleanupReport, error) {
	var report ports.CleanupReport

	otps, otpErr := s.otp.PurgeExpired(ctx)
	if otpErr == nil {
		report.OTPs = otps
		metrics.CleanupDeletedTotal.WithLabelValues("otp").Add(float64(otps))
	}

	sessions, sessErr := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if sessErr == nil {
		report.Sessions = sessions
		metrics.CleanupDeletedTotal.WithLabelValues("session").Add(float64(sessions))
	}

	return report, errors.Join(otpErr, sessErr)
}

func (s *AuthService) checkEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", domain.Invalid("email is required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return "", domain.Invalid("please enter a valid email address")
	}
	return email, nil
}

func (s *AuthService) checkCode(code string) error {
	if err := s.validate.Var(code, "required,len=6,numeric"); err != nil {
		return domain.Invalid("code must be %d digits", domain.OTPLength)
	}
	return nil
}

func (s *AuthService) issueAndSend(ctx context.Context, email string, purpose domain.Purpose, sendFailMsg, failMsg string) error {
	code, rec, err := s.otp.Issue(ctx, email, purpose)
	if errors.Is(err, domain.ErrRateLimited) {
		return fail(domain.ErrRateLimited, "Too many codes requested. Please try again later.")
	}
	if err != nil {
		return s.unexpected("issue code", err, failMsg)
	}

	if err := s.notifier.Send(ctx, ports.Notification{Email: email, Code: code, Purpose: purpose}); err != nil {
		s.log.Warn().Err(err).Str("otp_id", rec.ID).Str("purpose", string(purpose)).Msg("code delivery failed")
		return failCause(domain.ErrDeliveryFailed, sendFailMsg, err)
	}
	return nil
}

func (s *AuthService) consume(ctx context.Context, email, code string, purpose domain.Purpose, invalidMsg, failMsg string) error {
	outcome, err := s.otp.Verify(ctx, email, code, purpose)
	if err != nil {
		return s.unexpected("verify code", err, failMsg)
	}
	switch outcome {
	case domain.OTPVerified:
		return nil
	case domain.OTPExhausted:
		return fail(domain.ErrTooManyAttempts, "Too many failed attempts. Please request a new code.")
	}
	return fail(domain.ErrInvalidCode, invalidMsg)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, flow, failMsg string) (*ports.AuthResult, error) {
	token, session, err := s.tokens.Mint(user)
	if err != nil {
		return nil, s.unexpected("mint token", err, failMsg)
	}
	if err := s.sessions.ReplaceForUser(ctx, session); err != nil {
		return nil, s.unexpected("store session", err, failMsg)
	}
	metrics.SessionsCreatedTotal.WithLabelValues(string(user.Role), flow).Inc()
	s.log.Info().Str("user_id", user.ID).Str("flow", flow).Msg("session started")
	return &ports.AuthResult{User: domain.IdentityOf(user), Token: token}, nil
}

func (s *AuthService) unexpected(op string, err error, msg string) error {
	s.log.Error().Err(err).Str("op", op).Msg("auth operation failed")
	return &Failure{Err: err, Msg: msg}
}

// buildProfile returns the profile to store for a new account, filling the
// full name from the top-level field when the profile leaves it blank.
func buildProfile(role domain.Role, fullName string, given domain.Profile) (domain.Profile, error) {
	if !role.Valid() {
		return nil, domain.Invalid("role must be patient or doctor")
	}
	if given == nil {
		return domain.NewProfile(role, fullName)
	}
	if given.Role() != role {
		return nil, domain.Invalid("profile does not match role %s", role)
	}
	switch p := given.(type) {
	case domain.PatientProfile:
		if strings.TrimSpace(p.FullName) == "" {
			p.FullName = fullName
		}
		return p, nil
	case domain.DoctorProfile:
		if strings.TrimSpace(p.FullName) == "" {
			p.FullName = fullName
		}
		return p, nil
	}
	return nil, domain.Invalid("unsupported profile")
}
