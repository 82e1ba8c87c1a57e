package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
)

type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
	err    error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user-%d", r.nextID)
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) MarkVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.IsVerified = true
		u.LastLogin = &at
		u.UpdatedAt = at
	})
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.LastLogin = &at
		u.UpdatedAt = at
	})
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id string, profile domain.Profile, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.Profile = profile
		u.UpdatedAt = at
	})
}

func (r *stubUserRepo) update(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *stubUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type otpKey struct {
	email   string
	purpose domain.Purpose
}

type stubOTPRepo struct {
	mu      sync.Mutex
	records map[otpKey]*domain.OTPRecord
	err     error
}

func newStubOTPRepo() *stubOTPRepo {
	return &stubOTPRepo{records: make(map[otpKey]*domain.OTPRecord)}
}

func (r *stubOTPRepo) Replace(_ context.Context, rec *domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	clone := *rec
	r.records[otpKey{rec.Email, rec.Purpose}] = &clone
	return nil
}

func (r *stubOTPRepo) Find(_ context.Context, email string, purpose domain.Purpose) (*domain.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rec, ok := r.records[otpKey{email, purpose}]
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *stubOTPRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.Attempts++
			return rec.Attempts, nil
		}
	}
	return 0, domain.ErrOTPNotFound
}

func (r *stubOTPRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rec := range r.records {
		if rec.ID == id {
			delete(r.records, k)
			return true, nil
		}
	}
	return false, nil
}

func (r *stubOTPRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for k, rec := range r.records {
		if rec.ExpiresAt.Before(now) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

func (r *stubOTPRepo) get(email string, purpose domain.Purpose) (*domain.OTPRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[otpKey{email, purpose}]
	if !ok {
		return nil, false
	}
	clone := *rec
	return &clone, true
}

type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	err      error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *stubSessionRepo) ReplaceForUser(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for k, existing := range r.sessions {
		if existing.UserID == s.UserID {
			delete(r.sessions, k)
		}
	}
	clone := *s
	r.sessions[s.TokenHash] = &clone
	return nil
}

func (r *stubSessionRepo) FindByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.sessions[hash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubSessionRepo) DeleteByTokenHash(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.sessions, hash)
	return nil
}

func (r *stubSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for k, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) countFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type stubNotifier struct {
	mu    sync.Mutex
	sent  []ports.Notification
	fails int
}

func (n *stubNotifier) Send(_ context.Context, msg ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails > 0 {
		n.fails--
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *stubNotifier) lastCode(email string, purpose domain.Purpose) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Email == email && n.sent[i].Purpose == purpose {
			return n.sent[i].Code
		}
	}
	return ""
}

type stubLimiter struct {
	err   error
	calls int
}

func (l *stubLimiter) Allow(context.Context, string, domain.Purpose) error {
	l.calls++
	return l.err
}

// fakeClock is a settable clock shared by all components under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	users    *stubUserRepo
	otps     *stubOTPRepo
	sessions *stubSessionRepo
	notifier *stubNotifier
	clock    *fakeClock
	engine   *OTPEngine
	tokens   *TokenIssuer
	svc      *AuthService
}

func newFixture() *fixture {
	f := &fixture{
		users:    newStubUserRepo(),
		otps:     newStubOTPRepo(),
		sessions: newStubSessionRepo(),
		notifier: &stubNotifier{},
		clock:    newFakeClock(),
	}
	log := zerolog.Nop()
	f.engine = NewOTPEngine(f.otps, nil, 10*time.Minute, bcrypt.MinCost, log).WithClock(f.clock.Now)
	f.tokens = NewTokenIssuer(f.sessions, f.users, "test-secret", 7*24*time.Hour, log).WithClock(f.clock.Now)
	f.svc = NewAuthService(f.users, f.sessions, f.engine, f.tokens, f.notifier, log).WithClock(f.clock.Now)
	return f
}

// wrongCode returns a well-formed code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
