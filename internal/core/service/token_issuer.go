package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/pkg/metrics"
)

const (
	tokenIssuer       = "healthvault"
	defaultSessionTTL = 7 * 24 * time.Hour
)

// SessionClaims is the JWT payload carried by a session token.
type SessionClaims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints session tokens and resolves them back to identities.
// A token is only honoured while its session row exists.
type TokenIssuer struct {
	sessions ports.SessionRepository
	users    ports.UserRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewTokenIssuer(sessions ports.SessionRepository, users ports.UserRepository, secret string, ttl time.Duration, log zerolog.Logger) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &TokenIssuer{
		sessions: sessions,
		users:    users,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the internal clock, used in tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		t.now = clock
	}
	return t
}

// TTL returns the session lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// HashToken is the key a token's session is stored under.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Mint signs a token for user and returns it with the session row the
// caller must persist. The token carries the session ID as its jti.
func (t *TokenIssuer) Mint(user *domain.User) (string, *domain.Session, error) {
	now := t.now().UTC().Truncate(time.Second)
	sessionID := uuid.NewString()
	expires := now.Add(t.ttl)

	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return token, &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: HashToken(token),
		CreatedAt: now,
		ExpiresAt: expires,
	}, nil
}

// Validate resolves token to the identity of its owner. Every failure,
// including store errors, is reported as domain.ErrInvalidSession.
func (t *TokenIssuer) Validate(ctx context.Context, token string) (*domain.Identity, error) {
	id, reason, err := t.validate(ctx, token)
	if err != nil {
		metrics.SessionValidationsTotal.WithLabelValues(reason).Inc()
		ev := t.log.Debug()
		if reason == "error" {
			ev = t.log.Error()
		}
		ev.Err(err).Str("reason", reason).Msg("session rejected")
		return nil, domain.ErrInvalidSession
	}
	metrics.SessionValidationsTotal.WithLabelValues("valid").Inc()
	return id, nil
}

func (t *TokenIssuer) validate(ctx context.Context, token string) (*domain.Identity, string, error) {
	if token == "" {
		return nil, "missing", domain.ErrInvalidSession
	}

	now := t.now()
	session, err := t.sessions.FindByTokenHash(ctx, HashToken(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, "no_session", err
	}
	if err != nil {
		return nil, "error", err
	}
	if !session.Live(now) {
		return nil, "expired", domain.ErrInvalidSession
	}

	claims := &SessionClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, "bad_token", err
	}
	if claims.ID != session.ID || claims.UserID != session.UserID {
		return nil, "mismatch", domain.ErrInvalidSession
	}

	user, err := t.users.FindByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, "no_user", err
	}
	if err != nil {
		return nil, "error", err
	}
	return domain.IdentityOf(user), "", nil
}
