package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/healthvault/auth-service/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Config holds the record store connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store bundles the repositories backed by one database.
type Store struct {
	Client   *mongo.Client
	Users    *UserRepository
	OTPs     *OTPRepository
	Sessions *SessionRepository
}

var (
	_ ports.UserRepository    = (*UserRepository)(nil)
	_ ports.OTPRepository     = (*OTPRepository)(nil)
	_ ports.SessionRepository = (*SessionRepository)(nil)
)

// Open connects, pings, and ensures every collection's indexes exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		Client:   client,
		Users:    NewUserRepository(db),
		OTPs:     NewOTPRepository(db),
		Sessions: NewSessionRepository(db),
	}

	for name, ensure := range map[string]func(context.Context) error{
		collectionUsers:    s.Users.EnsureIndexes,
		collectionOTPs:     s.OTPs.EnsureIndexes,
		collectionSessions: s.Sessions.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return s, nil
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}
