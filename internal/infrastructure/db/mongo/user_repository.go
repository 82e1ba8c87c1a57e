package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthvault/auth-service/internal/core/domain"
)

const collectionUsers = "users"

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

// userDoc is the stored shape of a user. The profile is kept as raw BSON and
// decoded according to role.
type userDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Email      string             `bson:"email"`
	Role       string             `bson:"role"`
	Profile    bson.Raw           `bson:"profile"`
	IsVerified bool               `bson:"is_verified"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
	LastLogin  *time.Time         `bson:"last_login,omitempty"`
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return nil, err
	}
	doc := userDoc{
		Email:      user.Email,
		Role:       string(user.Role),
		Profile:    profile,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
		LastLogin:  user.LastLogin,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{"is_verified": true, "last_login": at, "updated_at": at})
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{"last_login": at, "updated_at": at})
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, profile domain.Profile, at time.Time) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	return r.update(ctx, id, bson.M{"profile": raw, "updated_at": at})
}

// EnsureIndexes creates the unique email index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain()
}

func (r *UserRepository) update(ctx context.Context, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (d *userDoc) toDomain() (*domain.User, error) {
	role := domain.Role(d.Role)
	profile, err := decodeProfile(role, d.Profile)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:         d.ID.Hex(),
		Email:      d.Email,
		Role:       role,
		Profile:    profile,
		IsVerified: d.IsVerified,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
		LastLogin:  d.LastLogin,
	}, nil
}

func encodeProfile(p domain.Profile) (bson.Raw, error) {
	if p == nil {
		return nil, fmt.Errorf("encode profile: nil profile")
	}
	raw, err := bson.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return raw, nil
}

func decodeProfile(role domain.Role, raw bson.Raw) (domain.Profile, error) {
	switch role {
	case domain.RolePatient:
		var p domain.PatientProfile
		if len(raw) > 0 {
			if err := bson.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode patient profile: %w", err)
			}
		}
		return p, nil
	case domain.RoleDoctor:
		var p domain.DoctorProfile
		if len(raw) > 0 {
			if err := bson.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode doctor profile: %w", err)
			}
		}
		return p, nil
	}
	return nil, fmt.Errorf("decode profile: unknown role %q", role)
}
