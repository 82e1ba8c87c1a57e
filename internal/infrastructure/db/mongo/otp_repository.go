package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthvault/auth-service/internal/core/domain"
)

const collectionOTPs = "otps"

// OTPRepository keeps one passcode document per (email, purpose). Mongo's
// _id is left to the driver; the record's own ID lives in otp_id so that an
// upsert can swap the whole document.
type OTPRepository struct {
	col *mongo.Collection
}

func NewOTPRepository(db *mongo.Database) *OTPRepository {
	return &OTPRepository{col: db.Collection(collectionOTPs)}
}

type otpDoc struct {
	OTPID     string    `bson:"otp_id"`
	Email     string    `bson:"email"`
	Purpose   string    `bson:"purpose"`
	CodeHash  string    `bson:"code_hash"`
	Attempts  int       `bson:"attempts"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (r *OTPRepository) Replace(ctx context.Context, rec *domain.OTPRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := otpDoc{
		OTPID:     rec.ID,
		Email:     rec.Email,
		Purpose:   string(rec.Purpose),
		CodeHash:  rec.CodeHash,
		Attempts:  rec.Attempts,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	filter := bson.M{"email": rec.Email, "purpose": string(rec.Purpose)}
	if _, err := r.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("replace otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) Find(ctx context.Context, email string, purpose domain.Purpose) (*domain.OTPRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc otpDoc
	err := r.col.FindOne(ctx, bson.M{"email": email, "purpose": string(purpose)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *OTPRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc otpDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"otp_id": id}, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrOTPNotFound
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return doc.Attempts, nil
}

func (r *OTPRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"otp_id": id})
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the (email, purpose) uniqueness index and lookup
// indexes for consumption and cleanup.
func (r *OTPRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "otp_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (d *otpDoc) toDomain() *domain.OTPRecord {
	return &domain.OTPRecord{
		ID:        d.OTPID,
		Email:     d.Email,
		Purpose:   domain.Purpose(d.Purpose),
		CodeHash:  d.CodeHash,
		Attempts:  d.Attempts,
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
	}
}
