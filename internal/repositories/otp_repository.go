package repositories

import (
	"context"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const otpsCollection = "otps"

// OTPRepository stores one-time codes keyed by email
type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) error
	FindUsable(ctx context.Context, email string, now time.Time) (*models.OTP, error)
	IncrementAttempts(ctx context.Context, id primitive.ObjectID) (*models.OTP, error)
	MarkUsed(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	SupersedeUnused(ctx context.Context, email string) error
	FindSuperseded(ctx context.Context, email string, now time.Time) ([]models.OTP, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MongoOTPRepository implements OTPRepository for MongoDB
type MongoOTPRepository struct {
	collection *mongo.Collection
}

func NewMongoOTPRepository(db *mongo.Database) *MongoOTPRepository {
	return &MongoOTPRepository{collection: db.Collection(otpsCollection)}
}

// Create inserts the code. A second unused code for the same email violates the
// partial unique index and returns ErrDuplicate.
func (r *MongoOTPRepository) Create(ctx context.Context, otp *models.OTP) error {
	if otp.ID.IsZero() {
		otp.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, otp)
	return translate(err)
}

func (r *MongoOTPRepository) FindUsable(ctx context.Context, email string, now time.Time) (*models.OTP, error) {
	filter := bson.M{
		"email":      email,
		"is_used":    false,
		"attempts":   bson.M{"$lt": models.OTPMaxAttempts},
		"expires_at": bson.M{"$gt": now},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp models.OTP
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&otp); err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (r *MongoOTPRepository) IncrementAttempts(ctx context.Context, id primitive.ObjectID) (*models.OTP, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var otp models.OTP
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&otp)
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

// MarkUsed consumes the code. Only the first caller succeeds; later ones get ErrNotFound.
func (r *MongoOTPRepository) MarkUsed(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "is_used": false}, bson.M{"$set": bson.M{"is_used": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoOTPRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SupersedeUnused retires every unused code for email. Retired codes leave the
// partial unique index and can no longer be verified.
func (r *MongoOTPRepository) SupersedeUnused(ctx context.Context, email string) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"email": email, "is_used": false},
		bson.M{"$set": bson.M{"is_used": true, "superseded": true}},
	)
	return err
}

func (r *MongoOTPRepository) FindSuperseded(ctx context.Context, email string, now time.Time) ([]models.OTP, error) {
	filter := bson.M{"email": email, "superseded": true, "expires_at": bson.M{"$gt": now}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var otps []models.OTP
	if err := cursor.All(ctx, &otps); err != nil {
		return nil, err
	}
	return otps, nil
}

func (r *MongoOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
