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

const momentsCollection = "moments"

// MomentRepository stores moments. Every finder applies the visibility predicate
// for the supplied now; rows past expires_at are never returned.
type MomentRepository interface {
	Create(ctx context.Context, m *models.Moment) error
	FindVisibleByID(ctx context.Context, id string, now time.Time) (*models.Moment, error)
	FindVisible(ctx context.Context, ownerIDs []uint, now time.Time, skip, limit int64) ([]models.Moment, int64, error)
	AddView(ctx context.Context, id primitive.ObjectID, viewerID uint, at time.Time) (bool, error)
	AddLike(ctx context.Context, id primitive.ObjectID, userID uint, at time.Time) (*models.Moment, error)
	RemoveLike(ctx context.Context, id primitive.ObjectID, userID uint, now time.Time) (*models.Moment, error)
	AddComment(ctx context.Context, id primitive.ObjectID, comment models.MomentComment, now time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByOwner(ctx context.Context, ownerID uint) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MongoMomentRepository implements MomentRepository for MongoDB
type MongoMomentRepository struct {
	collection *mongo.Collection
}

func NewMongoMomentRepository(db *mongo.Database) *MongoMomentRepository {
	return &MongoMomentRepository{collection: db.Collection(momentsCollection)}
}

func visibleFilter(now time.Time) bson.M {
	return bson.M{"is_active": true, "expires_at": bson.M{"$gt": now}}
}

func (r *MongoMomentRepository) Create(ctx context.Context, m *models.Moment) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, m)
	return err
}

func (r *MongoMomentRepository) FindVisibleByID(ctx context.Context, id string, now time.Time) (*models.Moment, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	filter := visibleFilter(now)
	filter["_id"] = objID

	var m models.Moment
	if err := r.collection.FindOne(ctx, filter).Decode(&m); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MongoMomentRepository) FindVisible(ctx context.Context, ownerIDs []uint, now time.Time, skip, limit int64) ([]models.Moment, int64, error) {
	if len(ownerIDs) == 0 {
		return []models.Moment{}, 0, nil
	}
	filter := visibleFilter(now)
	filter["owner_id"] = bson.M{"$in": ownerIDs}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	moments := []models.Moment{}
	if err := cursor.All(ctx, &moments); err != nil {
		return nil, 0, err
	}
	return moments, total, nil
}

// AddView appends a view unless the viewer already has one. It reports whether a
// view was added.
func (r *MongoMomentRepository) AddView(ctx context.Context, id primitive.ObjectID, viewerID uint, at time.Time) (bool, error) {
	filter := bson.M{"_id": id, "views.user_id": bson.M{"$ne": viewerID}}
	update := bson.M{"$push": bson.M{"views": models.MomentView{UserID: viewerID, ViewedAt: at}}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// AddLike pushes a like unless one exists for userID. ErrNotFound means the moment
// is gone, no longer visible at at, or the like was already present.
func (r *MongoMomentRepository) AddLike(ctx context.Context, id primitive.ObjectID, userID uint, at time.Time) (*models.Moment, error) {
	filter := visibleFilter(at)
	filter["_id"] = id
	filter["likes.user_id"] = bson.M{"$ne": userID}
	update := bson.M{"$push": bson.M{"likes": models.MomentLike{UserID: userID, LikedAt: at}}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *MongoMomentRepository) RemoveLike(ctx context.Context, id primitive.ObjectID, userID uint, now time.Time) (*models.Moment, error) {
	filter := visibleFilter(now)
	filter["_id"] = id
	update := bson.M{"$pull": bson.M{"likes": bson.M{"user_id": userID}}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *MongoMomentRepository) AddComment(ctx context.Context, id primitive.ObjectID, comment models.MomentComment, now time.Time) error {
	filter := visibleFilter(now)
	filter["_id"] = id
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"comments": comment}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoMomentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoMomentRepository) DeleteByOwner(ctx context.Context, ownerID uint) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteExpired removes rows the TTL monitor has not reclaimed yet.
func (r *MongoMomentRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoMomentRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Moment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Moment
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}
