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

const notificationsCollection = "notifications"

// NotificationRepository is the storage of the notification ledger. Every query is
// scoped by recipient.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint, skip, limit int64) ([]models.Notification, error)
	CountByRecipient(ctx context.Context, recipientID uint) (int64, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID uint, id string, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, recipientID uint, id string) error
	DeleteByRecipient(ctx context.Context, recipientID uint) (int64, error)
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection(notificationsCollection)}
}

func unreadFilter(recipientID uint) bson.M {
	return bson.M{"recipient_id": recipientID, "is_read": false}
}

func (r *MongoNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *MongoNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, skip, limit int64) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.Notification{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *MongoNotificationRepository) CountByRecipient(ctx context.Context, recipientID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"recipient_id": recipientID})
}

func (r *MongoNotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, unreadFilter(recipientID))
}

// MarkRead flips is_read and stamps read_at only on the first transition, then
// returns the stored entry. Entries owned by someone else are ErrNotFound.
func (r *MongoNotificationRepository) MarkRead(ctx context.Context, recipientID uint, id string, at time.Time) (*models.Notification, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	owned := bson.M{"_id": objID, "recipient_id": recipientID}
	first := bson.M{"_id": objID, "recipient_id": recipientID, "is_read": false}
	if _, err := r.collection.UpdateOne(ctx, first, bson.M{"$set": bson.M{"is_read": true, "read_at": at}}); err != nil {
		return nil, err
	}

	var n models.Notification
	if err := r.collection.FindOne(ctx, owned).Decode(&n); err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *MongoNotificationRepository) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, unreadFilter(recipientID), bson.M{"$set": bson.M{"is_read": true, "read_at": at}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoNotificationRepository) Delete(ctx context.Context, recipientID uint, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID, "recipient_id": recipientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoNotificationRepository) DeleteByRecipient(ctx context.Context, recipientID uint) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"recipient_id": recipientID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
