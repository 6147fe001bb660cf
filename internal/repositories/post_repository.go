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

const postsCollection = "posts"

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]*models.Post, error)
	GetPostsByAuthorID(ctx context.Context, authorID uint, skip, limit int64) ([]models.Post, int64, error)
	GetPostsByAuthorIDs(ctx context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, int64, error)
	DeletePost(ctx context.Context, id string) error
	IncrementLikesCount(ctx context.Context, postID string, delta int) error
	IncrementCommentsCount(ctx context.Context, postID string, delta int) error
	IncrementSharesCount(ctx context.Context, postID string) (*models.Post, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection(postsCollection)}
}

func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID returns ErrNotFound for unknown and malformed ids alike
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var post models.Post
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post); err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// GetPostsByIDs loads posts keyed by hex id. Malformed and missing ids are skipped.
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []string) (map[string]*models.Post, error) {
	result := make(map[string]*models.Post, len(ids))
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}
	if len(objIDs) == 0 {
		return result, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		result[posts[i].ID.Hex()] = &posts[i]
	}
	return result, nil
}

func (r *MongoPostRepository) GetPostsByAuthorID(ctx context.Context, authorID uint, skip, limit int64) ([]models.Post, int64, error) {
	return r.page(ctx, bson.M{"author_id": authorID}, skip, limit)
}

// GetPostsByAuthorIDs pages the posts of any of authorIDs, newest first
func (r *MongoPostRepository) GetPostsByAuthorIDs(ctx context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, int64, error) {
	if len(authorIDs) == 0 {
		return []models.Post{}, 0, nil
	}
	return r.page(ctx, bson.M{"author_id": bson.M{"$in": authorIDs}}, skip, limit)
}

func (r *MongoPostRepository) page(ctx context.Context, filter bson.M, skip, limit int64) ([]models.Post, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, postID string, delta int) error {
	return r.inc(ctx, postID, "likes_count", delta)
}

func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string, delta int) error {
	return r.inc(ctx, postID, "comments_count", delta)
}

// IncrementSharesCount bumps shares_count and returns the updated post
func (r *MongoPostRepository) IncrementSharesCount(ctx context.Context, postID string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{"shares_count": 1}}, opts).Decode(&post)
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *MongoPostRepository) inc(ctx context.Context, postID, field string, delta int) error {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
