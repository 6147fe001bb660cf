package config

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	// Redis is nil when REDIS_URL is empty
	Redis *redis.Client
}

// InitDB connects to every store and prepares schemas and indexes
func InitDB(ctx context.Context, cfg *Config) (*DB, error) {
	postgresDB, err := initPostgres(cfg.PostgresConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	mongoClient, err := initMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := &DB{
		Postgres: postgresDB,
		Mongo:    mongoClient,
		MongoDB:  mongoClient.Database(cfg.MongoDB),
	}

	if cfg.RedisURL != "" {
		db.Redis, err = initRedis(ctx, cfg.RedisURL)
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	} else {
		logrus.Warn("REDIS_URL is empty, OTP resend cooldown is disabled")
	}

	if err := AutoMigrate(postgresDB); err != nil {
		db.CloseDB()
		return nil, err
	}
	if err := EnsureIndexes(ctx, db.MongoDB); err != nil {
		db.CloseDB()
		return nil, err
	}
	return db, nil
}

func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logrus.Info("Successfully connected to MongoDB")
	return client, nil
}

func initRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logrus.Info("Successfully connected to Redis")
	return client, nil
}

// AutoMigrate creates the relational tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.FriendRequest{},
		&models.Like{},
		&models.Comment{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logrus.Info("PostgreSQL auto-migrations completed")
	return nil
}

// EnsureIndexes creates the document store indexes, including the TTL indexes
// that physically reclaim expired moments and codes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ttl := options.Index().SetExpireAfterSeconds(0)

	indexes := map[string][]mongo.IndexModel{
		"notifications": {
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
		},
		"moments": {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
		"otps": {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_used": false}),
			},
		},
		"posts": {
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	logrus.Info("MongoDB indexes ensured")
	return nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			logrus.WithError(err).Error("Error getting SQL DB from GORM")
		} else if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Error("Error closing PostgreSQL connection")
		} else {
			logrus.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			logrus.WithError(err).Error("Error closing MongoDB connection")
		} else {
			logrus.Info("MongoDB connection closed")
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			logrus.WithError(err).Error("Error closing Redis connection")
		}
	}
}
