package repositories

import (
	"context"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uint) error
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	AdjustFollowCounts(ctx context.Context, followerID, followingID uint, delta int) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUsersByIDs returns the live users among ids; soft-deleted users are omitted.
func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	var users []models.User
	if len(usernames) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("LOWER(username) IN ?", usernames).Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

// DeleteUser soft-deletes the user. The row keeps its id for historical
// references but releases email, username and firebase uid.
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tomb := models.User{ID: id}
		tomb.Tombstone()
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
			"email":        tomb.Email,
			"username":     tomb.Username,
			"firebase_uid": nil,
			"password":     tomb.Password,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&models.User{}, id).Error
	})
}

// SearchUsers searches for users by name or username (case-insensitive)
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE LOWER(?) OR LOWER(username) LIKE LOWER(?)", pattern, pattern).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// AdjustFollowCounts moves the follower's following count and the followee's
// followers count by delta, never below zero.
func (r *PostgresUserRepository) AdjustFollowCounts(ctx context.Context, followerID, followingID uint, delta int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", followerID).
			Update("following_count", gorm.Expr("GREATEST(following_count + ?, 0)", delta)).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", followingID).
			Update("followers_count", gorm.Expr("GREATEST(followers_count + ?, 0)", delta)).Error
	})
}
