//go:build integration

package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testDatabase connects to MONGO_TEST_URI and returns a throwaway database
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("riseup_test_" + primitive.NewObjectID().Hex())
	require.NoError(t, config.EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestNotificationRepositoryReadState(t *testing.T) {
	repo := NewMongoNotificationRepository(testDatabase(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		n := &models.Notification{
			RecipientID: 1,
			ActorID:     2,
			Kind:        models.NotificationLike,
			Message:     "Bob liked your post",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID.Hex())
	}

	page, err := repo.ListByRecipient(ctx, 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID.Hex())

	first, err := repo.MarkRead(ctx, 1, ids[0], base.Add(time.Hour))
	require.NoError(t, err)
	again, err := repo.MarkRead(ctx, 1, ids[0], base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ReadAt.Unix(), again.ReadAt.Unix())

	_, err = repo.MarkRead(ctx, 99, ids[1], base)
	assert.ErrorIs(t, err, ErrNotFound)

	unread, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	assert.ErrorIs(t, repo.Delete(ctx, 99, ids[1]), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, 1, ids[1]))

	changed, err := repo.MarkAllRead(ctx, 1, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
}

func TestMomentRepositoryVisibility(t *testing.T) {
	repo := NewMongoMomentRepository(testDatabase(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	live := &models.Moment{OwnerID: 1, Media: "a", MediaType: models.MediaImage, IsActive: true,
		Views: []models.MomentView{}, Likes: []models.MomentLike{}, Comments: []models.MomentComment{},
		CreatedAt: now, ExpiresAt: now.Add(models.MomentTTL)}
	expired := &models.Moment{OwnerID: 1, Media: "b", MediaType: models.MediaImage, IsActive: true,
		Views: []models.MomentView{}, Likes: []models.MomentLike{}, Comments: []models.MomentComment{},
		CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, expired))

	moments, total, err := repo.FindVisible(ctx, []uint{1}, now, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, moments, 1)
	assert.Equal(t, live.ID, moments[0].ID)

	_, err = repo.FindVisibleByID(ctx, expired.ID.Hex(), now)
	assert.ErrorIs(t, err, ErrNotFound)

	added, err := repo.AddView(ctx, live.ID, 2, now)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddView(ctx, live.ID, 2, now)
	require.NoError(t, err)
	assert.False(t, added)

	m, err := repo.AddLike(ctx, live.ID, 2, now)
	require.NoError(t, err)
	assert.Len(t, m.Likes, 1)
	_, err = repo.AddLike(ctx, live.ID, 2, now)
	assert.ErrorIs(t, err, ErrNotFound)

	// writes after expiry are refused like reads
	_, err = repo.AddLike(ctx, expired.ID, 3, now)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.RemoveLike(ctx, live.ID, 2, live.ExpiresAt)
	assert.ErrorIs(t, err, ErrNotFound)
	m, err = repo.RemoveLike(ctx, live.ID, 2, now)
	require.NoError(t, err)
	assert.Empty(t, m.Likes)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOTPRepositorySingleUnusedCode(t *testing.T) {
	repo := NewMongoOTPRepository(testDatabase(t))
	ctx := context.Background()
	now := time.Now().UTC()

	newOTP := func() *models.OTP {
		return &models.OTP{Email: "carol@example.com", CodeHash: "h", CreatedAt: now, ExpiresAt: now.Add(models.OTPTTL)}
	}
	first := newOTP()
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newOTP()), ErrDuplicate)

	require.NoError(t, repo.SupersedeUnused(ctx, "carol@example.com"))
	second := newOTP()
	require.NoError(t, repo.Create(ctx, second))

	usable, err := repo.FindUsable(ctx, "carol@example.com", now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, usable.ID)

	old, err := repo.FindSuperseded(ctx, "carol@example.com", now)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, first.ID, old[0].ID)

	require.NoError(t, repo.MarkUsed(ctx, second.ID))
	assert.ErrorIs(t, repo.MarkUsed(ctx, second.ID), ErrNotFound)
}

func TestPostRepositoryAuthorsPage(t *testing.T) {
	repo := NewMongoPostRepository(testDatabase(t))
	ctx := context.Background()

	for _, author := range []uint{1, 2, 3, 1} {
		require.NoError(t, repo.CreatePost(ctx, &models.Post{AuthorID: author, Kind: models.PostText, Content: "hi"}))
		time.Sleep(2 * time.Millisecond)
	}

	posts, total, err := repo.GetPostsByAuthorIDs(ctx, []uint{1, 3}, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, posts, 2)
	assert.Equal(t, uint(1), posts[0].AuthorID)
	assert.Equal(t, uint(3), posts[1].AuthorID)

	posts, total, err = repo.GetPostsByAuthorIDs(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)
}
