package services

import (
	"context"
	"testing"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnections struct {
	removed []uint
}

func (f *fakeConnections) DeleteAllForUser(_ context.Context, userID uint) error {
	f.removed = append(f.removed, userID)
	return nil
}

func TestAccountDeleteCascades(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()
	users := newFakeUsers(
		&models.User{ID: alice, Name: "Alice", Username: "alice", FollowingCount: 1, FollowersCount: 1},
		&models.User{ID: bob, Name: "Bob", Username: "bob", FollowersCount: 1},
		&models.User{ID: carol, Name: "Carol", Username: "carol", FollowingCount: 1},
	)
	follows := newFakeFollows()
	follows.Follow(alice, bob)
	follows.Follow(carol, alice)
	connections := &fakeConnections{}

	ledger := NewNotificationService(&fakeNotifications{}, users, fakePosts{}, log)
	moments := NewMomentService(newFakeMoments(), follows, users, log)
	svc := NewAccountService(users, follows, connections, ledger, moments, log)

	_, err := ledger.Record(ctx, bob, alice, models.NotificationFollow, nil, "")
	require.NoError(t, err)
	_, err = ledger.Record(ctx, alice, bob, models.NotificationLike, nil, "")
	require.NoError(t, err)
	_, err = moments.Create(ctx, alice, models.CreateMomentRequest{Media: "https://cdn.example/a.png", MediaType: models.MediaImage})
	require.NoError(t, err)

	// warm the actor cache so the tombstone has to replace it
	page, err := ledger.List(ctx, bob, firstPage())
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "Alice", page.Entries[0].Actor.Name)

	require.NoError(t, svc.Delete(ctx, alice))

	_, err = users.GetUserByID(ctx, alice)
	assert.Error(t, err)

	b, _ := users.GetUserByID(ctx, bob)
	c, _ := users.GetUserByID(ctx, carol)
	assert.Zero(t, b.FollowersCount)
	assert.Zero(t, c.FollowingCount)

	ids, _ := follows.GetFollowerIDs(ctx, bob)
	assert.Empty(t, ids)
	assert.Equal(t, []uint{alice}, connections.removed)

	count, err := ledger.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := moments.PurgeOwner(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err = ledger.List(ctx, bob, firstPage())
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, models.DeletedUserName, page.Entries[0].Actor.Name)
	assert.Equal(t, "Alice started following you", page.Entries[0].Message)
}

func TestAccountDeleteUnknownUser(t *testing.T) {
	log, _ := test.NewNullLogger()
	users := newFakeUsers()
	follows := newFakeFollows()
	ledger := NewNotificationService(&fakeNotifications{}, users, fakePosts{}, log)
	moments := NewMomentService(newFakeMoments(), follows, users, log)
	svc := NewAccountService(users, follows, &fakeConnections{}, ledger, moments, log)

	err := svc.Delete(context.Background(), 42)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
