package services

import (
	"context"
	"errors"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/sirupsen/logrus"
)

type userRemover interface {
	DeleteUser(ctx context.Context, id uint) error
	AdjustFollowCounts(ctx context.Context, followerID, followingID uint, delta int) error
}

type followEdges interface {
	GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	GetFollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

type connectionRemover interface {
	DeleteAllForUser(ctx context.Context, userID uint) error
}

type ledgerPurger interface {
	PurgeRecipient(ctx context.Context, recipientID uint) (int64, error)
	ForgetActor(id uint)
}

type momentPurger interface {
	PurgeOwner(ctx context.Context, ownerID uint) (int64, error)
}

// AccountService removes accounts. The user row is soft-deleted so entries they
// authored elsewhere resolve to a tombstone; data owned by them is removed.
type AccountService struct {
	users         userRemover
	follows       followEdges
	connections   connectionRemover
	notifications ledgerPurger
	moments       momentPurger
	log           logrus.FieldLogger
}

func NewAccountService(users userRemover, follows followEdges, connections connectionRemover, notifications ledgerPurger, moments momentPurger, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		users:         users,
		follows:       follows,
		connections:   connections,
		notifications: notifications,
		moments:       moments,
		log:           log.WithField("component", "accounts"),
	}
}

func (s *AccountService) Delete(ctx context.Context, userID uint) error {
	following, err := s.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		return s.internal(err, "loading followees")
	}
	followers, err := s.follows.GetFollowerIDs(ctx, userID)
	if err != nil {
		return s.internal(err, "loading followers")
	}

	err = s.users.DeleteUser(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	if err != nil {
		return s.internal(err, "deleting user")
	}

	for _, id := range following {
		if err := s.users.AdjustFollowCounts(ctx, userID, id, -1); err != nil {
			return s.internal(err, "adjusting follow counts")
		}
	}
	for _, id := range followers {
		if err := s.users.AdjustFollowCounts(ctx, id, userID, -1); err != nil {
			return s.internal(err, "adjusting follow counts")
		}
	}
	if err := s.follows.DeleteAllForUser(ctx, userID); err != nil {
		return s.internal(err, "deleting follows")
	}
	if err := s.connections.DeleteAllForUser(ctx, userID); err != nil {
		return s.internal(err, "deleting connections")
	}

	notifications, err := s.notifications.PurgeRecipient(ctx, userID)
	if err != nil {
		return err
	}
	moments, err := s.moments.PurgeOwner(ctx, userID)
	if err != nil {
		return err
	}
	s.notifications.ForgetActor(userID)

	s.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"notifications": notifications,
		"moments":       moments,
	}).Info("account deleted")
	return nil
}

func (s *AccountService) internal(err error, op string) error {
	s.log.WithError(err).Error(op)
	return apperrors.Internal(err)
}
