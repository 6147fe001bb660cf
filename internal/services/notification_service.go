package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/anonto42/riseup-connect/backend/pkg/metrics"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const actorCacheTTL = 30 * time.Second

type userReader interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
}

type postReader interface {
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]*models.Post, error)
}

// NotificationPage is one page of a recipient's ledger
type NotificationPage struct {
	Entries     []models.EnrichedNotification
	Params      models.PageParams
	Total       int64
	UnreadCount int64
}

// NotificationService is the notification ledger
type NotificationService struct {
	notifications repositories.NotificationRepository
	users         userReader
	posts         postReader
	actors        *cache.Cache
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewNotificationService(notifications repositories.NotificationRepository, users userReader, posts postReader, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		posts:         posts,
		actors:        cache.New(actorCacheTTL, 2*actorCacheTTL),
		log:           log.WithField("component", "notifications"),
		now:           time.Now,
	}
}

// Record appends an entry for recipientID. Self-notifications are skipped and
// return a nil entry. The message is rendered from the actor's current name and
// stored as is.
func (s *NotificationService) Record(ctx context.Context, recipientID, actorID uint, kind models.NotificationKind, subject *models.SubjectRef, extraText string) (*models.Notification, error) {
	if recipientID == actorID {
		return nil, nil
	}
	if !kind.Valid() {
		return nil, apperrors.Validation("Unknown notification kind")
	}

	var actorName string
	actor, err := s.users.GetUserByID(ctx, actorID)
	switch {
	case err == nil:
		actorName = actor.Name
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return nil, s.internal(err, "resolving actor")
	}

	n := &models.Notification{
		ID:             primitive.NewObjectID(),
		RecipientID:    recipientID,
		ActorID:        actorID,
		Kind:           kind,
		Subject:        subject,
		CommentExcerpt: models.Excerpt(extraText, models.ExcerptLength),
		Message:        kind.Message(actorName),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, s.internal(err, "recording notification")
	}

	metrics.NotificationsRecordedTotal.WithLabelValues(string(kind)).Inc()
	return n, nil
}

// Notify is Record for producers: failures are logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, recipientID, actorID uint, kind models.NotificationKind, subject *models.SubjectRef, extraText string) {
	if _, err := s.Record(ctx, recipientID, actorID, kind, subject, extraText); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"recipient_id": recipientID,
			"actor_id":     actorID,
			"kind":         kind,
		}).Warn("failed to record notification")
	}
}

func (s *NotificationService) List(ctx context.Context, recipientID uint, params models.PageParams) (*NotificationPage, error) {
	params.Normalize()

	entries, err := s.notifications.ListByRecipient(ctx, recipientID, params.Skip(), int64(params.Limit))
	if err != nil {
		return nil, s.internal(err, "listing notifications")
	}
	total, err := s.notifications.CountByRecipient(ctx, recipientID)
	if err != nil {
		return nil, s.internal(err, "counting notifications")
	}
	unread, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, s.internal(err, "counting unread notifications")
	}

	enriched, err := s.enrich(ctx, entries)
	if err != nil {
		return nil, err
	}

	return &NotificationPage{
		Entries:     enriched,
		Params:      params,
		Total:       total,
		UnreadCount: unread,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	count, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, s.internal(err, "counting unread notifications")
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID uint, id string) (*models.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, recipientID, id, s.now().UTC())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.NotFound("Notification not found")
	}
	if err != nil {
		return nil, s.internal(err, "marking notification read")
	}
	return n, nil
}

// MarkAllRead returns the unread count afterwards, which is always 0.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	if _, err := s.notifications.MarkAllRead(ctx, recipientID, s.now().UTC()); err != nil {
		return 0, s.internal(err, "marking all notifications read")
	}
	return 0, nil
}

// Delete removes one entry and returns the new unread count.
func (s *NotificationService) Delete(ctx context.Context, recipientID uint, id string) (int64, error) {
	err := s.notifications.Delete(ctx, recipientID, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return 0, apperrors.NotFound("Notification not found")
	}
	if err != nil {
		return 0, s.internal(err, "deleting notification")
	}
	return s.UnreadCount(ctx, recipientID)
}

// PurgeRecipient drops every entry addressed to recipientID.
func (s *NotificationService) PurgeRecipient(ctx context.Context, recipientID uint) (int64, error) {
	n, err := s.notifications.DeleteByRecipient(ctx, recipientID)
	if err != nil {
		return 0, s.internal(err, "purging notifications")
	}
	return n, nil
}

// ForgetActor evicts a cached actor profile.
func (s *NotificationService) ForgetActor(id uint) {
	s.actors.Delete(actorKey(id))
}

func (s *NotificationService) enrich(ctx context.Context, entries []models.Notification) ([]models.EnrichedNotification, error) {
	actorIDs := make([]uint, 0, len(entries))
	var postIDs []string
	for _, n := range entries {
		actorIDs = append(actorIDs, n.ActorID)
		if n.Subject != nil && n.Subject.Type == models.SubjectPost {
			postIDs = append(postIDs, n.Subject.ID)
		}
	}

	actors, err := s.resolveActors(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	posts := map[string]*models.Post{}
	if len(postIDs) > 0 {
		posts, err = s.posts.GetPostsByIDs(ctx, postIDs)
		if err != nil {
			return nil, s.internal(err, "loading notification subjects")
		}
	}

	out := make([]models.EnrichedNotification, 0, len(entries))
	for _, n := range entries {
		e := models.EnrichedNotification{Notification: n, Actor: actors[n.ActorID]}
		if n.Subject != nil && n.Subject.Type == models.SubjectPost {
			if p, ok := posts[n.Subject.ID]; ok {
				e.SubjectExcerpt = models.Excerpt(p.Content, models.ExcerptLength)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// resolveActors returns a compact profile for every id, through the cache.
// Users that no longer exist resolve to the tombstone.
func (s *NotificationService) resolveActors(ctx context.Context, ids []uint) (map[uint]models.UserCompact, error) {
	out := make(map[uint]models.UserCompact, len(ids))
	var missing []uint
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if v, ok := s.actors.Get(actorKey(id)); ok {
			out[id] = v.(models.UserCompact)
			continue
		}
		out[id] = models.DeletedUserCompact(id)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	users, err := s.users.GetUsersByIDs(ctx, missing)
	if err != nil {
		return nil, s.internal(err, "resolving actors")
	}
	for i := range users {
		compact := users[i].ToCompact()
		out[compact.ID] = compact
		s.actors.SetDefault(actorKey(compact.ID), compact)
	}
	return out, nil
}

func (s *NotificationService) internal(err error, op string) error {
	s.log.WithError(err).Error(op)
	return apperrors.Internal(err)
}

func actorKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
