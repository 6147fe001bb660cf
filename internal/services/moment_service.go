package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/anonto42/riseup-connect/backend/pkg/metrics"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxCaptionLength        = 2200
	maxMomentCommentLength  = 500
	errMomentNotFoundOrGone = "Moment not found or expired"
)

type followingReader interface {
	GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error)
}

// MomentPage is one page of moments seen by a viewer
type MomentPage struct {
	Moments []models.MomentResponse
	Params  models.PageParams
	Total   int64
}

// MomentService manages 24h moments. A moment is only ever returned while
// Moment.VisibleAt holds.
type MomentService struct {
	moments repositories.MomentRepository
	follows followingReader
	users   userReader
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewMomentService(moments repositories.MomentRepository, follows followingReader, users userReader, log logrus.FieldLogger) *MomentService {
	return &MomentService{
		moments: moments,
		follows: follows,
		users:   users,
		log:     log.WithField("component", "moments"),
		now:     time.Now,
	}
}

func (s *MomentService) Create(ctx context.Context, ownerID uint, req models.CreateMomentRequest) (*models.MomentResponse, error) {
	media := strings.TrimSpace(req.Media)
	if media == "" {
		return nil, apperrors.Validation("Media is required")
	}
	if req.MediaType != models.MediaImage && req.MediaType != models.MediaVideo {
		return nil, apperrors.Validation("Media type must be image or video")
	}
	caption := strings.TrimSpace(req.Caption)
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		return nil, apperrors.Validation("Caption is too long")
	}
	if req.DurationSeconds < 0 {
		return nil, apperrors.Validation("Duration cannot be negative")
	}

	now := s.now().UTC()
	m := &models.Moment{
		ID:              primitive.NewObjectID(),
		OwnerID:         ownerID,
		Media:           media,
		MediaType:       req.MediaType,
		Caption:         caption,
		DurationSeconds: req.DurationSeconds,
		IsActive:        true,
		Views:           []models.MomentView{},
		Likes:           []models.MomentLike{},
		Comments:        []models.MomentComment{},
		CreatedAt:       now,
		ExpiresAt:       now.Add(models.MomentTTL),
	}
	if err := s.moments.Create(ctx, m); err != nil {
		return nil, s.internal(err, "creating moment")
	}
	metrics.MomentsCreatedTotal.Inc()

	owners, err := s.owners(ctx, []models.Moment{*m})
	if err != nil {
		return nil, err
	}
	resp := models.NewMomentResponse(m, owners[ownerID], ownerID)
	return &resp, nil
}

// Feed returns visible moments of the viewer and everyone they follow, newest
// first, recording a view on each.
func (s *MomentService) Feed(ctx context.Context, viewerID uint, params models.PageParams) (*MomentPage, error) {
	following, err := s.follows.GetFollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, s.internal(err, "loading followees")
	}
	return s.page(ctx, viewerID, append([]uint{viewerID}, following...), params)
}

func (s *MomentService) Mine(ctx context.Context, ownerID uint, params models.PageParams) (*MomentPage, error) {
	return s.page(ctx, ownerID, []uint{ownerID}, params)
}

func (s *MomentService) Get(ctx context.Context, viewerID uint, id string) (*models.MomentResponse, error) {
	now := s.now().UTC()
	m, err := s.loadVisible(ctx, id, now)
	if err != nil {
		return nil, err
	}
	s.recordView(ctx, m, viewerID, now)

	owners, err := s.owners(ctx, []models.Moment{*m})
	if err != nil {
		return nil, err
	}
	resp := models.NewMomentResponse(m, owners[m.OwnerID], viewerID)
	return &resp, nil
}

// Viewers lists who has seen the moment. Only the owner may ask.
func (s *MomentService) Viewers(ctx context.Context, ownerID uint, id string) ([]models.MomentViewer, error) {
	m, err := s.loadVisible(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if m.OwnerID != ownerID {
		return nil, apperrors.Forbidden("Only the owner can see who viewed this moment")
	}

	ids := make([]uint, 0, len(m.Views))
	for _, v := range m.Views {
		ids = append(ids, v.UserID)
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	viewers := make([]models.MomentViewer, 0, len(m.Views))
	for _, v := range m.Views {
		viewers = append(viewers, models.MomentViewer{User: profiles[v.UserID], ViewedAt: v.ViewedAt})
	}
	return viewers, nil
}

// ToggleLike likes the moment, or unlikes it when the viewer already did.
func (s *MomentService) ToggleLike(ctx context.Context, viewerID uint, id string) (*models.LikeToggleResult, error) {
	now := s.now().UTC()
	m, err := s.loadVisible(ctx, id, now)
	if err != nil {
		return nil, err
	}

	var updated *models.Moment
	if m.LikedBy(viewerID) {
		updated, err = s.moments.RemoveLike(ctx, m.ID, viewerID, now)
	} else {
		updated, err = s.moments.AddLike(ctx, m.ID, viewerID, now)
		if errors.Is(err, repositories.ErrNotFound) {
			// liked concurrently by the same viewer, report the stored state
			updated, err = s.moments.FindVisibleByID(ctx, id, now)
		}
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.NotFound(errMomentNotFoundOrGone)
	}
	if err != nil {
		return nil, s.internal(err, "toggling moment like")
	}

	return &models.LikeToggleResult{
		IsLiked:    updated.LikedBy(viewerID),
		LikesCount: len(updated.Likes),
	}, nil
}

func (s *MomentService) Comment(ctx context.Context, viewerID uint, id, text string) (*models.MomentComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("Comment text is required")
	}
	if utf8.RuneCountInString(text) > maxMomentCommentLength {
		return nil, apperrors.Validation("Comment is too long")
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound(errMomentNotFoundOrGone)
	}

	now := s.now().UTC()
	comment := models.MomentComment{
		ID:        primitive.NewObjectID(),
		UserID:    viewerID,
		Text:      text,
		CreatedAt: now,
	}
	err = s.moments.AddComment(ctx, objID, comment, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.NotFound(errMomentNotFoundOrGone)
	}
	if err != nil {
		return nil, s.internal(err, "commenting on moment")
	}
	return &comment, nil
}

func (s *MomentService) Delete(ctx context.Context, ownerID uint, id string) error {
	m, err := s.loadVisible(ctx, id, s.now().UTC())
	if err != nil {
		return err
	}
	if m.OwnerID != ownerID {
		return apperrors.Forbidden("You can only delete your own moments")
	}

	err = s.moments.Delete(ctx, m.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound(errMomentNotFoundOrGone)
	}
	if err != nil {
		return s.internal(err, "deleting moment")
	}
	return nil
}

// PurgeOwner removes every moment of ownerID, expired or not.
func (s *MomentService) PurgeOwner(ctx context.Context, ownerID uint) (int64, error) {
	n, err := s.moments.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, s.internal(err, "purging moments")
	}
	return n, nil
}

func (s *MomentService) page(ctx context.Context, viewerID uint, ownerIDs []uint, params models.PageParams) (*MomentPage, error) {
	params.Normalize()
	now := s.now().UTC()

	found, total, err := s.moments.FindVisible(ctx, ownerIDs, now, params.Skip(), int64(params.Limit))
	if err != nil {
		return nil, s.internal(err, "listing moments")
	}

	visible := make([]models.Moment, 0, len(found))
	for i := range found {
		if found[i].VisibleAt(now) {
			visible = append(visible, found[i])
		}
	}

	owners, err := s.owners(ctx, visible)
	if err != nil {
		return nil, err
	}

	out := make([]models.MomentResponse, 0, len(visible))
	for i := range visible {
		m := &visible[i]
		s.recordView(ctx, m, viewerID, now)
		out = append(out, models.NewMomentResponse(m, owners[m.OwnerID], viewerID))
	}
	return &MomentPage{Moments: out, Params: params, Total: total}, nil
}

func (s *MomentService) loadVisible(ctx context.Context, id string, now time.Time) (*models.Moment, error) {
	m, err := s.moments.FindVisibleByID(ctx, id, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.NotFound(errMomentNotFoundOrGone)
	}
	if err != nil {
		return nil, s.internal(err, "loading moment")
	}
	if !m.VisibleAt(now) {
		return nil, apperrors.NotFound(errMomentNotFoundOrGone)
	}
	return m, nil
}

// recordView adds the viewer once. A failed write does not fail the read.
func (s *MomentService) recordView(ctx context.Context, m *models.Moment, viewerID uint, now time.Time) {
	if m.ViewedBy(viewerID) {
		return
	}
	added, err := s.moments.AddView(ctx, m.ID, viewerID, now)
	if err != nil {
		s.log.WithError(err).WithField("moment_id", m.ID.Hex()).Warn("failed to record moment view")
		return
	}
	if added {
		m.Views = append(m.Views, models.MomentView{UserID: viewerID, ViewedAt: now})
	}
}

func (s *MomentService) owners(ctx context.Context, moments []models.Moment) (map[uint]models.UserCompact, error) {
	ids := make([]uint, 0, len(moments))
	for _, m := range moments {
		ids = append(ids, m.OwnerID)
	}
	return s.profiles(ctx, ids)
}

func (s *MomentService) profiles(ctx context.Context, ids []uint) (map[uint]models.UserCompact, error) {
	out := make(map[uint]models.UserCompact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = models.DeletedUserCompact(id)
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, s.internal(err, "loading moment owners")
	}
	for i := range users {
		out[users[i].ID] = users[i].ToCompact()
	}
	return out, nil
}

func (s *MomentService) internal(err error, op string) error {
	s.log.WithError(err).Error(op)
	return apperrors.Internal(err)
}
