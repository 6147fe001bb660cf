package handlers

import (
	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the post feed of the caller and the users they follow
type FeedHandler struct {
	follows repositories.FollowRepository
	posts   repositories.PostRepository
	users   repositories.UserRepository
	likes   repositories.LikeRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(follows repositories.FollowRepository, posts repositories.PostRepository, users repositories.UserRepository, likes repositories.LikeRepository) *FeedHandler {
	return &FeedHandler{follows: follows, posts: posts, users: users, likes: likes}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed pages the posts of the caller and their followees, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	following, err := h.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	authorIDs := append([]uint{userID}, following...)

	params := pageParams(c)
	posts, total, err := h.posts.GetPostsByAuthorIDs(ctx, authorIDs, params.Skip(), int64(params.Limit))
	if err != nil {
		return apperrors.Internal(err)
	}

	seen := make(map[uint]bool, len(posts))
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			ids = append(ids, p.AuthorID)
		}
	}
	authors, err := h.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return apperrors.Internal(err)
	}
	byID := make(map[uint]models.UserCompact, len(authors))
	for i := range authors {
		byID[authors[i].ID] = authors[i].ToCompact()
	}

	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		author, found := byID[posts[i].AuthorID]
		if !found {
			author = models.DeletedUserCompact(posts[i].AuthorID)
		}
		liked, err := h.likes.HasUserLikedPost(ctx, posts[i].ID.Hex(), userID)
		if err != nil {
			return apperrors.Internal(err)
		}
		out = append(out, PostResponse{Post: &posts[i], Author: author, IsLiked: liked})
	}
	return okPage(c, out, models.NewPagination(params, total))
}
