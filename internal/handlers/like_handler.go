package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likes    repositories.LikeRepository
	posts    repositories.PostRepository
	notifier notifier
}

func NewLikeHandler(likes repositories.LikeRepository, posts repositories.PostRepository, n notifier) *LikeHandler {
	return &LikeHandler{likes: likes, posts: posts, notifier: n}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.LikePost)
	g.DELETE("/posts/:post_id/likes", h.UnlikePost)
	g.GET("/posts/:post_id/likes/status", h.GetUserLikeStatusForPost)
}

// LikePost likes a post and notifies its author. Liking twice is a conflict.
func (h *LikeHandler) LikePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	postID := post.ID.Hex()

	like := &models.Like{PostID: postID, UserID: userID}
	err = h.likes.CreateLike(ctx, like)
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperrors.Conflict("Post already liked by this user")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := h.posts.IncrementLikesCount(ctx, postID, 1); err != nil {
		return apperrors.Internal(err)
	}

	h.notifier.Notify(ctx, post.AuthorID, userID, models.NotificationLike, postSubject(postID), "")

	return ok(c, http.StatusCreated, echo.Map{"liked": true, "likes_count": post.LikesCount + 1})
}

// UnlikePost removes the caller's like. No notification is recorded.
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	postID := post.ID.Hex()

	if err := h.likes.DeleteLike(ctx, postID, userID); err != nil {
		return storeErr(err, "Like not found")
	}
	if err := h.posts.IncrementLikesCount(ctx, postID, -1); err != nil {
		return apperrors.Internal(err)
	}

	return ok(c, http.StatusOK, echo.Map{"liked": false, "likes_count": post.LikesCount - 1})
}

// GetUserLikeStatusForPost reports whether the caller liked the post
func (h *LikeHandler) GetUserLikeStatusForPost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	liked, err := h.likes.HasUserLikedPost(ctx, post.ID.Hex(), userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": liked, "likes_count": post.LikesCount})
}
