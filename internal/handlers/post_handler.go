package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts    repositories.PostRepository
	users    repositories.UserRepository
	likes    repositories.LikeRepository
	notifier notifier
}

func NewPostHandler(posts repositories.PostRepository, users repositories.UserRepository, likes repositories.LikeRepository, n notifier) *PostHandler {
	return &PostHandler{posts: posts, users: users, likes: likes, notifier: n}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/:id", h.GetPost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/share", h.SharePost)
}

// PostResponse is a post with its author and the caller's like state
type PostResponse struct {
	*models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// CreatePost creates a post and notifies every mentioned user
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apperrors.Validation("content is required")
	}

	kind := req.Kind
	if kind == "" {
		kind = models.PostText
	}
	now := time.Now().UTC()
	post := &models.Post{
		AuthorID:  userID,
		Kind:      kind,
		Content:   content,
		ImageURLs: req.ImageURLs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx := c.Request().Context()
	if err := h.posts.CreatePost(ctx, post); err != nil {
		return apperrors.Internal(err)
	}

	h.notifier.NotifyMentions(ctx, userID, post.Content, postSubject(post.ID.Hex()))

	author, err := h.author(c, userID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, PostResponse{Post: post, Author: author})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	liked, err := h.likes.HasUserLikedPost(ctx, post.ID.Hex(), userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	author, err := h.author(c, post.AuthorID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, PostResponse{Post: post, Author: author, IsLiked: liked})
}

// GetPosts lists posts of ?user_id=, defaulting to the caller
func (h *PostHandler) GetPosts(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	authorID := userID
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return apperrors.Validation("Invalid user ID")
		}
		authorID = uint(id)
	}

	params := pageParams(c)
	ctx := c.Request().Context()
	posts, total, err := h.posts.GetPostsByAuthorID(ctx, authorID, params.Skip(), int64(params.Limit))
	if err != nil {
		return apperrors.Internal(err)
	}
	author, err := h.author(c, authorID)
	if err != nil {
		return err
	}

	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		liked, err := h.likes.HasUserLikedPost(ctx, posts[i].ID.Hex(), userID)
		if err != nil {
			return apperrors.Internal(err)
		}
		out = append(out, PostResponse{Post: &posts[i], Author: author, IsLiked: liked})
	}
	return okPage(c, out, models.NewPagination(params, total))
}

// DeletePost deletes one of the caller's posts
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	if post.AuthorID != userID {
		return apperrors.Forbidden("You are not authorized to delete this post")
	}
	if err := h.posts.DeletePost(ctx, post.ID.Hex()); err != nil {
		return storeErr(err, "Post not found")
	}
	return okMessage(c, "Post deleted")
}

// SharePost counts a share and notifies the author
func (h *PostHandler) SharePost(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.IncrementSharesCount(ctx, c.Param("id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}

	h.notifier.Notify(ctx, post.AuthorID, userID, models.NotificationShare, postSubject(post.ID.Hex()), "")

	return ok(c, http.StatusOK, echo.Map{"shares_count": post.SharesCount})
}

// author resolves a compact profile, falling back to the tombstone
func (h *PostHandler) author(c echo.Context, id uint) (models.UserCompact, error) {
	user, err := h.users.GetUserByID(c.Request().Context(), id)
	if err == nil {
		return user.ToCompact(), nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.DeletedUserCompact(id), nil
	}
	return models.UserCompact{}, apperrors.Internal(err)
}
